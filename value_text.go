// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2013 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// decodeTextValue parses a single text-protocol row field (§4.8): raw is
// the length-encoded string already extracted (nil means NULL, signaled on
// the wire by 0xFB). The column's declared type and UNSIGNED flag select
// how the ASCII representation is interpreted.
func decodeTextValue(ct ColumnType, unsigned bool, raw []byte, isNull bool) (Value, error) {
	if isNull {
		return NewNull(), nil
	}

	s := string(raw)

	switch ct {
	case TypeTiny, TypeShort, TypeInt24, TypeLong, TypeYear:
		if unsigned {
			n, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return Value{}, &ProtocolError{Kind: ProtocolParse, Message: "invalid unsigned integer text value", Cause: err}
			}
			return textIntByWidth(ct, n, true), nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, &ProtocolError{Kind: ProtocolParse, Message: "invalid integer text value", Cause: err}
		}
		return textIntByWidth(ct, uint64(n), false), nil

	case TypeLongLong:
		if unsigned {
			n, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return Value{}, &ProtocolError{Kind: ProtocolParse, Message: "invalid unsigned bigint text value", Cause: err}
			}
			return NewUint64(n), nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, &ProtocolError{Kind: ProtocolParse, Message: "invalid bigint text value", Cause: err}
		}
		return NewInt64(n), nil

	case TypeFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, &ProtocolError{Kind: ProtocolParse, Message: "invalid float text value", Cause: err}
		}
		return NewFloat32(float32(f)), nil

	case TypeDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, &ProtocolError{Kind: ProtocolParse, Message: "invalid double text value", Cause: err}
		}
		return NewFloat64(f), nil

	case TypeDecimal, TypeNewDecimal:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Value{}, &ProtocolError{Kind: ProtocolParse, Message: "invalid decimal text value", Cause: err}
		}
		return NewDecimal(d), nil

	case TypeDate, TypeNewDate:
		d, err := parseTextDate(s)
		if err != nil {
			return Value{}, err
		}
		return NewDate(d), nil

	case TypeTime:
		t, err := parseTextTime(s)
		if err != nil {
			return Value{}, err
		}
		return NewTime(t), nil

	case TypeTimestamp, TypeDatetime:
		dt, err := parseTextDateTime(s)
		if err != nil {
			return Value{}, err
		}
		return NewDateTime(dt), nil

	default:
		return NewBytes(raw), nil
	}
}

func textIntByWidth(ct ColumnType, n uint64, unsigned bool) Value {
	if unsigned {
		switch ct {
		case TypeTiny:
			return NewUint8(uint8(n))
		case TypeShort, TypeYear:
			return NewUint16(uint16(n))
		default:
			return NewUint32(uint32(n))
		}
	}
	switch ct {
	case TypeTiny:
		return NewInt8(int8(int64(n)))
	case TypeShort, TypeYear:
		return NewInt16(int16(int64(n)))
	default:
		return NewInt32(int32(int64(n)))
	}
}

func parseTextDate(s string) (Date, error) {
	if len(s) < 10 {
		return Date{}, &ProtocolError{Kind: ProtocolParse, Message: "date text value too short"}
	}
	year, err1 := strconv.Atoi(s[0:4])
	month, err2 := strconv.Atoi(s[5:7])
	day, err3 := strconv.Atoi(s[8:10])
	if err1 != nil || err2 != nil || err3 != nil {
		return Date{}, &ProtocolError{Kind: ProtocolParse, Message: "malformed date text value"}
	}
	return Date{Year: uint16(year), Month: uint8(month), Day: uint8(day)}, nil
}

func parseTextTime(s string) (TimeValue, error) {
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var days, hours, minutes, seconds, micros int
	// [D ]HH:MM:SS[.ffffff]
	if idx := indexByte([]byte(s), ' '); idx >= 0 {
		d, err := strconv.Atoi(s[:idx])
		if err != nil {
			return TimeValue{}, &ProtocolError{Kind: ProtocolParse, Message: "malformed time text value"}
		}
		days = d
		s = s[idx+1:]
	}
	hhmmss := s
	frac := ""
	if idx := indexByte([]byte(s), '.'); idx >= 0 {
		hhmmss = s[:idx]
		frac = s[idx+1:]
	}
	if len(hhmmss) < 8 {
		return TimeValue{}, &ProtocolError{Kind: ProtocolParse, Message: "malformed time text value"}
	}
	h, err1 := strconv.Atoi(hhmmss[0:2])
	m, err2 := strconv.Atoi(hhmmss[3:5])
	sec, err3 := strconv.Atoi(hhmmss[6:8])
	if err1 != nil || err2 != nil || err3 != nil {
		return TimeValue{}, &ProtocolError{Kind: ProtocolParse, Message: "malformed time text value"}
	}
	hours, minutes, seconds = h, m, sec
	if frac != "" {
		for len(frac) < 6 {
			frac += "0"
		}
		us, err := strconv.Atoi(frac[:6])
		if err == nil {
			micros = us
		}
	}
	return TimeValue{
		Negative:     neg,
		Days:         uint32(days),
		Hours:        uint8(hours),
		Minutes:      uint8(minutes),
		Seconds:      uint8(seconds),
		Microseconds: uint32(micros),
	}, nil
}

func parseTextDateTime(s string) (DateTime, error) {
	if len(s) < 10 {
		return DateTime{}, &ProtocolError{Kind: ProtocolParse, Message: "datetime text value too short"}
	}
	date, err := parseTextDate(s[:10])
	if err != nil {
		return DateTime{}, err
	}
	dt := DateTime{Year: date.Year, Month: date.Month, Day: date.Day}
	if len(s) <= 11 {
		return dt, nil
	}
	timePart := s[11:]
	frac := ""
	if idx := indexByte([]byte(timePart), '.'); idx >= 0 {
		frac = timePart[idx+1:]
		timePart = timePart[:idx]
	}
	if len(timePart) < 8 {
		return dt, nil
	}
	h, err1 := strconv.Atoi(timePart[0:2])
	m, err2 := strconv.Atoi(timePart[3:5])
	sec, err3 := strconv.Atoi(timePart[6:8])
	if err1 != nil || err2 != nil || err3 != nil {
		return DateTime{}, &ProtocolError{Kind: ProtocolParse, Message: "malformed datetime text value"}
	}
	dt.Hour, dt.Minute, dt.Second = uint8(h), uint8(m), uint8(sec)
	if frac != "" {
		for len(frac) < 6 {
			frac += "0"
		}
		us, err := strconv.Atoi(frac[:6])
		if err == nil {
			dt.Microsecond = uint32(us)
		}
	}
	return dt, nil
}
