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
	"math"

	"github.com/shopspring/decimal"
)

// maxPayloadLen is the 16 777 215-byte chunk boundary of §4.1/§4.8.
const maxPayloadLen = 1<<24 - 1

// decodeBinaryValue parses one non-NULL field of a binary-protocol row
// (§4.8). NULL-ness is decided by the row's null bitmap before this is
// called; this function only runs for present values.
func decodeBinaryValue(ct ColumnType, unsigned bool, p *ParseBuf) (Value, error) {
	switch ct {
	case TypeTiny:
		b := p.EatU8()
		if unsigned {
			return NewUint8(b), nil
		}
		return NewInt8(int8(b)), nil

	case TypeShort, TypeYear:
		u := p.EatU16LE()
		if unsigned {
			return NewUint16(u), nil
		}
		return NewInt16(int16(u)), nil

	case TypeInt24, TypeLong:
		u := p.EatU32LE()
		if unsigned {
			return NewUint32(u), nil
		}
		return NewInt32(int32(u)), nil

	case TypeLongLong:
		u := p.EatU64LE()
		if unsigned {
			return NewUint64(u), nil
		}
		return NewInt64(int64(u)), nil

	case TypeFloat:
		return NewFloat32(p.EatF32LE()), nil

	case TypeDouble:
		return NewFloat64(p.EatF64LE()), nil

	case TypeDate, TypeNewDate:
		d, err := decodeBinaryDate(p)
		if err != nil {
			return Value{}, err
		}
		return NewDate(d), nil

	case TypeTime:
		t, err := decodeBinaryTime(p)
		if err != nil {
			return Value{}, err
		}
		return NewTime(t), nil

	case TypeTimestamp, TypeDatetime:
		dt, err := decodeBinaryDateTime(p)
		if err != nil {
			return Value{}, err
		}
		return NewDateTime(dt), nil

	case TypeDecimal, TypeNewDecimal:
		raw, isNull, err := p.EatLenencSlice()
		if err != nil {
			return Value{}, wrapIOError(err)
		}
		if isNull {
			return NewNull(), nil
		}
		d, derr := decimal.NewFromString(string(raw))
		if derr != nil {
			return Value{}, &ProtocolError{Kind: ProtocolParse, Message: "invalid decimal binary value", Cause: derr}
		}
		return NewDecimal(d), nil

	default:
		if !ct.isVariableLength() {
			return Value{}, newProtocolError(ProtocolUnexpectedPacket, "unsupported binary-protocol column type")
		}
		raw, isNull, err := p.EatLenencSlice()
		if err != nil {
			return Value{}, wrapIOError(err)
		}
		if isNull {
			return NewNull(), nil
		}
		out := make([]byte, len(raw))
		copy(out, raw)
		return NewBytes(out), nil
	}
}

// decodeBinaryDate reads MySQL's DATE binary encoding: a 1-byte length
// discriminator (0 or 4) followed by year/month/day when present.
func decodeBinaryDate(p *ParseBuf) (Date, error) {
	n := p.EatU8()
	switch n {
	case 0:
		return Date{}, nil
	case 4:
		year := p.EatU16LE()
		month := p.EatU8()
		day := p.EatU8()
		return Date{Year: year, Month: month, Day: day}, nil
	default:
		return Date{}, &ProtocolError{Kind: ProtocolInvalidPacket, Message: "invalid DATE length discriminator"}
	}
}

// decodeBinaryTime reads MySQL's TIME binary encoding: a 1-byte length
// discriminator (0, 8, or 12) per §4.8.
func decodeBinaryTime(p *ParseBuf) (TimeValue, error) {
	n := p.EatU8()
	switch n {
	case 0:
		return TimeValue{}, nil
	case 8, 12:
		neg := p.EatU8() != 0
		days := p.EatU32LE()
		hours := p.EatU8()
		minutes := p.EatU8()
		seconds := p.EatU8()
		var micros uint32
		if n == 12 {
			micros = p.EatU32LE()
		}
		return TimeValue{Negative: neg, Days: days, Hours: hours, Minutes: minutes, Seconds: seconds, Microseconds: micros}, nil
	default:
		return TimeValue{}, &ProtocolError{Kind: ProtocolInvalidPacket, Message: "invalid TIME length discriminator"}
	}
}

// decodeBinaryDateTime reads MySQL's DATETIME/TIMESTAMP binary encoding: a
// 1-byte length discriminator (0, 4, 7, or 11) per §4.8.
func decodeBinaryDateTime(p *ParseBuf) (DateTime, error) {
	n := p.EatU8()
	var dt DateTime
	switch n {
	case 0:
		return dt, nil
	case 4, 7, 11:
		dt.Year = p.EatU16LE()
		dt.Month = p.EatU8()
		dt.Day = p.EatU8()
		if n >= 7 {
			dt.Hour = p.EatU8()
			dt.Minute = p.EatU8()
			dt.Second = p.EatU8()
		}
		if n == 11 {
			dt.Microsecond = p.EatU32LE()
		}
		return dt, nil
	default:
		return dt, &ProtocolError{Kind: ProtocolInvalidPacket, Message: "invalid DATETIME length discriminator"}
	}
}

// binLen returns the number of bytes encodeBinaryValue will write for v:
// 0 for NULL, 1 for zero-valued temporals, the exact byte count otherwise
// (§4.8's bin_len contract).
func binLen(v Value) int {
	switch v.Kind {
	case KindNull:
		return 0
	case KindInt8, KindUint8:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindFloat64:
		return 8
	case KindBytes:
		return LenencIntLen(uint64(len(v.bytesV))) + len(v.bytesV)
	case KindDecimal:
		s := v.decimalV.String()
		return LenencIntLen(uint64(len(s))) + len(s)
	case KindDate:
		if v.dateV == (Date{}) {
			return 1
		}
		return 5
	case KindTime:
		t := v.timeV
		if t == (TimeValue{}) {
			return 1
		}
		if t.Microseconds == 0 {
			return 9
		}
		return 13
	case KindDateTime:
		d := v.dateTime
		if d == (DateTime{}) {
			return 1
		}
		if d.Hour == 0 && d.Minute == 0 && d.Second == 0 && d.Microsecond == 0 {
			return 5
		}
		if d.Microsecond == 0 {
			return 8
		}
		return 12
	default:
		return 0
	}
}

// encodeBinaryValue appends the binary-protocol encoding of v to dst. The
// null bitmap bit for v is the caller's responsibility; this only encodes
// non-null payload bytes (length 0 for NULL, matching binLen).
func encodeBinaryValue(dst []byte, v Value) []byte {
	switch v.Kind {
	case KindNull:
		return dst
	case KindInt8:
		return append(dst, byte(v.int64V))
	case KindUint8:
		return append(dst, byte(v.uint64V))
	case KindInt16:
		return appendU16LE(dst, uint16(v.int64V))
	case KindUint16:
		return appendU16LE(dst, uint16(v.uint64V))
	case KindInt32:
		return appendU32LE(dst, uint32(v.int64V))
	case KindUint32:
		return appendU32LE(dst, uint32(v.uint64V))
	case KindInt64:
		return appendU64LE(dst, uint64(v.int64V))
	case KindUint64:
		return appendU64LE(dst, v.uint64V)
	case KindFloat32:
		return appendU32LE(dst, math.Float32bits(v.float32V))
	case KindFloat64:
		return appendU64LE(dst, math.Float64bits(v.float64V))
	case KindBytes:
		return PutLenencSlice(dst, v.bytesV)
	case KindDecimal:
		return PutLenencSlice(dst, []byte(v.decimalV.String()))
	case KindDate:
		return encodeBinaryDate(dst, v.dateV)
	case KindTime:
		return encodeBinaryTime(dst, v.timeV)
	case KindDateTime:
		return encodeBinaryDateTime(dst, v.dateTime)
	default:
		return dst
	}
}

func encodeBinaryDate(dst []byte, d Date) []byte {
	if d == (Date{}) {
		return append(dst, 0)
	}
	dst = append(dst, 4)
	dst = appendU16LE(dst, d.Year)
	return append(dst, d.Month, d.Day)
}

func encodeBinaryTime(dst []byte, t TimeValue) []byte {
	if t == (TimeValue{}) {
		return append(dst, 0)
	}
	if t.Microseconds == 0 {
		dst = append(dst, 8)
	} else {
		dst = append(dst, 12)
	}
	neg := byte(0)
	if t.Negative {
		neg = 1
	}
	dst = append(dst, neg)
	dst = appendU32LE(dst, t.Days)
	dst = append(dst, t.Hours, t.Minutes, t.Seconds)
	if t.Microseconds != 0 {
		dst = appendU32LE(dst, t.Microseconds)
	}
	return dst
}

func encodeBinaryDateTime(dst []byte, d DateTime) []byte {
	if d == (DateTime{}) {
		return append(dst, 0)
	}
	hasTime := d.Hour != 0 || d.Minute != 0 || d.Second != 0
	hasMicros := d.Microsecond != 0
	switch {
	case !hasTime && !hasMicros:
		dst = append(dst, 4)
	case !hasMicros:
		dst = append(dst, 7)
	default:
		dst = append(dst, 11)
	}
	dst = appendU16LE(dst, d.Year)
	dst = append(dst, d.Month, d.Day)
	if hasTime || hasMicros {
		dst = append(dst, d.Hour, d.Minute, d.Second)
	}
	if hasMicros {
		dst = appendU32LE(dst, d.Microsecond)
	}
	return dst
}
