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
	"fmt"

	"github.com/shopspring/decimal"
)

// ValueKind tags the variant held by a Value (§3 Data model).
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindBytes
	KindDecimal
	KindDate
	KindTime
	KindDateTime
)

// Date is the calendar-date variant of Value: year/month/day, no time part.
type Date struct {
	Year  uint16
	Month uint8
	Day   uint8
}

// TimeValue is the calendar-time variant: a signed day/hour/minute/second/
// microsecond duration as MySQL's TIME type represents it (§3, §4.8).
type TimeValue struct {
	Negative     bool
	Days         uint32
	Hours        uint8
	Minutes      uint8
	Seconds      uint8
	Microseconds uint32
}

// DateTime is the combined calendar datetime variant.
type DateTime struct {
	Year        uint16
	Month       uint8
	Day         uint8
	Hour        uint8
	Minute      uint8
	Second      uint8
	Microsecond uint32
}

// Value is the tagged union described in §3: exactly one of its typed
// fields is meaningful, selected by Kind. Constructed via the New* helpers
// so that Kind and the occupied field can never disagree.
type Value struct {
	Kind     ValueKind
	int64V   int64
	uint64V  uint64
	float32V float32
	float64V float64
	bytesV   []byte
	decimalV decimal.Decimal
	dateV    Date
	timeV    TimeValue
	dateTime DateTime
}

func NewNull() Value                    { return Value{Kind: KindNull} }
func NewInt8(v int8) Value              { return Value{Kind: KindInt8, int64V: int64(v)} }
func NewInt16(v int16) Value            { return Value{Kind: KindInt16, int64V: int64(v)} }
func NewInt32(v int32) Value            { return Value{Kind: KindInt32, int64V: int64(v)} }
func NewInt64(v int64) Value            { return Value{Kind: KindInt64, int64V: v} }
func NewUint8(v uint8) Value            { return Value{Kind: KindUint8, uint64V: uint64(v)} }
func NewUint16(v uint16) Value          { return Value{Kind: KindUint16, uint64V: uint64(v)} }
func NewUint32(v uint32) Value          { return Value{Kind: KindUint32, uint64V: uint64(v)} }
func NewUint64(v uint64) Value          { return Value{Kind: KindUint64, uint64V: v} }
func NewFloat32(v float32) Value        { return Value{Kind: KindFloat32, float32V: v} }
func NewFloat64(v float64) Value        { return Value{Kind: KindFloat64, float64V: v} }
func NewBytes(v []byte) Value           { return Value{Kind: KindBytes, bytesV: v} }
func NewDecimal(v decimal.Decimal) Value { return Value{Kind: KindDecimal, decimalV: v} }
func NewDate(v Date) Value               { return Value{Kind: KindDate, dateV: v} }
func NewTime(v TimeValue) Value          { return Value{Kind: KindTime, timeV: v} }
func NewDateTime(v DateTime) Value       { return Value{Kind: KindDateTime, dateTime: v} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) Int64() int64         { return v.int64V }
func (v Value) Uint64() uint64       { return v.uint64V }
func (v Value) Float32() float32     { return v.float32V }
func (v Value) Float64() float64     { return v.float64V }
func (v Value) Bytes() []byte        { return v.bytesV }
func (v Value) Decimal() decimal.Decimal { return v.decimalV }
func (v Value) Date() Date           { return v.dateV }
func (v Value) Time() TimeValue      { return v.timeV }
func (v Value) DateTime() DateTime   { return v.dateTime }

// unsigned reports whether v occupies one of the Uint* variants; the
// binary-protocol parameter type descriptor sets the UNSIGNED column flag
// exactly when this is true (§3 invariant).
func (v Value) unsigned() bool {
	switch v.Kind {
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return true
	default:
		return false
	}
}

// columnType computes the declared ColumnType of v deterministically from
// its variant, per the §3 invariant that this must match the server's
// declared column type at serialize time.
func (v Value) columnType() ColumnType {
	switch v.Kind {
	case KindNull:
		return TypeNull
	case KindInt8, KindUint8:
		return TypeTiny
	case KindInt16, KindUint16:
		return TypeShort
	case KindInt32, KindUint32:
		return TypeLong
	case KindInt64, KindUint64:
		return TypeLongLong
	case KindFloat32:
		return TypeFloat
	case KindFloat64:
		return TypeDouble
	case KindBytes:
		return TypeVarString
	case KindDecimal:
		return TypeNewDecimal
	case KindDate:
		return TypeDate
	case KindTime:
		return TypeTime
	case KindDateTime:
		return TypeDatetime
	default:
		return TypeNull
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return fmt.Sprintf("%d", v.int64V)
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return fmt.Sprintf("%d", v.uint64V)
	case KindFloat32:
		return fmt.Sprintf("%v", v.float32V)
	case KindFloat64:
		return fmt.Sprintf("%v", v.float64V)
	case KindBytes:
		return string(v.bytesV)
	case KindDecimal:
		return v.decimalV.String()
	case KindDate:
		return fmt.Sprintf("%04d-%02d-%02d", v.dateV.Year, v.dateV.Month, v.dateV.Day)
	case KindTime:
		t := v.timeV
		sign := ""
		if t.Negative {
			sign = "-"
		}
		return fmt.Sprintf("%s%d %02d:%02d:%02d.%06d", sign, t.Days, t.Hours, t.Minutes, t.Seconds, t.Microseconds)
	case KindDateTime:
		d := v.dateTime
		return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d", d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second, d.Microsecond)
	default:
		return "?"
	}
}
