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
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDecodeTextValueNull(t *testing.T) {
	v, err := decodeTextValue(TypeLong, false, nil, true)
	require.NoError(t, err)
	require.True(t, v.IsNull())
}

func TestDecodeTextValueSignedAndUnsignedIntegers(t *testing.T) {
	v, err := decodeTextValue(TypeLong, false, []byte("-42"), false)
	require.NoError(t, err)
	require.Equal(t, int64(-42), v.Int64())

	v, err = decodeTextValue(TypeLong, true, []byte("42"), false)
	require.NoError(t, err)
	require.Equal(t, uint64(42), v.Uint64())
}

func TestDecodeTextValueLongLong(t *testing.T) {
	v, err := decodeTextValue(TypeLongLong, false, []byte("-9000000000000000000"), false)
	require.NoError(t, err)
	require.Equal(t, int64(-9000000000000000000), v.Int64())

	v, err = decodeTextValue(TypeLongLong, true, []byte("18000000000000000000"), false)
	require.NoError(t, err)
	require.Equal(t, uint64(18000000000000000000), v.Uint64())
}

func TestDecodeTextValueRejectsMalformedInteger(t *testing.T) {
	_, err := decodeTextValue(TypeLong, false, []byte("not-a-number"), false)
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.Equal(t, ProtocolParse, protoErr.Kind)
}

func TestDecodeTextValueFloatsAndDecimal(t *testing.T) {
	v, err := decodeTextValue(TypeFloat, false, []byte("3.25"), false)
	require.NoError(t, err)
	require.Equal(t, float32(3.25), v.Float32())

	v, err = decodeTextValue(TypeDouble, false, []byte("-123.456"), false)
	require.NoError(t, err)
	require.Equal(t, -123.456, v.Float64())

	v, err = decodeTextValue(TypeNewDecimal, false, []byte("12345.6789"), false)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("12345.6789").Equal(v.Decimal()))
}

func TestDecodeTextValueDate(t *testing.T) {
	v, err := decodeTextValue(TypeDate, false, []byte("2024-03-15"), false)
	require.NoError(t, err)
	require.Equal(t, Date{Year: 2024, Month: 3, Day: 15}, v.Date())
}

func TestDecodeTextValueTimeWithFraction(t *testing.T) {
	v, err := decodeTextValue(TypeTime, false, []byte("-1 02:03:04.5"), false)
	require.NoError(t, err)
	tv := v.Time()
	require.True(t, tv.Negative)
	require.Equal(t, uint32(1), tv.Days)
	require.Equal(t, uint8(2), tv.Hours)
	require.Equal(t, uint8(3), tv.Minutes)
	require.Equal(t, uint8(4), tv.Seconds)
	require.Equal(t, uint32(500000), tv.Microseconds)
}

func TestDecodeTextValueDateTimeDateOnly(t *testing.T) {
	v, err := decodeTextValue(TypeDatetime, false, []byte("2024-03-15"), false)
	require.NoError(t, err)
	dt := v.DateTime()
	require.Equal(t, uint16(2024), dt.Year)
	require.Equal(t, uint8(0), dt.Hour)
}

func TestDecodeTextValueDateTimeWithFraction(t *testing.T) {
	v, err := decodeTextValue(TypeTimestamp, false, []byte("2024-03-15 10:30:45.123456"), false)
	require.NoError(t, err)
	dt := v.DateTime()
	require.Equal(t, uint8(10), dt.Hour)
	require.Equal(t, uint8(30), dt.Minute)
	require.Equal(t, uint8(45), dt.Second)
	require.Equal(t, uint32(123456), dt.Microsecond)
}

func TestDecodeTextValueDefaultFallsBackToBytes(t *testing.T) {
	v, err := decodeTextValue(TypeVarString, false, []byte("hi"), false)
	require.NoError(t, err)
	require.Equal(t, "hi", string(v.Bytes()))
}

func TestParseTextDateRejectsShortValue(t *testing.T) {
	_, err := parseTextDate("2024")
	require.Error(t, err)
}

func TestParseTextTimeRejectsShortValue(t *testing.T) {
	_, err := parseTextTime("1:2")
	require.Error(t, err)
}
