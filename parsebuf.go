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
	"encoding/binary"
	"io"
	"math"
)

// ParseBuf is a zero-copy cursor over a borrowed byte slice (§4.2), grounded
// on original_source/src/connection/parse_buf.rs. It never allocates on the
// read path; slices it returns alias the backing array and are only valid
// until the backing packet buffer is reused.
type ParseBuf struct {
	data []byte
	pos  int
}

// NewParseBuf wraps data for cursor-style reading. The caller retains
// ownership of data; ParseBuf never mutates it.
func NewParseBuf(data []byte) *ParseBuf {
	return &ParseBuf{data: data}
}

// Len returns the number of unread bytes remaining.
func (p *ParseBuf) Len() int { return len(p.data) - p.pos }

// Remaining returns the unread suffix without advancing the cursor.
func (p *ParseBuf) Remaining() []byte { return p.data[p.pos:] }

func (p *ParseBuf) checkedAdvance(n int) ([]byte, error) {
	if p.Len() < n {
		return nil, io.ErrUnexpectedEOF
	}
	s := p.data[p.pos : p.pos+n]
	p.pos += n
	return s, nil
}

// EatU8 reads one unsigned byte, panicking on a short buffer (the "eat_*"
// family assumes a prior bulk length check, per §4.2).
func (p *ParseBuf) EatU8() byte {
	b, err := p.checkedAdvance(1)
	if err != nil {
		panic(err)
	}
	return b[0]
}

// CheckedEatU8 is the EOF-returning counterpart of EatU8.
func (p *ParseBuf) CheckedEatU8() (byte, error) {
	b, err := p.checkedAdvance(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// EatU16LE reads a little-endian uint16.
func (p *ParseBuf) EatU16LE() uint16 {
	b, err := p.checkedAdvance(2)
	if err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint16(b)
}

// EatU24LE reads a little-endian 24-bit unsigned integer (used by packet
// length headers, §4.1).
func (p *ParseBuf) EatU24LE() uint32 {
	b, err := p.checkedAdvance(3)
	if err != nil {
		panic(err)
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// EatU32LE reads a little-endian uint32.
func (p *ParseBuf) EatU32LE() uint32 {
	b, err := p.checkedAdvance(4)
	if err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint32(b)
}

// EatU40LE reads a little-endian 40-bit unsigned integer (temporal fields).
func (p *ParseBuf) EatU40LE() uint64 {
	b, err := p.checkedAdvance(5)
	if err != nil {
		panic(err)
	}
	var v uint64
	for i := 4; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// EatU48LE reads a little-endian 48-bit unsigned integer.
func (p *ParseBuf) EatU48LE() uint64 {
	b, err := p.checkedAdvance(6)
	if err != nil {
		panic(err)
	}
	var v uint64
	for i := 5; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// EatU56LE reads a little-endian 56-bit unsigned integer.
func (p *ParseBuf) EatU56LE() uint64 {
	b, err := p.checkedAdvance(7)
	if err != nil {
		panic(err)
	}
	var v uint64
	for i := 6; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// EatU64LE reads a little-endian uint64.
func (p *ParseBuf) EatU64LE() uint64 {
	b, err := p.checkedAdvance(8)
	if err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint64(b)
}

// EatF32LE reads an IEEE-754 little-endian float32.
func (p *ParseBuf) EatF32LE() float32 {
	return math.Float32frombits(p.EatU32LE())
}

// EatF64LE reads an IEEE-754 little-endian float64.
func (p *ParseBuf) EatF64LE() float64 {
	return math.Float64frombits(p.EatU64LE())
}

// EatBytes consumes and returns exactly n bytes.
func (p *ParseBuf) EatBytes(n int) []byte {
	b, err := p.checkedAdvance(n)
	if err != nil {
		panic(err)
	}
	return b
}

// CheckedEatBytes is the EOF-returning counterpart of EatBytes.
func (p *ParseBuf) CheckedEatBytes(n int) ([]byte, error) {
	return p.checkedAdvance(n)
}

// EatAll consumes and returns every remaining byte.
func (p *ParseBuf) EatAll() []byte {
	b := p.data[p.pos:]
	p.pos = len(p.data)
	return b
}

// EatU8Str reads a u8-length-prefixed string (§4.2).
func (p *ParseBuf) EatU8Str() []byte {
	n := int(p.EatU8())
	return p.EatBytes(n)
}

// CheckedEatU8Str is the EOF-returning counterpart of EatU8Str.
func (p *ParseBuf) CheckedEatU8Str() ([]byte, error) {
	n, err := p.CheckedEatU8()
	if err != nil {
		return nil, err
	}
	return p.checkedAdvance(int(n))
}

// EatNullTerminatedStr reads a NUL-terminated string, excluding the
// terminator, and advances past it.
func (p *ParseBuf) EatNullTerminatedStr() ([]byte, error) {
	rest := p.data[p.pos:]
	idx := indexByte(rest, 0)
	if idx < 0 {
		return nil, io.ErrUnexpectedEOF
	}
	s := rest[:idx]
	p.pos += idx + 1
	return s, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// EatLenencInt reads a length-encoded integer per §4.2's first-byte table:
// 0x00-0xFA literal; 0xFC+u16; 0xFD+u24; 0xFE+u64; 0xFB/0xFF -> (0, isNull/isErr).
func (p *ParseBuf) EatLenencInt() (value uint64, isNullOrErr bool, err error) {
	first, err := p.CheckedEatU8()
	if err != nil {
		return 0, false, err
	}
	switch {
	case first <= 0xfa:
		return uint64(first), false, nil
	case first == 0xfb:
		return 0, true, nil
	case first == 0xfc:
		b, err := p.checkedAdvance(2)
		if err != nil {
			return 0, false, err
		}
		return uint64(binary.LittleEndian.Uint16(b)), false, nil
	case first == 0xfd:
		b, err := p.checkedAdvance(3)
		if err != nil {
			return 0, false, err
		}
		return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16, false, nil
	case first == 0xfe:
		b, err := p.checkedAdvance(8)
		if err != nil {
			return 0, false, err
		}
		return binary.LittleEndian.Uint64(b), false, nil
	default: // 0xff
		return 0, true, nil
	}
}

// EatLenencSlice reads a length-encoded integer followed by that many bytes
// (a length-encoded string). NULL (0xFB) yields (nil, true, nil).
func (p *ParseBuf) EatLenencSlice() (value []byte, isNull bool, err error) {
	n, isNullOrErr, err := p.EatLenencInt()
	if err != nil {
		return nil, false, err
	}
	if isNullOrErr {
		return nil, true, nil
	}
	b, err := p.checkedAdvance(int(n))
	if err != nil {
		return nil, false, err
	}
	return b, false, nil
}

// LenencIntLen returns the number of bytes PutLenencInt will write for v,
// matching §8's quantified property for put/eat round trips.
func LenencIntLen(v uint64) int {
	switch {
	case v < 251:
		return 1
	case v < 1<<16:
		return 3
	case v < 1<<24:
		return 4
	default:
		return 9
	}
}

// PutLenencInt appends v to dst in length-encoded form.
func PutLenencInt(dst []byte, v uint64) []byte {
	switch {
	case v < 251:
		return append(dst, byte(v))
	case v < 1<<16:
		dst = append(dst, 0xfc)
		return appendU16LE(dst, uint16(v))
	case v < 1<<24:
		dst = append(dst, 0xfd)
		return appendU24LE(dst, uint32(v))
	default:
		dst = append(dst, 0xfe)
		return appendU64LE(dst, v)
	}
}

// PutLenencSlice appends s to dst as a length-encoded string.
func PutLenencSlice(dst []byte, s []byte) []byte {
	dst = PutLenencInt(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendU16LE(dst []byte, v uint16) []byte {
	return append(dst, byte(v), byte(v>>8))
}

func appendU24LE(dst []byte, v uint32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16))
}

func appendU32LE(dst []byte, v uint32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendU64LE(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}
