// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2012 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import "context"

// rowProtocol selects the wire encoding of row data: text after a Query
// command, binary after a StmtExecute (§4.8).
type rowProtocol int

const (
	textRowProtocol rowProtocol = iota
	binaryRowProtocol
)

// Row is one decoded result-set row: one Value per column, in column
// order, matching ResultSet.Columns().
type Row []Value

// ParseKind distinguishes the failure modes of a FromQueryResult mapping
// (§9 Compile-time model derivation).
type ParseKind int

const (
	ParseMissingField ParseKind = iota
	ParseWrongValue
	ParseValueOutOfBounds
)

func (k ParseKind) String() string {
	switch k {
	case ParseMissingField:
		return "MissingField"
	case ParseWrongValue:
		return "WrongValue"
	case ParseValueOutOfBounds:
		return "ValueOutOfBounds"
	default:
		return "Unknown"
	}
}

// ParseError is returned by a RowMapping when a row cannot be converted
// into the caller's domain type.
type ParseError struct {
	Kind    ParseKind
	Message string
}

func (e *ParseError) Error() string {
	return "mysql: parse error (" + e.Kind.String() + "): " + e.Message
}

// RowMapping is the struct-to-row mapping capability of §9: the generator
// that produces one is outside this core's scope, but this is the contract
// it satisfies. FromColumns runs once, when the result set's column
// metadata becomes known (nil columns for a columnless OK-only result);
// FromRow runs once per row, converting the positional Values into R or a
// *ParseError. Grounded on original_source/src/model/from_query_result.rs's
// FromQueryResult/FromQueryResultMapping split, collapsed into one
// interface since Go has no associated-type equivalent of the Rust trait's
// Mapping type.
type RowMapping[R any] interface {
	FromColumns(columns []Column) error
	FromRow(row Row) (R, error)
}

// RawRowMapping is the identity mapping: every row is handed back as a
// Row of raw Values, with no column-driven validation. The default for
// callers that don't need a generated struct mapping.
type RawRowMapping struct{}

func (RawRowMapping) FromColumns([]Column) error   { return nil }
func (RawRowMapping) FromRow(row Row) (Row, error) { return row, nil }

// resultSetConn is the narrow capability ResultSet needs from a Connection
// (one packet at a time, the negotiated capabilities, and the
// pending_result toggle), kept unexported and interface-based for the same
// reason authTransport is (§9: this file should make sense independent of
// connection.go's full surface).
type resultSetConn interface {
	readPacket(ctx context.Context) ([]byte, error)
	capabilities() CapabilityFlags
	setPendingResult(bool)

	// lock and unlock enforce the connection's exclusive-use invariant
	// (§5/§9): the command that opens a result set acquires it, and
	// whichever of Next/Collect/One/Finish/FinishIntoInner first observes
	// the terminal OK releases it.
	lock()
	unlock()
}

// ResultSet is the row-protocol state machine of §4.9, grounded on
// original_source/src/connection/result_set.rs's ResultSet<P, R>. It reads
// lazily: no row is decoded until Next (or a method built on it) is called.
type ResultSet[R any] struct {
	columns  []Column
	mapping  RowMapping[R]
	okPacket *OkPacket
	conn     resultSetConn
	protocol rowProtocol
	released bool
}

// release unlocks the connection the first time a result set's terminal OK
// (or a terminating error) is observed; later calls are a no-op so Next
// can call it unconditionally on every exit path without double-unlocking.
func (rs *ResultSet[R]) release() {
	if rs.released {
		return
	}
	rs.released = true
	rs.conn.unlock()
}

// readResultSet consumes the header packet of a just-issued command,
// dispatching on §4.9's first-byte rule, and returns the constructed
// ResultSet ready for Next. The caller must already hold conn's command
// mutex (§5/§9); readResultSet releases it itself on every path that does
// not return a ResultSet still awaiting Next/Collect/One/Finish.
func readResultSet[R any](ctx context.Context, conn resultSetConn, protocol rowProtocol, mapping RowMapping[R]) (*ResultSet[R], error) {
	packet, err := conn.readPacket(ctx)
	if err != nil {
		conn.unlock()
		return nil, err
	}
	if len(packet) == 0 {
		conn.unlock()
		return nil, newProtocolError(ProtocolInvalidPacket, "empty result set header packet")
	}

	switch packet[0] {
	case iOK:
		ok, err := decodeOkPacket(packet, conn.capabilities(), iOK)
		if err != nil {
			conn.unlock()
			return nil, err
		}
		if err := mapping.FromColumns(nil); err != nil {
			conn.unlock()
			return nil, err
		}
		conn.unlock()
		return &ResultSet[R]{conn: conn, protocol: protocol, mapping: mapping, okPacket: &ok, released: true}, nil

	case 0xfb: // local-infile request, §9 Open Questions: unsupported
		conn.unlock()
		return nil, ErrLocalInfileUnsupported

	case iERR:
		conn.unlock()
		return nil, decodeServerError(packet)

	default:
		n, isNullOrErr, err := NewParseBuf(packet).EatLenencInt()
		if err != nil || isNullOrErr {
			conn.unlock()
			return nil, newProtocolError(ProtocolInvalidPacket, "result set header: bad column count")
		}
		conn.setPendingResult(true)

		columns := make([]Column, 0, n)
		for i := uint64(0); i < n; i++ {
			cdPacket, err := conn.readPacket(ctx)
			if err != nil {
				conn.unlock()
				return nil, err
			}
			col, err := parseColumnDef(NewParseBuf(cdPacket))
			if err != nil {
				conn.unlock()
				return nil, err
			}
			columns = append(columns, col)
		}
		if err := mapping.FromColumns(columns); err != nil {
			conn.unlock()
			return nil, err
		}
		return &ResultSet[R]{conn: conn, protocol: protocol, mapping: mapping, columns: columns}, nil
	}
}

// decodeTerminatorPacket decodes a result-set terminator according to
// whichever shape the negotiated capabilities imply (§4.9).
func decodeTerminatorPacket(packet []byte, capabilities CapabilityFlags) (OkPacket, error) {
	if capabilities&ClientDeprecateEOF != 0 {
		return decodeOkPacket(packet, capabilities, iEOF)
	}
	return decodeLegacyEofPacket(packet)
}

// isResultSetTerminator recognizes the row stream's terminating packet
// (§4.9): first byte 0xFE, and short enough not to be mistaken for an
// oversized row whose first byte happens to collide with 0xFE.
func isResultSetTerminator(packet []byte, capabilities CapabilityFlags) bool {
	if len(packet) == 0 || packet[0] != iEOF {
		return false
	}
	if capabilities&ClientDeprecateEOF != 0 {
		return len(packet) < maxPayloadLen
	}
	return len(packet) < 8
}

// Next decodes the next row, or returns (nil, nil) once the terminal OK has
// been consumed and stored. Calling Next again after that is a no-op that
// keeps returning (nil, nil), matching the Rust original's
// `ok_packet.is_some()` short-circuit.
func (rs *ResultSet[R]) Next(ctx context.Context) (*R, error) {
	if rs.okPacket != nil {
		return nil, nil
	}

	packet, err := rs.conn.readPacket(ctx)
	if err != nil {
		rs.release()
		return nil, err
	}

	if isResultSetTerminator(packet, rs.conn.capabilities()) {
		ok, err := decodeTerminatorPacket(packet, rs.conn.capabilities())
		if err != nil {
			rs.release()
			return nil, err
		}
		rs.okPacket = &ok
		rs.conn.setPendingResult(false)
		rs.release()
		return nil, nil
	}

	var row Row
	switch rs.protocol {
	case binaryRowProtocol:
		row, err = decodeBinaryRow(packet, rs.columns)
	default:
		row, err = decodeTextRow(packet, rs.columns)
	}
	if err != nil {
		rs.release()
		return nil, err
	}

	out, err := rs.mapping.FromRow(row)
	if err != nil {
		rs.release()
		return nil, err
	}
	return &out, nil
}

// Collect drains every remaining row into a slice.
func (rs *ResultSet[R]) Collect(ctx context.Context) ([]R, error) {
	var out []R
	for {
		row, err := rs.Next(ctx)
		if err != nil {
			return out, err
		}
		if row == nil {
			return out, nil
		}
		out = append(out, *row)
	}
}

// One returns the first row (or nil if there were none), having fully
// drained the remaining rows so the connection is left clean.
func (rs *ResultSet[R]) One(ctx context.Context) (*R, error) {
	first, firstErr := rs.Next(ctx)
	for {
		next, err := rs.Next(ctx)
		if err != nil {
			return first, err
		}
		if next == nil {
			break
		}
	}
	return first, firstErr
}

// Columns reports the result set's column metadata (nil for an OK-only result).
func (rs *ResultSet[R]) Columns() []Column { return rs.columns }

// Finish drains any remaining rows and returns the terminal OK packet.
func (rs *ResultSet[R]) Finish(ctx context.Context) (OkPacket, error) {
	for rs.okPacket == nil {
		if _, err := rs.Next(ctx); err != nil {
			return OkPacket{}, err
		}
	}
	return *rs.okPacket, nil
}

// FinishIntoInner drains any remaining rows and returns the terminal OK
// packet alongside the column metadata and mapping, for callers that want
// to keep using those after the result set itself is spent.
func (rs *ResultSet[R]) FinishIntoInner(ctx context.Context) (OkPacket, []Column, RowMapping[R], error) {
	ok, err := rs.Finish(ctx)
	return ok, rs.columns, rs.mapping, err
}

// decodeTextRow parses one text-protocol row (§4.8): each field is a
// length-encoded string, 0xFB signaling NULL.
func decodeTextRow(packet []byte, columns []Column) (Row, error) {
	p := NewParseBuf(packet)
	row := make(Row, len(columns))
	for i, col := range columns {
		raw, isNull, err := p.EatLenencSlice()
		if err != nil {
			return nil, wrapIOError(err)
		}
		v, err := decodeTextValue(col.Type, col.Unsigned(), raw, isNull)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// decodeBinaryRow parses one binary-protocol row (§4.8): a 0x00 marker,
// then a null bitmap of ceil((n+9)/8) bytes with a 2-bit offset, then
// non-null values in column order.
func decodeBinaryRow(packet []byte, columns []Column) (Row, error) {
	p := NewParseBuf(packet)
	marker, err := p.CheckedEatU8()
	if err != nil {
		return nil, wrapIOError(err)
	}
	if marker != 0x00 {
		return nil, newProtocolError(ProtocolUnexpectedPacket, "expected binary row marker")
	}

	nullBitmapLen := (len(columns) + 7 + 2) / 8
	nullBitmap, err := p.CheckedEatBytes(nullBitmapLen)
	if err != nil {
		return nil, wrapIOError(err)
	}

	row := make(Row, len(columns))
	for i, col := range columns {
		bitIndex := i + 2
		if nullBitmap[bitIndex/8]>>uint(bitIndex%8)&1 == 1 {
			row[i] = NewNull()
			continue
		}
		v, err := decodeBinaryValue(col.Type, col.Unsigned(), p)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// drainPendingResult implements the connection-level cleanup routine of
// §4.7/§4.9: if a result set was left open, read packets until the
// terminator and clear pending_result, returning the terminal OK. Grounded
// on original_source/src/connection/result_set.rs's Connection::cleanup.
func drainPendingResult(ctx context.Context, conn resultSetConn, pending bool) (*OkPacket, error) {
	if !pending {
		return nil, nil
	}
	for {
		packet, err := conn.readPacket(ctx)
		if err != nil {
			return nil, err
		}
		if isResultSetTerminator(packet, conn.capabilities()) {
			ok, err := decodeTerminatorPacket(packet, conn.capabilities())
			if err != nil {
				return nil, err
			}
			conn.setPendingResult(false)
			return &ok, nil
		}
	}
}
