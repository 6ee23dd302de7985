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

// statementConn is the narrow capability a PreparedStatement needs from a
// Connection: reading reply packets, the result-set protocol surface, and
// sendCommand, which performs §4.7's per-command cleanup-then-reset-
// sequence-id dance before writing the payload. Kept unexported and
// interface-based for the same reason authTransport/resultSetConn are.
type statementConn interface {
	resultSetConn
	sendCommand(ctx context.Context, payload []byte) error
}

// stmtPrepareOk is the decoded Stmt (Prepare OK) packet body (§4.10):
// a fixed 12 bytes including the leading 0x00 marker. Grounded on
// original_source/src/connection/packets/stmt.rs.
type stmtPrepareOk struct {
	id           uint32
	columnCount  uint16
	paramCount   uint16
	warningCount uint16
}

func decodeStmtPrepareOk(packet []byte) (stmtPrepareOk, error) {
	p := NewParseBuf(packet)
	if p.Len() < 12 {
		return stmtPrepareOk{}, newProtocolError(ProtocolParse, "stmt prepare ok: short body")
	}
	p.EatU8() // marker, already dispatched on by the caller
	id := p.EatU32LE()
	columnCount := p.EatU16LE()
	paramCount := p.EatU16LE()
	p.EatU8() // filler
	warningCount := p.EatU16LE()
	return stmtPrepareOk{id: id, columnCount: columnCount, paramCount: paramCount, warningCount: warningCount}, nil
}

// PreparedStatement is a server-side prepared statement (§4.10), bound to
// the connection that created it. Grounded on
// original_source/src/connection/prepared_statement.rs's PreparedStatement.
type PreparedStatement struct {
	id          uint32
	paramCount  int
	columnCount int
	conn        statementConn
}

// ParamCount reports the number of placeholders the statement expects.
func (s *PreparedStatement) ParamCount() int { return s.paramCount }

// prepareStatement sends COM_STMT_PREPARE and reads the Prepare OK (or
// error) along with the param/column definition packets that follow it,
// which this core discards: it derives everything it needs about result
// columns from the result set's own column definitions at query time.
func prepareStatement(ctx context.Context, conn statementConn, query string) (*PreparedStatement, error) {
	if err := conn.sendCommand(ctx, encodeStmtPrepare(query)); err != nil {
		return nil, err
	}

	packet, err := conn.readPacket(ctx)
	if err != nil {
		return nil, err
	}
	if len(packet) == 0 {
		return nil, newProtocolError(ProtocolInvalidPacket, "empty stmt prepare reply")
	}

	switch packet[0] {
	case iOK:
		ok, err := decodeStmtPrepareOk(packet)
		if err != nil {
			return nil, err
		}
		for i := 0; i < int(ok.paramCount)+int(ok.columnCount); i++ {
			if _, err := conn.readPacket(ctx); err != nil {
				return nil, err
			}
		}
		return &PreparedStatement{
			id:          ok.id,
			paramCount:  int(ok.paramCount),
			columnCount: int(ok.columnCount),
			conn:        conn,
		}, nil

	case iERR:
		return nil, decodeServerError(packet)

	default:
		return nil, newProtocolError(ProtocolUnexpectedPacket, "expected stmt prepare ok or err packet")
	}
}

// Query executes the statement with params bound positionally and returns
// the resulting binary-protocol ResultSet, decoded into raw Values.
func (s *PreparedStatement) Query(ctx context.Context, params []Value) (*ResultSet[Row], error) {
	return queryPreparedStatement[Row](ctx, s, params, RawRowMapping{})
}

// QueryMapped is Query generalized over a caller-supplied RowMapping,
// letting a generated struct mapper consume a prepared statement's rows
// directly (§9).
func QueryMapped[R any](ctx context.Context, s *PreparedStatement, params []Value, mapping RowMapping[R]) (*ResultSet[R], error) {
	return queryPreparedStatement[R](ctx, s, params, mapping)
}

func queryPreparedStatement[R any](ctx context.Context, s *PreparedStatement, params []Value, mapping RowMapping[R]) (*ResultSet[R], error) {
	if len(params) != s.paramCount {
		return nil, newRuntimeError(RuntimeParameterCountMismatch, "prepared statement expects a different number of parameters")
	}
	s.conn.lock()
	if err := s.sendExecute(ctx, params); err != nil {
		s.conn.unlock()
		return nil, err
	}
	return readResultSet[R](ctx, s.conn, binaryRowProtocol, mapping)
}

// Execute runs the statement for its side effects (INSERT/UPDATE/DELETE/
// DDL) and returns the terminal OK packet.
func (s *PreparedStatement) Execute(ctx context.Context, params []Value) (OkPacket, error) {
	if len(params) != s.paramCount {
		return OkPacket{}, newRuntimeError(RuntimeParameterCountMismatch, "prepared statement expects a different number of parameters")
	}
	s.conn.lock()
	defer s.conn.unlock()

	if err := s.sendExecute(ctx, params); err != nil {
		return OkPacket{}, err
	}

	packet, err := s.conn.readPacket(ctx)
	if err != nil {
		return OkPacket{}, err
	}
	if len(packet) == 0 {
		return OkPacket{}, newProtocolError(ProtocolInvalidPacket, "empty stmt execute reply")
	}

	switch packet[0] {
	case iOK:
		return decodeOkPacket(packet, s.conn.capabilities(), iOK)
	case iERR:
		return OkPacket{}, decodeServerError(packet)
	default:
		return OkPacket{}, newProtocolError(ProtocolUnexpectedPacket, "expected ok or err packet after stmt execute")
	}
}

// Close sends COM_STMT_CLOSE, which the server never replies to (§4.10).
func (s *PreparedStatement) Close(ctx context.Context) error {
	s.conn.lock()
	defer s.conn.unlock()
	return s.conn.sendCommand(ctx, encodeStmtClose(s.id))
}

// sendExecute streams any over-threshold byte-string parameters via
// COM_STMT_SEND_LONG_DATA, then writes COM_STMT_EXECUTE.
func (s *PreparedStatement) sendExecute(ctx context.Context, params []Value) error {
	asLongData := needsLongData(params)
	if asLongData {
		for i, v := range params {
			if v.Kind != KindBytes {
				continue
			}
			if err := s.sendLongData(ctx, uint16(i), v.Bytes()); err != nil {
				return err
			}
		}
	}
	return s.conn.sendCommand(ctx, encodeStmtExecute(s.id, params, asLongData))
}

// sendLongData splits bytes into maxPayloadLen-6-byte chunks and streams
// each as its own command behind the 7-byte COM_STMT_SEND_LONG_DATA header
// (command byte + stmt id + param index), matching
// original_source/src/connection/io.rs's send_long_data. An empty value
// still sends one empty chunk so the server clears any stale long-data
// buffer for that parameter.
func (s *PreparedStatement) sendLongData(ctx context.Context, paramIndex uint16, data []byte) error {
	const chunkSize = maxPayloadLen - 6
	if len(data) == 0 {
		return s.conn.sendCommand(ctx, encodeStmtSendLongData(s.id, paramIndex, nil))
	}
	for start := 0; start < len(data); start += chunkSize {
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := s.conn.sendCommand(ctx, encodeStmtSendLongData(s.id, paramIndex, data[start:end])); err != nil {
			return err
		}
	}
	return nil
}

// needsLongData decides §4.8/§4.10's as_long_data flag: true once the
// inline COM_STMT_EXECUTE payload for these params would exceed a single
// packet. Byte-string params are the only ones that can be diverted to
// COM_STMT_SEND_LONG_DATA, so this sums the full inline packet size and
// compares against maxPayloadLen exactly as the Rust original's
// StmtExecuteRequest::as_long_data does.
func needsLongData(params []Value) bool {
	if len(params) == 0 {
		return false
	}
	total := 1 + 4 + 1 + 4 // command byte, stmt id, cursor flags, iteration count
	total += (len(params)+7)/8 + 1 + 2*len(params)
	for _, v := range params {
		total += binLen(v)
	}
	return total > maxPayloadLen
}

// encodeStmtExecute builds the COM_STMT_EXECUTE payload (§4.10), grounded
// on original_source/src/connection/packets/stmt_execute_request.rs. The
// outgoing parameter null bitmap uses a 0-bit offset (client-side), unlike
// the 2-bit offset used when decoding an incoming row's null bitmap in
// resultset.go's decodeBinaryRow: see
// original_source/src/connection/types/null_bitmap.rs's NullBitmap<CLIENT_SIDE, T>.
// Byte-string params are omitted from the inline values section when
// asLongData is true, since they were already streamed via
// COM_STMT_SEND_LONG_DATA ahead of this packet.
func encodeStmtExecute(stmtID uint32, params []Value, asLongData bool) []byte {
	data := make([]byte, 0, 64)
	data = append(data, byte(comStmtExecute))
	data = appendU32LE(data, stmtID)
	data = append(data, byte(CursorTypeNoCursor))
	data = appendU32LE(data, 1) // iteration_count

	if len(params) == 0 {
		return data
	}

	bitmapLen := (len(params) + 7) / 8
	bitmap := make([]byte, bitmapLen)
	for i, v := range params {
		if v.IsNull() {
			bitmap[i/8] |= 1 << uint(i%8)
		}
	}
	data = append(data, bitmap...)
	data = append(data, 1) // new_params_bound

	const paramUnsignedFlag = 0x80
	for _, v := range params {
		flag := byte(0)
		if v.unsigned() {
			flag = paramUnsignedFlag
		}
		data = append(data, byte(v.columnType()), flag)
	}

	for _, v := range params {
		if v.IsNull() {
			continue
		}
		if asLongData && v.Kind == KindBytes {
			continue
		}
		data = encodeBinaryValue(data, v)
	}

	return data
}
