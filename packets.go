// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2012 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

// Command byte values (§4.9), narrowed to the operations this client
// issues: text query, the prepared-statement lifecycle, and connection
// teardown/keepalive. Grounded on the teacher's commandType constants
// (const.go, not present in this retrieved snapshot) and
// original_source/src/connection/io.rs's write_command.
type commandType byte

const (
	comQuit             commandType = 0x01
	comQuery            commandType = 0x03
	comPing             commandType = 0x0e
	comStmtPrepare      commandType = 0x16
	comStmtExecute      commandType = 0x17
	comStmtSendLongData commandType = 0x18
	comStmtClose        commandType = 0x19
)

// encodeQuery builds a COM_QUERY payload: the command byte followed by the
// raw SQL text, unterminated (§4.9).
func encodeQuery(query string) []byte {
	data := make([]byte, 0, 1+len(query))
	data = append(data, byte(comQuery))
	data = append(data, query...)
	return data
}

// encodeStmtPrepare builds a COM_STMT_PREPARE payload.
func encodeStmtPrepare(query string) []byte {
	data := make([]byte, 0, 1+len(query))
	data = append(data, byte(comStmtPrepare))
	data = append(data, query...)
	return data
}

// encodeStmtClose builds a COM_STMT_CLOSE payload: command byte + the
// statement id as a fixed 4-byte LE integer (§4.10). The server never
// replies to this command.
func encodeStmtClose(stmtID uint32) []byte {
	data := make([]byte, 0, 5)
	data = append(data, byte(comStmtClose))
	data = appendU32LE(data, stmtID)
	return data
}

// encodeStmtSendLongData builds one COM_STMT_SEND_LONG_DATA chunk: command
// byte, statement id, 0-based parameter index, then the raw chunk bytes
// (§4.10, the long-data side channel used ahead of COM_STMT_EXECUTE for
// parameters too large to inline).
func encodeStmtSendLongData(stmtID uint32, paramIndex uint16, chunk []byte) []byte {
	data := make([]byte, 0, 7+len(chunk))
	data = append(data, byte(comStmtSendLongData))
	data = appendU32LE(data, stmtID)
	data = appendU16LE(data, paramIndex)
	data = append(data, chunk...)
	return data
}

// encodeQuit builds the COM_QUIT payload: a bare command byte: the server
// closes the connection without replying (§4.9).
func encodeQuit() []byte {
	return []byte{byte(comQuit)}
}

// encodePing builds the COM_PING payload, answered with a plain OK packet.
func encodePing() []byte {
	return []byte{byte(comPing)}
}

// OkPacket is the decoded form of a 0x00 OK packet (§4.7), grounded on
// original_source/src/connection/packets/ok.rs's OkPacket::read_ok.
type OkPacket struct {
	AffectedRows     uint64
	LastInsertID     uint64
	Status           StatusFlags
	Warnings         uint16
	Message          string
	SessionStateInfo string
}

// decodeOkPacket parses an OK-shaped packet body whose marker byte must
// equal expectedMarker: 0x00 for a true OK packet, or 0xFE for the
// DEPRECATE_EOF-negotiated result-set terminator, which is wire-identical
// to an OK packet apart from that marker (§4.9). capabilities gates the
// optional session_state_info field, present only when the server
// negotiated CLIENT_SESSION_TRACK and set SERVER_SESSION_STATE_CHANGED.
func decodeOkPacket(packet []byte, capabilities CapabilityFlags, expectedMarker byte) (OkPacket, error) {
	p := NewParseBuf(packet)
	marker, err := p.CheckedEatU8()
	if err != nil {
		return OkPacket{}, &ProtocolError{Kind: ProtocolParse, Message: "ok packet: marker", Cause: err}
	}
	if marker != expectedMarker {
		return OkPacket{}, newProtocolError(ProtocolUnexpectedPacket, "expected ok packet")
	}

	affectedRows, _, err := p.EatLenencInt()
	if err != nil {
		return OkPacket{}, &ProtocolError{Kind: ProtocolParse, Message: "ok packet: affected_rows", Cause: err}
	}
	lastInsertID, _, err := p.EatLenencInt()
	if err != nil {
		return OkPacket{}, &ProtocolError{Kind: ProtocolParse, Message: "ok packet: last_insert_id", Cause: err}
	}
	statusRaw, err := func() (uint16, error) {
		if p.Len() < 2 {
			return 0, newProtocolError(ProtocolParse, "ok packet: status")
		}
		return p.EatU16LE(), nil
	}()
	if err != nil {
		return OkPacket{}, err
	}
	status := StatusFlags(statusRaw)
	if err := validateStatusFlags(status); err != nil {
		return OkPacket{}, err
	}

	var warnings uint16
	if p.Len() >= 2 {
		warnings = p.EatU16LE()
	}

	ok := OkPacket{
		AffectedRows: affectedRows,
		LastInsertID: lastInsertID,
		Status:       status,
		Warnings:     warnings,
	}

	if msg, isNull, err := p.EatLenencSlice(); err == nil && !isNull {
		ok.Message = string(msg)
	}
	if capabilities&ClientSessionTrack != 0 && status&StatusSessionStateChanged != 0 {
		if info, isNull, err := p.EatLenencSlice(); err == nil && !isNull {
			ok.SessionStateInfo = string(info)
		}
	}
	return ok, nil
}

// decodeLegacyEofPacket parses the pre-DEPRECATE_EOF result-set terminator
// (marker 0xFE, §4.9): unlike an OK packet, its body is only warnings then
// status, both fixed-width, with no affected_rows/last_insert_id/message.
// Grounded on original_source/src/connection/packets/ok.rs's read_old_eof;
// used only when the server did not negotiate CLIENT_DEPRECATE_EOF.
func decodeLegacyEofPacket(packet []byte) (OkPacket, error) {
	p := NewParseBuf(packet)
	marker, err := p.CheckedEatU8()
	if err != nil || marker != iEOF {
		return OkPacket{}, newProtocolError(ProtocolUnexpectedPacket, "expected legacy eof packet")
	}
	if p.Len() < 4 {
		return OkPacket{}, newProtocolError(ProtocolParse, "legacy eof packet: short body")
	}
	warnings := p.EatU16LE()
	status := StatusFlags(p.EatU16LE())
	if err := validateStatusFlags(status); err != nil {
		return OkPacket{}, err
	}
	return OkPacket{Status: status, Warnings: warnings}, nil
}

// decodeServerError parses an ERR packet (first byte 0xFF, §4.7) into a
// *ServerError. CLIENT_PROTOCOL_41 is always requested (§4.3), so the
// '#' SQLSTATE marker and five-character state normally follow the code;
// when they do not, the rest of the packet is the message and SQLState is
// left empty. Grounded on
// original_source/src/connection/packets/err.rs's ErrorPacket::deserialize.
func decodeServerError(packet []byte) error {
	p := NewParseBuf(packet)
	marker, err := p.CheckedEatU8()
	if err != nil || marker != iERR {
		return newProtocolError(ProtocolUnexpectedPacket, "expected err packet")
	}
	if p.Len() < 2 {
		return newProtocolError(ProtocolParse, "err packet: missing error code")
	}
	code := p.EatU16LE()

	var state string
	if p.Len() >= 6 {
		hash, err := p.CheckedEatU8()
		if err == nil && hash == '#' {
			stateBytes := p.EatBytes(5)
			state = string(stateBytes)
		} else {
			p = NewParseBuf(packet[3:])
		}
	}

	return &ServerError{
		Code:     code,
		SQLState: state,
		Message:  string(p.EatAll()),
	}
}
