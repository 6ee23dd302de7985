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
	"errors"
	"fmt"
)

// ErrIO is the sentinel wrapped by every ProtocolError of kind ProtocolIO.
var ErrIO = errors.New("mysql: i/o error")

// ProtocolKind distinguishes the Protocol branch of the error taxonomy (§6/§7).
type ProtocolKind int

const (
	ProtocolParse ProtocolKind = iota
	ProtocolSerialize
	ProtocolIO
	ProtocolOutOfSync
	ProtocolUnexpectedPacket
	ProtocolInvalidPacket
	ProtocolUnknownAuthPlugin
	ProtocolInvalidFlags
	ProtocolInvalidPem
)

func (k ProtocolKind) String() string {
	switch k {
	case ProtocolParse:
		return "Parse"
	case ProtocolSerialize:
		return "Serialize"
	case ProtocolIO:
		return "Io"
	case ProtocolOutOfSync:
		return "OutOfSync"
	case ProtocolUnexpectedPacket:
		return "UnexpectedPacket"
	case ProtocolInvalidPacket:
		return "InvalidPacket"
	case ProtocolUnknownAuthPlugin:
		return "UnknownAuthPlugin"
	case ProtocolInvalidFlags:
		return "InvalidFlags"
	case ProtocolInvalidPem:
		return "InvalidPem"
	default:
		return "Unknown"
	}
}

// ProtocolError is raised whenever the wire stream does not conform to the
// MySQL/MariaDB protocol grammar. Any ProtocolError poisons the connection
// that produced it (§7).
type ProtocolError struct {
	Kind    ProtocolKind
	Message string
	Cause   error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mysql: protocol error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("mysql: protocol error (%s): %s", e.Kind, e.Message)
}

func (e *ProtocolError) Unwrap() error {
	if e.Kind == ProtocolIO {
		return errors.Join(ErrIO, e.Cause)
	}
	return e.Cause
}

func newProtocolError(kind ProtocolKind, message string) *ProtocolError {
	return &ProtocolError{Kind: kind, Message: message}
}

func wrapIOError(cause error) *ProtocolError {
	return &ProtocolError{Kind: ProtocolIO, Message: "i/o failure", Cause: cause}
}

// RuntimeKind distinguishes the Runtime branch of the error taxonomy.
type RuntimeKind int

const (
	RuntimeParameterCountMismatch RuntimeKind = iota
	RuntimeInsecureAuth
	RuntimeAuthPluginMismatch
)

func (k RuntimeKind) String() string {
	switch k {
	case RuntimeParameterCountMismatch:
		return "ParameterCountMismatch"
	case RuntimeInsecureAuth:
		return "InsecureAuth"
	case RuntimeAuthPluginMismatch:
		return "AuthPluginMismatch"
	default:
		return "Unknown"
	}
}

// RuntimeError signals a caller-correctable misuse of the API (wrong
// parameter count, a plugin requirement that conflicts with the transport).
// Unlike ProtocolError it does not necessarily poison the connection.
type RuntimeError struct {
	Kind    RuntimeKind
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("mysql: runtime error (%s): %s", e.Kind, e.Message)
}

func newRuntimeError(kind RuntimeKind, message string) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: message}
}

// ServerError is the decoded form of a 0xFF ERR packet (§6).
type ServerError struct {
	Code     uint16
	SQLState string
	Message  string
}

func (e *ServerError) Error() string {
	if e.SQLState != "" {
		return fmt.Sprintf("mysql: server error %d (%s): %s", e.Code, e.SQLState, e.Message)
	}
	return fmt.Sprintf("mysql: server error %d: %s", e.Code, e.Message)
}

// ErrLocalInfileUnsupported is returned when the server requests the
// local-infile (0xFB) data-transfer path, which this core does not
// implement (SPEC_FULL §9 Open Questions).
var ErrLocalInfileUnsupported = &ProtocolError{
	Kind:    ProtocolUnexpectedPacket,
	Message: "local-infile request (0xFB) is not supported by this client",
}

// ErrConnectionPoisoned is returned by every operation on a Connection that
// has previously failed with an I/O error, a timeout, an out-of-sync
// sequence id, or any other condition that leaves wire state undefined (§5/§7).
var ErrConnectionPoisoned = errors.New("mysql: connection is poisoned and must not be reused")

// ErrResultSetLive names the pending_result condition (§3/§4.9): a
// ResultSet still open on a Connection. No operation in this package returns
// it; a new command first drains the open result set (drainPendingResult).
var ErrResultSetLive = errors.New("mysql: a result set is still open on this connection")

// Sentinels kept for parity with the teacher's own flat-sentinel style,
// used where no richer taxonomy branch carries more information.
var (
	ErrMalformPkt        = newProtocolError(ProtocolInvalidPacket, "malformed packet")
	ErrPktSync           = newProtocolError(ProtocolOutOfSync, "commands out of sync; you can't run this command now")
	ErrPktSyncMul        = newProtocolError(ProtocolOutOfSync, "commands out of sync; did you run multiple statements at once?")
	ErrPktTooLarge       = newRuntimeError(RuntimeParameterCountMismatch, "packet for query is too large")
	ErrNativePassword    = newRuntimeError(RuntimeInsecureAuth, "this server requires mysql_native_password, which is disabled")
	ErrCleartextPassword = newRuntimeError(RuntimeInsecureAuth, "this server requires mysql_clear_password, set AllowCleartextPasswords=true to enable it")
)
