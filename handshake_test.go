// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2012 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildHandshakeBody(serverVersion string, nonce1 []byte, nonce2 []byte, authPluginName string, caps CapabilityFlags) []byte {
	buf := []byte{10} // protocol version
	buf = append(buf, []byte(serverVersion)...)
	buf = append(buf, 0)
	buf = appendU32LE(buf, 42) // connection id
	buf = append(buf, nonce1...)
	buf = append(buf, 0) // filler
	buf = append(buf, byte(caps), byte(caps>>8))
	buf = append(buf, 0x21) // collation
	buf = append(buf, 2, 0) // status flags
	buf = append(buf, byte(caps>>16), byte(caps>>24))
	if caps&ClientSecureConnection != 0 {
		buf = append(buf, byte(len(nonce1)+len(nonce2)+1))
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, make([]byte, 10)...) // reserved
	if caps&ClientSecureConnection != 0 {
		extra := append(append([]byte(nil), nonce2...), 0)
		for len(extra) < 13 {
			extra = append(extra, 0)
		}
		buf = append(buf, extra...)
	}
	if caps&ClientPluginAuth != 0 {
		buf = append(buf, []byte(authPluginName)...)
		buf = append(buf, 0)
	}
	return buf
}

func TestParseHandshakeFullPacket(t *testing.T) {
	caps := ClientSecureConnection | ClientPluginAuth | ClientProtocol41
	body := buildHandshakeBody("8.0.31-log", []byte("12345678"), []byte("abcdefghijl"), "mysql_native_password", caps)

	h, err := parseHandshake(body)
	require.NoError(t, err)
	require.Equal(t, byte(10), h.ProtocolVersion)
	require.Equal(t, "8.0.31-log", h.ServerVersion)
	require.Equal(t, uint32(42), h.ConnectionID)
	require.Equal(t, "mysql_native_password", h.AuthPluginName)
	// 8 + 11 nonce bytes are supplied; the parser zero-fills to the 20-byte nonce.
	require.Equal(t, []byte("12345678abcdefghijl\x00"), h.Nonce)
	require.Equal(t, caps, h.Capabilities)
}

func TestParseHandshakeRejectsShortFixedBlock(t *testing.T) {
	body := append([]byte{10}, []byte("5.7\x00")...)
	_, err := parseHandshake(body)
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.Equal(t, ProtocolParse, protoErr.Kind)
}

func TestParseHandshakeRejectsUnknownCapabilityBit(t *testing.T) {
	caps := ClientSecureConnection | CapabilityFlags(1<<31)
	body := buildHandshakeBody("8.0.31", []byte("12345678"), []byte("abcdefghijl"), "", caps&^ClientPluginAuth)
	_, err := parseHandshake(body)
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.Equal(t, ProtocolInvalidFlags, protoErr.Kind)
}

func TestParsedServerVersionMySQL(t *testing.T) {
	h := Handshake{ServerVersion: "8.0.31-log"}
	major, minor, patch, isMariaDB, ok := h.ParsedServerVersion()
	require.True(t, ok)
	require.Equal(t, uint16(8), major)
	require.Equal(t, uint16(0), minor)
	require.Equal(t, uint16(31), patch)
	require.False(t, isMariaDB)
}

func TestParsedServerVersionMariaDB(t *testing.T) {
	h := Handshake{ServerVersion: "10.11.2-MariaDB"}
	major, minor, patch, isMariaDB, ok := h.ParsedServerVersion()
	require.True(t, ok)
	require.Equal(t, uint16(10), major)
	require.Equal(t, uint16(11), minor)
	require.Equal(t, uint16(2), patch)
	require.True(t, isMariaDB)
}

func TestParsedServerVersionRejectsNonNumericField(t *testing.T) {
	h := Handshake{ServerVersion: "abc.def.ghi"}
	_, _, _, _, ok := h.ParsedServerVersion()
	require.False(t, ok)
}

func TestBuildHandshakeResponseLenencScramble(t *testing.T) {
	opts := handshakeResponseOptions{
		scramble:       []byte("scrambledbytes12345"),
		user:           "root",
		dbName:         "testdb",
		authPluginName: "mysql_native_password",
		maxPacketSize:  1 << 24,
		serverMajor:    8,
		serverMinor:    0,
		serverPatch:    31,
	}
	resp := buildHandshakeResponse(ClientPluginAuthLenencClientData|ClientSecureConnection, opts)

	require.Equal(t, byte(utf8mb4GeneralCI), resp[8])

	idx := 4 + 4 + 1 + 23
	require.Equal(t, []byte("root\x00"), resp[idx:idx+5])
}

func TestBuildHandshakeResponseDropsConnectWithDBWhenDBEmpty(t *testing.T) {
	opts := handshakeResponseOptions{user: "root", maxPacketSize: 1 << 24, serverMajor: 5, serverMinor: 5, serverPatch: 2}
	resp := buildHandshakeResponse(ClientConnectWithDB|ClientSecureConnection, opts)
	capsOut := CapabilityFlags(resp[0]) | CapabilityFlags(resp[1])<<8 | CapabilityFlags(resp[2])<<16 | CapabilityFlags(resp[3])<<24
	require.Zero(t, capsOut&ClientConnectWithDB)
	require.Equal(t, byte(utf8GeneralCI), resp[8])
}

func TestBuildHandshakeResponseShortScrambleFormat(t *testing.T) {
	opts := handshakeResponseOptions{scramble: []byte("abc"), user: "u", maxPacketSize: 0, serverMajor: 5, serverMinor: 5, serverPatch: 3}
	resp := buildHandshakeResponse(ClientSecureConnection, opts)

	idx := 4 + 4 + 1 + 23 + len("u") + 1
	require.Equal(t, byte(3), resp[idx])
	require.Equal(t, []byte("abc"), resp[idx+1:idx+4])
}

func TestCmpVersion(t *testing.T) {
	require.Equal(t, 0, cmpVersion(5, 5, 3, 5, 5, 3))
	require.Positive(t, cmpVersion(8, 0, 0, 5, 5, 3))
	require.Negative(t, cmpVersion(5, 5, 2, 5, 5, 3))
}
