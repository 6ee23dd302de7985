// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2016 The Go-MySQL-Driver Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeOkPacketBasic(t *testing.T) {
	packet := []byte{iOK, 0x2a, 0x17, 0x00, 0x00, 0x00, 0x00}
	ok, err := decodeOkPacket(packet, 0, iOK)
	require.NoError(t, err)
	require.Equal(t, uint64(0x2a), ok.AffectedRows)
	require.Equal(t, uint64(0x17), ok.LastInsertID)
	require.Zero(t, ok.Warnings)
}

func TestDecodeOkPacketWrongMarker(t *testing.T) {
	packet := []byte{iEOF, 0x00, 0x00, 0x00, 0x00}
	_, err := decodeOkPacket(packet, 0, iOK)
	require.Error(t, err)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, ProtocolUnexpectedPacket, perr.Kind)
}

func TestDecodeOkPacketSessionStateInfo(t *testing.T) {
	buf := []byte{iOK, 0x00, 0x00}
	buf = appendU16LE(buf, uint16(StatusSessionStateChanged))
	buf = appendU16LE(buf, 0)
	buf = PutLenencSlice(buf, nil) // empty human-readable message
	buf = PutLenencSlice(buf, []byte{0x02, 0x02, 'X', 'X'})

	ok, err := decodeOkPacket(buf, ClientSessionTrack, iOK)
	require.NoError(t, err)
	require.Equal(t, StatusSessionStateChanged, ok.Status)
	require.Equal(t, string([]byte{0x02, 0x02, 'X', 'X'}), ok.SessionStateInfo)
}

func TestDecodeLegacyEofPacket(t *testing.T) {
	buf := []byte{iEOF}
	buf = appendU16LE(buf, 3) // warnings
	buf = appendU16LE(buf, uint16(StatusAutocommit))

	ok, err := decodeLegacyEofPacket(buf)
	require.NoError(t, err)
	require.Equal(t, uint16(3), ok.Warnings)
	require.Equal(t, StatusAutocommit, ok.Status)
}

func TestDecodeServerErrorWithSQLState(t *testing.T) {
	buf := []byte{iERR}
	buf = appendU16LE(buf, 1045)
	buf = append(buf, '#')
	buf = append(buf, "28000"...)
	buf = append(buf, "Access denied for user"...)

	err := decodeServerError(buf)
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, uint16(1045), serverErr.Code)
	require.Equal(t, "28000", serverErr.SQLState)
	require.Equal(t, "Access denied for user", serverErr.Message)
}

func TestDecodeServerErrorWithoutSQLState(t *testing.T) {
	buf := []byte{iERR}
	buf = appendU16LE(buf, 2000)
	buf = append(buf, "old style message"...)

	err := decodeServerError(buf)
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, uint16(2000), serverErr.Code)
	require.Empty(t, serverErr.SQLState)
}

func TestEncodeQueryAndStmtCommands(t *testing.T) {
	require.Equal(t, append([]byte{byte(comQuery)}, "select 1"...), encodeQuery("select 1"))
	require.Equal(t, []byte{byte(comQuit)}, encodeQuit())
	require.Equal(t, []byte{byte(comPing)}, encodePing())

	closePacket := encodeStmtClose(7)
	require.Equal(t, byte(comStmtClose), closePacket[0])
	require.Len(t, closePacket, 5)

	longData := encodeStmtSendLongData(7, 1, []byte("chunk"))
	require.Equal(t, byte(comStmtSendLongData), longData[0])
	require.Equal(t, "chunk", string(longData[7:]))
}
