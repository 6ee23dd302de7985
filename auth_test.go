// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2018 The Go-MySQL-Driver Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScrambleSHA256Pass reuses the teacher's own known-answer vectors for
// scrambleSHA256Password (auth_test.go), since this package's
// caching_sha2_password plugin (auth_sha2.go) reimplements the identical
// SHA256(password) XOR SHA256(SHA256(SHA256(password))+scramble) algorithm.
func TestScrambleSHA256Pass(t *testing.T) {
	scramble := []byte{10, 47, 74, 111, 75, 73, 34, 48, 88, 76, 114, 74, 37, 13, 3, 80, 82, 2, 23, 21}
	vectors := []struct {
		pass string
		out  string
	}{
		{"secret", "f490e76f66d9d86665ce54d98c78d0acfe2fb0b08b423da807144873d30b312c"},
		{"secret2", "abc3934a012cf342e876071c8ee202de51785b430258a7a0138bc79c4d800bc6"},
	}
	for _, tuple := range vectors {
		ours := scrambleSHA256Password(scramble, tuple.pass)
		require.Equal(t, tuple.out, fmt.Sprintf("%x", ours))
	}
}

func TestScrambleSHA256PasswordEmptyPasswordIsEmpty(t *testing.T) {
	require.Equal(t, []byte{}, scrambleSHA256Password([]byte{1, 2, 3}, ""))
}

func TestScrambleNativePasswordEmptyPasswordIsNil(t *testing.T) {
	require.Nil(t, scrambleNativePassword([]byte{1, 2, 3}, ""))
}

func TestScrambleNativePasswordIsDeterministic(t *testing.T) {
	scramble := []byte("01234567890123456789")
	a := scrambleNativePassword(scramble, "hunter2")
	b := scrambleNativePassword(scramble, "hunter2")
	require.Equal(t, a, b)
	require.Len(t, a, 20) // SHA1 digest size

	c := scrambleNativePassword(scramble, "different")
	require.NotEqual(t, a, c)
}

func TestNativePasswordPluginInitAuthEmptyPasswordSendsNil(t *testing.T) {
	p := nativePasswordPlugin{}
	resp, err := p.InitAuth([]byte("01234567890123456789"), &ConnectionOptions{})
	require.NoError(t, err)
	require.Nil(t, resp)
}

func TestNativePasswordPluginInitAuthTruncatesLongNonce(t *testing.T) {
	p := nativePasswordPlugin{}
	nonce := []byte("012345678901234567890123456789") // 30 bytes
	resp, err := p.InitAuth(nonce, &ConnectionOptions{Password: "secret"})
	require.NoError(t, err)
	require.Equal(t, scrambleNativePassword(nonce[:20], "secret"), resp)
}

func TestClearPasswordPluginRefusesWithoutOptIn(t *testing.T) {
	p := clearPasswordPlugin{}
	_, err := p.InitAuth(nil, &ConnectionOptions{Password: "secret"})
	require.ErrorIs(t, err, ErrCleartextPassword)
}

func TestClearPasswordPluginSendsNulTerminatedPassword(t *testing.T) {
	p := clearPasswordPlugin{}
	resp, err := p.InitAuth(nil, &ConnectionOptions{Password: "secret", AllowCleartextPasswords: true})
	require.NoError(t, err)
	require.Equal(t, append([]byte("secret"), 0), resp)
}

func TestAuthPluginsAreRegistered(t *testing.T) {
	for _, name := range []string{"mysql_native_password", "mysql_clear_password", "caching_sha2_password"} {
		_, ok := getAuthPlugin(name)
		require.True(t, ok, "expected %s to be registered", name)
	}
}

func TestParseAuthSwitchDataOldPasswordSpecialCase(t *testing.T) {
	name, data := parseAuthSwitchData([]byte{0xfe}, []byte("initial-nonce"))
	require.Equal(t, "mysql_old_password", name)
	require.Equal(t, []byte("initial-nonce"), data)
}

func TestParseAuthSwitchDataExtractsNameAndNonce(t *testing.T) {
	packet := append([]byte{0xfe}, append([]byte("mysql_native_password\x00"), []byte("newnonce1234567890ab\x00")...)...)
	name, data := parseAuthSwitchData(packet, nil)
	require.Equal(t, "mysql_native_password", name)
	require.Equal(t, []byte("newnonce1234567890ab"), data)
}

// fakeAuthTransport is a minimal authTransport double for exercising
// performAuth/dispatchAuthResponse/handleAuthSwitch without a real socket.
type fakeAuthTransport struct {
	toRead  [][]byte
	written [][]byte
	secure  bool
}

func (f *fakeAuthTransport) readHandshakePacket(context.Context) ([]byte, error) {
	if len(f.toRead) == 0 {
		return nil, io_errUnexpectedEOF()
	}
	p := f.toRead[0]
	f.toRead = f.toRead[1:]
	return p, nil
}

func (f *fakeAuthTransport) writeHandshakePacket(_ context.Context, payload []byte) error {
	f.written = append(f.written, payload)
	return nil
}

func (f *fakeAuthTransport) requestServerPubKey(context.Context) ([]byte, error) {
	return nil, newProtocolError(ProtocolInvalidPem, "not configured in this test")
}

func (f *fakeAuthTransport) Secure() bool { return f.secure }

func io_errUnexpectedEOF() error { return newProtocolError(ProtocolIO, "no more packets queued") }

func TestPerformAuthNativePasswordHappyPath(t *testing.T) {
	transport := &fakeAuthTransport{toRead: [][]byte{{iOK}}}
	nonce := []byte("01234567890123456789")
	err := performAuth(context.Background(), transport, "mysql_native_password", nonce, &ConnectionOptions{Password: "secret"})
	require.NoError(t, err)
	require.Len(t, transport.written, 1)
	require.Equal(t, scrambleNativePassword(nonce, "secret"), transport.written[0])
}

func TestPerformAuthServerErrorIsSurfaced(t *testing.T) {
	errPacket := append([]byte{iERR, 0x20, 0x04, '#', 'H', 'Y', '0', '0', '0'}, []byte("denied")...)
	transport := &fakeAuthTransport{toRead: [][]byte{errPacket}}
	err := performAuth(context.Background(), transport, "mysql_native_password", []byte("01234567890123456789"), &ConnectionOptions{Password: "secret"})
	require.Error(t, err)
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
}

func TestPerformAuthUnknownPluginErrors(t *testing.T) {
	transport := &fakeAuthTransport{}
	err := performAuth(context.Background(), transport, "not_a_real_plugin", nil, &ConnectionOptions{})
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.Equal(t, ProtocolUnknownAuthPlugin, protoErr.Kind)
}

func TestPerformAuthFollowsAuthSwitchRequest(t *testing.T) {
	switchPacket := append([]byte{iEOF}, append([]byte("mysql_native_password\x00"), []byte("newnonce1234567890ab\x00")...)...)
	transport := &fakeAuthTransport{toRead: [][]byte{switchPacket, {iOK}}}
	err := performAuth(context.Background(), transport, "mysql_clear_password", []byte("initial"), &ConnectionOptions{Password: "secret", AllowCleartextPasswords: true})
	require.NoError(t, err)
	require.Len(t, transport.written, 2)
	require.Equal(t, scrambleNativePassword([]byte("newnonce1234567890ab"), "secret"), transport.written[1])
}

// TestPerformAuthRejectsSecondAuthSwitchRequest covers the §4.5 rule that
// the server may only switch auth plugins once per handshake: a second Auth
// Switch Request must be rejected as a protocol error instead of followed,
// since following it unconditionally would recurse forever against a
// misbehaving or malicious server.
func TestPerformAuthRejectsSecondAuthSwitchRequest(t *testing.T) {
	firstSwitch := append([]byte{iEOF}, append([]byte("mysql_native_password\x00"), []byte("newnonce1234567890ab\x00")...)...)
	secondSwitch := append([]byte{iEOF}, append([]byte("mysql_clear_password\x00"), []byte("yetanothernonce12345\x00")...)...)
	transport := &fakeAuthTransport{toRead: [][]byte{firstSwitch, secondSwitch}}

	err := performAuth(context.Background(), transport, "mysql_clear_password", []byte("initial"), &ConnectionOptions{Password: "secret", AllowCleartextPasswords: true})
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.Equal(t, ProtocolUnexpectedPacket, protoErr.Kind)
}
