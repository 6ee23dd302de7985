// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2018 The Go-MySQL-Driver Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import "context"

const (
	iOK           = 0x00
	iERR          = 0xff
	iEOF          = 0xfe
	iAuthMoreData = 0x01
)

// authTransport is the minimal capability the auth state machine needs
// from a Connection: exchange one packet at a time during the handshake
// round trip. Kept narrow and unexported so auth.go does not depend on
// connection.go's full surface (grounds the teacher's *mysqlConn parameter
// on AuthPlugin.ProcessAuthResponse, generalized to an interface so the
// auth engine can be unit tested against a fake transport).
type authTransport interface {
	readHandshakePacket(ctx context.Context) ([]byte, error)
	writeHandshakePacket(ctx context.Context, payload []byte) error
	requestServerPubKey(ctx context.Context) ([]byte, error)

	// Secure reports whether the underlying transport already provides
	// confidentiality, letting a plugin send a cleartext password instead
	// of encrypting it itself. The TCP stream of stream.go reports false.
	Secure() bool
}

// AuthPlugin implements one entry of the closed {Native, Clear, Sha2}
// authentication plugin set fixed by §4.5/§9. Grounded on the teacher's
// AuthPlugin interface (auth_plugin.go), narrowed to this package's
// ConnectionOptions and authTransport abstractions.
type AuthPlugin interface {
	// Name returns the plugin's wire name, e.g. "mysql_native_password".
	Name() string

	// InitAuth computes the initial response to the server's nonce.
	InitAuth(nonce []byte, opts *ConnectionOptions) ([]byte, error)

	// ProcessAuthResponse handles one server reply during the auth
	// round trip, returning the next packet to hand back to the shared
	// state machine (OK/ERR/EOF are recognized by the caller; anything
	// else is plugin-specific, e.g. AuthMoreData for sha2).
	ProcessAuthResponse(ctx context.Context, packet []byte, nonce []byte, opts *ConnectionOptions, t authTransport) ([]byte, error)
}

// authRegistry is the package-level registry of the closed plugin set.
// Grounded on the teacher's PluginRegistry; unlike the teacher's registry,
// which accepts open-ended registration (any caller's init() can widen the
// set), this package only ever registers the three plugins named in §4.5
// and the registry exists purely as a name-indexed switch point, not a
// public extension surface — Register/the type itself stay unexported.
type authRegistry struct {
	plugins map[string]AuthPlugin
}

var globalAuthRegistry = &authRegistry{plugins: make(map[string]AuthPlugin)}

func registerAuthPlugin(p AuthPlugin) {
	globalAuthRegistry.plugins[p.Name()] = p
}

func getAuthPlugin(name string) (AuthPlugin, bool) {
	p, ok := globalAuthRegistry.plugins[name]
	return p, ok
}

// performAuth drives the handshake authentication round trip (§4.5):
// InitAuth with the chosen plugin, dispatch on OK/ERR/auth-switch/
// plugin-specific data, following an auth-switch to a different plugin
// when the server requests one. Grounded on the teacher's
// handleAuthResult/processAuthResponse/handleAuthSwitch/
// parseAuthSwitchData chain in the old auth.go.
func performAuth(ctx context.Context, t authTransport, pluginName string, nonce []byte, opts *ConnectionOptions) error {
	plugin, ok := getAuthPlugin(pluginName)
	if !ok {
		return newProtocolError(ProtocolUnknownAuthPlugin, "server requested unknown auth plugin: "+pluginName)
	}

	resp, err := plugin.InitAuth(nonce, opts)
	if err != nil {
		return err
	}
	if err := t.writeHandshakePacket(ctx, resp); err != nil {
		return err
	}

	packet, err := t.readHandshakePacket(ctx)
	if err != nil {
		return err
	}
	packet, err = plugin.ProcessAuthResponse(ctx, packet, nonce, opts, t)
	if err != nil {
		return err
	}
	_, err = dispatchAuthResponse(ctx, t, packet, nonce, opts, false)
	return err
}

// dispatchAuthResponse routes one server packet during the auth round
// trip, handling the three always-recognized outcomes (OK terminates
// success, ERR terminates failure, EOF signals an auth-switch request) and
// otherwise assumes the active plugin already consumed the packet via
// ProcessAuthResponse and produced another OK/ERR/EOF to dispatch. switched
// records whether the server has already sent one Auth Switch Request
// earlier in this round trip; the server may only switch once (§4.5), so a
// second EOF here is a protocol violation rather than another follow. The
// returned bool is switched widened to account for a switch handled by this
// call, for the caller to persist (e.g. ConnectionData.AuthSwitched).
func dispatchAuthResponse(ctx context.Context, t authTransport, packet []byte, nonce []byte, opts *ConnectionOptions, switched bool) (bool, error) {
	if len(packet) == 0 {
		return switched, newProtocolError(ProtocolInvalidPacket, "empty auth response packet")
	}
	switch packet[0] {
	case iOK:
		return switched, nil
	case iERR:
		return switched, decodeServerError(packet)
	case iEOF:
		if switched {
			return switched, newProtocolError(ProtocolUnexpectedPacket, "server sent a second auth switch request")
		}
		return handleAuthSwitch(ctx, t, packet, nonce, opts)
	default:
		return switched, newProtocolError(ProtocolUnexpectedPacket, "unexpected byte in auth response")
	}
}

// handleAuthSwitch processes an Auth Switch Request (first byte 0xFE,
// §4.5): parse the requested plugin name and new nonce, hand the round
// trip to that plugin, and recurse into dispatchAuthResponse on whatever
// it produces. Always returns switched=true: reaching this function at all
// means the server has now switched once, win or lose.
func handleAuthSwitch(ctx context.Context, t authTransport, packet []byte, initialNonce []byte, opts *ConnectionOptions) (bool, error) {
	pluginName, authData := parseAuthSwitchData(packet, initialNonce)

	plugin, ok := getAuthPlugin(pluginName)
	if !ok {
		return true, newProtocolError(ProtocolUnknownAuthPlugin, "server requested unknown auth plugin: "+pluginName)
	}

	resp, err := plugin.InitAuth(authData, opts)
	if err != nil {
		return true, err
	}
	if err := t.writeHandshakePacket(ctx, resp); err != nil {
		return true, err
	}

	packet, err = t.readHandshakePacket(ctx)
	if err != nil {
		return true, err
	}

	if len(packet) > 0 {
		switch packet[0] {
		case iOK, iERR, iEOF:
			return dispatchAuthResponse(ctx, t, packet, initialNonce, opts, true)
		}
	}
	packet, err = plugin.ProcessAuthResponse(ctx, packet, authData, opts, t)
	if err != nil {
		return true, err
	}
	return dispatchAuthResponse(ctx, t, packet, initialNonce, opts, true)
}

// parseAuthSwitchData extracts the plugin name and auth data from an Auth
// Switch Request packet, grounded on the teacher's parseAuthSwitchData.
// The single-byte special case is the pre-4.1 old-password protocol; it is
// outside the closed plugin set (§9) and intentionally resolves to a name
// with no registered plugin, which performAuth/handleAuthSwitch reports as
// ProtocolUnknownAuthPlugin rather than silently falling back to it.
func parseAuthSwitchData(packet []byte, initialNonce []byte) (string, []byte) {
	if len(packet) == 1 {
		return "mysql_old_password", initialNonce
	}

	body := packet[1:]
	nameEnd := indexByte(body, 0x00)
	if nameEnd < 0 {
		return "", nil
	}

	name := string(body[:nameEnd])
	authData := body[nameEnd+1:]
	if n := len(authData); n > 0 && authData[n-1] == 0 {
		authData = authData[:n-1]
	}
	out := make([]byte, len(authData))
	copy(out, authData)
	return name, out
}
