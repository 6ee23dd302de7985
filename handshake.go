// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2012 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import "strconv"

const (
	utf8GeneralCI     = 33
	utf8mb4GeneralCI  = 45
	maxPacketSizeWire = 1<<24 - 1
)

// Handshake is the parsed Initial Handshake packet (§4.4), grounded on
// original_source/src/connection/packets/handshake.rs.
type Handshake struct {
	ProtocolVersion byte
	ServerVersion   string
	ConnectionID    uint32
	Capabilities    CapabilityFlags
	Collation       byte
	StatusFlags     StatusFlags
	Nonce           []byte
	AuthPluginName  string
}

// ParsedServerVersion splits ServerVersion into a (major, minor, patch)
// triple by greedily consuming leading digits up to the first
// non-alphanumeric separator, three times, and reports whether what is
// left over starts with "MariaDB" — matching
// HandshakePacket::parse_server_version exactly, including its quirk of
// treating any non-alphanumeric rune (not just '.') as a field separator.
func (h Handshake) ParsedServerVersion() (major, minor, patch uint16, isMariaDB bool, ok bool) {
	rest := h.ServerVersion
	nums := make([]uint16, 0, 3)
	for i := 0; i < 3; i++ {
		pos := -1
		for j, r := range rest {
			if !isAlphaNumericRune(r) {
				pos = j
				break
			}
		}
		var field string
		if pos < 0 {
			field = rest
			rest = ""
		} else {
			field = rest[:pos]
			rest = rest[pos+1:]
		}
		n, err := strconv.ParseUint(field, 10, 16)
		if err != nil {
			return 0, 0, 0, false, false
		}
		nums = append(nums, uint16(n))
	}
	return nums[0], nums[1], nums[2], hasPrefix(rest, "MariaDB"), true
}

func isAlphaNumericRune(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// parseHandshake parses the Initial Handshake packet body (§4.4).
func parseHandshake(body []byte) (Handshake, error) {
	p := NewParseBuf(body)

	protocolVersion, err := p.CheckedEatU8()
	if err != nil {
		return Handshake{}, newProtocolError(ProtocolParse, "handshake: protocol version")
	}

	serverVersion, err := p.EatNullTerminatedStr()
	if err != nil {
		return Handshake{}, newProtocolError(ProtocolParse, "handshake: server version")
	}

	if p.Len() < 31 {
		return Handshake{}, newProtocolError(ProtocolParse, "handshake: short fixed block")
	}
	connectionID := p.EatU32LE()
	nonce := append([]byte(nil), p.EatBytes(8)...)
	p.EatU8() // filler
	capsLower := uint32(p.EatU16LE())
	collation := p.EatU8()
	statusFlags := StatusFlags(p.EatU16LE())
	capsUpper := uint32(p.EatU16LE())
	authPluginDataLen := p.EatU8()
	p.EatBytes(10) // reserved

	capabilities := CapabilityFlags(capsLower | capsUpper<<16)
	if err := validateCapabilityFlags(capabilities); err != nil {
		return Handshake{}, err
	}
	if err := validateStatusFlags(statusFlags); err != nil {
		return Handshake{}, err
	}

	if capabilities&ClientSecureConnection != 0 {
		extra := int(authPluginDataLen) - 8
		if extra < 13 {
			extra = 13
		}
		if p.Len() < extra {
			return Handshake{}, newProtocolError(ProtocolParse, "handshake: short auth-plugin-data block")
		}
		nonce = append(nonce, p.EatBytes(extra)...)
	}
	// trim the trailing zero terminator, fill to 20 if short (server quirk)
	if n := len(nonce); n > 0 && nonce[n-1] == 0 {
		nonce = nonce[:n-1]
	}
	for len(nonce) < 20 {
		nonce = append(nonce, 0)
	}
	if len(nonce) > 20 {
		nonce = nonce[:20]
	}

	var authPluginName string
	if capabilities&ClientPluginAuth != 0 {
		rest := p.EatAll()
		if n := len(rest); n > 0 && rest[n-1] == 0 {
			rest = rest[:n-1]
		}
		authPluginName = string(rest)
	}

	return Handshake{
		ProtocolVersion: protocolVersion,
		ServerVersion:   string(serverVersion),
		ConnectionID:    connectionID,
		Capabilities:    capabilities,
		Collation:       collation,
		StatusFlags:     statusFlags,
		Nonce:           nonce,
		AuthPluginName:  authPluginName,
	}, nil
}

// handshakeResponseOptions carries what buildHandshakeResponse needs beyond
// the Handshake itself, mirroring HandshakeResponse::new's parameter list.
type handshakeResponseOptions struct {
	scramble         []byte
	user             string
	dbName           string
	authPluginName   string
	maxPacketSize    uint32
	serverMajor      uint16
	serverMinor      uint16
	serverPatch      uint16
}

// buildHandshakeResponse serializes the Handshake Response packet body
// (§4.4), grounded on HandshakeResponse::serialize above and the teacher's
// writeAuthPacket. capabilities is the negotiated set: requestedCapabilities
// intersected with what the server actually offered, with CONNECT_WITH_DB/
// PLUGIN_AUTH added back in depending on whether db/plugin are present.
func buildHandshakeResponse(capabilities CapabilityFlags, opts handshakeResponseOptions) []byte {
	if opts.dbName != "" {
		capabilities |= ClientConnectWithDB
	} else {
		capabilities &^= ClientConnectWithDB
	}
	if opts.authPluginName != "" {
		capabilities |= ClientPluginAuth
	} else {
		capabilities &^= ClientPluginAuth
	}

	collation := byte(utf8GeneralCI)
	if cmpVersion(opts.serverMajor, opts.serverMinor, opts.serverPatch, 5, 5, 3) >= 0 {
		collation = utf8mb4GeneralCI
	}

	buf := make([]byte, 0, 64+len(opts.user)+len(opts.dbName)+len(opts.scramble))
	buf = appendU32LE(buf, uint32(capabilities))
	buf = appendU32LE(buf, opts.maxPacketSize)
	buf = append(buf, collation)
	buf = append(buf, make([]byte, 23)...)
	buf = append(buf, []byte(opts.user)...)
	buf = append(buf, 0)

	switch {
	case capabilities&ClientPluginAuthLenencClientData != 0:
		buf = PutLenencSlice(buf, opts.scramble)
	case capabilities&ClientSecureConnection != 0:
		buf = append(buf, byte(len(opts.scramble)))
		buf = append(buf, opts.scramble...)
	default:
		buf = append(buf, opts.scramble...)
		buf = append(buf, 0)
	}

	if opts.dbName != "" {
		buf = append(buf, []byte(opts.dbName)...)
		buf = append(buf, 0)
	}
	if opts.authPluginName != "" {
		buf = append(buf, []byte(opts.authPluginName)...)
		buf = append(buf, 0)
	}
	return buf
}

func cmpVersion(major, minor, patch, wantMajor, wantMinor, wantPatch uint16) int {
	switch {
	case major != wantMajor:
		return int(major) - int(wantMajor)
	case minor != wantMinor:
		return int(minor) - int(wantMinor)
	default:
		return int(patch) - int(wantPatch)
	}
}
