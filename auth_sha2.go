// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2023 The Go-MySQL-Driver Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
)

// cachingSha2PasswordPlugin implements caching_sha2_password (§4.5): a
// three-step SHA256 challenge response, with a full-auth
// fallback over RSA-OAEP when the server's verifier cache has no entry.
// Grounded on the teacher's CachingSha2PasswordPlugin/Sha256PasswordPlugin
// (auth_caching_sha2.go, auth_sha256.go); this package reuses
// encryptPassword from the latter as the shared RSA helper since both
// plugins need the identical XOR-with-seed-then-RSA-OAEP step.
type cachingSha2PasswordPlugin struct{}

func init() {
	registerAuthPlugin(cachingSha2PasswordPlugin{})
}

func (cachingSha2PasswordPlugin) Name() string { return "caching_sha2_password" }

func (cachingSha2PasswordPlugin) InitAuth(nonce []byte, opts *ConnectionOptions) ([]byte, error) {
	return scrambleSHA256Password(nonce, opts.Password), nil
}

// ProcessAuthResponse handles the AuthMoreData sub-states (§4.5): 3 means
// the server found a cached verifier and already accepted; 4 means full
// authentication is required, in which case the password is sent either
// over a secure transport in cleartext or, otherwise, RSA-OAEP-encrypted
// against the server's public key (requested over the wire if not already
// configured via ConnectionOptions.ServerPubKey).
func (cachingSha2PasswordPlugin) ProcessAuthResponse(ctx context.Context, packet []byte, nonce []byte, opts *ConnectionOptions, t authTransport) ([]byte, error) {
	if len(packet) == 0 {
		return nil, newProtocolError(ProtocolInvalidPacket, "empty caching_sha2_password response")
	}
	if packet[0] != iAuthMoreData {
		// OK/ERR/EOF: let the shared state machine dispatch it.
		return packet, nil
	}
	if len(packet) < 2 {
		return nil, newProtocolError(ProtocolInvalidPacket, "caching_sha2_password: missing sub-status byte")
	}

	switch packet[1] {
	case 3: // fast-auth success: the server will send the final OK next
		return t.readHandshakePacket(ctx)

	case 4: // full authentication required
		if t.Secure() {
			pass := append([]byte(opts.Password), 0)
			if err := t.writeHandshakePacket(ctx, pass); err != nil {
				return nil, err
			}
			return t.readHandshakePacket(ctx)
		}

		pubKey := opts.ServerPubKey
		if pubKey == nil {
			pemData, err := t.requestServerPubKey(ctx)
			if err != nil {
				return nil, err
			}
			block, _ := pem.Decode(pemData)
			if block == nil {
				return nil, newProtocolError(ProtocolInvalidPem, "caching_sha2_password: server did not return a PEM public key")
			}
			pkix, err := x509.ParsePKIXPublicKey(block.Bytes)
			if err != nil {
				return nil, newProtocolError(ProtocolInvalidPem, "caching_sha2_password: invalid server public key")
			}
			rsaKey, ok := pkix.(*rsa.PublicKey)
			if !ok {
				return nil, newProtocolError(ProtocolInvalidPem, "caching_sha2_password: server public key is not RSA")
			}
			pubKey = rsaKey
		}

		enc, err := encryptPassword(opts.Password, nonce, pubKey)
		if err != nil {
			return nil, newProtocolError(ProtocolSerialize, "caching_sha2_password: failed to encrypt password")
		}
		if err := t.writeHandshakePacket(ctx, enc); err != nil {
			return nil, err
		}
		return t.readHandshakePacket(ctx)

	default:
		return nil, newProtocolError(ProtocolInvalidPacket, "caching_sha2_password: unknown auth sub-status")
	}
}

// scrambleSHA256Password computes SHA256(password) XOR SHA256(SHA256(
// SHA256(password)) + scramble), the caching_sha2_password/sha256_password
// challenge response.
func scrambleSHA256Password(scramble []byte, password string) []byte {
	if len(password) == 0 {
		return []byte{}
	}

	h := sha256.New()
	h.Write([]byte(password))
	stage1 := h.Sum(nil)

	h.Reset()
	h.Write(stage1)
	stage1Hash := h.Sum(nil)

	h.Reset()
	h.Write(stage1Hash)
	h.Write(scramble)
	stage2 := h.Sum(nil)

	for i := range stage1 {
		stage1[i] ^= stage2[i]
	}
	return stage1
}

// encryptPassword XORs password (plus its NUL terminator) with the
// repeated scramble, then RSA-OAEP/SHA1-encrypts it against pub. Shared by
// caching_sha2_password's full-auth path (this file); sha256_password
// proper is outside the closed plugin set (§9) so no plugin wraps this
// for sha256_password here, but the helper itself is grounded on the
// teacher's identical encryptPassword in auth_sha256.go.
func encryptPassword(password string, seed []byte, pub *rsa.PublicKey) ([]byte, error) {
	if pub == nil {
		return nil, newRuntimeError(RuntimeAuthPluginMismatch, "no RSA public key available for caching_sha2_password full auth")
	}

	plain := make([]byte, len(password)+1)
	copy(plain, password)
	for i := range plain {
		plain[i] ^= seed[i%len(seed)]
	}

	return rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, plain, nil)
}
