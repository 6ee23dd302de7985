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
	"crypto/sha1"
)

// nativePasswordPlugin implements mysql_native_password (§4.5, §8
// scenario 3), grounded on the teacher's NativePasswordPlugin
// (auth_mysql_native.go).
type nativePasswordPlugin struct{}

func init() {
	registerAuthPlugin(nativePasswordPlugin{})
}

func (nativePasswordPlugin) Name() string { return "mysql_native_password" }

func (nativePasswordPlugin) InitAuth(nonce []byte, opts *ConnectionOptions) ([]byte, error) {
	if opts.Password == "" {
		return nil, nil
	}
	n := nonce
	if len(n) > 20 {
		n = n[:20]
	}
	return scrambleNativePassword(n, opts.Password), nil
}

func (nativePasswordPlugin) ProcessAuthResponse(_ context.Context, packet []byte, _ []byte, _ *ConnectionOptions, _ authTransport) ([]byte, error) {
	return packet, nil
}

// scrambleNativePassword computes SHA1(password) XOR SHA1(scramble +
// SHA1(SHA1(password))), the mysql_native_password challenge response.
func scrambleNativePassword(scramble []byte, password string) []byte {
	if len(password) == 0 {
		return nil
	}

	h := sha1.New()
	h.Write([]byte(password))
	stage1 := h.Sum(nil)

	h.Reset()
	h.Write(stage1)
	stage2 := h.Sum(nil)

	h.Reset()
	h.Write(scramble)
	h.Write(stage2)
	out := h.Sum(nil)

	for i := range out {
		out[i] ^= stage1[i]
	}
	return out
}
