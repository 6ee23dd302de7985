// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2023 The Go-MySQL-Driver Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import "context"

// clearPasswordPlugin implements mysql_clear_password (§4.5): the
// password travels as a NUL-terminated cleartext string, so InitAuth
// refuses unless the caller opted in via AllowCleartextPasswords — there
// is no TLS layer in this core to make that safe automatically (§1
// Non-goals). Grounded on the teacher's ClearPasswordPlugin
// (auth_cleartext.go).
type clearPasswordPlugin struct{}

func init() {
	registerAuthPlugin(clearPasswordPlugin{})
}

func (clearPasswordPlugin) Name() string { return "mysql_clear_password" }

func (clearPasswordPlugin) InitAuth(_ []byte, opts *ConnectionOptions) ([]byte, error) {
	if !opts.AllowCleartextPasswords {
		return nil, ErrCleartextPassword
	}
	return append([]byte(opts.Password), 0), nil
}

func (clearPasswordPlugin) ProcessAuthResponse(_ context.Context, packet []byte, _ []byte, _ *ConnectionOptions, _ authTransport) ([]byte, error) {
	return packet, nil
}
