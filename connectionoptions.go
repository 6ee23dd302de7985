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
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ConnectionOptions is the recognized option set of §10.3: user/password/
// db_name, the TCP-specific host/port/nodelay, max_allowed_packet, timeout,
// allow_cleartext_password, a forced auth_plugin, a preloaded server_key,
// and the opt-in diagnostic Logger (§10.1). Grounded on the teacher's
// config/serverSettings split in connection.go, flattened into one struct
// the way original_source/src/connection/options.rs does.
type ConnectionOptions struct {
	User     string
	Password string
	DBName   string

	Host    string
	Port    int
	NoDelay bool

	MaxAllowedPacket int
	Timeout          time.Duration

	AllowCleartextPasswords bool
	ForcedAuthPlugin        string
	ServerPubKey            *rsa.PublicKey

	// UseCompression requests CLIENT_COMPRESS during the handshake (§11
	// DOMAIN STACK); the connection only switches its stream over to the
	// lz4 compressed-packet framing if the server also advertises it.
	UseCompression bool

	Logger Logger
}

// DefaultConnectionOptions mirrors the teacher's implicit defaults (10s
// connect timeout, no forced plugin, cleartext disabled) plus a discard
// logger (§10.1).
func DefaultConnectionOptions() *ConnectionOptions {
	return &ConnectionOptions{
		Port:                    3306,
		NoDelay:                 true,
		MaxAllowedPacket:        4 << 20,
		Timeout:                 10 * time.Second,
		AllowCleartextPasswords: false,
		Logger:                  discardLogger{},
	}
}

// ParseDSN parses the minimal DSN grammar this package recognizes:
// "user:password@tcp(host:port)/dbname". This is intentionally narrower
// than the teacher's own dsn.go (not present in the retrieved snapshot):
// per §10.3 the richer DSN grammar, environment variables, and CLI flags
// belong to an out-of-scope higher-level configuration collaborator.
func ParseDSN(dsn string) (*ConnectionOptions, error) {
	opts := DefaultConnectionOptions()

	rest := dsn
	if at := strings.LastIndexByte(rest, '@'); at >= 0 {
		userinfo := rest[:at]
		rest = rest[at+1:]
		if colon := strings.IndexByte(userinfo, ':'); colon >= 0 {
			opts.User = userinfo[:colon]
			opts.Password = userinfo[colon+1:]
		} else {
			opts.User = userinfo
		}
	}

	if !strings.HasPrefix(rest, "tcp(") {
		return nil, errors.New("mysql: ParseDSN: only the \"tcp(host:port)/dbname\" form is supported")
	}
	rest = rest[len("tcp("):]
	closeIdx := strings.IndexByte(rest, ')')
	if closeIdx < 0 {
		return nil, errors.New("mysql: ParseDSN: unterminated tcp(...) address")
	}
	hostPort := rest[:closeIdx]
	rest = rest[closeIdx+1:]

	if colon := strings.LastIndexByte(hostPort, ':'); colon >= 0 {
		opts.Host = hostPort[:colon]
		port, err := strconv.Atoi(hostPort[colon+1:])
		if err != nil {
			return nil, fmt.Errorf("mysql: ParseDSN: invalid port: %w", err)
		}
		opts.Port = port
	} else {
		opts.Host = hostPort
	}

	if !strings.HasPrefix(rest, "/") {
		return nil, errors.New("mysql: ParseDSN: expected '/' before database name")
	}
	opts.DBName = rest[1:]

	if opts.Host == "" {
		return nil, errors.New("mysql: ParseDSN: empty host")
	}
	return opts, nil
}

// Option mutates a ConnectionOptions; used alongside ParseDSN for callers
// that build options programmatically instead of from a DSN string.
type Option func(*ConnectionOptions)

func WithUser(user string) Option          { return func(o *ConnectionOptions) { o.User = user } }
func WithPassword(pass string) Option      { return func(o *ConnectionOptions) { o.Password = pass } }
func WithDBName(name string) Option        { return func(o *ConnectionOptions) { o.DBName = name } }
func WithTimeout(d time.Duration) Option   { return func(o *ConnectionOptions) { o.Timeout = d } }
func WithAllowCleartextPasswords() Option  { return func(o *ConnectionOptions) { o.AllowCleartextPasswords = true } }
func WithForcedAuthPlugin(name string) Option {
	return func(o *ConnectionOptions) { o.ForcedAuthPlugin = name }
}
func WithServerPubKey(key *rsa.PublicKey) Option {
	return func(o *ConnectionOptions) { o.ServerPubKey = key }
}
func WithLogger(l Logger) Option         { return func(o *ConnectionOptions) { o.Logger = l } }
func WithCompression() Option            { return func(o *ConnectionOptions) { o.UseCompression = true } }

// Apply runs each option against opts in order.
func (opts *ConnectionOptions) Apply(options ...Option) {
	for _, opt := range options {
		opt(opts)
	}
}
