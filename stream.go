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
	"context"
	"net"
	"strconv"
	"time"
)

// Stream is the transport capability set §6 asks for: a byte stream that
// can be read/written exactly, written a little-endian uint32 header, and
// asked whether it protects confidentiality. The core is generic over this
// interface rather than a concrete net.Conn, the same polymorphism the
// teacher gets for free from database/sql/driver but applied here to the
// transport layer instead (grounded on the teacher's mc.netConn/mc.buf
// split in connection.go/buffer.go).
type Stream interface {
	ReadExact(ctx context.Context, dst []byte) error
	WriteAll(ctx context.Context, src []byte) error
	WriteUint32LE(ctx context.Context, v uint32) error
	Secure() bool
	Close() error
}

// StreamOptions configures a concrete Stream's Connect call.
type StreamOptions struct {
	Host    string
	Port    int
	NoDelay bool
	Timeout time.Duration
}

// tcpStream is the only concrete Stream this core requires (§6): a plain
// TCP socket, optionally with TCP_NODELAY set. It does not protect
// confidentiality on its own, matching §6's "socket or shared memory count
// as secure" carve-out (a bare TCP stream is neither).
type tcpStream struct {
	conn net.Conn
}

// ConnectTCP dials host:port, applying opts.Timeout as the net.Dialer dial
// timeout.
func ConnectTCP(ctx context.Context, opts StreamOptions) (Stream, error) {
	d := net.Dialer{Timeout: opts.Timeout}
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, wrapIOError(err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(opts.NoDelay)
	}
	return &tcpStream{conn: conn}, nil
}

func (s *tcpStream) ReadExact(ctx context.Context, dst []byte) error {
	if err := applyDeadline(ctx, s.conn); err != nil {
		return err
	}
	n := 0
	for n < len(dst) {
		m, err := s.conn.Read(dst[n:])
		n += m
		if err != nil {
			return wrapIOError(err)
		}
	}
	return nil
}

func (s *tcpStream) WriteAll(ctx context.Context, src []byte) error {
	if err := applyDeadline(ctx, s.conn); err != nil {
		return err
	}
	n := 0
	for n < len(src) {
		m, err := s.conn.Write(src[n:])
		n += m
		if err != nil {
			return wrapIOError(err)
		}
	}
	return nil
}

func (s *tcpStream) WriteUint32LE(ctx context.Context, v uint32) error {
	var b [4]byte
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	return s.WriteAll(ctx, b[:])
}

// Secure reports whether this transport protects confidentiality on its
// own; a plain TCP stream does not (TLS is a non-goal, §1).
func (s *tcpStream) Secure() bool { return false }

func (s *tcpStream) Close() error { return s.conn.Close() }

// rawConn exposes the underlying net.Conn for the pool's idle-connection
// health check (conncheck.go); it is not part of the Stream interface.
func (s *tcpStream) rawConn() net.Conn { return s.conn }

func applyDeadline(ctx context.Context, conn net.Conn) error {
	if dl, ok := ctx.Deadline(); ok {
		return conn.SetDeadline(dl)
	}
	return conn.SetDeadline(time.Time{})
}
