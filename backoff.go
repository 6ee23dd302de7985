// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2019 The Go-MySQL-Driver Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy configures how the connection pool (connpool.go) retries a
// transient failure of its connection constructor before giving up and
// handing the error to the waiter. Grounded on the teacher's backoff.go
// (constantBackoff/exponentialBackoff/noBackoff), reimplemented on
// cenkalti/backoff/v4 instead of hand-rolled interval math (§11).
type RetryPolicy struct {
	// NewBackOff builds a fresh backoff.BackOff for one construction
	// attempt sequence. Called once per Get() that needs to dial.
	NewBackOff func() backoff.BackOff
}

// DefaultRetryPolicy is an exponential backoff starting at 500ms, capped at
// 3s per step and 10s total, matching the teacher's default constants.
var DefaultRetryPolicy = RetryPolicy{
	NewBackOff: func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.RandomizationFactor = 0
		b.MaxInterval = 3 * time.Second
		b.MaxElapsedTime = 10 * time.Second
		return b
	},
}

// NoRetryPolicy never retries: the first construction failure is returned
// immediately (mirrors the teacher's noBackoff).
var NoRetryPolicy = RetryPolicy{
	NewBackOff: func() backoff.BackOff { return &backoff.StopBackOff{} },
}

// isTransientConnError decides whether a connection-construction failure is
// worth retrying (§4.11/§5): an I/O-level failure (dial refused, timeout,
// connection reset) is transient; a server-rejected auth or a malformed
// handshake is not, and is wrapped as a backoff.PermanentError by the
// caller to stop retrying immediately.
func isTransientConnError(err error) bool {
	if err == nil {
		return false
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, ErrIO) || errors.Is(err, context.DeadlineExceeded)
}
