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
	"io"
	"net"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func TestDefaultRetryPolicyProducesIncreasingIntervals(t *testing.T) {
	b := DefaultRetryPolicy.NewBackOff()
	first := b.NextBackOff()
	second := b.NextBackOff()
	require.Greater(t, second, first)
}

func TestNoRetryPolicyStopsImmediately(t *testing.T) {
	b := NoRetryPolicy.NewBackOff()
	require.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestIsTransientConnErrorClassifiesIOFailures(t *testing.T) {
	require.True(t, isTransientConnError(wrapIOError(errors.New("connection reset"))))
	require.True(t, isTransientConnError(&net.OpError{Op: "dial", Err: io.ErrClosedPipe}))
	require.True(t, isTransientConnError(context.DeadlineExceeded))
}

func TestIsTransientConnErrorRejectsPermanentFailures(t *testing.T) {
	require.False(t, isTransientConnError(nil))
	require.False(t, isTransientConnError(&ServerError{Code: 1045, Message: "Access denied"}))
	require.False(t, isTransientConnError(newProtocolError(ProtocolUnknownAuthPlugin, "no such plugin")))
}
