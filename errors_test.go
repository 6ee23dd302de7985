// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2013 The Go-MySQL-Driver Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProtocolErrorUnwrapsIOErrors(t *testing.T) {
	err := wrapIOError(io.ErrUnexpectedEOF)
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestProtocolErrorNonIOKindDoesNotWrapErrIO(t *testing.T) {
	err := newProtocolError(ProtocolParse, "bad packet")
	require.NotErrorIs(t, err, ErrIO)
}

func TestServerErrorMessageFormatting(t *testing.T) {
	withState := &ServerError{Code: 1045, SQLState: "28000", Message: "Access denied"}
	require.Contains(t, withState.Error(), "28000")
	require.Contains(t, withState.Error(), "1045")

	withoutState := &ServerError{Code: 2000, Message: "old style"}
	require.NotContains(t, withoutState.Error(), "()")
}

func TestConnectionPoisonedSentinelMatches(t *testing.T) {
	wrapped := errors.New("wrapped: " + ErrConnectionPoisoned.Error())
	require.False(t, errors.Is(wrapped, ErrConnectionPoisoned))

	var cause error = errors.New("read timeout")
	poisoned := errors.Join(ErrConnectionPoisoned, cause)
	require.ErrorIs(t, poisoned, ErrConnectionPoisoned)
	require.ErrorIs(t, poisoned, cause)
}

func TestRuntimeErrorKindStringer(t *testing.T) {
	err := newRuntimeError(RuntimeParameterCountMismatch, "wrong arity")
	require.Contains(t, err.Error(), "ParameterCountMismatch")
	require.Contains(t, err.Error(), "wrong arity")
}
