// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2013 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestPoolConnection() *Connection {
	return &Connection{stream: newFakeStream()}
}

func TestConnectionPoolConstructsUpToCapacity(t *testing.T) {
	var built int64
	pool := NewConnectionPool(2, func(context.Context) (*Connection, error) {
		atomic.AddInt64(&built, 1)
		return newTestPoolConnection(), nil
	}, NoRetryPolicy)

	first, err := pool.Get(context.Background())
	require.NoError(t, err)
	second, err := pool.Get(context.Background())
	require.NoError(t, err)

	require.Equal(t, int64(2), built)
	require.Equal(t, 2, pool.Live())
	require.NotSame(t, first.Connection(), second.Connection())
}

func TestConnectionPoolReusesReleasedConnection(t *testing.T) {
	var built int64
	pool := NewConnectionPool(1, func(context.Context) (*Connection, error) {
		atomic.AddInt64(&built, 1)
		return newTestPoolConnection(), nil
	}, NoRetryPolicy)

	pc, err := pool.Get(context.Background())
	require.NoError(t, err)
	reused := pc.Connection()
	pc.Release()

	pc2, err := pool.Get(context.Background())
	require.NoError(t, err)
	require.Same(t, reused, pc2.Connection())
	require.Equal(t, int64(1), built)
}

func TestConnectionPoolWaitsAtCapacityThenUnblocksOnRelease(t *testing.T) {
	pool := NewConnectionPool(1, func(context.Context) (*Connection, error) {
		return newTestPoolConnection(), nil
	}, NoRetryPolicy)

	first, err := pool.Get(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var second *PooledConnection
	var secondErr error
	go func() {
		defer wg.Done()
		second, secondErr = pool.Get(context.Background())
	}()

	time.Sleep(20 * time.Millisecond) // let the goroutine block on the channel
	first.Release()
	wg.Wait()

	require.NoError(t, secondErr)
	require.NotNil(t, second)
}

func TestConnectionPoolGetRespectsContextCancellation(t *testing.T) {
	pool := NewConnectionPool(1, func(context.Context) (*Connection, error) {
		return newTestPoolConnection(), nil
	}, NoRetryPolicy)

	_, err := pool.Get(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = pool.Get(ctx)
	require.Error(t, err)
}

func TestConnectionPoolPoisonedConnectionIsNotReused(t *testing.T) {
	var built int64
	pool := NewConnectionPool(1, func(context.Context) (*Connection, error) {
		atomic.AddInt64(&built, 1)
		return newTestPoolConnection(), nil
	}, NoRetryPolicy)

	pc, err := pool.Get(context.Background())
	require.NoError(t, err)
	pc.conn.poison(errors.New("boom"))
	pc.Release()

	require.Equal(t, 0, pool.Live())

	_, err = pool.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), built)
}

func TestConnectionPoolPermanentConstructionErrorIsNotRetried(t *testing.T) {
	var attempts int64
	pool := NewConnectionPool(1, func(context.Context) (*Connection, error) {
		atomic.AddInt64(&attempts, 1)
		return nil, &ServerError{Code: 1045, Message: "Access denied"}
	}, DefaultRetryPolicy)

	_, err := pool.Get(context.Background())
	require.Error(t, err)
	require.Equal(t, int64(1), attempts)
	require.Equal(t, 0, pool.Live())
}
