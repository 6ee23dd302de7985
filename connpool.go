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
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
)

// ConnConstructor dials and authenticates one new Connection; typically
// `func(ctx context.Context) (*Connection, error) { return Connect(ctx, opts) }`.
type ConnConstructor func(ctx context.Context) (*Connection, error)

// ConnectionPool is the bounded asynchronous connection pool of §4.11(b):
// an array-backed queue of at most Capacity live connections, gated by an
// atomic counter so at most Capacity constructions are ever in flight, with
// callers above that bound waiting on the channel a Release delivers to.
// Grounded on original_source/src/pool/async_pool.rs's AsyncPool, with the
// crossbeam ArrayQueue/SegQueue-of-Wakers pair realized as a single Go
// buffered channel — a channel receive already blocks the right goroutine
// until an item is available, so no separate waker queue is needed. A slot
// freed by retiring a connection (poisoned on Release, or unhealthy on Get)
// does not wake a waiter; it keeps waiting for a returned item or for its
// ctx to end.
type ConnectionPool struct {
	capacity  int64
	construct ConnConstructor
	retry     RetryPolicy

	items  chan *Connection
	live   int64
	closed int32
}

// NewConnectionPool builds a pool bounded by capacity, using construct to
// dial new connections and retry to govern retries of a transient dial
// failure (§4.11/§5). Pass DefaultRetryPolicy unless the caller has a
// reason not to retry at all (NoRetryPolicy).
func NewConnectionPool(capacity int, construct ConnConstructor, retry RetryPolicy) *ConnectionPool {
	return &ConnectionPool{
		capacity:  int64(capacity),
		construct: construct,
		retry:     retry,
		items:     make(chan *Connection, capacity),
	}
}

// Get returns a PooledConnection, popping an idle one if available,
// constructing a new one if the pool is under capacity, or waiting for
// either an idle connection or ctx's cancellation otherwise (§4.11(b)).
// The caller must call Release exactly once when done with it.
func (p *ConnectionPool) Get(ctx context.Context) (*PooledConnection, error) {
	for {
		select {
		case c := <-p.items:
			if checkConnectionHealth(c.stream) != nil {
				atomic.AddInt64(&p.live, -1)
				_ = c.Close(ctx)
				continue
			}
			return &PooledConnection{conn: c, pool: p}, nil
		default:
		}

		live := atomic.LoadInt64(&p.live)
		if live < p.capacity {
			if !atomic.CompareAndSwapInt64(&p.live, live, live+1) {
				continue // lost the CAS race to another getter; retry
			}
			conn, err := p.constructWithRetry(ctx)
			if err != nil {
				atomic.AddInt64(&p.live, -1)
				return nil, err
			}
			return &PooledConnection{conn: conn, pool: p}, nil
		}

		select {
		case c := <-p.items:
			if checkConnectionHealth(c.stream) != nil {
				atomic.AddInt64(&p.live, -1)
				_ = c.Close(ctx)
				continue
			}
			return &PooledConnection{conn: c, pool: p}, nil
		case <-ctx.Done():
			return nil, wrapIOError(ctx.Err())
		}
	}
}

// constructWithRetry runs construct under retry's backoff policy,
// retrying only transient failures (isTransientConnError, backoff.go) and
// surfacing a permanent one (bad credentials, protocol mismatch)
// immediately.
func (p *ConnectionPool) constructWithRetry(ctx context.Context) (*Connection, error) {
	b := backoff.WithContext(p.retry.NewBackOff(), ctx)
	var conn *Connection
	err := backoff.Retry(func() error {
		c, err := p.construct(ctx)
		if err != nil {
			if isTransientConnError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		conn = c
		return nil
	}, b)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Live reports the current number of connections this pool has either
// constructed or is in the process of constructing.
func (p *ConnectionPool) Live() int { return int(atomic.LoadInt64(&p.live)) }

// Close drains and closes every idle connection currently in the pool.
// Connections checked out via Get at the time of Close are unaffected;
// their eventual Release will close them instead, since the pool no
// longer accepts returns once closed is set.
func (p *ConnectionPool) Close(ctx context.Context) error {
	atomic.StoreInt32(&p.closed, 1)
	close(p.items)
	var firstErr error
	for c := range p.items {
		if err := c.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PooledConnection is a checked-out Connection plus the bookkeeping needed
// to return or retire it exactly once (the ManuallyDrop<T>/PoolItem pattern
// of the Rust original, realized here as an explicit Release call since Go
// has no destructor to run it automatically).
type PooledConnection struct {
	conn     *Connection
	pool     *ConnectionPool
	released bool
}

// Connection returns the underlying Connection for issuing commands on.
func (pc *PooledConnection) Connection() *Connection { return pc.conn }

// Release returns the connection to its pool, unless poisoning or a full
// pool (which should not happen given the live-count accounting above, but
// is handled defensively) means it must be closed and its slot freed
// instead.
func (pc *PooledConnection) Release() {
	if pc.released {
		return
	}
	pc.released = true

	if pc.conn.poisoned != nil || atomic.LoadInt32(&pc.pool.closed) != 0 {
		atomic.AddInt64(&pc.pool.live, -1)
		_ = pc.conn.Close(context.Background())
		return
	}

	select {
	case pc.pool.items <- pc.conn:
	default:
		atomic.AddInt64(&pc.pool.live, -1)
		_ = pc.conn.Close(context.Background())
	}
}
