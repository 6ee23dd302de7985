// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2013 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

// BufferPoolContext bounds a BufferPool: Capacity is N, the pool's fixed
// slot count; SizeCap is the byte length a returned buffer is trimmed back
// to if it grew past it; InitSize is the capacity a freshly allocated
// buffer starts with (§3 Bounded pools, §4.11(a)).
type BufferPoolContext struct {
	Capacity int
	SizeCap  int
	InitSize int
}

// DefaultBufferPoolContext matches the teacher's own bytesPool/fieldPool
// sizing (channel depth 16) generalized to the explicit {size_cap,
// init_size} shape original_source/src/pool/sync_pool.rs specifies.
var DefaultBufferPoolContext = BufferPoolContext{
	Capacity: 16,
	SizeCap:  16 * 1024,
	InitSize: 4096,
}

// BufferPool is the synchronous bounded pool of reusable byte buffers from
// §3/§4.11(a): an array-backed queue of capacity N, each returned buffer
// cleared and trimmed back to SizeCap. Backed by a buffered channel rather
// than an explicit lock-free ring, which is the teacher's own approach in
// buffer.go's package-level bytesPool/fieldPool/rowsPool and is adequate
// because a Go channel's internal ring buffer already gives the concurrent,
// wait-free get/put §5 requires without a hand-rolled CAS loop.
type BufferPool struct {
	ctx  BufferPoolContext
	ch   chan []byte
	rows chan *ResultRowBuffer
}

// ResultRowBuffer is a reusable scratch slice for decoded row values,
// pooled alongside raw byte buffers (mirrors the teacher's rowsPool, scoped
// here to the new Value-based row representation, §6/§8).
type ResultRowBuffer struct {
	Values []Value
}

// NewBufferPool constructs a BufferPool bounded by ctx.Capacity.
func NewBufferPool(ctx BufferPoolContext) *BufferPool {
	return &BufferPool{
		ctx:  ctx,
		ch:   make(chan []byte, ctx.Capacity),
		rows: make(chan *ResultRowBuffer, ctx.Capacity),
	}
}

// Get returns a buffer with length n, reusing a pooled allocation when one
// of sufficient capacity is available. The returned bytes are not zeroed.
func (p *BufferPool) Get(n int) []byte {
	select {
	case s := <-p.ch:
		if cap(s) >= n {
			return s[:n]
		}
	default:
	}
	size := n
	if size < p.ctx.InitSize {
		size = p.ctx.InitSize
	}
	return make([]byte, size)[:n]
}

// Put returns s to the pool, trimmed to SizeCap if it grew past that bound
// and logically reset to zero length before reuse (§4.11(a)).
func (p *BufferPool) Put(s []byte) {
	if cap(s) > p.ctx.SizeCap {
		s = s[:0:p.ctx.SizeCap]
	}
	select {
	case p.ch <- s[:0]:
	default:
	}
}

// GetRowBuffer returns a pooled ResultRowBuffer sized for n columns.
func (p *BufferPool) GetRowBuffer(n int) *ResultRowBuffer {
	select {
	case r := <-p.rows:
		if cap(r.Values) >= n {
			r.Values = r.Values[:n]
			return r
		}
	default:
	}
	return &ResultRowBuffer{Values: make([]Value, n)}
}

// PutRowBuffer returns r to the pool after clearing its contents.
func (p *BufferPool) PutRowBuffer(r *ResultRowBuffer) {
	for i := range r.Values {
		r.Values[i] = Value{}
	}
	r.Values = r.Values[:0]
	select {
	case p.rows <- r:
	default:
	}
}
