/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package fdpool implements the worker side of the networking core's
// two-goroutine split: one background goroutine owns its own epoll instance
// and a per-fd FIFO of pending transfer.Transfer values, driving each one's
// Attempt until it finishes and then posting the completion back onto the
// caller's scheduler (normally the event loop goroutine) so FD-level state
// never needs to be touched from two goroutines at once.
package fdpool

import (
	"context"
	"time"

	liblog "github.com/nabbar/golib/logger"
	libtsf "github.com/nabbar/golib/transfer"
)

// Scheduler hands a function back to the goroutine that owns FD-level state.
// eventloop.EventLoop satisfies this structurally.
type Scheduler interface {
	Post(fn func())
}

// Rate reports a moving bytes-per-second measurement.
type Rate interface {
	BytesPerSecond() float64
}

// FDPool multiplexes pending transfers across many fds on a single
// background goroutine.
type FDPool interface {
	// Start launches the worker goroutine.
	Start(ctx context.Context) error
	// Stop asks the worker goroutine to exit and waits for it.
	Stop(ctx context.Context) error

	// Submit enqueues a transfer. It is appended to the read or write FIFO
	// for its fd (per Transfer.IsWrite) and driven in order; only the
	// transfer at the head of a direction's FIFO is ever attempted. Safe
	// to call from any goroutine.
	Submit(t libtsf.Transfer) error

	// Flush invokes cb once every currently queued write transfer for fd
	// has completed. If fd has no pending writes, cb runs immediately
	// (via the scheduler, for consistency).
	Flush(fd int, cb func()) error

	// Forget drops fd from the pool's interest set and discards any
	// pending transfers for it, without invoking their callbacks. Only
	// safe when the caller already knows no transfer is queued for fd;
	// otherwise use Close, which guarantees every callback still fires.
	Forget(fd int)

	// Close fails every transfer queued for fd (success = false, each
	// transfer's own Complete callback still posted through Scheduler
	// exactly once), drops fd from the interest set, then invokes cb
	// directly on the worker goroutine - not through Scheduler - so a
	// caller blocked waiting for cb is guaranteed the worker will never
	// again touch fd before closing the underlying descriptor itself.
	// cb must not touch loop-owned state.
	Close(fd int, cb func()) error

	// Status reports the accumulated Status bits observed for fd (timeouts
	// and forced closes), for as long as the caller keeps the number
	// around after Close.
	Status(fd int) Status

	ReadRate() Rate
	WriteRate() Rate

	// QueueDepth reports the total number of transfers currently queued
	// across every fd, in either direction.
	QueueDepth() int

	// SetLog registers the logger the worker goroutine reports epoll
	// failures through. A nil fct (the default) makes them silent beyond
	// Stop's return value.
	SetLog(fct liblog.FuncLog)
}

// New creates an FDPool that posts transfer completions through sched.
func New(sched Scheduler) (FDPool, error) {
	return newPool(sched)
}

// rateWindow is the width of the moving-average window used by the
// bytes/second rate trackers.
const rateWindow = time.Second
