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

// Package eventloop implements a single-threaded, epoll-backed scheduler: one
// goroutine owns an epoll instance, a timer heap, and a set of registered
// file descriptors, and runs every callback it fires on that same goroutine.
// Other goroutines (notably the FD pool worker) hand work back to the loop
// through Post, never by touching loop-owned state directly - this is what
// lets fd-readiness bookkeeping stay lock-free on the loop side.
package eventloop

import (
	"context"
	"time"

	liblog "github.com/nabbar/golib/logger"
)

// EventMask selects which readiness conditions a watched fd is interested
// in.
type EventMask uint8

const (
	EventRead EventMask = 1 << iota
	EventWrite
)

// FDCallback is invoked on the loop goroutine when a watched fd becomes
// ready in (at least) one of the directions it was registered for.
type FDCallback func(fd int, mask EventMask)

// TimerCallback is invoked on the loop goroutine when a timer fires.
type TimerCallback func()

// Timer is a handle to a scheduled, cancelable timer callback.
type Timer interface {
	// Cancel prevents a pending timer from firing. Safe to call after the
	// timer has already fired or been canceled.
	Cancel()
}

// EventLoop is a single-threaded cooperative scheduler built on epoll. All
// registration, callback, and Run methods except Post and Break are only
// safe to call from the loop's own goroutine (i.e. from within a callback,
// or before Run starts).
type EventLoop interface {
	// AddFD registers fd for the given readiness mask. Only one
	// registration is allowed per fd; call UpdateFD to change the mask.
	AddFD(fd int, mask EventMask, cb FDCallback) error
	// UpdateFD changes the readiness mask for an already-registered fd.
	UpdateFD(fd int, mask EventMask) error
	// RemoveFD stops watching fd. Safe to call even if fd was never added.
	RemoveFD(fd int) error

	// AfterFunc schedules cb to run once, after d has elapsed.
	AfterFunc(d time.Duration, cb TimerCallback) Timer

	// Post queues fn to run on the loop goroutine at the next opportunity.
	// Unlike every other method on EventLoop, Post is safe to call from
	// any goroutine; it is how worker goroutines hand results back to the
	// loop without sharing loop-owned state.
	Post(fn func())

	// Run blocks, dispatching fd and timer events until ctx is canceled or
	// Break is called.
	Run(ctx context.Context) error
	// RunOnce processes at most one batch of ready events (or due timers)
	// and returns, blocking up to timeout waiting for something to do. A
	// zero timeout polls without blocking.
	RunOnce(timeout time.Duration) error
	// Break asks a running Run to return as soon as the current batch of
	// callbacks finishes.
	Break()

	// SetLog registers the logger this loop reports epoll failures
	// through. A nil fct (the default) makes Run/RunOnce errors silent
	// beyond their return value.
	SetLog(fct liblog.FuncLog)

	// SetPriorityLevels configures how many priority levels (0..n-1)
	// NewEvent/NewFDEvent events can target; n < 1 is treated as 1.
	// Defaults to a single level, i.e. plain FIFO firing order.
	SetPriorityLevels(n int)

	// NewEvent creates a software event with no fd of its own: it only
	// fires when Activate is called, whether directly or through a timer
	// armed by Add. See EventFlag for the PERSIST/NO_SELF_REF/FINALIZE
	// semantics.
	NewEvent(cb EventCallback, flags EventFlag) Event

	// NewFDEvent registers fd for mask like AddFD, but fires cb through
	// the same priority queue as NewEvent, and - absent FlagPersist -
	// deregisters fd automatically after its first fire.
	NewFDEvent(fd int, mask EventMask, flags EventFlag, cb FDCallback) (Event, error)

	// Add arms ev: for a NewEvent event, a positive timeout activates it
	// once elapsed (zero leaves it for an explicit Activate); for a
	// NewFDEvent event, registration already happened in NewFDEvent.
	Add(ev Event, timeout time.Duration) error
}

// New creates an EventLoop with its own epoll instance. The returned loop
// owns that epoll fd and releases it when Run returns after a Break/ctx
// cancellation triggered by the caller; it does not close any of the fds
// registered with AddFD.
func New() (EventLoop, error) {
	return newLoop()
}
