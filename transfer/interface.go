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

// Package transfer implements the abstract one-shot or bounded I/O operations
// that the FD pool worker drives against a raw file descriptor: bounded
// reads, delimiter-terminated reads, bounded writes, and pure readiness
// checks. A Transfer knows how to make one attempt at its goal and how to
// decide whether it is finished; it does not know about epoll, queues or
// timeouts, so it can be scheduled by either FDPool backend.
package transfer

import "time"

// TLSEngine is implemented by a TLS wrapper over a raw fd. When present on a
// Transfer, it replaces direct fd reads/writes and its want flags can
// override the epoll interest the scheduler would otherwise compute, because
// TLS record framing can require a write to make progress on a logical read
// and vice versa.
type TLSEngine interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)

	// WantsRead/WantsWrite report that the engine has buffered protocol
	// bytes to process and should be driven again even if the fd itself
	// isn't ready in that direction.
	WantsRead() bool
	WantsWrite() bool
}

// Callback receives the outcome of a Transfer exactly once, when Complete is
// invoked.
type Callback func(success bool)

// Transfer is an abstract one-shot or bounded I/O operation against an fd.
type Transfer interface {
	// FD returns the raw descriptor this transfer operates on.
	FD() int

	// IsWrite reports whether this transfer moves bytes out to the fd
	// (true) or in from it (false). Readiness transfers report the
	// direction they were built to wait for.
	IsWrite() bool

	// Timeout returns the deadline assigned to this transfer, or zero for
	// none.
	Timeout() time.Duration

	// WantsRead/WantsWrite delegate to the TLS engine if one is set,
	// otherwise report false.
	WantsRead() bool
	WantsWrite() bool

	// IsPending reports whether the transfer can make progress immediately
	// without waiting on the fd (e.g. TLS has buffered plaintext already).
	IsPending() bool

	// Attempt performs one attempt. The return value is the number of
	// bytes moved (>= 0; 0 is permitted when nothing was ready), or an
	// error. A non-nil error marks the transfer finished with success =
	// false. Attempt sets Finished() once the transfer's goal (or, for
	// ReadUntilMark, either the delimiter or the max length) is reached.
	Attempt() (int, error)

	// Finished reports whether the transfer has reached a terminal state.
	Finished() bool

	// Success reports the outcome once Finished is true.
	Success() bool

	// Fail marks the transfer finished with success = false without
	// attempting any I/O. Used by the scheduler to abort a queued
	// transfer it will never attempt again (timeout, fd closing). Safe to
	// call after the transfer already finished on its own; it then has no
	// effect.
	Fail()

	// Complete invokes the callback exactly once with the final success
	// flag. Safe to call multiple times; only the first call fires the
	// callback.
	Complete()
}
