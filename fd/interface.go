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

// Package fd is the loop-thread-facing handle to one file descriptor: it
// tracks read/write timeouts and progress, and turns the caller's intent
// (read N bytes, read until a delimiter, write a buffer, wait for
// readiness) into a transfer.Transfer submitted to an fdpool.FDPool. All
// methods on FD must be called from the owning event loop's goroutine; the
// completion callbacks they take are invoked back on that same goroutine,
// since fdpool.FDPool posts through the scheduler it was built with.
package fd

import (
	"time"

	libbuf "github.com/nabbar/golib/buffer"
	libfdp "github.com/nabbar/golib/fdpool"
	libtsf "github.com/nabbar/golib/transfer"
)

// Progress tracks bytes moved and the time the operation started, mirroring
// the original's per-direction progress counters.
type Progress interface {
	Size() int
	Started() time.Time
}

// DoneFunc reports the outcome of a read, write, or readiness operation.
type DoneFunc func(success bool)

// FD is the handle application code uses to drive I/O on a raw descriptor.
type FD interface {
	// FD returns the raw descriptor.
	FD() int
	// SetEngine attaches a TLS engine (or clears one by passing nil); once
	// set, reads and writes go through it instead of the raw descriptor.
	SetEngine(engine libtsf.TLSEngine)

	SetReadTimeout(d time.Duration)
	ReadTimeout() time.Duration
	SetWriteTimeout(d time.Duration)
	WriteTimeout() time.Duration

	ReadProgress() Progress
	WriteProgress() Progress

	// Read appends exactly length bytes read from the fd into dst, then
	// calls done.
	Read(dst libbuf.Buffer, length int, done DoneFunc)
	// ReadUntil appends bytes into dst until mark is found or dst reaches
	// max bytes, then calls done.
	ReadUntil(dst libbuf.Buffer, max int, mark string, done DoneFunc)
	// CanRead calls done as soon as the fd is readable, without consuming
	// any bytes.
	CanRead(done DoneFunc)

	// Write drains src (or all of it, if length <= 0) to the fd, then
	// calls done.
	Write(src libbuf.Buffer, length int, done DoneFunc)
	// CanWrite calls done as soon as the fd is writable.
	CanWrite(done DoneFunc)

	// Flush calls cb once every write queued so far has left the fd.
	Flush(cb func())

	// Status reports the accumulated pool Status bits observed for this
	// fd: which direction(s), if any, timed out or were torn down by
	// Close while a transfer was still outstanding.
	Status() libfdp.Status

	// Close fails every transfer still queued for this fd (success =
	// false, each callback still fires exactly once) before closing the
	// underlying descriptor.
	Close() error
}

// New wraps rawFD for I/O through pool. The FD does not take ownership of
// rawFD's lifecycle beyond Close.
func New(rawFD int, pool libfdp.FDPool) FD {
	return newFD(rawFD, pool)
}
