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

package transfer

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	libbuf "github.com/nabbar/golib/buffer"
)

// base carries the fields common to every Transfer kind.
type base struct {
	fd      int
	engine  TLSEngine
	cb      Callback
	timeout time.Duration
	isWrite bool

	mu       sync.Mutex
	finished bool
	success  bool
	fired    bool
}

func (b *base) FD() int               { return b.fd }
func (b *base) IsWrite() bool         { return b.isWrite }
func (b *base) Timeout() time.Duration { return b.timeout }

func (b *base) WantsRead() bool {
	if b.engine == nil {
		return false
	}
	return b.engine.WantsRead()
}

func (b *base) WantsWrite() bool {
	if b.engine == nil {
		return false
	}
	return b.engine.WantsWrite()
}

func (b *base) IsPending() bool {
	return b.WantsRead() || b.WantsWrite()
}

func (b *base) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finished
}

func (b *base) Success() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.success
}

func (b *base) finish(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finished = true
	b.success = success
}

func (b *base) Fail() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.finished = true
	b.success = false
}

func (b *base) Complete() {
	b.mu.Lock()
	if b.fired {
		b.mu.Unlock()
		return
	}
	b.fired = true
	success := b.success
	b.mu.Unlock()

	if b.cb != nil {
		b.cb(success)
	}
}

// rawRead performs one non-blocking read attempt on the fd (or through the
// TLS engine, if set). A return of (0, nil, false) means "not ready yet",
// not EOF.
func (b *base) rawRead(p []byte) (n int, err error, eof bool) {
	if b.engine != nil {
		n, err = b.engine.Read(p)
	} else {
		n, err = unix.Read(b.fd, p)
	}

	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, nil, false
	}
	if err != nil {
		return 0, err, false
	}
	if n == 0 {
		return 0, nil, true
	}
	return n, nil, false
}

// rawWrite performs one non-blocking write attempt on the fd (or through the
// TLS engine, if set).
func (b *base) rawWrite(p []byte) (n int, err error) {
	if b.engine != nil {
		n, err = b.engine.Write(p)
	} else {
		n, err = unix.Write(b.fd, p)
	}

	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, nil
	}
	return n, err
}

// --- Readiness -------------------------------------------------------------

type readiness struct{ base }

// NewReadiness builds a Transfer that completes successfully the first time
// it is attempted, i.e. as soon as the fd is ready in the requested
// direction. Used for connect-completion and plain can-read/can-write checks.
func NewReadiness(fd int, write bool, timeout time.Duration, cb Callback) Transfer {
	return &readiness{base{fd: fd, isWrite: write, timeout: timeout, cb: cb}}
}

func (r *readiness) Attempt() (int, error) {
	r.finish(true)
	return 0, nil
}

// --- Read (bounded N bytes) -------------------------------------------------

type readN struct {
	base
	dst      libbuf.Buffer
	target   int
	total    int
	scratch  []byte
}

// NewRead builds a Transfer that appends exactly length bytes read from fd
// into dst.
func NewRead(fd int, engine TLSEngine, dst libbuf.Buffer, length int, timeout time.Duration, cb Callback) Transfer {
	return &readN{
		base:    base{fd: fd, engine: engine, timeout: timeout, cb: cb},
		dst:     dst,
		target:  length,
		scratch: make([]byte, readChunk(length)),
	}
}

func readChunk(length int) int {
	if length <= 0 || length > 65536 {
		return 65536
	}
	return length
}

func (r *readN) Attempt() (int, error) {
	want := r.target - r.total
	if want > len(r.scratch) {
		want = len(r.scratch)
	}

	n, err, eof := r.rawRead(r.scratch[:want])
	if err != nil {
		r.finish(false)
		return 0, err
	}
	if eof {
		r.finish(false)
		return 0, nil
	}
	if n == 0 {
		return 0, nil
	}

	_ = r.dst.Add(r.scratch[:n])
	r.total += n

	if r.total >= r.target {
		r.finish(true)
	}
	return n, nil
}

// --- ReadUntilMark -----------------------------------------------------------

type readUntilMark struct {
	base
	dst     libbuf.Buffer
	max     int
	mark    string
	scratch []byte
}

// NewReadUntilMark builds a Transfer that appends bytes read from fd into dst
// until mark appears in the accumulated bytes already in dst (not just what
// this Transfer appended) or until dst would exceed max bytes. Reaching max
// without finding mark still finishes with success = true; the caller must
// check dst's length to detect the overflow case (this is how the HTTP layer
// enforces header-too-large).
func NewReadUntilMark(fd int, engine TLSEngine, dst libbuf.Buffer, max int, mark string, timeout time.Duration, cb Callback) Transfer {
	return &readUntilMark{
		base:    base{fd: fd, engine: engine, timeout: timeout, cb: cb},
		dst:     dst,
		max:     max,
		mark:    mark,
		scratch: make([]byte, 4096),
	}
}

func (r *readUntilMark) Attempt() (int, error) {
	n, err, eof := r.rawRead(r.scratch)
	if err != nil {
		r.finish(false)
		return 0, err
	}
	if eof {
		r.finish(false)
		return 0, nil
	}
	if n == 0 {
		return 0, nil
	}

	_ = r.dst.Add(r.scratch[:n])

	if r.dst.IndexOf(r.mark) >= 0 {
		r.finish(true)
	} else if r.max > 0 && r.dst.Length() >= r.max {
		r.finish(true)
	}

	return n, nil
}

// --- Write (bounded N bytes) -------------------------------------------------

type writeN struct {
	base
	src    libbuf.Buffer
	target int
	total  int
}

// NewWrite builds a Transfer that drains up to length bytes from src to fd.
// length <= 0 means "drain everything currently in src".
func NewWrite(fd int, engine TLSEngine, src libbuf.Buffer, length int, timeout time.Duration, cb Callback) Transfer {
	if length <= 0 {
		length = src.Length()
	}
	return &writeN{
		base:   base{fd: fd, engine: engine, isWrite: true, timeout: timeout, cb: cb},
		src:    src,
		target: length,
	}
}

func (w *writeN) Attempt() (int, error) {
	if w.total >= w.target {
		w.finish(true)
		return 0, nil
	}

	chunk := w.src.Peek(w.target - w.total)
	if len(chunk) == 0 {
		w.finish(true)
		return 0, nil
	}

	n, err := w.rawWrite(chunk)
	if err != nil {
		w.finish(false)
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	w.src.Drain(n)
	w.total += n

	if w.total >= w.target {
		w.finish(true)
	}
	return n, nil
}
