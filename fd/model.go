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

package fd

import (
	"time"

	"golang.org/x/sys/unix"

	libbuf "github.com/nabbar/golib/buffer"
	libfdp "github.com/nabbar/golib/fdpool"
	libtsf "github.com/nabbar/golib/transfer"
)

type progress struct {
	size    int
	started time.Time
}

func (p *progress) Size() int          { return p.size }
func (p *progress) Started() time.Time { return p.started }

type fdHandle struct {
	raw    int
	pool   libfdp.FDPool
	engine libtsf.TLSEngine

	readTimeout  time.Duration
	writeTimeout time.Duration

	readProg  progress
	writeProg progress
}

func newFD(rawFD int, pool libfdp.FDPool) FD {
	return &fdHandle{raw: rawFD, pool: pool}
}

func (f *fdHandle) FD() int                           { return f.raw }
func (f *fdHandle) SetEngine(engine libtsf.TLSEngine) { f.engine = engine }

func (f *fdHandle) SetReadTimeout(d time.Duration)  { f.readTimeout = d }
func (f *fdHandle) ReadTimeout() time.Duration       { return f.readTimeout }
func (f *fdHandle) SetWriteTimeout(d time.Duration) { f.writeTimeout = d }
func (f *fdHandle) WriteTimeout() time.Duration      { return f.writeTimeout }

func (f *fdHandle) ReadProgress() Progress  { return &f.readProg }
func (f *fdHandle) WriteProgress() Progress { return &f.writeProg }

func (f *fdHandle) Read(dst libbuf.Buffer, length int, done DoneFunc) {
	f.readProg = progress{started: time.Now()}
	before := dst.Length()

	t := libtsf.NewRead(f.raw, f.engine, dst, length, f.readTimeout, func(success bool) {
		f.readProg.size = dst.Length() - before
		if done != nil {
			done(success)
		}
	})
	_ = f.pool.Submit(t)
}

func (f *fdHandle) ReadUntil(dst libbuf.Buffer, max int, mark string, done DoneFunc) {
	f.readProg = progress{started: time.Now()}
	before := dst.Length()

	t := libtsf.NewReadUntilMark(f.raw, f.engine, dst, max, mark, f.readTimeout, func(success bool) {
		f.readProg.size = dst.Length() - before
		if done != nil {
			done(success)
		}
	})
	_ = f.pool.Submit(t)
}

func (f *fdHandle) CanRead(done DoneFunc) {
	t := libtsf.NewReadiness(f.raw, false, f.readTimeout, done)
	_ = f.pool.Submit(t)
}

func (f *fdHandle) Write(src libbuf.Buffer, length int, done DoneFunc) {
	f.writeProg = progress{started: time.Now()}
	want := length
	if want <= 0 {
		want = src.Length()
	}

	t := libtsf.NewWrite(f.raw, f.engine, src, length, f.writeTimeout, func(success bool) {
		f.writeProg.size = want
		if done != nil {
			done(success)
		}
	})
	_ = f.pool.Submit(t)
}

func (f *fdHandle) CanWrite(done DoneFunc) {
	t := libtsf.NewReadiness(f.raw, true, f.writeTimeout, done)
	_ = f.pool.Submit(t)
}

func (f *fdHandle) Flush(cb func()) {
	_ = f.pool.Flush(f.raw, cb)
}

func (f *fdHandle) Status() libfdp.Status {
	return f.pool.Status(f.raw)
}

// Close drains the pool's queue for this fd - failing every pending
// transfer with success = false, exactly once each - before closing the
// descriptor. Closing first and forgetting after would let the worker
// goroutine attempt a read or write against an fd number this process has
// already reused for something else.
func (f *fdHandle) Close() error {
	done := make(chan struct{})
	_ = f.pool.Close(f.raw, func() { close(done) })
	<-done
	return unix.Close(f.raw)
}
