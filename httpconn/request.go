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

package httpconn

import (
	"sync"
	"sync/atomic"

	libbuf "github.com/nabbar/golib/buffer"
)

var lastRequestID uint64

// Request models one HTTP exchange: the request/status line components,
// input and output header blocks, input and output bodies, and the
// bookkeeping an HTTPConnection needs to decide persistence and pipeline
// ordering.
type Request struct {
	mu sync.Mutex

	id uint64

	method  string
	uri     string
	version string

	statusCode int
	statusMsg  string

	inHeader  Header
	outHeader Header

	inBody  libbuf.Buffer
	outBody libbuf.Buffer

	clientAddr string
	persistent bool
	finalized  bool

	onComplete func()
}

// NewRequest returns a Request with empty headers and bodies, ready for an
// HTTPConnection to populate as the exchange progresses.
func NewRequest() *Request {
	return &Request{
		id:         atomic.AddUint64(&lastRequestID, 1),
		inHeader:   NewHeader(),
		outHeader:  NewHeader(),
		inBody:     libbuf.New(),
		outBody:    libbuf.New(),
		persistent: true,
	}
}

// ID returns a process-unique, monotonically increasing identifier.
func (r *Request) ID() uint64 { return r.id }

func (r *Request) Method() string     { return r.method }
func (r *Request) SetMethod(m string) { r.method = m }

func (r *Request) URI() string     { return r.uri }
func (r *Request) SetURI(u string) { r.uri = u }

func (r *Request) Version() string     { return r.version }
func (r *Request) SetVersion(v string) { r.version = v }

func (r *Request) StatusCode() int      { return r.statusCode }
func (r *Request) SetStatusCode(c int)  { r.statusCode = c }
func (r *Request) StatusMsg() string    { return r.statusMsg }
func (r *Request) SetStatusMsg(m string) { r.statusMsg = m }

func (r *Request) InputHeaders() *Header  { return &r.inHeader }
func (r *Request) OutputHeaders() *Header { return &r.outHeader }

func (r *Request) InputBuffer() libbuf.Buffer  { return r.inBody }
func (r *Request) OutputBuffer() libbuf.Buffer { return r.outBody }

func (r *Request) ClientAddr() string     { return r.clientAddr }
func (r *Request) SetClientAddr(a string) { r.clientAddr = a }

// Persistent reports whether the connection should remain open after this
// exchange completes, per the HTTP/1.0 vs HTTP/1.1 keep-alive defaults and
// any explicit Connection header.
func (r *Request) Persistent() bool      { return r.persistent }
func (r *Request) SetPersistent(p bool)  { r.persistent = p }

// Finalized reports whether the response has been fully written.
func (r *Request) Finalized() bool { return r.finalized }

// OnComplete registers the callback fired once when the request leaves the
// pipeline, mirroring the original's onComplete() hook.
func (r *Request) OnComplete(fn func()) { r.onComplete = fn }

func (r *Request) complete() {
	r.mu.Lock()
	already := r.finalized
	r.finalized = true
	fn := r.onComplete
	r.mu.Unlock()

	if !already && fn != nil {
		fn()
	}
}
