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

// Package httpconn implements the HTTP/1.1 connection base shared by the
// client and server packages: an ordered case-insensitive header multimap,
// the header/body read state machine (content-length, chunked with trailer
// headers, and read-until-close bodies), and the request pipeline a
// keep-alive connection needs to keep responses and requests matched up in
// arrival order.
package httpconn

import (
	libbuf "github.com/nabbar/golib/buffer"
	libfd "github.com/nabbar/golib/fd"
)

// BodyMode identifies how ReadBody will consume the request or response
// body, decided from the parsed input headers.
type BodyMode int

const (
	// BodyNone means the exchange carries no body at all.
	BodyNone BodyMode = iota
	// BodyContentLength means exactly N bytes follow, per Content-Length.
	BodyContentLength
	// BodyChunked means the body is chunk-encoded, per Transfer-Encoding.
	BodyChunked
	// BodyUntilClose means the body runs until the peer closes the
	// connection (only valid for a client reading a response).
	BodyUntilClose
)

// Connection is the shared HTTP/1.1 engine: it owns the FD, the staging
// input buffer, and the FIFO of in-flight Requests, and knows how to read a
// header block, read a body in any of the four BodyModes, and serialize an
// outgoing message. HTTPClient and HTTPServer each drive it from the
// opposite side: a server parses request lines and dispatches, a client
// parses status lines and resolves pending requests.
type Connection interface {
	// FD returns the underlying descriptor handle.
	FD() libfd.FD

	// IsIncoming reports whether this connection was accepted (server
	// side) as opposed to dialed out (client side); it controls which
	// start-line grammar ReadHeader expects and which BodyMode applies
	// when no length is given.
	IsIncoming() bool

	MaxHeaderSize() int
	SetMaxHeaderSize(n int)
	MaxBodySize() int
	SetMaxBodySize(n int)

	// NumRequests reports how many requests are currently pipelined.
	NumRequests() int
	// Push enqueues req at the tail of the pipeline.
	Push(req *Request)
	// Pop removes the request at the head of the pipeline and fires its
	// completion callback.
	Pop()
	// Active returns the request at the head of the pipeline, if any.
	Active() (*Request, bool)
	// CheckActive reports whether req is the current head of the
	// pipeline, guarding against writing a response out of order.
	CheckActive(req *Request) bool

	// ReadHeader reads up to the blank line terminating a header block,
	// parses the start line and headers, and delivers a populated
	// Request. ok is false on overflow (MaxHeaderSize exceeded) or a
	// malformed start line.
	ReadHeader(done func(req *Request, ok bool))

	// ReadBody decides the BodyMode from req's input headers and reads
	// the body into req's input buffer accordingly.
	ReadBody(req *Request, done func(ok bool))

	// WriteMessage serializes startLine, hdr and body and writes them to
	// the FD as one logical message.
	WriteMessage(startLine string, hdr Header, body libbuf.Buffer, done func(ok bool))

	// Close closes the underlying FD and completes every pipelined
	// request still pending.
	Close() error
}

// New wraps f as a Connection. incoming selects server-side (accepted) vs
// client-side (dialed) start-line and body-mode defaults.
func New(f libfd.FD, incoming bool) Connection {
	return newConnection(f, incoming)
}

// DetermineBodyMode inspects hdr to decide how a body following it should
// be read, per the precedence chunked > content-length > (server: none |
// client: until-close).
func DetermineBodyMode(incoming bool, hdr Header) (BodyMode, int) {
	return determineBodyMode(incoming, hdr)
}
