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

// Package httpclient dispatches outgoing HTTP/1.1 requests over the raw-fd
// networking core: it resolves the target, optionally tunnels through an
// HTTP proxy, dials a non-blocking socket through the FD pool, runs a TLS
// handshake when the scheme calls for it, and drives the request/response
// exchange through httpconn.Connection.
package httpclient

import (
	"context"
	"time"

	libtls "github.com/nabbar/golib/certificates"
	libfdp "github.com/nabbar/golib/fdpool"
	libhtc "github.com/nabbar/golib/httpconn"
)

// ConnectionError classifies how a Call failed, mirroring the outcome
// categories a caller needs to decide whether to retry.
type ConnectionError int

const (
	ConnOK ConnectionError = iota
	ConnConnect
	ConnTimeout
	ConnEOF
	ConnBadResponse
	ConnCanceled
	ConnUnknown
)

func (e ConnectionError) String() string {
	switch e {
	case ConnOK:
		return "ok"
	case ConnConnect:
		return "connect failed"
	case ConnTimeout:
		return "timeout"
	case ConnEOF:
		return "unexpected eof"
	case ConnBadResponse:
		return "bad response"
	case ConnCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ResponseFunc receives the outcome of a Call. req is non-nil and holds the
// parsed response (status, headers, body) whenever connErr is ConnOK.
type ResponseFunc func(req *libhtc.Request, connErr ConnectionError)

// ProgressFunc reports cumulative bytes written for the request body, out
// of total (total is -1 when the length isn't known in advance).
type ProgressFunc func(bytes int, total int)

// Client dispatches outgoing requests. A single Client may have many Calls
// in flight concurrently, each on its own connection.
type Client interface {
	// SetTLSConfig attaches the TLS context used for https:// targets.
	// Calling an https URI before this is set fails synchronously.
	SetTLSConfig(cfg libtls.TLSConfig)

	SetTimeout(read, write time.Duration)

	SetPriority(p int)
	Priority() int

	// Call dispatches method against rawURL with the given body (nil for
	// none). It returns an error immediately for synchronous failures
	// (malformed URL, https without a TLS context); everything past that
	// point is reported asynchronously through cb exactly once.
	Call(ctx context.Context, method, rawURL string, body []byte, cb ResponseFunc) error

	// CallWithProgress is Call with a progress callback invoked as the
	// request body is written.
	CallWithProgress(ctx context.Context, method, rawURL string, body []byte, progress ProgressFunc, cb ResponseFunc) error
}

// New returns a Client driven by pool for all I/O.
func New(pool libfdp.FDPool) Client {
	return newClient(pool)
}
