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

// Package netkind defines the error kinds shared across the networking core
// (FDPool, socket, HTTP connection, HTTP client/server, WebSocket), built on
// top of the errors package's CodeError registry the same way every other
// package in the module reports errors.
package netkind

import "github.com/nabbar/golib/errors"

const (
	// IOError: a socket syscall failed.
	IOError errors.CodeError = iota + errors.MinPkgNetAddr + 200
	// EOFError: orderly peer close on a stream still being read.
	EOFError
	// TLSError: handshake or record-layer error.
	TLSError
	// TimeoutError: a Transfer exceeded its assigned timeout.
	TimeoutError
	// ProtocolError: malformed HTTP framing or WebSocket framing.
	ProtocolError
	// LimitError: a configured header/body/message size limit was exceeded.
	LimitError
	// ConnectError: DNS resolution, connect, or proxy CONNECT failed.
	ConnectError
	// CanceledError: flush/close/cancel was issued before completion.
	CanceledError
)

func init() {
	errors.RegisterIdFctMessage(IOError, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case IOError:
		return "socket I/O error"
	case EOFError:
		return "peer closed the connection"
	case TLSError:
		return "TLS handshake or record error"
	case TimeoutError:
		return "operation exceeded its timeout"
	case ProtocolError:
		return "malformed protocol framing"
	case LimitError:
		return "configured size limit exceeded"
	case ConnectError:
		return "connect failed"
	case CanceledError:
		return "operation canceled before completion"
	}

	return ""
}
