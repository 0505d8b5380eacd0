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

package socket

import (
	"crypto/tls"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// pollDeadline is the short deadline set before every Read/Write attempt on
// the duplicated net.Conn backing a TLS engine, so a call that would
// otherwise block forever returns promptly as "not ready" instead, letting
// the FD pool worker move on to other descriptors.
const pollDeadline = time.Millisecond

// tlsEngine adapts a crypto/tls connection to transfer.TLSEngine (satisfied
// structurally; this package never imports transfer). It operates on a
// dup'd copy of the raw fd so the kernel socket stays open exactly as long
// as the original fd does, independent of this engine's lifetime.
type tlsEngine struct {
	conn *tls.Conn
	file *os.File
}

// NewClientEngine duplicates fd and wraps it in a TLS client connection
// using cfg. The handshake runs lazily on the first Read or Write.
func NewClientEngine(fd int, serverName string, cfg *tls.Config) (*tlsEngine, error) {
	return newEngine(fd, cfg, serverName, false)
}

// NewServerEngine duplicates fd and wraps it in a TLS server connection
// using cfg.
func NewServerEngine(fd int, cfg *tls.Config) (*tlsEngine, error) {
	return newEngine(fd, cfg, "", true)
}

func newEngine(fd int, cfg *tls.Config, serverName string, server bool) (*tlsEngine, error) {
	dup, err := unix.Dup(fd)
	if err != nil {
		return nil, ErrorDup.Error(err)
	}

	f := os.NewFile(uintptr(dup), "")
	nc, err := net.FileConn(f)
	if err != nil {
		_ = f.Close()
		return nil, ErrorFileConn.Error(err)
	}

	var tc *tls.Conn
	if server {
		tc = tls.Server(nc, cfg)
	} else {
		c := cfg
		if serverName != "" {
			clone := cfg.Clone()
			clone.ServerName = serverName
			c = clone
		}
		tc = tls.Client(nc, c)
	}

	return &tlsEngine{conn: tc, file: f}, nil
}

func (e *tlsEngine) Read(p []byte) (int, error) {
	_ = e.conn.SetReadDeadline(time.Now().Add(pollDeadline))

	n, err := e.conn.Read(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil
		}
		return n, err
	}
	return n, nil
}

func (e *tlsEngine) Write(p []byte) (int, error) {
	_ = e.conn.SetWriteDeadline(time.Now().Add(pollDeadline))

	n, err := e.conn.Write(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

// WantsRead and WantsWrite always report false: crypto/tls exposes no way
// to ask whether it holds buffered plaintext or a pending outbound record,
// so a TLS transfer can only be re-attempted when the underlying fd next
// reports readiness through epoll.
func (e *tlsEngine) WantsRead() bool  { return false }
func (e *tlsEngine) WantsWrite() bool { return false }

// Close shuts down the TLS session and closes the duplicated fd; it does
// not touch the original fd passed to NewClientEngine/NewServerEngine.
func (e *tlsEngine) Close() error {
	return e.conn.Close()
}

// ConnectionState exposes the negotiated TLS parameters once the handshake
// has completed.
func (e *tlsEngine) ConnectionState() tls.ConnectionState {
	return e.conn.ConnectionState()
}
