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

package httpserver

import (
	"context"
	"crypto/tls"
	"time"

	libnad "github.com/nabbar/golib/netaddr"

	libhtc "github.com/nabbar/golib/httpconn"

	libfdp "github.com/nabbar/golib/fdpool"
	libws "github.com/nabbar/golib/websocket"
)

// HandlerFunc produces the response for one pipelined request: the status
// code, the response headers (Content-Length and, for non-persistent
// connections, Connection are filled in automatically if absent), and the
// response body.
type HandlerFunc func(req *libhtc.Request) (status int, hdr libhtc.Header, body []byte)

// UpgradeFunc is consulted for every request that looks like a WebSocket
// handshake before HandlerFunc runs. Returning a non-nil Handler accepts
// the upgrade: the engine completes the handshake itself and hands the
// connection to websocket framing instead of continuing the HTTP
// request/response cycle. Returning nil falls back to HandlerFunc, which
// may then answer with its own rejection status.
type UpgradeFunc func(req *libhtc.Request) libws.Handler

// EngineConfig describes one listening port driven by the raw-fd accept
// loop, mirroring the fields the original keeps on its base server: a
// bind address, an optional TLS configuration, connection accounting, a
// per-connection lifetime cap, and an address allow/deny filter.
type EngineConfig struct {
	// Bind is the "host:port" address to listen on.
	Bind string
	// TLS, if non-nil, makes the engine accept TLS connections.
	TLS *tls.Config

	// MaxConnections caps the number of simultaneously open connections;
	// zero means unlimited.
	MaxConnections uint
	// ConnectionBacklog is the listen() backlog.
	ConnectionBacklog int
	// MaxConnectionTTL, if non-zero, closes a connection this long after
	// it was accepted regardless of activity.
	MaxConnectionTTL time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	MaxHeaderSize int
	MaxBodySize   int

	// Filter, if non-nil, is consulted for every accepted peer address
	// before a connection is created for it.
	Filter libnad.AddressFilter

	// Upgrade, if non-nil, is offered the chance to take over any request
	// that carries WebSocket upgrade headers.
	Upgrade UpgradeFunc
}

// Engine is the accept-loop counterpart to Server: instead of handing
// connections to net/http, it drives each one directly through the
// epoll-backed fd/fdpool/httpconn stack, dispatching pipelined requests to
// a HandlerFunc.
type Engine interface {
	// Serve binds and listens, then runs the accept loop until ctx is
	// done or an unrecoverable error occurs.
	Serve(ctx context.Context) error
	// Stop closes the listening socket, ending the accept loop.
	Stop() error
	// ConnectionCount reports the number of currently open connections.
	ConnectionCount() int
}

// NewEngine builds an Engine bound to pool, serving cfg and dispatching
// requests to handler. pool must already be started.
func NewEngine(pool libfdp.FDPool, cfg EngineConfig, handler HandlerFunc) Engine {
	return &engine{
		pool:    pool,
		cfg:     cfg,
		handler: handler,
	}
}
