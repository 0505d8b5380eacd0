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
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	libbuf "github.com/nabbar/golib/buffer"
	libfd "github.com/nabbar/golib/fd"
	libhtc "github.com/nabbar/golib/httpconn"
	"github.com/nabbar/golib/socket"
	libws "github.com/nabbar/golib/websocket"
)

// handleConnection wraps an accepted descriptor, optionally starts TLS, and
// serves pipelined requests off it until the peer closes, a read or write
// fails, or a non-persistent exchange completes.
func (e *engine) handleConnection(rawFD int, peer netip.Addr) {
	f := libfd.New(rawFD, e.pool)
	f.SetReadTimeout(e.cfg.ReadTimeout)
	f.SetWriteTimeout(e.cfg.WriteTimeout)

	var once sync.Once
	finish := func() {
		once.Do(func() {
			_ = f.Close()
			atomic.AddInt32(&e.connCount, -1)
		})
	}

	if e.cfg.MaxConnectionTTL > 0 {
		time.AfterFunc(e.cfg.MaxConnectionTTL, finish)
	}

	if e.cfg.TLS != nil {
		tlsEngine, err := socket.NewServerEngine(rawFD, e.cfg.TLS)
		if err != nil {
			finish()
			return
		}
		f.SetEngine(tlsEngine)
	}

	conn := libhtc.New(f, true)
	if e.cfg.MaxHeaderSize > 0 {
		conn.SetMaxHeaderSize(e.cfg.MaxHeaderSize)
	}
	if e.cfg.MaxBodySize > 0 {
		conn.SetMaxBodySize(e.cfg.MaxBodySize)
	}

	e.serveNext(conn, peer, finish)
}

// serveNext reads one pipelined request, dispatches it to the handler, and
// either loops for the next one (persistent connections) or closes.
func (e *engine) serveNext(conn libhtc.Connection, peer netip.Addr, finish func()) {
	conn.ReadHeader(func(req *libhtc.Request, ok bool) {
		if !ok {
			finish()
			return
		}

		req.SetClientAddr(peer.String())
		conn.Push(req)

		if e.cfg.Upgrade != nil && libws.IsUpgradeRequest(*req.InputHeaders(), req.Version()) {
			if wsHandler := e.cfg.Upgrade(req); wsHandler != nil {
				e.upgradeToWebsocket(conn, req, wsHandler)
				return
			}
		}

		conn.ReadBody(req, func(ok bool) {
			if !ok {
				finish()
				return
			}

			status, hdr, body := e.handler(req)
			e.writeResponse(conn, req, status, hdr, body, func(ok bool) {
				persistent := ok && req.Persistent()
				conn.Pop()

				if !persistent {
					finish()
					return
				}

				e.serveNext(conn, peer, finish)
			})
		})
	})
}

// writeResponse serializes the handler's result as an HTTP/1.1 status line
// plus headers and body, filling in Content-Length and, for the last
// response on a closing connection, Connection: close.
func (e *engine) writeResponse(conn libhtc.Connection, req *libhtc.Request, status int, hdr libhtc.Header, body []byte, done func(ok bool)) {
	if !hdr.Has("Content-Length") {
		hdr.Set("Content-Length", strconv.Itoa(len(body)))
	}
	if !req.Persistent() {
		hdr.Set("Connection", "close")
	}

	var buf libbuf.Buffer
	if len(body) > 0 {
		buf = libbuf.NewFromBytes(body)
	}

	startLine := fmt.Sprintf("HTTP/1.1 %d %s", status, http.StatusText(status))
	conn.WriteMessage(startLine, hdr, buf, done)
}

// upgradeToWebsocket completes the handshake response and, once it has gone
// out, hands the underlying descriptor to websocket framing. From this
// point on the connection no longer goes through HTTP request/response
// dispatch: it owns the raw byte stream itself.
func (e *engine) upgradeToWebsocket(conn libhtc.Connection, req *libhtc.Request, wsHandler libws.Handler) {
	hdr := libhtc.NewHeader()
	hdr.Set("Upgrade", "websocket")
	hdr.Set("Connection", "Upgrade")
	hdr.Set("Sec-WebSocket-Accept", libws.AcceptKey(req.InputHeaders().Get("Sec-WebSocket-Key")))

	conn.WriteMessage("HTTP/1.1 101 Switching Protocols", hdr, nil, func(ok bool) {
		conn.Pop()
		if !ok {
			_ = conn.FD().Close()
			return
		}
		libws.Accept(conn.FD(), true, e.cfg.MaxBodySize, e.cfg.ReadTimeout, wsHandler)
	})
}
