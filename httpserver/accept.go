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
	"net"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	libfd "github.com/nabbar/golib/fd"
	libfdp "github.com/nabbar/golib/fdpool"

	"golang.org/x/sys/unix"
)

const (
	acceptBackoffMin = time.Millisecond
	acceptBackoffMax = time.Second
)

type engine struct {
	pool    libfdp.FDPool
	cfg     EngineConfig
	handler HandlerFunc

	mu        sync.Mutex
	listenRaw int
	listenFD  libfd.FD
	stopped   bool

	connCount int32
}

func (e *engine) Serve(ctx context.Context) error {
	rawFD, err := bindListen(e.cfg.Bind, e.cfg.ConnectionBacklog)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.listenRaw = rawFD
	e.listenFD = libfd.New(rawFD, e.pool)
	e.mu.Unlock()

	e.acceptLoop(ctx)
	return nil
}

func (e *engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || e.listenFD == nil {
		return nil
	}

	e.stopped = true
	return e.listenFD.Close()
}

func (e *engine) ConnectionCount() int {
	return int(atomic.LoadInt32(&e.connCount))
}

// acceptLoop drains one connection at a time from the listening socket,
// backing off exponentially on repeated accept failures (a tight loop on
// EMFILE would otherwise burn CPU) and holding back new accepts while
// MaxConnections is reached.
func (e *engine) acceptLoop(ctx context.Context) {
	backoff := acceptBackoffMin

	var onReadable func(ok bool)
	onReadable = func(ok bool) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		e.mu.Lock()
		stopped := e.stopped
		lfd := e.listenFD
		raw := e.listenRaw
		e.mu.Unlock()

		if stopped || lfd == nil {
			return
		}

		if !ok {
			lfd.CanRead(onReadable)
			return
		}

		if e.cfg.MaxConnections > 0 && uint(e.ConnectionCount()) >= e.cfg.MaxConnections {
			time.AfterFunc(acceptBackoffMin, func() { lfd.CanRead(onReadable) })
			return
		}

		clientFD, sa, aerr := unix.Accept(raw)
		if aerr != nil {
			if aerr == unix.EAGAIN || aerr == unix.EWOULDBLOCK {
				lfd.CanRead(onReadable)
				return
			}

			delay := backoff
			backoff *= 2
			if backoff > acceptBackoffMax {
				backoff = acceptBackoffMax
			}
			time.AfterFunc(delay, func() { lfd.CanRead(onReadable) })
			return
		}
		backoff = acceptBackoffMin

		peer := sockaddrToAddr(sa)
		if e.cfg.Filter != nil && !e.cfg.Filter.IsAllowed(peer) {
			_ = unix.Close(clientFD)
			lfd.CanRead(onReadable)
			return
		}

		_ = unix.SetNonblock(clientFD, true)
		atomic.AddInt32(&e.connCount, 1)
		e.handleConnection(clientFD, peer)

		lfd.CanRead(onReadable)
	}

	e.listenFD.CanRead(onReadable)
}

// bindListen creates a non-blocking listening socket for bindAddr, which
// must be a "host:port" pair; an empty host binds to the IPv4 wildcard.
func bindListen(bindAddr string, backlog int) (int, error) {
	host, portStr, err := net.SplitHostPort(bindAddr)
	if err != nil {
		return -1, ErrorEngineBind.Error(err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return -1, ErrorEngineBind.Error(err)
	}

	ip := net.IPv4zero
	if host != "" {
		ip = net.ParseIP(host)
		if ip == nil {
			return -1, ErrorEngineBind.Error(nil)
		}
	}

	domain := unix.AF_INET
	if ip.To4() == nil {
		domain = unix.AF_INET6
	}

	rawFD, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, ErrorEngineBind.Error(err)
	}

	_ = unix.SetsockoptInt(rawFD, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)

	if domain == unix.AF_INET {
		var addr [4]byte
		copy(addr[:], ip.To4())
		err = unix.Bind(rawFD, &unix.SockaddrInet4{Port: port, Addr: addr})
	} else {
		var addr [16]byte
		copy(addr[:], ip.To16())
		err = unix.Bind(rawFD, &unix.SockaddrInet6{Port: port, Addr: addr})
	}
	if err != nil {
		_ = unix.Close(rawFD)
		return -1, ErrorEngineBind.Error(err)
	}

	if backlog <= 0 {
		backlog = 128
	}
	if err = unix.Listen(rawFD, backlog); err != nil {
		_ = unix.Close(rawFD)
		return -1, ErrorEngineListen.Error(err)
	}

	return rawFD, nil
}

func sockaddrToAddr(sa unix.Sockaddr) netip.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrFrom4(v.Addr)
	case *unix.SockaddrInet6:
		return netip.AddrFrom16(v.Addr)
	}
	return netip.Addr{}
}
