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

package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	libfd "github.com/nabbar/golib/fd"
	libhtc "github.com/nabbar/golib/httpconn"
	"github.com/nabbar/golib/socket"
	"golang.org/x/sys/unix"
)

// dispatch resolves the connect target (the proxy, if one applies, or the
// request host otherwise), dials a non-blocking socket through the FD
// pool, and continues once the connection (and any proxy tunnel) is ready.
// It runs on its own goroutine so the DNS lookup can block without tying
// up the pool worker or the event loop.
func (c *client) dispatch(ctx context.Context, plan dialPlan) {
	connectHost, connectPort := plan.host, plan.port
	viaProxy := plan.proxyURL != nil

	if viaProxy {
		connectHost, connectPort = splitHostPort(plan.proxyURL.Host, false)
	}

	ips, err := net.DefaultResolver.LookupHost(ctx, connectHost)
	if err != nil || len(ips) == 0 {
		plan.cb(nil, ConnConnect)
		return
	}

	rawFD, err := dialSocket(ips[0], connectPort)
	if err != nil {
		plan.cb(nil, ConnConnect)
		return
	}

	f := libfd.New(rawFD, c.pool)
	f.SetReadTimeout(plan.readTO)
	f.SetWriteTimeout(plan.writeTO)

	f.CanWrite(func(ok bool) {
		if !ok || socketHasError(rawFD) {
			_ = f.Close()
			plan.cb(nil, ConnConnect)
			return
		}

		if viaProxy && plan.https {
			c.tunnelThenSend(f, plan)
			return
		}

		if plan.https {
			engine, eerr := socket.NewClientEngine(rawFD, plan.host, plan.tls.TLS(plan.host))
			if eerr != nil {
				_ = f.Close()
				plan.cb(nil, ConnConnect)
				return
			}
			f.SetEngine(engine)
		}

		c.sendRequest(f, plan.host, plan.target, plan.method, plan.body, viaProxy && !plan.https, plan.progress, plan.cb)
	})
}

// tunnelThenSend issues a CONNECT request through an already-dialed proxy
// connection, then starts TLS and the real request over the tunnel once
// the proxy answers 200.
func (c *client) tunnelThenSend(f libfd.FD, plan dialPlan) {
	conn := libhtc.New(f, false)
	authority := fmt.Sprintf("%s:%d", plan.host, plan.port)

	hdr := libhtc.NewHeader()
	hdr.Set("Host", authority)

	conn.WriteMessage("CONNECT "+authority+" HTTP/1.1", hdr, nil, func(ok bool) {
		if !ok {
			plan.cb(nil, ConnConnect)
			return
		}

		conn.ReadHeader(func(req *libhtc.Request, ok bool) {
			if !ok || req.StatusCode() != 200 {
				_ = conn.Close()
				plan.cb(nil, ConnBadResponse)
				return
			}

			engine, eerr := socket.NewClientEngine(f.FD(), plan.host, plan.tls.TLS(plan.host))
			if eerr != nil {
				_ = conn.Close()
				plan.cb(nil, ConnConnect)
				return
			}
			f.SetEngine(engine)

			c.sendRequest(f, plan.host, plan.target, plan.method, plan.body, false, plan.progress, plan.cb)
		})
	})
}

// dialSocket creates a non-blocking TCP socket and starts an asynchronous
// connect to ip:port. A nil error with EINPROGRESS in flight is the normal
// case; the caller learns the outcome from the fd's next write-readiness.
func dialSocket(ip string, port int) (int, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return -1, ErrorConnect.Error(nil)
	}

	if v4 := parsed.To4(); v4 != nil {
		rawFD, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
		if err != nil {
			return -1, ErrorSocket.Error(err)
		}

		var addr [4]byte
		copy(addr[:], v4)

		err = unix.Connect(rawFD, &unix.SockaddrInet4{Port: port, Addr: addr})
		if err != nil && err != unix.EINPROGRESS {
			_ = unix.Close(rawFD)
			return -1, ErrorConnect.Error(err)
		}
		return rawFD, nil
	}

	v6 := parsed.To16()
	rawFD, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, ErrorSocket.Error(err)
	}

	var addr [16]byte
	copy(addr[:], v6)

	err = unix.Connect(rawFD, &unix.SockaddrInet6{Port: port, Addr: addr})
	if err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(rawFD)
		return -1, ErrorConnect.Error(err)
	}
	return rawFD, nil
}

func socketHasError(rawFD int) bool {
	errno, err := unix.GetsockoptInt(rawFD, unix.SOL_SOCKET, unix.SO_ERROR)
	return err != nil || errno != 0
}

func splitHostPort(hostport string, https bool) (string, int) {
	defaultPort := 80
	if https {
		defaultPort = 443
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, defaultPort
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, defaultPort
	}

	return host, port
}

// proxyForURL consults the standard HTTP_PROXY/HTTPS_PROXY/NO_PROXY
// environment variables via net/http's own resolver, which already
// implements the CIDR and domain-suffix matching rules for NO_PROXY
// correctly; reimplementing that logic would just be a worse copy of the
// stdlib's.
func proxyForURL(u *url.URL) *url.URL {
	proxyURL, err := http.ProxyFromEnvironment(&http.Request{URL: u})
	if err != nil {
		return nil
	}
	return proxyURL
}
