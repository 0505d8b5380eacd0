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
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	libbuf "github.com/nabbar/golib/buffer"
	libtls "github.com/nabbar/golib/certificates"
	libfd "github.com/nabbar/golib/fd"
	libfdp "github.com/nabbar/golib/fdpool"
	libhtc "github.com/nabbar/golib/httpconn"
)

type client struct {
	mu   sync.Mutex
	pool libfdp.FDPool

	tls      libtls.TLSConfig
	readTO   time.Duration
	writeTO  time.Duration
	priority int
}

func newClient(pool libfdp.FDPool) *client {
	return &client{pool: pool}
}

func (c *client) SetTLSConfig(cfg libtls.TLSConfig) {
	c.mu.Lock()
	c.tls = cfg
	c.mu.Unlock()
}

func (c *client) SetTimeout(read, write time.Duration) {
	c.mu.Lock()
	c.readTO, c.writeTO = read, write
	c.mu.Unlock()
}

func (c *client) SetPriority(p int) {
	c.mu.Lock()
	c.priority = p
	c.mu.Unlock()
}

func (c *client) Priority() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.priority
}

func (c *client) Call(ctx context.Context, method, rawURL string, body []byte, cb ResponseFunc) error {
	return c.CallWithProgress(ctx, method, rawURL, body, nil, cb)
}

func (c *client) CallWithProgress(ctx context.Context, method, rawURL string, body []byte, progress ProgressFunc, cb ResponseFunc) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ErrorInvalidURL.Error(err)
	}

	https := strings.EqualFold(u.Scheme, "https")

	c.mu.Lock()
	tlsCfg := c.tls
	readTO, writeTO := c.readTO, c.writeTO
	c.mu.Unlock()

	if https && tlsCfg == nil {
		return ErrorMissingTLSConfig.Error(nil)
	}

	host, port := splitHostPort(u.Host, https)
	proxyURL := proxyForURL(u)

	go c.dispatch(ctx, dialPlan{
		https:    https,
		host:     host,
		port:     port,
		proxyURL: proxyURL,
		target:   u,
		method:   method,
		body:     body,
		tls:      tlsCfg,
		readTO:   readTO,
		writeTO:  writeTO,
		progress: progress,
		cb:       cb,
	})

	return nil
}

// dialPlan carries everything a dispatch needs, gathered synchronously in
// CallWithProgress before the work moves to a background goroutine for DNS
// resolution and connection setup.
type dialPlan struct {
	https    bool
	host     string
	port     int
	proxyURL *url.URL
	target   *url.URL
	method   string
	body     []byte
	tls      libtls.TLSConfig
	readTO   time.Duration
	writeTO  time.Duration
	progress ProgressFunc
	cb       ResponseFunc
}

func (c *client) sendRequest(f libfd.FD, host string, u *url.URL, method string, body []byte, fullURIForm bool, progress ProgressFunc, cb ResponseFunc) {
	conn := libhtc.New(f, false)

	path := u.RequestURI()
	if fullURIForm {
		path = u.String()
	}

	hdr := libhtc.NewHeader()
	hdr.Set("Host", host)
	hdr.Set("Connection", "close")

	var bodyBuf libbuf.Buffer
	if len(body) > 0 {
		bodyBuf = libbuf.NewFromBytes(body)
		hdr.Set("Content-Length", strconv.Itoa(len(body)))
	}

	startLine := fmt.Sprintf("%s %s HTTP/1.1", strings.ToUpper(method), path)

	conn.WriteMessage(startLine, hdr, bodyBuf, func(ok bool) {
		if !ok {
			_ = conn.Close()
			cb(nil, ConnConnect)
			return
		}

		if progress != nil {
			progress(len(body), len(body))
		}

		conn.ReadHeader(func(req *libhtc.Request, ok bool) {
			if !ok {
				_ = conn.Close()
				cb(nil, ConnBadResponse)
				return
			}

			conn.ReadBody(req, func(ok bool) {
				_ = conn.Close()
				if !ok {
					cb(nil, ConnEOF)
					return
				}
				cb(req, ConnOK)
			})
		})
	})
}
