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
	"math"
	"strconv"
	"strings"
	"sync"

	libbuf "github.com/nabbar/golib/buffer"
	libfd "github.com/nabbar/golib/fd"
)

type conn struct {
	mu sync.Mutex

	f        libfd.FD
	incoming bool

	input libbuf.Buffer

	maxHeader int
	maxBody   int

	requests []*Request
}

func newConnection(f libfd.FD, incoming bool) *conn {
	return &conn{
		f:         f,
		incoming:  incoming,
		input:     libbuf.New(),
		maxHeader: math.MaxInt32,
		maxBody:   math.MaxInt32,
	}
}

func (c *conn) FD() libfd.FD      { return c.f }
func (c *conn) IsIncoming() bool  { return c.incoming }

func (c *conn) MaxHeaderSize() int     { return c.maxHeader }
func (c *conn) SetMaxHeaderSize(n int) { c.maxHeader = n }
func (c *conn) MaxBodySize() int       { return c.maxBody }
func (c *conn) SetMaxBodySize(n int)   { c.maxBody = n }

func (c *conn) NumRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *conn) Push(req *Request) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
}

func (c *conn) Pop() {
	c.mu.Lock()
	if len(c.requests) == 0 {
		c.mu.Unlock()
		return
	}
	req := c.requests[0]
	c.requests = c.requests[1:]
	c.mu.Unlock()

	req.complete()
}

func (c *conn) Active() (*Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil, false
	}
	return c.requests[0], true
}

func (c *conn) CheckActive(req *Request) bool {
	active, ok := c.Active()
	return ok && active == req
}

func (c *conn) Close() error {
	err := c.f.Close()

	c.mu.Lock()
	reqs := c.requests
	c.requests = nil
	c.mu.Unlock()

	for _, r := range reqs {
		r.complete()
	}

	return err
}

// ReadHeader reads the header block and parses the leading start line per
// IsIncoming: a request line for a server connection, a status line for a
// client connection.
func (c *conn) ReadHeader(done func(req *Request, ok bool)) {
	c.f.ReadUntil(c.input, c.maxHeader, "\r\n\r\n", func(ok bool) {
		if !ok {
			done(nil, false)
			return
		}

		startLine, hdr, err := parseHeaderBlock(c.input, c.maxHeader)
		if err != nil {
			done(nil, false)
			return
		}

		req := NewRequest()
		req.inHeader = hdr

		if c.incoming {
			method, uri, version, ok2 := parseRequestLine(startLine)
			if !ok2 {
				done(nil, false)
				return
			}
			req.method, req.uri, req.version = method, uri, version
		} else {
			version, code, msg, ok2 := parseStatusLine(startLine)
			if !ok2 {
				done(nil, false)
				return
			}
			req.version, req.statusCode, req.statusMsg = version, code, msg
		}

		req.persistent = determinePersistence(req.version, hdr)
		done(req, true)
	})
}

// ReadBody decides the BodyMode from req's already-parsed input headers and
// reads accordingly.
func (c *conn) ReadBody(req *Request, done func(ok bool)) {
	mode, length := determineBodyMode(c.incoming, req.inHeader)

	switch mode {
	case BodyNone:
		done(true)

	case BodyContentLength:
		if c.maxBody > 0 && length > c.maxBody {
			done(false)
			return
		}
		c.f.Read(req.inBody, length, done)

	case BodyChunked:
		c.readChunks(req, done)

	case BodyUntilClose:
		c.readUntilClose(req, done)

	default:
		done(false)
	}
}

func (c *conn) WriteMessage(startLine string, hdr Header, body libbuf.Buffer, done func(ok bool)) {
	out := libbuf.New()
	_ = out.AddString(startLine)
	_ = out.AddString("\r\n")
	_ = hdr.WriteTo(out)
	_ = out.AddString("\r\n")

	if body != nil && body.Length() > 0 {
		_ = out.AddBuffer(body)
	}

	c.f.Write(out, 0, done)
}

func determineBodyMode(incoming bool, hdr Header) (BodyMode, int) {
	if strings.EqualFold(strings.TrimSpace(hdr.Get("Transfer-Encoding")), "chunked") {
		return BodyChunked, 0
	}

	if cl := hdr.Get("Content-Length"); cl != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(cl)); err == nil && n >= 0 {
			return BodyContentLength, n
		}
	}

	if incoming {
		return BodyNone, 0
	}

	return BodyUntilClose, 0
}

func determinePersistence(version string, hdr Header) bool {
	connHdr := strings.ToLower(strings.TrimSpace(hdr.Get("Connection")))

	if strings.EqualFold(version, "HTTP/1.0") {
		return connHdr == "keep-alive"
	}

	return connHdr != "close"
}

// parseHeaderBlock pulls lines off buf until a blank line, returning the
// start line and the headers parsed from every line after it.
func parseHeaderBlock(buf libbuf.Buffer, max int) (string, Header, error) {
	var lines []string
	remaining := max

	for {
		line, found := buf.ReadLine(remaining, "\r\n")
		if !found {
			return "", Header{}, ErrorHeaderTooLarge.Error(nil)
		}
		remaining -= len(line) + 2
		if line == "" {
			break
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return "", Header{}, ErrorMalformedStartLine.Error(nil)
	}

	return lines[0], ParseHeaderLines(lines[1:]), nil
}

func parseRequestLine(line string) (method, uri, version string, ok bool) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func parseStatusLine(line string) (version string, code int, msg string, ok bool) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", 0, "", false
	}

	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, "", false
	}

	if len(parts) == 3 {
		msg = parts[2]
	}

	return parts[0], n, msg, true
}
