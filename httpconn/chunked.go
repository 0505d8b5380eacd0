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

import "strings"

// closeReadChunk bounds each individual read attempted while draining a
// body that runs until the peer closes the connection.
const closeReadChunk = 4096

// readChunks reads one "<hex size>[;ext]\r\n" line and dispatches to
// readChunk; it loops back here after every non-terminal chunk until the
// zero-size terminator is reached.
func (c *conn) readChunks(req *Request, done func(ok bool)) {
	c.f.ReadUntil(c.input, 1024, "\r\n", func(ok bool) {
		if !ok {
			done(false)
			return
		}

		line, found := c.input.ReadLine(1024, "\r\n")
		if !found {
			done(false)
			return
		}

		sizeField := line
		if idx := strings.IndexByte(line, ';'); idx >= 0 {
			sizeField = line[:idx]
		}

		size, err := parseChunkSize(sizeField)
		if err != nil {
			done(false)
			return
		}

		c.readChunk(req, size, done)
	})
}

// readChunk reads size bytes plus the trailing CRLF, moves size bytes into
// the request's input buffer, and either reads the next chunk or, for a
// zero-size chunk, moves on to the trailer.
func (c *conn) readChunk(req *Request, size uint32, done func(ok bool)) {
	if size == 0 {
		c.readChunkTrailer(req, done)
		return
	}

	if c.maxBody > 0 && int(size)+req.inBody.Length() > c.maxBody {
		done(false)
		return
	}

	c.f.Read(c.input, int(size)+2, func(ok bool) {
		if !ok {
			done(false)
			return
		}

		c.input.RemoveBuffer(req.inBody, int(size))
		c.input.Drain(2)
		c.readChunks(req, done)
	})
}

// readChunkTrailer consumes the optional trailer header block following
// the terminal zero-size chunk and merges any trailer fields into the
// request's input headers.
func (c *conn) readChunkTrailer(req *Request, done func(ok bool)) {
	c.f.ReadUntil(c.input, c.maxHeader, "\r\n", func(ok bool) {
		if !ok {
			done(false)
			return
		}

		if c.input.IndexOf("\r\n") == 0 {
			c.input.Drain(2)
			done(true)
			return
		}

		c.f.ReadUntil(c.input, c.maxHeader, "\r\n\r\n", func(ok bool) {
			if !ok {
				done(false)
				return
			}

			var lines []string
			for {
				line, found := c.input.ReadLine(c.maxHeader, "\r\n")
				if !found {
					done(false)
					return
				}
				if line == "" {
					break
				}
				lines = append(lines, line)
			}

			req.inHeader.Merge(ParseHeaderLines(lines))
			done(true)
		})
	})
}

func parseChunkSize(field string) (uint32, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return 0, ErrorChunkMalformed.Error(nil)
	}

	var n uint64
	for _, r := range field {
		var digit uint64
		switch {
		case r >= '0' && r <= '9':
			digit = uint64(r - '0')
		case r >= 'a' && r <= 'f':
			digit = uint64(r-'a') + 10
		case r >= 'A' && r <= 'F':
			digit = uint64(r-'A') + 10
		default:
			return 0, ErrorChunkMalformed.Error(nil)
		}
		n = n<<4 | digit
	}

	return uint32(n), nil
}

// readUntilClose drains the fd in fixed-size steps until either the peer
// closes the connection (the stopping condition for this mode) or
// MaxBodySize is reached. Unlike the fixed-length and chunked modes, this
// approximates the original's raw buffer-draining read loop: the FD
// abstraction here only offers bounded reads of a known length, so a read
// that fails partway is treated as the expected end-of-body signal rather
// than an error.
func (c *conn) readUntilClose(req *Request, done func(ok bool)) {
	var step func(ok bool)
	step = func(ok bool) {
		if !ok {
			done(true)
			return
		}
		if c.maxBody > 0 && req.inBody.Length() >= c.maxBody {
			done(true)
			return
		}
		c.f.Read(req.inBody, closeReadChunk, step)
	}
	step(true)
}
