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

package websocket

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	libbuf "github.com/nabbar/golib/buffer"
	libfd "github.com/nabbar/golib/fd"
)

const (
	maxFrameSize    = 0xffff
	pongAggregation = 5 * time.Second
	pingFloor       = 5 * time.Second
	pingCeilingMin  = 10 * time.Second
)

type conn struct {
	f           libfd.FD
	incoming    bool
	input       libbuf.Buffer
	maxBodySize int
	readTimeout time.Duration
	handler     Handler

	mu         sync.Mutex
	active     bool
	closeFired bool

	opcode    OpCode
	msgOpcode OpCode
	mask      [4]byte
	finish    bool
	msg       []byte

	pongPayload string
	pingTimer   *time.Timer
	pongTimer   *time.Timer

	msgSent     uint64
	msgReceived uint64
}

func newConn(f libfd.FD, incoming bool, maxBodySize int, readTimeout time.Duration, handler Handler) *conn {
	c := &conn{
		f:           f,
		incoming:    incoming,
		input:       libbuf.New(),
		maxBodySize: maxBodySize,
		readTimeout: readTimeout,
		handler:     handler,
		active:      true,
	}

	if handler != nil {
		handler.OnOpen()
	}

	c.readHeader()
	c.schedulePing()

	return c
}

func (c *conn) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *conn) MessagesSent() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgSent
}

func (c *conn) MessagesReceived() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgReceived
}

func (c *conn) Send(data []byte) error      { return c.send(OpText, data) }
func (c *conn) SendBinary(data []byte) error { return c.send(OpBinary, data) }

func (c *conn) send(op OpCode, data []byte) error {
	if !c.IsActive() {
		return ErrorNotActive.Error(nil)
	}

	i := 0
	for {
		end := i + maxFrameSize
		if end > len(data) {
			end = len(data)
		}

		opcode := op
		if i > 0 {
			opcode = OpContinue
		}
		finish := end == len(data)

		c.writeFrame(opcode, finish, data[i:end])
		i = end
		if finish {
			break
		}
	}

	c.mu.Lock()
	c.msgSent++
	c.mu.Unlock()

	return nil
}

func (c *conn) Ping(payload string) {
	if !c.IsActive() {
		return
	}
	c.writeFrame(OpPing, true, []byte(payload))
}

// Close sends a CLOSE frame (unless the connection is already inactive),
// marks it inactive, and notifies the handler exactly once.
func (c *conn) Close(status Status, msg string) {
	c.mu.Lock()
	if c.closeFired {
		c.mu.Unlock()
		return
	}
	c.closeFired = true
	wasActive := c.active
	c.active = false
	if c.pingTimer != nil {
		c.pingTimer.Stop()
	}
	if c.pongTimer != nil {
		c.pongTimer.Stop()
	}
	c.mu.Unlock()

	if wasActive {
		var payload [2]byte
		binary.BigEndian.PutUint16(payload[:], uint16(status))
		c.writeFrame(OpClose, true, payload[:])
	}

	if c.handler != nil {
		c.handler.OnClose(status, msg)
	}
}

func (c *conn) protocolClose() {
	c.Close(StatusProtocol, "")
}

// writeFrame serializes one frame. Frames sent from the client side (not
// incoming) are masked with a fresh cryptographically random key, per RFC
// 6455's requirement that client-to-server traffic always be masked.
func (c *conn) writeFrame(opcode OpCode, finish bool, payload []byte) {
	var header [14]byte
	n := 2

	if finish {
		header[0] = 0x80
	}
	header[0] |= byte(opcode)

	length := len(payload)
	switch {
	case length < 126:
		header[1] = byte(length)
	case length <= 0xffff:
		header[1] = 126
		binary.BigEndian.PutUint16(header[2:4], uint16(length))
		n = 4
	default:
		header[1] = 127
		binary.BigEndian.PutUint64(header[2:10], uint64(length))
		n = 10
	}

	masked := !c.incoming
	var mask [4]byte
	if masked {
		header[1] |= 0x80
		_, _ = rand.Read(mask[:])
		copy(header[n:n+4], mask[:])
		n += 4
	}

	out := libbuf.New()
	_ = out.Add(header[:n])

	if length > 0 {
		if masked {
			body := make([]byte, length)
			for i, b := range payload {
				body[i] = b ^ mask[i%4]
			}
			_ = out.Add(body)
		} else {
			_ = out.Add(payload)
		}
	}

	c.f.Write(out, 0, func(ok bool) {
		if !ok || opcode == OpClose {
			_ = c.f.Close()
		}
	})
}
