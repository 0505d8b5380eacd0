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
	"encoding/binary"
	"time"
)

// readHeader reads the first two frame header bytes, then however many
// extended-length and mask bytes the first two imply, before moving on to
// the payload.
func (c *conn) readHeader() {
	c.f.Read(c.input, 2, func(ok bool) {
		if !ok {
			c.protocolClose()
			return
		}

		var header [2]byte
		c.input.Remove(header[:], 2)

		maskBit := header[1]&0x80 != 0
		if maskBit != c.incoming {
			c.protocolClose()
			return
		}

		size := header[1] & 0x7f
		extra := 0
		if maskBit {
			extra += 4
		}
		if size == 126 {
			extra += 2
		}
		if size == 127 {
			extra += 8
		}

		if extra == 0 {
			c.gotHeader(header, maskBit, size, nil)
			return
		}

		c.f.Read(c.input, extra, func(ok bool) {
			if !ok {
				c.protocolClose()
				return
			}
			rest := make([]byte, extra)
			c.input.Remove(rest, extra)
			c.gotHeader(header, maskBit, size, rest)
		})
	})
}

// gotHeader decodes the extended length and mask (if present), validates
// control-frame fragmentation and length rules, and moves on to the body.
func (c *conn) gotHeader(header [2]byte, maskBit bool, size byte, rest []byte) {
	var length uint64
	off := 0

	switch size {
	case 126:
		length = uint64(binary.BigEndian.Uint16(rest[:2]))
		off = 2
	case 127:
		length = binary.BigEndian.Uint64(rest[:8])
		if length&(1<<63) != 0 {
			c.protocolClose()
			return
		}
		off = 8
	default:
		length = uint64(size)
	}

	opcode := OpCode(header[0] & 0x0f)
	finish := header[0]&0x80 != 0

	if opcode.IsControl() && (!finish || length > 125) {
		c.protocolClose()
		return
	}

	if opcode != OpContinue {
		c.msg = c.msg[:0]
		c.msgOpcode = opcode
	}

	if c.maxBodySize > 0 && uint64(len(c.msg))+length > uint64(c.maxBodySize) {
		c.Close(StatusTooBig, "")
		return
	}

	if maskBit {
		copy(c.mask[:], rest[off:off+4])
	}

	c.opcode = opcode
	c.finish = finish
	c.readBody(length, maskBit)
}

func (c *conn) readBody(length uint64, masked bool) {
	if length == 0 {
		c.handleFrame(nil)
		return
	}

	c.f.Read(c.input, int(length), func(ok bool) {
		if !ok {
			c.protocolClose()
			return
		}

		payload := make([]byte, length)
		c.input.Remove(payload, int(length))

		if masked {
			for i := range payload {
				payload[i] ^= c.mask[i%4]
			}
		}

		c.handleFrame(payload)
	})
}

// handleFrame dispatches one fully-read frame: control frames are handled
// immediately, data frames are reassembled across fragments and delivered
// to the handler once FIN arrives.
func (c *conn) handleFrame(payload []byte) {
	opcode := c.opcode

	switch opcode {
	case OpContinue, OpText, OpBinary:
		c.msg = append(c.msg, payload...)
		if c.finish {
			msg := c.msg
			c.msg = nil
			c.deliverMessage(msg)
		}

	case OpClose:
		status := StatusNone
		var msg string
		if len(payload) >= 2 {
			status = Status(binary.BigEndian.Uint16(payload[:2]))
			msg = string(payload[2:])
		}
		c.Close(status, msg)
		return

	case OpPing:
		c.onPing(string(payload))

	case OpPong:
		c.onPong()

	default:
		c.protocolClose()
		return
	}

	if c.IsActive() {
		c.readHeader()
	}
}

// deliverMessage hands a complete message to the handler and rearms the
// ping schedule, since receiving a full message counts as activity.
func (c *conn) deliverMessage(data []byte) {
	c.mu.Lock()
	c.msgReceived++
	binaryMsg := c.msgOpcode == OpBinary
	c.mu.Unlock()

	c.schedulePing()

	if c.handler != nil {
		c.handler.OnMessage(binaryMsg, data)
	}
}

func (c *conn) onPing(payload string) {
	c.mu.Lock()
	c.pongPayload = payload
	c.mu.Unlock()
	c.schedulePong()
}

func (c *conn) onPong() {
	c.schedulePing()
}

// schedulePing arms (or rearms) the idle-ping timer: if nothing else is
// read from the peer within the delay, a PING is sent to keep the
// connection alive and detect a dead peer.
func (c *conn) schedulePing() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}

	delay := pingFloor
	if c.readTimeout > pingCeilingMin {
		delay = c.readTimeout / 2
	}

	if c.pingTimer == nil {
		c.pingTimer = time.AfterFunc(delay, c.sendPing)
	} else {
		c.pingTimer.Reset(delay)
	}
}

func (c *conn) sendPing() {
	if !c.IsActive() {
		return
	}
	c.writeFrame(OpPing, true, nil)
}

// schedulePong aggregates a reply to a PING: if several pings arrive in a
// short window, only the most recent payload is answered once the
// aggregation delay elapses.
func (c *conn) schedulePong() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}

	if c.pongTimer == nil {
		c.pongTimer = time.AfterFunc(pongAggregation, c.sendPong)
	} else {
		c.pongTimer.Reset(pongAggregation)
	}
}

func (c *conn) sendPong() {
	c.mu.Lock()
	payload := c.pongPayload
	c.pongPayload = ""
	c.mu.Unlock()

	if !c.IsActive() {
		return
	}
	c.writeFrame(OpPong, true, []byte(payload))
}
