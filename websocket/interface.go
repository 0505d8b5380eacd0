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

// Package websocket implements RFC 6455 framing layered directly on top of
// an fd.FD: the handshake key computation, the frame read state machine
// (header, extended length, mask, payload), fragmented-message reassembly,
// masking in both directions, and the ping/pong aggregation that keeps a
// connection alive without flooding it with control frames.
package websocket

import (
	"time"

	libfd "github.com/nabbar/golib/fd"
)

// OpCode identifies the kind of frame, per RFC 6455 section 5.2.
type OpCode uint8

const (
	OpContinue OpCode = 0x0
	OpText     OpCode = 0x1
	OpBinary   OpCode = 0x2
	OpClose    OpCode = 0x8
	OpPing     OpCode = 0x9
	OpPong     OpCode = 0xA
)

// IsControl reports whether op is a control opcode (CLOSE, PING, PONG),
// which RFC 6455 forbids from being fragmented.
func (op OpCode) IsControl() bool {
	return op&0x8 != 0
}

// Status is a WebSocket close status code, per RFC 6455 section 7.4.
type Status uint16

const (
	StatusNone         Status = 0
	StatusNormal       Status = 1000
	StatusGoingAway    Status = 1001
	StatusProtocol     Status = 1002
	StatusUnsupported  Status = 1003
	StatusUnacceptable Status = 1008
	StatusTooBig       Status = 1009
	StatusUnexpected   Status = 1011
)

// Handler receives the application-visible events of a Conn. Ping/pong
// handling is internal to Conn and never reaches Handler.
type Handler interface {
	// OnOpen is called once the connection is active, before the first
	// frame is read.
	OnOpen()
	// OnMessage delivers one complete (possibly reassembled from several
	// fragments) TEXT or BINARY message.
	OnMessage(binary bool, data []byte)
	// OnClose is called once, when the connection becomes inactive,
	// whether that was initiated locally or by the peer.
	OnClose(status Status, msg string)
}

// Conn is an active WebSocket connection layered over an fd.FD.
type Conn interface {
	// Send queues data as one (possibly multi-frame) TEXT message.
	Send(data []byte) error
	// SendBinary queues data as one (possibly multi-frame) BINARY message.
	SendBinary(data []byte) error
	// Ping sends an unsolicited PING carrying payload.
	Ping(payload string)
	// Close sends a CLOSE frame (unless already inactive), marks the
	// connection inactive, and notifies Handler.OnClose.
	Close(status Status, msg string)

	IsActive() bool
	MessagesSent() uint64
	MessagesReceived() uint64
}

// Accept starts driving WebSocket framing over f. incoming must be true for
// a connection accepted by a server and false for one dialed by a client;
// it decides which direction of traffic this side must mask. maxBodySize,
// if positive, bounds the total size of one reassembled message. readTimeout
// informs the ping schedule (half the read timeout, capped at a floor), per
// the handshake's owning HTTPConnection.
func Accept(f libfd.FD, incoming bool, maxBodySize int, readTimeout time.Duration, handler Handler) Conn {
	return newConn(f, incoming, maxBodySize, readTimeout, handler)
}
