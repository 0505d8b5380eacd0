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

// Package buffer implements an ordered, mutable byte sequence used as the
// staging area for every socket read/write in the networking core. It is
// organized as a list of fixed-size pages so that large appends, prepends and
// cross-buffer moves stay cheap, and pages can be shared between buffers
// instead of copied.
package buffer

import "io"

// ChangeFunc is invoked after every mutation with the number of bytes added,
// the number removed, and the buffer length before the mutation.
type ChangeFunc func(added, deleted int, origLen int)

// Buffer is an ordered byte sequence with amortized O(1) append/drain.
type Buffer interface {
	// Length returns the number of bytes currently stored.
	Length() int

	// String returns a copy of the buffer contents.
	String() string

	// Bytes returns a copy of the buffer contents.
	Bytes() []byte

	// Hexdump renders the buffer contents as a hex/ASCII dump, for logging.
	Hexdump() string

	// Clear unfreezes the front and discards every byte.
	Clear()

	// Expand reserves at least n more contiguous bytes at the end of the
	// buffer without making them part of the logical length.
	Expand(n int) error

	// Add copies data onto the end of the buffer.
	Add(data []byte) error

	// AddString copies s onto the end of the buffer.
	AddString(s string) error

	// AddBuffer copies the entirety of other onto the end of this buffer.
	// other is left unchanged.
	AddBuffer(other Buffer) error

	// AddRef appends other's pages by reference (no copy) and drains other.
	AddRef(other Buffer) error

	// AddFile appends the contents of the file at path.
	AddFile(path string) error

	// Prepend copies data onto the front of the buffer.
	Prepend(data []byte) error

	// PrependString copies s onto the front of the buffer.
	PrependString(s string) error

	// Drain discards the first n bytes (or all bytes, if n exceeds Length).
	Drain(n int) int

	// Remove moves up to n bytes into dst, returning the number moved.
	Remove(dst []byte, n int) int

	// RemoveBuffer moves up to n bytes into dst, returning the number moved.
	RemoveBuffer(dst Buffer, n int) int

	// ReadLine scans for eol within at most max bytes. On success it returns
	// the bytes before the delimiter, drains them plus the delimiter, and
	// returns true. Returns false if eol was not found within max bytes.
	ReadLine(max int, eol string) (line string, found bool)

	// IndexOf returns the byte offset of the first occurrence of needle, or
	// -1 if absent.
	IndexOf(needle string) int

	// Peek returns up to n bytes without draining them.
	Peek(n int) []byte

	// Reserve returns a writable slice of at least n bytes at the end of the
	// buffer. The caller must call Commit with the number of bytes actually
	// written.
	Reserve(n int) []byte

	// Commit finalizes n bytes written into a slice previously returned by
	// Reserve, extending the logical length.
	Commit(n int) error

	// ReadFrom reads up to max bytes directly from r into the buffer's end,
	// returning the number of bytes read.
	ReadFrom(r io.Reader, max int) (int, error)

	// WriteTo writes up to max bytes from the buffer's front directly to w,
	// draining what was written.
	WriteTo(w io.Writer, max int) (int, error)

	// FreezeFront forbids Drain/Remove/ReadLine from this buffer.
	FreezeFront(enable bool)

	// FreezeBack forbids Add/Prepend/Expand/Reserve on this buffer.
	FreezeBack(enable bool)

	// SetChangeFunc registers the single mutation callback. Passing nil
	// clears it.
	SetChangeFunc(fn ChangeFunc) error
}

// New returns an empty Buffer.
func New() Buffer {
	return newBuffer()
}

// NewFromBytes returns a Buffer pre-populated with a copy of data.
func NewFromBytes(data []byte) Buffer {
	b := newBuffer()
	_ = b.Add(data)
	return b
}
