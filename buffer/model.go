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

package buffer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// minSegment is the smallest newly-allocated segment size, matching the
// page-sized growth strategy of an evbuffer-style chained buffer.
const minSegment = 4096

// segment is one contiguous page. Several buffers may reference the same
// backing array (via AddRef) without copying.
type segment struct {
	data []byte // data[off:len(data)] is unread
	off  int
}

func (s *segment) length() int { return len(s.data) - s.off }

type buf struct {
	mu sync.Mutex

	segs []*segment
	size int

	frozenFront bool
	frozenBack  bool

	onChange ChangeFunc
}

func newBuffer() *buf {
	return &buf{}
}

func (b *buf) Length() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *buf) String() string {
	return string(b.Bytes())
}

func (b *buf) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, 0, b.size)
	for _, s := range b.segs {
		out = append(out, s.data[s.off:]...)
	}
	return out
}

func (b *buf) Hexdump() string {
	data := b.Bytes()

	var sb strings.Builder
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		chunk := data[i:end]

		fmt.Fprintf(&sb, "%08x  ", i)
		for j := 0; j < 16; j++ {
			if j < len(chunk) {
				fmt.Fprintf(&sb, "%02x ", chunk[j])
			} else {
				sb.WriteString("   ")
			}
			if j == 7 {
				sb.WriteByte(' ')
			}
		}

		sb.WriteString(" |")
		for _, c := range chunk {
			if c >= 0x20 && c < 0x7f {
				sb.WriteByte(c)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")
	}

	return sb.String()
}

func (b *buf) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frozenFront = false
	orig := b.size
	n := b.size
	b.segs = nil
	b.size = 0
	b.notify(0, n, orig)
}

func (b *buf) Expand(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozenBack {
		return ErrorFrozenBack.Error()
	}

	b.reserveCapacity(n)
	return nil
}

// reserveCapacity ensures the tail segment has at least n bytes of spare
// capacity, allocating a new segment if necessary. Caller holds b.mu.
func (b *buf) reserveCapacity(n int) *segment {
	if n <= 0 {
		n = 1
	}

	if len(b.segs) > 0 {
		tail := b.segs[len(b.segs)-1]
		if cap(tail.data)-len(tail.data) >= n {
			return tail
		}
	}

	size := n
	if size < minSegment {
		size = minSegment
	}

	s := &segment{data: make([]byte, 0, size)}
	b.segs = append(b.segs, s)
	return s
}

func (b *buf) Add(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozenBack {
		return ErrorFrozenBack.Error()
	}

	orig := b.size
	b.appendLocked(data)
	b.notify(len(data), 0, orig)
	return nil
}

func (b *buf) appendLocked(data []byte) {
	for len(data) > 0 {
		tail := b.reserveCapacity(len(data))
		room := cap(tail.data) - len(tail.data)
		n := len(data)
		if n > room {
			n = room
		}

		tail.data = append(tail.data, data[:n]...)
		data = data[n:]
		b.size += n
	}
}

func (b *buf) AddString(s string) error {
	return b.Add([]byte(s))
}

func (b *buf) AddBuffer(other Buffer) error {
	o, ok := other.(*buf)
	if !ok {
		return b.Add(other.Bytes())
	}

	o.mu.Lock()
	data := o.copyLocked()
	o.mu.Unlock()

	return b.Add(data)
}

func (b *buf) copyLocked() []byte {
	out := make([]byte, 0, b.size)
	for _, s := range b.segs {
		out = append(out, s.data[s.off:]...)
	}
	return out
}

func (b *buf) AddRef(other Buffer) error {
	o, ok := other.(*buf)
	if !ok {
		return b.AddBuffer(other)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozenBack {
		return ErrorFrozenBack.Error()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.frozenFront {
		return ErrorFrozenFront.Error()
	}

	orig := b.size

	b.segs = append(b.segs, o.segs...)
	b.size += o.size

	oOrig := o.size
	o.segs = nil
	o.size = 0
	o.notify(0, oOrig, oOrig)

	b.notify(orig+b.size-orig, 0, orig)
	return nil
}

func (b *buf) AddFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return ErrorFileOpen.Error(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ErrorFileRead.Error(err)
	}

	return b.Add(data)
}

func (b *buf) Prepend(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozenBack {
		return ErrorFrozenBack.Error()
	}

	orig := b.size
	cp := make([]byte, len(data))
	copy(cp, data)

	b.segs = append([]*segment{{data: cp}}, b.segs...)
	b.size += len(data)
	b.notify(len(data), 0, orig)
	return nil
}

func (b *buf) PrependString(s string) error {
	return b.Prepend([]byte(s))
}

func (b *buf) Drain(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozenFront {
		return 0
	}

	return b.drainLocked(n)
}

func (b *buf) drainLocked(n int) int {
	if n > b.size {
		n = b.size
	}
	orig := b.size
	drained := n

	for n > 0 && len(b.segs) > 0 {
		s := b.segs[0]
		avail := s.length()

		if n < avail {
			s.off += n
			b.size -= n
			n = 0
		} else {
			b.size -= avail
			n -= avail
			b.segs = b.segs[1:]
		}
	}

	b.notify(0, drained, orig)
	return drained
}

func (b *buf) Remove(dst []byte, n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozenFront {
		return 0
	}

	return b.removeLocked(dst, n)
}

func (b *buf) removeLocked(dst []byte, n int) int {
	if n > len(dst) {
		n = len(dst)
	}
	if n > b.size {
		n = b.size
	}

	copied := 0
	for copied < n && len(b.segs) > 0 {
		s := b.segs[0]
		avail := s.length()
		want := n - copied
		if want > avail {
			want = avail
		}

		copy(dst[copied:], s.data[s.off:s.off+want])
		copied += want
		s.off += want

		if s.length() == 0 {
			b.segs = b.segs[1:]
		}
	}

	orig := b.size
	b.size -= copied
	b.notify(0, copied, orig)
	return copied
}

func (b *buf) RemoveBuffer(dst Buffer, n int) int {
	tmp := make([]byte, n)
	got := b.Remove(tmp, n)
	if got == 0 {
		return 0
	}
	_ = dst.Add(tmp[:got])
	return got
}

func (b *buf) ReadLine(max int, eol string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.indexOfLocked(eol, max)
	if idx < 0 {
		return "", false
	}

	line := make([]byte, idx)
	b.removeLocked(line, idx)
	b.drainLocked(len(eol))
	return string(line), true
}

func (b *buf) IndexOf(needle string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.indexOfLocked(needle, b.size)
}

// indexOfLocked searches at most limit+len(needle) bytes for needle.
func (b *buf) indexOfLocked(needle string, limit int) int {
	if needle == "" {
		return -1
	}

	scan := limit + len(needle)
	if scan > b.size || scan <= 0 {
		scan = b.size
	}

	data := make([]byte, 0, scan)
	remaining := scan
	for _, s := range b.segs {
		if remaining <= 0 {
			break
		}
		avail := s.length()
		take := avail
		if take > remaining {
			take = remaining
		}
		data = append(data, s.data[s.off:s.off+take]...)
		remaining -= take
	}

	idx := strings.Index(string(data), needle)
	if idx < 0 {
		return -1
	}
	if limit < b.size && idx > limit {
		return -1
	}
	return idx
}

func (b *buf) Peek(n int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.size {
		n = b.size
	}

	out := make([]byte, 0, n)
	for _, s := range b.segs {
		if len(out) >= n {
			break
		}
		avail := s.length()
		want := n - len(out)
		if want > avail {
			want = avail
		}
		out = append(out, s.data[s.off:s.off+want]...)
	}
	return out
}

func (b *buf) Reserve(n int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozenBack {
		return nil
	}

	tail := b.reserveCapacity(n)
	return tail.data[len(tail.data):cap(tail.data)]
}

func (b *buf) Commit(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozenBack {
		return ErrorFrozenBack.Error()
	}
	if len(b.segs) == 0 {
		return ErrorCommitNoReserve.Error()
	}

	tail := b.segs[len(b.segs)-1]
	room := cap(tail.data) - len(tail.data)
	if n > room {
		return ErrorCommitNoReserve.Error()
	}

	orig := b.size
	tail.data = tail.data[:len(tail.data)+n]
	b.size += n
	b.notify(n, 0, orig)
	return nil
}

func (b *buf) ReadFrom(r io.Reader, max int) (int, error) {
	b.mu.Lock()
	if b.frozenBack {
		b.mu.Unlock()
		return 0, ErrorFrozenBack.Error()
	}
	tail := b.reserveCapacity(max)
	dst := tail.data[len(tail.data):cap(tail.data)]
	if len(dst) > max {
		dst = dst[:max]
	}
	b.mu.Unlock()

	n, err := r.Read(dst)
	if n > 0 {
		b.mu.Lock()
		orig := b.size
		tail.data = tail.data[:len(tail.data)+n]
		b.size += n
		b.notify(n, 0, orig)
		b.mu.Unlock()
	}

	if err != nil && err != io.EOF {
		return n, ErrorIO.Error(err)
	}
	return n, err
}

func (b *buf) WriteTo(w io.Writer, max int) (int, error) {
	data := b.Peek(max)
	if len(data) == 0 {
		return 0, nil
	}

	n, err := w.Write(data)
	if n > 0 {
		b.Drain(n)
	}
	if err != nil {
		return n, ErrorIO.Error(err)
	}
	return n, nil
}

func (b *buf) FreezeFront(enable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozenFront = enable
}

func (b *buf) FreezeBack(enable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozenBack = enable
}

func (b *buf) SetChangeFunc(fn ChangeFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
	return nil
}

// notify invokes the registered change callback. Caller holds b.mu.
func (b *buf) notify(added, deleted, origLen int) {
	if b.onChange == nil {
		return
	}
	b.onChange(added, deleted, origLen)
}
