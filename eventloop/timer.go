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

package eventloop

import (
	"container/heap"
	"time"
)

type timerEntry struct {
	deadline  time.Time
	cb        TimerCallback
	seq       uint64
	canceled  bool
	index     int
}

func (t *timerEntry) Cancel() { t.canceled = true }

// timerHeap is a min-heap by deadline, broken open only from the loop
// goroutine so it needs no locking of its own.
type timerHeap struct {
	items timerSlice
}

func newTimerHeap() *timerHeap {
	h := &timerHeap{}
	heap.Init(&h.items)
	return h
}

func (h *timerHeap) push(t *timerEntry) {
	heap.Push(&h.items, t)
}

// nextDeadline reports the duration until the next non-canceled timer is
// due, discarding canceled entries at the head of the heap as it goes.
func (h *timerHeap) nextDeadline() (time.Duration, bool) {
	for h.items.Len() > 0 {
		t := h.items[0]
		if t.canceled {
			heap.Pop(&h.items)
			continue
		}
		return time.Until(t.deadline), true
	}
	return 0, false
}

func (h *timerHeap) fireDue(now time.Time) {
	for h.items.Len() > 0 {
		t := h.items[0]
		if t.canceled {
			heap.Pop(&h.items)
			continue
		}
		if t.deadline.After(now) {
			return
		}
		heap.Pop(&h.items)
		t.cb()
	}
}

type timerSlice []*timerEntry

func (s timerSlice) Len() int { return len(s) }
func (s timerSlice) Less(i, j int) bool { return s[i].deadline.Before(s[j].deadline) }
func (s timerSlice) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
	s[i].index, s[j].index = i, j
}

func (s *timerSlice) Push(x any) {
	t := x.(*timerEntry)
	t.index = len(*s)
	*s = append(*s, t)
}

func (s *timerSlice) Pop() any {
	old := *s
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*s = old[:n-1]
	return t
}
