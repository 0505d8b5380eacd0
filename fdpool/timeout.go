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

package fdpool

import (
	"container/heap"
	"time"

	libtsf "github.com/nabbar/golib/transfer"
)

// deadline is one pending transfer's timeout, tracked from the moment it is
// enqueued (not from when it reaches the head of its queue: a transfer that
// sits behind others on a busy fd is still subject to its own deadline).
type deadline struct {
	when  time.Time
	fd    int
	write bool
	t     libtsf.Transfer
	index int
}

type deadlineHeap []*deadline

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *deadlineHeap) Push(x any) {
	d := x.(*deadline)
	d.index = len(*h)
	*h = append(*h, d)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return d
}

// scheduleTimeout records t's deadline, if it has one. Worker-goroutine-only.
func (p *pool) scheduleTimeout(fd int, write bool, t libtsf.Transfer) {
	d := t.Timeout()
	if d <= 0 {
		return
	}
	heap.Push(&p.timeouts, &deadline{when: time.Now().Add(d), fd: fd, write: write, t: t})
}

// nextTimeoutIn reports how long until the next deadline is due, for sizing
// the epoll_wait timeout. Returns ok=false if nothing is pending.
func (p *pool) nextTimeoutIn() (time.Duration, bool) {
	if p.timeouts.Len() == 0 {
		return 0, false
	}
	return time.Until(p.timeouts[0].when), true
}

// expireTimeouts fails and completes every transfer whose deadline is due,
// wherever it currently sits in its fd's queue (it need not be the head: a
// transfer still waiting behind others on a busy fd is just as overdue).
// Worker-goroutine-only.
func (p *pool) expireTimeouts(now time.Time) {
	for p.timeouts.Len() > 0 {
		d := p.timeouts[0]
		if d.when.After(now) {
			return
		}
		heap.Pop(&p.timeouts)

		if d.t.Finished() {
			continue
		}

		r, ok := p.records[d.fd]
		if !ok {
			continue
		}

		q := &r.readQ
		bit := StatusReadTimedOut
		if d.write {
			q = &r.writeQ
			bit = StatusWriteTimedOut
		}

		idx := -1
		for i, qt := range *q {
			if qt == d.t {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		*q = append((*q)[:idx], (*q)[idx+1:]...)
		p.queueLen.Add(-1)
		p.markStatus(d.fd, bit)

		d.t.Fail()
		p.sched.Post(d.t.Complete)

		if d.write && len(r.writeQ) == 0 {
			cbs := r.flushCbs
			r.flushCbs = nil
			for _, cb := range cbs {
				p.sched.Post(cb)
			}
		}

		p.driveQueues(r)
	}
}
