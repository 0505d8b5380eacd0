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
	"time"

	"golang.org/x/sys/unix"
)

// EventFlag selects optional behavior for an Event created by NewEvent or
// NewFDEvent.
type EventFlag uint8

const (
	// FlagPersist keeps the event armed after it fires. Without it, an
	// event disarms itself the first time it fires (a generic event
	// after Activate, an fd event after its callback runs).
	FlagPersist EventFlag = 1 << iota
	// FlagNoSelfRef is accepted for API parity with cbang's ref-counted
	// events, whose owner they can keep alive by design. Go's garbage
	// collector makes the hint a no-op here: a callback closure is
	// collected whenever it becomes unreachable regardless of this flag.
	FlagNoSelfRef
	// FlagFinalize re-invokes cb once more when the event disarms -
	// whether it ran out on its own (one-shot fired, or fd removed) or
	// was disarmed explicitly via Del - so teardown logic only needs to
	// live in one place.
	FlagFinalize
)

// Has reports whether bit is set in f.
func (f EventFlag) Has(bit EventFlag) bool { return f&bit != 0 }

// EventCallback is invoked on the loop goroutine when a software event
// fires.
type EventCallback func()

// Event is a handle to a software or fd-bound event registered through
// NewEvent or NewFDEvent. Every method is safe to call from any goroutine;
// Activate and Del only ever queue work onto the loop goroutine, they never
// run the callback inline.
type Event interface {
	// Activate queues this event to fire at its configured priority. If
	// called from inside a callback running on the loop goroutine, the
	// event still only fires on a later tick, never recursively within
	// the current one.
	Activate()
	// Del disarms the event. An fd-bound event additionally stops
	// watching its fd. If FlagFinalize was set, cb runs one final time.
	Del()
	// SetPriority changes the priority level (0..N-1, lower fires first
	// within a tick) this event queues onto for its next fire. Takes
	// effect starting with the next Activate or fd readiness.
	SetPriority(priority int)
}

// queuedEvent is one fire pending for a priority level, in the order it was
// queued.
type queuedEvent struct {
	fire func()
}

func (l *loop) clampPriority(p int) int {
	l.readyMu.Lock()
	defer l.readyMu.Unlock()
	if p < 0 {
		return 0
	}
	if max := len(l.ready) - 1; p > max {
		return max
	}
	return p
}

// scheduleReady queues fire to run on the loop goroutine at priority, on
// whichever tick next drains its ready queues - never the one currently
// being drained, so activation from inside a callback cannot recurse.
func (l *loop) scheduleReady(priority int, fire func()) {
	l.readyMu.Lock()
	if priority < 0 || priority >= len(l.ready) {
		priority = 0
	}
	l.ready[priority] = append(l.ready[priority], &queuedEvent{fire: fire})
	l.readyMu.Unlock()

	_, _ = unix.Write(l.wake[1], []byte{0})
}

// drainReady swaps out every priority level's pending queue for a fresh
// one and returns what was pending, lowest priority first.
func (l *loop) drainReady() [][]*queuedEvent {
	l.readyMu.Lock()
	defer l.readyMu.Unlock()

	out := make([][]*queuedEvent, len(l.ready))
	for i, q := range l.ready {
		if len(q) == 0 {
			continue
		}
		out[i] = q
		l.ready[i] = nil
	}
	return out
}

// SetPriorityLevels configures how many distinct priority levels (0..n-1)
// events on this loop can use; n < 1 is treated as 1. Existing events whose
// priority falls outside the new range are clamped down to the highest
// remaining level the next time they fire. Defaults to 1 level, i.e. a
// single FIFO queue.
func (l *loop) SetPriorityLevels(n int) {
	if n < 1 {
		n = 1
	}

	l.readyMu.Lock()
	defer l.readyMu.Unlock()

	if n == len(l.ready) {
		return
	}

	next := make([][]*queuedEvent, n)
	for i := range l.ready {
		if i < n {
			next[i] = l.ready[i]
		} else {
			next[n-1] = append(next[n-1], l.ready[i]...)
		}
	}
	l.ready = next
}

// --- generic (non-fd) events ------------------------------------------------

type genericEvent struct {
	l        *loop
	cb       EventCallback
	flags    EventFlag
	priority int
	deleted  bool
}

// NewEvent creates a software event with no fd of its own: it only fires
// when Activate is called, whether directly or by a timer armed through
// Add. FlagPersist keeps it armed after it fires; without it, the event
// disarms itself after its first fire and Activate becomes a no-op until
// Add rearms it.
func (l *loop) NewEvent(cb EventCallback, flags EventFlag) Event {
	return &genericEvent{l: l, cb: cb, flags: flags}
}

func (e *genericEvent) Activate() {
	if e.deleted {
		return
	}
	e.l.scheduleReady(e.priority, e.fire)
}

func (e *genericEvent) fire() {
	if e.deleted {
		return
	}
	e.cb()
	if !e.flags.Has(FlagPersist) {
		e.disarm()
	}
}

func (e *genericEvent) disarm() {
	if e.deleted {
		return
	}
	e.deleted = true
	if e.flags.Has(FlagFinalize) {
		e.cb()
	}
}

func (e *genericEvent) Del() { e.disarm() }

func (e *genericEvent) SetPriority(p int) { e.priority = e.l.clampPriority(p) }

// --- fd-bound priority events ------------------------------------------------

type fdEvent struct {
	l        *loop
	fd       int
	cb       FDCallback
	flags    EventFlag
	priority int
	deleted  bool
}

// NewFDEvent registers fd for mask like AddFD, but fires cb through the
// same priority-ordered queue as NewEvent instead of calling it back inline
// during the epoll scan, and - absent FlagPersist - deregisters fd
// automatically right after its first fire (a one-shot readiness check,
// mirroring cbang's non-persistent fd events).
func (l *loop) NewFDEvent(fd int, mask EventMask, flags EventFlag, cb FDCallback) (Event, error) {
	fe := &fdEvent{l: l, fd: fd, cb: cb, flags: flags}

	if err := l.AddFD(fd, mask, func(fd int, m EventMask) {
		fe.l.scheduleReady(fe.priority, func() { fe.fire(fd, m) })
	}); err != nil {
		return nil, err
	}
	return fe, nil
}

func (e *fdEvent) fire(fd int, mask EventMask) {
	if e.deleted {
		return
	}
	e.cb(fd, mask)
	if !e.flags.Has(FlagPersist) {
		e.disarm()
	}
}

func (e *fdEvent) disarm() {
	if e.deleted {
		return
	}
	e.deleted = true
	_ = e.l.RemoveFD(e.fd)
	if e.flags.Has(FlagFinalize) {
		e.cb(e.fd, 0)
	}
}

func (e *fdEvent) Del() { e.disarm() }

func (e *fdEvent) SetPriority(p int) { e.priority = e.l.clampPriority(p) }

// Add arms ev. For an event from NewEvent, a positive timeout activates it
// once that duration elapses; zero leaves it disarmed until an explicit
// Activate. For an event from NewFDEvent, registration already happened in
// NewFDEvent, so Add only validates ev came from this loop; timeout is
// accepted for API parity with cbang, where add() also covers fd events.
func (l *loop) Add(ev Event, timeout time.Duration) error {
	switch e := ev.(type) {
	case *genericEvent:
		if e.l != l {
			return ErrorUnknownEvent.Error()
		}
		if timeout > 0 {
			l.AfterFunc(timeout, e.Activate)
		}
		return nil
	case *fdEvent:
		if e.l != l {
			return ErrorUnknownEvent.Error()
		}
		return nil
	default:
		return ErrorUnknownEvent.Error()
	}
}
