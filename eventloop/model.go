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
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	liblog "github.com/nabbar/golib/logger"
	logent "github.com/nabbar/golib/logger/entry"
	loglvl "github.com/nabbar/golib/logger/level"
)

const maxEpollEvents = 128

type fdReg struct {
	fd   int
	mask EventMask
	cb   FDCallback
}

type loop struct {
	epfd int

	// fds is loop-goroutine-only state: never touched outside Run/RunOnce
	// or the Add/Update/RemoveFD calls a callback makes on itself.
	fds map[int]*fdReg

	timers   *timerHeap
	timerSeq uint64

	postMu   sync.Mutex
	postedFn []func()
	wake     [2]int // self-pipe, so Post can interrupt a blocked epoll_wait

	// readyMu guards ready, the per-priority-level queues NewEvent/
	// NewFDEvent fire through; see event.go.
	readyMu sync.Mutex
	ready   [][]*queuedEvent

	brk int32

	log atomic.Value // liblog.FuncLog
}

func (l *loop) SetLog(fct liblog.FuncLog) {
	if fct == nil {
		l.log.Store((liblog.FuncLog)(nil))
		return
	}
	l.log.Store(fct)
}

func (l *loop) logEntry(lvl loglvl.Level, message string) logent.Entry {
	i := l.log.Load()
	if f, k := i.(liblog.FuncLog); k && f != nil {
		if lg := f(); lg != nil {
			return lg.Entry(lvl, message)
		}
	}
	return logent.New(loglvl.NilLevel)
}

func newLoop() (EventLoop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, ErrorEpollCreate.Error(err)
	}

	var fds [2]int
	if fds, err = pipe2NonBlock(); err != nil {
		_ = unix.Close(epfd)
		return nil, ErrorEpollCreate.Error(err)
	}

	l := &loop{
		epfd:   epfd,
		fds:    make(map[int]*fdReg),
		timers: newTimerHeap(),
		wake:   fds,
		ready:  make([][]*queuedEvent, 1),
	}

	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fds[0], &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fds[0]),
	}); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, ErrorEpollCreate.Error(err)
	}

	return l, nil
}

func pipe2NonBlock() ([2]int, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return fds, err
	}
	return fds, nil
}

func epollEvents(mask EventMask) uint32 {
	var ev uint32
	if mask&EventRead != 0 {
		ev |= unix.EPOLLIN
	}
	if mask&EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (l *loop) AddFD(fd int, mask EventMask, cb FDCallback) error {
	if _, ok := l.fds[fd]; ok {
		return ErrorFDAlreadyRegistered.Error()
	}

	r := &fdReg{fd: fd, mask: mask, cb: cb}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: epollEvents(mask),
		Fd:     int32(fd),
	}); err != nil {
		return ErrorEpollCtl.Error(err)
	}

	l.fds[fd] = r
	return nil
}

func (l *loop) UpdateFD(fd int, mask EventMask) error {
	r, ok := l.fds[fd]
	if !ok {
		return ErrorFDNotRegistered.Error()
	}

	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: epollEvents(mask),
		Fd:     int32(fd),
	}); err != nil {
		return ErrorEpollCtl.Error(err)
	}

	r.mask = mask
	return nil
}

func (l *loop) RemoveFD(fd int) error {
	if _, ok := l.fds[fd]; !ok {
		return nil
	}

	_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(l.fds, fd)
	return nil
}

func (l *loop) AfterFunc(d time.Duration, cb TimerCallback) Timer {
	l.timerSeq++
	t := &timerEntry{deadline: time.Now().Add(d), cb: cb, seq: l.timerSeq}
	l.timers.push(t)
	return t
}

func (l *loop) Post(fn func()) {
	l.postMu.Lock()
	l.postedFn = append(l.postedFn, fn)
	l.postMu.Unlock()

	// Best-effort wake; if the pipe is full the loop is already about to
	// wake up on its own.
	_, _ = unix.Write(l.wake[1], []byte{0})
}

func (l *loop) drainPosted() []func() {
	l.postMu.Lock()
	defer l.postMu.Unlock()

	if len(l.postedFn) == 0 {
		return nil
	}
	out := l.postedFn
	l.postedFn = nil
	return out
}

func (l *loop) Break() {
	l.Post(func() {})
	l.postMu.Lock()
	l.brk = 1
	l.postMu.Unlock()
}

func (l *loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		l.postMu.Lock()
		broken := l.brk == 1
		l.postMu.Unlock()
		if broken {
			return nil
		}

		timeout := l.nextTimeout()
		if err := l.RunOnce(timeout); err != nil {
			return err
		}
	}
}

func (l *loop) nextTimeout() time.Duration {
	d, ok := l.timers.nextDeadline()
	if !ok {
		return 100 * time.Millisecond
	}
	if d < 0 {
		return 0
	}
	if d > 100*time.Millisecond {
		return 100 * time.Millisecond
	}
	return d
}

func (l *loop) RunOnce(timeout time.Duration) error {
	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}
	if timeout <= 0 {
		ms = 0
	}

	events := make([]unix.EpollEvent, maxEpollEvents)
	n, err := unix.EpollWait(l.epfd, events, ms)
	if err != nil && err != unix.EINTR {
		ent := l.logEntry(loglvl.ErrorLevel, "epoll_wait failed")
		ent.ErrorAdd(true, err)
		ent.Log()
		return ErrorEpollWait.Error(err)
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)

		if fd == l.wake[0] {
			drain := make([]byte, 64)
			for {
				if k, _ := unix.Read(l.wake[0], drain); k <= 0 {
					break
				}
			}
			continue
		}

		r, ok := l.fds[fd]
		if !ok {
			continue
		}

		var mask EventMask
		if events[i].Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			mask |= EventRead
		}
		if events[i].Events&unix.EPOLLOUT != 0 {
			mask |= EventWrite
		}
		if mask != 0 {
			r.cb(fd, mask)
		}
	}

	l.timers.fireDue(time.Now())

	for _, fn := range l.drainPosted() {
		fn()
	}

	// Priority-ordered Event firing: lowest priority level first, and
	// within a level, in the order each was queued. Anything an event
	// callback activates here lands in the queues drainReady just swapped
	// in for, so it fires on a later RunOnce, never this one.
	for _, bucket := range l.drainReady() {
		for _, qe := range bucket {
			qe.fire()
		}
	}

	return nil
}
