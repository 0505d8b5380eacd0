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
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	liblog "github.com/nabbar/golib/logger"
	logent "github.com/nabbar/golib/logger/entry"
	loglvl "github.com/nabbar/golib/logger/level"
	librun "github.com/nabbar/golib/runner/startStop"
	libtsf "github.com/nabbar/golib/transfer"
)

type command struct {
	submit  libtsf.Transfer
	flush   *flushCmd
	close   *closeCmd
	forget  int
	isFlush bool
	isClose bool
	isForgt bool
}

type flushCmd struct {
	fd int
	cb func()
}

type closeCmd struct {
	fd int
	cb func()
}

// record is worker-goroutine-only state: the pending read and write FIFOs
// for one fd, and the epoll interest currently registered for it.
type record struct {
	fd       int
	readQ    []libtsf.Transfer
	writeQ   []libtsf.Transfer
	flushCbs []func()
	mask     uint32
}

type pool struct {
	epfd int
	wake [2]int

	sched Scheduler
	run   librun.Runner

	cmdMu sync.Mutex
	cmds  []command

	records  map[int]*record
	timeouts deadlineHeap

	// statusMu guards status, which mirrors each record's accumulated
	// Status bits so Status(fd) can be called from any goroutine without
	// touching worker-goroutine-only record state.
	statusMu sync.Mutex
	status   map[int]Status

	rRate *rate
	wRate *rate

	// queueLen is the total number of transfers currently queued across
	// every fd, in either direction. Updated only from the worker
	// goroutine but read atomically from any goroutine via QueueDepth.
	queueLen atomic.Int64

	log atomic.Value // liblog.FuncLog
}

func (p *pool) SetLog(fct liblog.FuncLog) {
	if fct == nil {
		p.log.Store((liblog.FuncLog)(nil))
		return
	}
	p.log.Store(fct)
}

func (p *pool) logEntry(lvl loglvl.Level, message string) logent.Entry {
	i := p.log.Load()
	if f, k := i.(liblog.FuncLog); k && f != nil {
		if lg := f(); lg != nil {
			return lg.Entry(lvl, message)
		}
	}
	return logent.New(loglvl.NilLevel)
}

func newPool(sched Scheduler) (FDPool, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, ErrorEpollCreate.Error(err)
	}

	var fds [2]int
	if err = unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		_ = unix.Close(epfd)
		return nil, ErrorEpollCreate.Error(err)
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

	p := &pool{
		epfd:    epfd,
		wake:    fds,
		sched:   sched,
		records: make(map[int]*record),
		status:  make(map[int]Status),
		rRate:   newRate(),
		wRate:   newRate(),
	}
	p.run = librun.New(p.runLoop, p.runStop)
	return p, nil
}

func (p *pool) Start(ctx context.Context) error { return p.run.Start(ctx) }
func (p *pool) Stop(ctx context.Context) error  { return p.run.Stop(ctx) }

func (p *pool) pushCmd(c command) {
	p.cmdMu.Lock()
	p.cmds = append(p.cmds, c)
	p.cmdMu.Unlock()
	_, _ = unix.Write(p.wake[1], []byte{0})
}

func (p *pool) drainCmds() []command {
	p.cmdMu.Lock()
	defer p.cmdMu.Unlock()
	if len(p.cmds) == 0 {
		return nil
	}
	out := p.cmds
	p.cmds = nil
	return out
}

func (p *pool) Submit(t libtsf.Transfer) error {
	if t == nil {
		return ErrorNilTransfer.Error()
	}
	p.pushCmd(command{submit: t})
	return nil
}

func (p *pool) Flush(fd int, cb func()) error {
	if cb == nil {
		return nil
	}
	p.pushCmd(command{isFlush: true, flush: &flushCmd{fd: fd, cb: cb}})
	return nil
}

func (p *pool) Forget(fd int) {
	p.pushCmd(command{isForgt: true, forget: fd})
}

// Close fails every transfer currently queued for fd, in submission order
// within each direction, invoking each one's callback exactly once with
// success = false, then drops fd from the interest set and invokes cb. The
// caller must not close the underlying descriptor until cb runs, or the
// worker goroutine may still be mid-Attempt on a reused fd number.
func (p *pool) Close(fd int, cb func()) error {
	p.pushCmd(command{isClose: true, close: &closeCmd{fd: fd, cb: cb}})
	return nil
}

// Status reports the accumulated Status bits observed for fd. Safe to call
// from any goroutine; the bits persist after fd is forgotten or closed.
func (p *pool) Status(fd int) Status {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.status[fd]
}

func (p *pool) markStatus(fd int, bit Status) {
	p.statusMu.Lock()
	p.status[fd] |= bit
	p.statusMu.Unlock()
}

func (p *pool) ReadRate() Rate  { return p.rRate }
func (p *pool) WriteRate() Rate { return p.wRate }

// QueueDepth reports the total number of transfers currently queued across
// every fd, in either direction. Safe to call from any goroutine.
func (p *pool) QueueDepth() int { return int(p.queueLen.Load()) }

func (p *pool) runLoop(ctx context.Context) error {
	events := make([]unix.EpollEvent, 128)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := unix.EpollWait(p.epfd, events, p.epollTimeoutMs())
		if err != nil && err != unix.EINTR {
			ent := p.logEntry(loglvl.ErrorLevel, "epoll_wait failed")
			ent.ErrorAdd(true, err)
			ent.Log()
			return ErrorEpollWait.Error(err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == p.wake[0] {
				drain := make([]byte, 64)
				for {
					if k, _ := unix.Read(p.wake[0], drain); k <= 0 {
						break
					}
				}
				continue
			}
			p.drive(fd, events[i].Events)
		}

		for _, c := range p.drainCmds() {
			p.apply(c)
		}

		p.expireTimeouts(time.Now())
	}
}

// epollTimeoutMs bounds how long epoll_wait may block so a transfer deadline
// is never missed by more than the polling granularity.
func (p *pool) epollTimeoutMs() int {
	const maxWait = 100 * time.Millisecond

	d, ok := p.nextTimeoutIn()
	if !ok || d > maxWait {
		d = maxWait
	}
	if d < 0 {
		d = 0
	}
	return int(d / time.Millisecond)
}

func (p *pool) runStop(ctx context.Context) error {
	_ = unix.Close(p.epfd)
	_ = unix.Close(p.wake[0])
	_ = unix.Close(p.wake[1])
	return nil
}

func (p *pool) apply(c command) {
	switch {
	case c.submit != nil:
		p.enqueue(c.submit)
	case c.isFlush:
		p.applyFlush(c.flush)
	case c.isClose:
		p.applyClose(c.close)
	case c.isForgt:
		p.applyForget(c.forget)
	}
}

func (p *pool) recordFor(fd int) *record {
	r, ok := p.records[fd]
	if !ok {
		r = &record{fd: fd}
		p.records[fd] = r
		_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd)})
	}
	return r
}

func (p *pool) enqueue(t libtsf.Transfer) {
	r := p.recordFor(t.FD())
	if t.IsWrite() {
		r.writeQ = append(r.writeQ, t)
	} else {
		r.readQ = append(r.readQ, t)
	}
	p.queueLen.Add(1)
	p.scheduleTimeout(t.FD(), t.IsWrite(), t)
	p.driveQueues(r)
}

func (p *pool) applyFlush(f *flushCmd) {
	r, ok := p.records[f.fd]
	if !ok || len(r.writeQ) == 0 {
		p.sched.Post(f.cb)
		return
	}
	r.flushCbs = append(r.flushCbs, f.cb)
}

func (p *pool) applyForget(fd int) {
	r, ok := p.records[fd]
	if !ok {
		return
	}
	p.queueLen.Add(-int64(len(r.readQ) + len(r.writeQ)))
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(p.records, fd)
}

// applyClose fails every queued transfer for fd (invoking each callback
// exactly once with success = false), drops fd from the interest set, then
// invokes c.cb so the caller knows it is safe to close the descriptor.
func (p *pool) applyClose(c *closeCmd) {
	r, ok := p.records[c.fd]
	if ok {
		if len(r.readQ) > 0 {
			p.markStatus(c.fd, StatusReadClosed)
		}
		if len(r.writeQ) > 0 {
			p.markStatus(c.fd, StatusWriteClosed)
		}
		for _, t := range r.readQ {
			t.Fail()
			p.sched.Post(t.Complete)
		}
		for _, t := range r.writeQ {
			t.Fail()
			p.sched.Post(t.Complete)
		}
		p.queueLen.Add(-int64(len(r.readQ) + len(r.writeQ)))

		cbs := r.flushCbs
		r.flushCbs = nil
		for _, cb := range cbs {
			p.sched.Post(cb)
		}

		_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, c.fd, nil)
		delete(p.records, c.fd)
	}

	// c.cb runs here, on the worker goroutine, rather than through sched -
	// it exists only to unblock the caller of FD.Close before it closes
	// the descriptor, and must not touch loop-owned state itself. The
	// transfer completions above went through sched and will still run
	// on the scheduler's goroutine, same as any other completion.
	if c.cb != nil {
		c.cb()
	}
}

func (p *pool) drive(fd int, events uint32) {
	r, ok := p.records[fd]
	if !ok {
		return
	}

	readable := events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0
	writable := events&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0

	if readable {
		p.attemptHead(r, false)
		// A write stalled on a TLS handshake read (WantsRead) cross-
		// inverted its interest onto EPOLLIN; honor it here too.
		if len(r.writeQ) > 0 && r.writeQ[0].WantsRead() {
			p.attemptHead(r, true)
		}
	}
	if writable {
		p.attemptHead(r, true)
		// Same inversion the other way: a read stalled on a TLS write.
		if len(r.readQ) > 0 && r.readQ[0].WantsWrite() {
			p.attemptHead(r, false)
		}
	}
	p.driveQueues(r)
}

// attemptHead drives the head transfer of the given direction's queue for
// as long as it keeps making progress, popping and completing finished
// transfers until the head is not finished or the queue is empty.
func (p *pool) attemptHead(r *record, write bool) {
	for {
		q := &r.readQ
		if write {
			q = &r.writeQ
		}
		if len(*q) == 0 {
			return
		}

		t := (*q)[0]
		n, _ := t.Attempt()
		if write {
			p.wRate.add(n)
		} else {
			p.rRate.add(n)
		}

		if !t.Finished() {
			return
		}

		*q = (*q)[1:]
		p.queueLen.Add(-1)
		p.sched.Post(t.Complete)

		if write && len(r.writeQ) == 0 {
			cbs := r.flushCbs
			r.flushCbs = nil
			for _, cb := range cbs {
				p.sched.Post(cb)
			}
		}
	}
}

func (p *pool) driveQueues(r *record) {
	var want uint32
	if len(r.readQ) > 0 {
		want |= unix.EPOLLIN
		// The head read may need a write to go through first (e.g. a TLS
		// renegotiation record), so its own interest bit overrides what
		// the fd's general direction would otherwise register.
		if r.readQ[0].WantsWrite() {
			want |= unix.EPOLLOUT
		}
	}
	if len(r.writeQ) > 0 {
		want |= unix.EPOLLOUT
		if r.writeQ[0].WantsRead() {
			want |= unix.EPOLLIN
		}
	}

	if want != r.mask {
		r.mask = want
		_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, r.fd, &unix.EpollEvent{
			Events: want,
			Fd:     int32(r.fd),
		})
	}

	// A transfer may already be satisfiable without an epoll event (e.g.
	// TLS has buffered plaintext already, or a readiness transfer), so
	// give the head of each queue an immediate attempt.
	if len(r.readQ) > 0 && r.readQ[0].IsPending() {
		p.attemptHead(r, false)
	}
	if len(r.writeQ) > 0 && r.writeQ[0].IsPending() {
		p.attemptHead(r, true)
	}
}

// rate tracks a simple moving bytes-per-second figure over rateWindow,
// updated only from the worker goroutine.
type rate struct {
	mu     sync.Mutex
	bucket int64
	start  time.Time
	last   float64
}

func newRate() *rate { return &rate{start: time.Now()} }

func (r *rate) add(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bucket += int64(n)
	if elapsed := time.Since(r.start); elapsed >= rateWindow {
		r.last = float64(r.bucket) / elapsed.Seconds()
		r.bucket = 0
		r.start = time.Now()
	}
}

func (r *rate) BytesPerSecond() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
