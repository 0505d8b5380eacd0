/*
 * MIT License
 *
 * Copyright (c) 2019 Nicolas JUHEL
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

package semaphore

import (
	"context"
	"sync"
)

type sem struct {
	ctx   context.Context
	slots chan struct{}

	mu      sync.Mutex
	pending int

	done chan struct{}
	once sync.Once
}

func (s *sem) NewWorker() error {
	if s.slots != nil {
		select {
		case s.slots <- struct{}{}:
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}

	s.mu.Lock()
	s.pending++
	s.mu.Unlock()

	return nil
}

func (s *sem) DeferWorker() {
	s.mu.Lock()
	s.pending--
	n := s.pending
	var done chan struct{}
	if n <= 0 {
		done = s.done
	}
	s.mu.Unlock()

	if s.slots != nil {
		<-s.slots
	}

	if done != nil {
		s.once.Do(func() { close(done) })
	}
}

func (s *sem) WaitAll() error {
	s.mu.Lock()
	if s.pending <= 0 {
		s.mu.Unlock()
		return nil
	}

	if s.done == nil {
		s.done = make(chan struct{})
	}
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *sem) DeferMain() {
	s.once.Do(func() {
		if s.done != nil {
			close(s.done)
		}
	})
}
