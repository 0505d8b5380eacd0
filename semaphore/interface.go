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

// Package semaphore provides a small context-aware worker-counting semaphore
// used to fan a command out across a set of goroutines and wait for them all
// to finish, with an optional cap on how many run concurrently.
package semaphore

import "context"

// Sem bounds and tracks a set of concurrently running workers.
type Sem interface {
	// NewWorker registers a new worker, blocking if the concurrency limit is
	// already reached. It returns an error if the context has been cancelled.
	NewWorker() error

	// DeferWorker releases one worker slot. Intended to be called with defer
	// immediately after NewWorker succeeds.
	DeferWorker()

	// WaitAll blocks until every registered worker has called DeferWorker, or
	// until the context is cancelled.
	WaitAll() error

	// DeferMain releases any resources associated with the semaphore. Safe to
	// call multiple times.
	DeferMain()
}

// NewSemaphoreWithContext creates a Sem bound to ctx. max limits the number of
// workers allowed to run at once; max <= 0 means unbounded.
func NewSemaphoreWithContext(ctx context.Context, max int) Sem {
	s := &sem{
		ctx: ctx,
	}

	if max > 0 {
		s.slots = make(chan struct{}, max)
	}

	return s
}
