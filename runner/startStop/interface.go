/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package startStop provides a small start/stop lifecycle wrapper for a
// single background goroutine, used by every long-running component of the
// networking core (event loop, FD pool worker, HTTP listeners) instead of
// hand-rolled boolean flags.
package startStop

import (
	"context"
	"time"
)

// FuncStart is run in its own goroutine by Start. It must return when ctx is
// cancelled.
type FuncStart func(ctx context.Context) error

// FuncStop is run synchronously by Stop to request that FuncStart return.
type FuncStop func(ctx context.Context) error

// Runner tracks a single start/stop lifecycle.
type Runner interface {
	// Start launches the configured start function in a new goroutine. If the
	// runner is already running, the previous instance is stopped first.
	// Start itself never blocks on the start function; it returns once the
	// goroutine has been launched.
	Start(ctx context.Context) error

	// Stop requests the start function to return by calling the configured
	// stop function, then waits for the start goroutine to finish or for ctx
	// to be cancelled.
	Stop(ctx context.Context) error

	// IsRunning reports whether the start function is currently executing.
	IsRunning() bool

	// Uptime returns how long the runner has been running, or zero if it is
	// not currently running.
	Uptime() time.Duration

	// ErrorsLast returns the most recent error returned by either the start
	// or the stop function, or nil if none occurred.
	ErrorsLast() error

	// ErrorsList returns every error captured since the runner was created.
	ErrorsList() []error
}

// New creates a Runner around the given start and stop functions. Either may
// be nil; calling Start/Stop on a nil function records an error instead of
// panicking.
func New(start FuncStart, stop FuncStop) Runner {
	return &runner{
		start: start,
		stop:  stop,
	}
}
