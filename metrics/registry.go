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

package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	libfdp "github.com/nabbar/golib/fdpool"
	libhtc "github.com/nabbar/golib/httpconn"
	libsrv "github.com/nabbar/golib/httpserver"
)

// Registry collects every Metric this package builds for one event loop's
// FDPool and HTTP engines, ready to be handed to a prometheus.Registerer.
type Registry struct {
	fdQueueDepth Metric
	fdReadRate   Metric
	fdWriteRate  Metric
	httpRequests Metric
	httpStatus   Metric
	httpLatency  Metric
}

// NewRegistry builds a Registry with its FDPool gauges already wired to
// pool via their CollectFunc; pool's state is only ever read, never
// mutated, by the scrape-time callback.
func NewRegistry(namespace string, pool libfdp.FDPool) *Registry {
	prefix := namespace
	if prefix != "" {
		prefix += "_"
	}

	r := &Registry{
		fdQueueDepth: NewMetric(prefix+"fdpool_queue_depth", Gauge).
			SetDesc("number of transfers currently queued across every fd"),
		fdReadRate: NewMetric(prefix+"fdpool_read_bytes_per_second", Gauge).
			SetDesc("moving average of bytes read per second across every fd"),
		fdWriteRate: NewMetric(prefix+"fdpool_write_bytes_per_second", Gauge).
			SetDesc("moving average of bytes written per second across every fd"),
		httpRequests: NewMetric(prefix+"http_requests_total", Counter, "method").
			SetDesc("count of dispatched HTTP requests by method"),
		httpStatus: NewMetric(prefix+"http_responses_total", Counter, "status").
			SetDesc("count of HTTP responses by status code"),
		httpLatency: NewMetric(prefix+"http_request_duration_seconds", Gauge, "method").
			SetDesc("duration of the most recently completed HTTP request, by method"),
	}

	r.fdQueueDepth.SetCollect(func(_ context.Context, m Metric) {
		_ = m.SetGaugeValue(nil, float64(pool.QueueDepth()))
	})
	r.fdReadRate.SetCollect(func(_ context.Context, m Metric) {
		_ = m.SetGaugeValue(nil, pool.ReadRate().BytesPerSecond())
	})
	r.fdWriteRate.SetCollect(func(_ context.Context, m Metric) {
		_ = m.SetGaugeValue(nil, pool.WriteRate().BytesPerSecond())
	})

	return r
}

// Collectors lists every metric this registry owns, ready for
// prometheus.Registerer.MustRegister(registry.Collectors()...).
func (r *Registry) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.fdQueueDepth,
		r.fdReadRate,
		r.fdWriteRate,
		r.httpRequests,
		r.httpStatus,
		r.httpLatency,
	}
}

// WrapHandler returns next unchanged in behaviour, counting each dispatched
// request by method, each produced response by status code, and recording
// the wall-clock duration of the most recently completed request.
func (r *Registry) WrapHandler(next libsrv.HandlerFunc) libsrv.HandlerFunc {
	return func(req *libhtc.Request) (int, libhtc.Header, []byte) {
		start := time.Now()
		status, hdr, body := next(req)

		_ = r.httpRequests.Inc([]string{req.Method()})
		_ = r.httpStatus.Inc([]string{strconv.Itoa(status)})
		_ = r.httpLatency.SetGaugeValue([]string{req.Method()}, time.Since(start).Seconds())

		return status, hdr, body
	}
}
