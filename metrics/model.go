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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metric struct {
	name   string
	typ    MetricType
	desc   string
	labels []string

	mu      sync.Mutex
	collect CollectFunc

	counter *prometheus.CounterVec
	gauge   *prometheus.GaugeVec
}

func newMetric(name string, t MetricType, labels []string) *metric {
	m := &metric{
		name:   name,
		typ:    t,
		labels: labels,
	}

	switch t {
	case Counter:
		m.counter = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name}, labels)
	default:
		m.gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name}, labels)
	}

	return m
}

func (m *metric) GetName() string        { return m.name }
func (m *metric) GetType() MetricType    { return m.typ }
func (m *metric) GetDesc() string        { return m.desc }
func (m *metric) GetLabel() []string     { return m.labels }
func (m *metric) GetCollect() CollectFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect
}

func (m *metric) SetDesc(desc string) Metric {
	m.desc = desc
	return m
}

func (m *metric) SetCollect(fn CollectFunc) Metric {
	m.mu.Lock()
	m.collect = fn
	m.mu.Unlock()
	return m
}

func (m *metric) SetGaugeValue(labelValues []string, value float64) error {
	if m.gauge == nil {
		return ErrorWrongMetricType.Error()
	}
	g, err := m.gauge.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		return ErrorLabelMismatch.Error(err)
	}
	g.Set(value)
	return nil
}

func (m *metric) Inc(labelValues []string) error {
	return m.Add(labelValues, 1)
}

func (m *metric) Add(labelValues []string, delta float64) error {
	if m.counter == nil {
		return ErrorWrongMetricType.Error()
	}
	c, err := m.counter.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		return ErrorLabelMismatch.Error(err)
	}
	c.Add(delta)
	return nil
}

// Describe and Collect satisfy prometheus.Collector, running the pull
// callback (if any) right before handing the underlying vec's series to the
// registry, so a scrape always sees a fresh value.
func (m *metric) Describe(ch chan<- *prometheus.Desc) {
	m.collector().Describe(ch)
}

func (m *metric) Collect(ch chan<- prometheus.Metric) {
	if fn := m.GetCollect(); fn != nil {
		fn(context.Background(), m)
	}
	m.collector().Collect(ch)
}

func (m *metric) collector() prometheus.Collector {
	if m.counter != nil {
		return m.counter
	}
	return m.gauge
}
