// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsWatch struct {
	once sync.Once

	events    prometheus.Counter
	dropped   prometheus.Counter
	debounced prometheus.Counter
	enqueued  prometheus.Counter
	queueFull prometheus.Counter
}

var watchMetrics metricsWatch

func (m *metricsWatch) init() {
	m.once.Do(func() {
		m.events = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_watch_events_total",
			Help: "Filesystem events received",
		})
		m.dropped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_watch_events_dropped_total",
			Help: "Events dropped by the filter chain",
		})
		m.debounced = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_watch_events_debounced_total",
			Help: "Events coalesced by the per-path debounce window",
		})
		m.enqueued = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_watch_items_enqueued_total",
			Help: "Queue items produced from filesystem events",
		})
		m.queueFull = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_watch_queue_full_total",
			Help: "Enqueue attempts rejected by a full queue",
		})

		prometheus.MustRegister(m.events, m.dropped, m.debounced, m.enqueued, m.queueFull)
	})
}

func recordWatchEvent()     { watchMetrics.init(); watchMetrics.events.Inc() }
func recordWatchDropped()   { watchMetrics.init(); watchMetrics.dropped.Inc() }
func recordWatchDebounced() { watchMetrics.init(); watchMetrics.debounced.Inc() }
func recordWatchEnqueued()  { watchMetrics.init(); watchMetrics.enqueued.Inc() }
func recordWatchQueueFull() { watchMetrics.init(); watchMetrics.queueFull.Inc() }
