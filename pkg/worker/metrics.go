// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package worker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsWorker holds Prometheus metrics for the worker pool.
type metricsWorker struct {
	once sync.Once

	processed  prometheus.Counter
	failed     prometheus.Counter
	retries    prometheus.Counter
	cancelled  prometheus.Counter
	duration   prometheus.Histogram
	queueDepth prometheus.Gauge
}

var poolMetrics metricsWorker

func (m *metricsWorker) init() {
	m.once.Do(func() {
		m.processed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_pipeline_items_processed_total",
			Help: "Queue items completed successfully",
		})
		m.failed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_pipeline_items_failed_total",
			Help: "Queue items that failed terminally",
		})
		m.retries = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_pipeline_retries_total",
			Help: "Failed items returned to the queue for another attempt",
		})
		m.cancelled = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_pipeline_items_cancelled_total",
			Help: "Items cancelled while processing",
		})
		m.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cortex_pipeline_processing_seconds",
			Help:    "Wall-clock time spent processing one item",
			Buckets: prometheus.ExponentialBuckets(0.01, 3, 10),
		})
		m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cortex_queue_depth",
			Help: "Pending items in the processing queue",
		})

		prometheus.MustRegister(m.processed, m.failed, m.retries, m.cancelled, m.duration, m.queueDepth)
	})
}

func recordProcessed(seconds float64) {
	poolMetrics.init()
	poolMetrics.processed.Inc()
	poolMetrics.duration.Observe(seconds)
}

func recordFailed()    { poolMetrics.init(); poolMetrics.failed.Inc() }
func recordRetry()     { poolMetrics.init(); poolMetrics.retries.Inc() }
func recordCancelled() { poolMetrics.init(); poolMetrics.cancelled.Inc() }

func recordQueueDepth(n int) {
	poolMetrics.init()
	poolMetrics.queueDepth.Set(float64(n))
}
