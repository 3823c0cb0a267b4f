// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package embedding

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsEmbedding holds Prometheus metrics for the embedding subsystem.
type metricsEmbedding struct {
	once sync.Once

	retries   prometheus.Counter
	failures  prometheus.Counter
	cacheHits prometheus.Counter
	fallbacks prometheus.Counter
}

var embMetrics metricsEmbedding

func (m *metricsEmbedding) init() {
	m.once.Do(func() {
		m.retries = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_embed_retries_total",
			Help: "Retried embedding provider calls",
		})
		m.failures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_embed_failures_total",
			Help: "Embedding provider calls that failed after retries",
		})
		m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_embed_cache_hits_total",
			Help: "Embeddings served from the fallback provider cache",
		})
		m.fallbacks = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_embed_fallbacks_total",
			Help: "Calls routed to the remote provider after a local failure",
		})

		prometheus.MustRegister(m.retries, m.failures, m.cacheHits, m.fallbacks)
	})
}

// record helpers - used by providers for metrics tracking
func recordEmbedRetry()    { embMetrics.init(); embMetrics.retries.Inc() }
func recordEmbedFailure()  { embMetrics.init(); embMetrics.failures.Inc() }
func recordEmbedCacheHit() { embMetrics.init(); embMetrics.cacheHits.Inc() }
func recordEmbedFallback() { embMetrics.init(); embMetrics.fallbacks.Inc() }
