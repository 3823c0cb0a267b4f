// Copyright 2026 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package embedding

import (
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"context"

	errs "github.com/kraklabs/cortex/internal/errors"
)

// RetryConfig controls retry behaviour for provider calls.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryConfig returns the retry policy used by the HTTP providers.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
	}
}

// normalize fills zero values so a partially specified config never causes a
// busy loop.
func (c RetryConfig) normalize() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 2 * time.Second
	}
	if c.Multiplier <= 1.0 {
		c.Multiplier = 2.0
	}
	return c
}

// withRetry runs fn up to cfg.MaxRetries times, sleeping an exponentially
// growing, fully jittered backoff between attempts. Only errors classified as
// retryable are retried; everything else surfaces immediately.
func withRetry(ctx context.Context, cfg RetryConfig, logger *slog.Logger, event string, fn func() error) error {
	cfg = cfg.normalize()

	var err error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isRetryableError(err) || attempt == cfg.MaxRetries-1 {
			return err
		}
		sleep := computeBackoffWithJitter(cfg.InitialBackoff, attempt, cfg.Multiplier, cfg.MaxBackoff)
		recordEmbedRetry()
		logger.Warn(event,
			"attempt", attempt+1,
			"sleep_ms", sleep.Milliseconds(),
			"err", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return err
}

// isRetryableError classifies provider errors: taxonomy-tagged transient
// kinds first, then a best-effort scan of the error text for network and
// HTTP 5xx/429 signatures.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	switch errs.KindOf(err) {
	case errs.ProviderTransport, errs.RateLimited, errs.Timeout:
		return true
	case errs.AuthFailure, errs.NotFound, errs.InvalidInput, errs.EmbeddingFailure:
		return false
	}

	msg := err.Error()
	retrySubstr := []string{
		"timeout", "temporarily unavailable", "connection refused",
		"connection reset", "deadline exceeded", "EOF",
	}
	for _, s := range retrySubstr {
		if containsFold(msg, s) {
			return true
		}
	}
	httpRetry := []string{" 429 ", " 500 ", " 502 ", " 503 ", " 504 "}
	for _, s := range httpRetry {
		if containsFold(msg, s) {
			return true
		}
	}
	return false
}

// computeBackoffWithJitter returns exponential backoff with full jitter.
func computeBackoffWithJitter(base time.Duration, attempt int, mult float64, capDur time.Duration) time.Duration {
	exp := float64(base)
	for i := 0; i < attempt; i++ {
		exp *= mult
	}
	d := time.Duration(exp)
	if d > capDur {
		d = capDur
	}
	if d <= 0 {
		return base
	}
	// full jitter [0, d]
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// containsFold is a lightweight strings.ContainsFold.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
