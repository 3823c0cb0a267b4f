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

// Package queue implements the priority-ordered processing queue sitting
// between the file watcher and the worker pool. Items move through
// pending -> processing -> completed/failed/cancelled; failed items with
// retries left re-enter pending at the head of the queue.
package queue

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	errs "github.com/kraklabs/cortex/internal/errors"
)

// Queue is a size-capped, priority-ordered work queue. All operations are
// atomic with respect to a single internal mutex; none of them block.
type Queue struct {
	mu sync.Mutex

	maxSize int
	logger  *slog.Logger

	// pending is weakly sorted by priority ascending; equal priorities
	// keep insertion order. Retries are re-inserted at the head.
	pending    []*QueueItem
	processing map[string]*QueueItem
	completed  map[string]*QueueItem
	// failed holds both exhausted and cancelled items, told apart by Status.
	failed map[string]*QueueItem

	// cancelRequested flags processing items; workers observe the flag
	// at their next checkpoint.
	cancelRequested map[string]bool

	totalAdded     uint64
	totalProcessed uint64
	totalFailed    uint64
	totalCancelled uint64
}

// Status is an aggregate snapshot of the queue.
type Status struct {
	Pending        int    `json:"pending"`
	Processing     int    `json:"processing"`
	Completed      int    `json:"completed"`
	Failed         int    `json:"failed"`
	Cancelled      int    `json:"cancelled"`
	MaxSize        int    `json:"max_size"`
	TotalAdded     uint64 `json:"total_added"`
	TotalProcessed uint64 `json:"total_processed"`
	TotalFailed    uint64 `json:"total_failed"`
	TotalCancelled uint64 `json:"total_cancelled"`
}

// New creates a queue capped at maxSize pending items.
func New(maxSize int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Queue{
		maxSize:         maxSize,
		logger:          logger,
		processing:      make(map[string]*QueueItem),
		completed:       make(map[string]*QueueItem),
		failed:          make(map[string]*QueueItem),
		cancelRequested: make(map[string]bool),
	}
}

// Add enqueues an item. Missing fields are defaulted: ID (UUID), Kind
// (file_process), Priority (DefaultPriority when <= 0), CreatedAt.
// Returns QueueFull when the pending bucket is at capacity and
// InvalidInput when the item is malformed.
func (q *Queue) Add(item *QueueItem) error {
	if item == nil {
		return errs.E(errs.InvalidInput, "queue item must not be nil")
	}
	if item.Task == "" {
		return errs.E(errs.InvalidInput, "queue item task must not be empty")
	}
	if item.Kind == "" {
		item.Kind = KindFileProcess
	}
	if item.Kind == KindFileProcess {
		hasPath := item.FilePath != ""
		hasContent := item.Content != ""
		if hasPath == hasContent {
			return errs.E(errs.InvalidInput,
				"file_process item requires exactly one of file_path or content")
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) >= q.maxSize {
		q.logger.Warn("queue.add.full",
			"max_size", q.maxSize,
			"task", item.Task,
		)
		return errs.E(errs.QueueFull, "queue is full (%d pending items)", q.maxSize)
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Priority <= 0 {
		item.Priority = DefaultPriority
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item.Status = StatusPending

	// First index whose priority is strictly greater: stable FIFO
	// within a priority class.
	idx := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].Priority > item.Priority
	})
	q.pending = append(q.pending, nil)
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = item

	q.totalAdded++
	q.logger.Debug("queue.add",
		"id", item.ID,
		"task", item.Task,
		"priority", item.Priority,
		"pending", len(q.pending),
	)
	return nil
}

// Next pops the highest-priority pending item, moves it to processing and
// stamps StartedAt. Returns nil when the queue is empty.
func (q *Queue) Next() *QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}

	item := q.pending[0]
	q.pending = q.pending[1:]

	now := time.Now()
	item.StartedAt = &now
	item.Status = StatusProcessing
	q.processing[item.ID] = item

	q.logger.Debug("queue.next",
		"id", item.ID,
		"task", item.Task,
		"retry_count", item.RetryCount,
	)
	return item
}

// Complete moves a processing item to completed with its result.
func (q *Queue) Complete(id, content string, meta map[string]any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.processing[id]
	if !ok {
		return errs.E(errs.NotFound, "item %s is not processing", id)
	}
	delete(q.processing, id)
	delete(q.cancelRequested, id)

	now := time.Now()
	item.Status = StatusCompleted
	item.CompletedAt = &now
	item.ResultContent = content
	item.ResultMetadata = meta
	q.completed[id] = item
	q.totalProcessed++

	q.logger.Debug("queue.complete",
		"id", id,
		"task", item.Task,
		"elapsed_seconds", now.Sub(*item.StartedAt).Seconds(),
	)
	return nil
}

// Fail records a processing failure. Retryable errors with retries left
// return the item to the head of the pending queue with RetryCount
// incremented; non-retryable errors and exhausted items move to failed.
// A Cancelled error (or a pending cancel flag) is terminal.
func (q *Queue) Fail(id string, failErr error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.processing[id]
	if !ok {
		return errs.E(errs.NotFound, "item %s is not processing", id)
	}
	delete(q.processing, id)

	msg := "unknown error"
	if failErr != nil {
		msg = failErr.Error()
	}
	item.Error = msg

	if errs.IsKind(failErr, errs.Cancelled) || q.cancelRequested[id] {
		delete(q.cancelRequested, id)
		now := time.Now()
		item.Status = StatusCancelled
		item.CompletedAt = &now
		q.failed[id] = item
		q.totalCancelled++
		q.logger.Debug("queue.cancel.done", "id", id, "task", item.Task)
		return nil
	}

	if errs.Retryable(failErr) && item.RetryCount < item.MaxRetries {
		item.RetryCount++
		item.Status = StatusPending
		item.StartedAt = nil
		// Head insertion: retries preempt everything already queued.
		q.pending = append([]*QueueItem{item}, q.pending...)
		q.logger.Info("queue.fail.retry",
			"id", id,
			"task", item.Task,
			"retry_count", item.RetryCount,
			"max_retries", item.MaxRetries,
			"error", msg,
		)
		return nil
	}

	now := time.Now()
	item.Status = StatusFailed
	item.CompletedAt = &now
	q.failed[id] = item
	q.totalFailed++

	q.logger.Warn("queue.fail.terminal",
		"id", id,
		"task", item.Task,
		"retry_count", item.RetryCount,
		"error", msg,
	)
	return nil
}

// Cancel removes a pending item immediately. For a processing item it sets
// a flag the worker observes via IsCancelled at its next checkpoint.
// Terminal items cannot be cancelled.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.pending {
		if item.ID != id {
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		now := time.Now()
		item.Status = StatusCancelled
		item.CompletedAt = &now
		item.Error = "cancelled before processing"
		q.failed[id] = item
		q.totalCancelled++
		q.logger.Debug("queue.cancel.pending", "id", id, "task", item.Task)
		return nil
	}

	if _, ok := q.processing[id]; ok {
		q.cancelRequested[id] = true
		q.logger.Debug("queue.cancel.requested", "id", id)
		return nil
	}

	if _, ok := q.completed[id]; ok {
		return errs.E(errs.InvalidInput, "item %s already completed", id)
	}
	if _, ok := q.failed[id]; ok {
		return errs.E(errs.InvalidInput, "item %s already finished", id)
	}
	return errs.E(errs.NotFound, "item %s not found", id)
}

// IsCancelled reports whether cancellation was requested for a processing
// item. Workers poll this at their checkpoints.
func (q *Queue) IsCancelled(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelRequested[id]
}

// ClearCompleted drops completed items older than maxAge and returns how
// many were removed. maxAge <= 0 clears everything.
func (q *Queue) ClearCompleted(maxAge time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return clearOld(q.completed, maxAge)
}

// ClearFailed drops failed and cancelled items older than maxAge and
// returns how many were removed. maxAge <= 0 clears everything.
func (q *Queue) ClearFailed(maxAge time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return clearOld(q.failed, maxAge)
}

func clearOld(bucket map[string]*QueueItem, maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, item := range bucket {
		ts := item.CreatedAt
		if item.CompletedAt != nil {
			ts = *item.CompletedAt
		}
		if maxAge <= 0 || ts.Before(cutoff) {
			delete(bucket, id)
			removed++
		}
	}
	return removed
}

// Status returns aggregate counts. The monotonic totals never decrease
// across the queue's lifetime.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	failedCount, cancelledCount := 0, 0
	for _, item := range q.failed {
		if item.Status == StatusCancelled {
			cancelledCount++
		} else {
			failedCount++
		}
	}

	return Status{
		Pending:        len(q.pending),
		Processing:     len(q.processing),
		Completed:      len(q.completed),
		Failed:         failedCount,
		Cancelled:      cancelledCount,
		MaxSize:        q.maxSize,
		TotalAdded:     q.totalAdded,
		TotalProcessed: q.totalProcessed,
		TotalFailed:    q.totalFailed,
		TotalCancelled: q.totalCancelled,
	}
}

// Get returns a copy of the item with the given id, wherever it lives.
func (q *Queue) Get(id string) (QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if item, ok := q.processing[id]; ok {
		return item.clone(), true
	}
	if item, ok := q.completed[id]; ok {
		return item.clone(), true
	}
	if item, ok := q.failed[id]; ok {
		return item.clone(), true
	}
	for _, item := range q.pending {
		if item.ID == id {
			return item.clone(), true
		}
	}
	return QueueItem{}, false
}

// ByStatus returns copies of all items in the given state. Pending items
// come back in queue order; the other states have no defined order.
func (q *Queue) ByStatus(status ItemStatus) []QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []QueueItem
	switch status {
	case StatusPending:
		for _, item := range q.pending {
			out = append(out, item.clone())
		}
	case StatusProcessing:
		for _, item := range q.processing {
			out = append(out, item.clone())
		}
	case StatusCompleted:
		for _, item := range q.completed {
			out = append(out, item.clone())
		}
	case StatusFailed, StatusCancelled:
		for _, item := range q.failed {
			if item.Status == status {
				out = append(out, item.clone())
			}
		}
	}
	return out
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
