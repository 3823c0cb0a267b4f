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

package queue

import (
	"time"
)

// ItemKind discriminates the payload of a queue item.
type ItemKind string

const (
	// KindFileProcess runs an AI task over a file path or inline content.
	KindFileProcess ItemKind = "file_process"
	// KindVectorStore routes directly to the vector processor.
	KindVectorStore ItemKind = "vector_store"
	// KindBatch groups several files under one logical job.
	KindBatch ItemKind = "batch"
)

// ProcessorKind selects which processor family handles an item.
type ProcessorKind string

const (
	ProcessorLocalLLM  ProcessorKind = "local_llm"
	ProcessorRemoteLLM ProcessorKind = "remote_llm"
	ProcessorVector    ProcessorKind = "vector"
)

// ItemStatus is the lifecycle state of a queue item.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
	StatusCancelled  ItemStatus = "cancelled"
)

// Priority and retry defaults applied by producers. Smaller priority values
// are more urgent.
const (
	DefaultPriority = 5
	WatchPriority   = 3
	DefaultRetries  = 3
)

// previewBytes caps the content preview carried on item snapshots.
const previewBytes = 100

// QueueItem is one unit of work flowing from the watcher through the queue
// to a worker. The queue owns the item for its entire lifetime; workers
// borrow the pointer returned by Next and hand the outcome back through
// Complete or Fail.
type QueueItem struct {
	ID        string        `json:"id"`
	Kind      ItemKind      `json:"kind"`
	FilePath  string        `json:"file_path,omitempty"`
	Content   string        `json:"content,omitempty"`
	Task      string        `json:"task"`
	Processor ProcessorKind `json:"processor_kind"`

	// Priority orders the pending queue: smaller runs first. Zero or
	// negative is normalised to DefaultPriority on Add.
	Priority int `json:"priority"`

	// Options are processor call options (model, temperature, max_tokens).
	Options map[string]any `json:"options,omitempty"`

	// Metadata travels with the item and is folded into stored results.
	Metadata map[string]any `json:"metadata,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	Status      ItemStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ResultContent  string         `json:"result_content,omitempty"`
	ResultMetadata map[string]any `json:"result_metadata,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// ProcessingTime returns completed_at - started_at when both are stamped.
func (it *QueueItem) ProcessingTime() *time.Duration {
	if it.StartedAt == nil || it.CompletedAt == nil {
		return nil
	}
	d := it.CompletedAt.Sub(*it.StartedAt)
	return &d
}

// Snapshot returns the item's transport form used for logging and CLI
// inspection. Inline content is reduced to a preview of the first 100 bytes.
func (it *QueueItem) Snapshot() map[string]any {
	snap := map[string]any{
		"id":             it.ID,
		"kind":           string(it.Kind),
		"task":           it.Task,
		"processor_kind": string(it.Processor),
		"status":         string(it.Status),
		"priority":       it.Priority,
		"retry_count":    it.RetryCount,
		"max_retries":    it.MaxRetries,
		"created_at":     it.CreatedAt,
	}

	if it.FilePath != "" {
		snap["file_path"] = it.FilePath
	} else {
		snap["file_path"] = nil
	}
	if it.StartedAt != nil {
		snap["started_at"] = *it.StartedAt
	}
	if it.CompletedAt != nil {
		snap["completed_at"] = *it.CompletedAt
	}
	if pt := it.ProcessingTime(); pt != nil {
		snap["processing_time"] = pt.Seconds()
	} else {
		snap["processing_time"] = nil
	}
	if it.Error != "" {
		snap["error"] = it.Error
	} else {
		snap["error"] = nil
	}
	if it.Content != "" {
		snap["content_preview"] = previewContent(it.Content)
	}

	return snap
}

func previewContent(content string) string {
	if len(content) <= previewBytes {
		return content
	}
	return content[:previewBytes] + "…"
}

// clone returns a copy safe to hand to callers: the metadata maps are
// duplicated so introspection cannot mutate queue state.
func (it *QueueItem) clone() QueueItem {
	cp := *it
	cp.Options = cloneMap(it.Options)
	cp.Metadata = cloneMap(it.Metadata)
	cp.ResultMetadata = cloneMap(it.ResultMetadata)
	if it.StartedAt != nil {
		t := *it.StartedAt
		cp.StartedAt = &t
	}
	if it.CompletedAt != nil {
		t := *it.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
