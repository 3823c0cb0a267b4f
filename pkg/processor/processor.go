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

// Package processor gives every processing backend one uniform contract:
// Process(content, task, opts) -> Result. The worker pool dispatches queue
// items here without knowing whether the work is an LLM call or a vector
// store operation.
package processor

import (
	"context"
	"time"
)

// Kind identifies a processor variant. Values match the queue's
// processor_kind field.
type Kind string

const (
	KindLocalLLM  Kind = "local_llm"
	KindRemoteLLM Kind = "remote_llm"
	KindVector    Kind = "vector"
)

// Processor is the uniform processing contract.
type Processor interface {
	// Process runs a task over content. Failures are reported on the
	// Result envelope, not as a second return value, so callers always
	// get elapsed time and partial metadata.
	Process(ctx context.Context, content, task string, opts Options) Result

	// Kind returns the processor variant.
	Kind() Kind

	// Tasks lists the task names this processor accepts.
	Tasks() []string
}

// Options tune a single Process call. Zero values mean "use the template's
// or processor's default". Metadata carries task-specific parameters: the
// vector processor reads "document_id", "k", "filter" and "limit" from it
// and stores the rest with the document.
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   *int
	FilePath    string
	Metadata    map[string]any
}

// Result is the uniform processing outcome.
type Result struct {
	OK       bool
	Content  string
	Metadata map[string]any
	Elapsed  time.Duration
	Err      error
}

// failure builds an error Result stamped with elapsed time.
func failure(err error, started time.Time) Result {
	return Result{Err: err, Elapsed: time.Since(started)}
}

// containsTask reports whether task is in the list.
func containsTask(tasks []string, task string) bool {
	for _, t := range tasks {
		if t == task {
			return true
		}
	}
	return false
}
