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

// Package prompt manages the prompt template registry: typed templates with
// declared variables, rendered into LLM prompts by the processors. Templates
// persist as one JSON file each under a configured directory and survive
// restarts; writes are atomic.
package prompt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	errs "github.com/kraklabs/cortex/internal/errors"
)

// Registry loads, persists and renders prompt templates.
type Registry struct {
	dir    string
	logger *slog.Logger

	mu     sync.RWMutex
	byID   map[string]*Template
	byName map[string]string // name -> id
}

// Rendered is the outcome of Render: the substituted text plus any
// per-model options the template carries for the requested model.
type Rendered struct {
	Text    string
	Options *ModelOptions
}

// Execution is the feedback recorded after a template-driven LLM call.
type Execution struct {
	Model        string
	QualityScore *float64 // optional, in [0, 1]
	Success      bool
}

// Filter narrows List results.
type Filter struct {
	Category Category
	Tags     []string // template must carry every listed tag
	SortKey  string   // name | usage_count | created_at | updated_at
}

// Stats summarises the registry.
type Stats struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
	TotalUsage int            `json:"total_usage"`
	MostUsed   string         `json:"most_used,omitempty"`
}

// ExportPayload is the import/export envelope.
type ExportPayload struct {
	ExportVersion   string      `json:"export_version"`
	ExportTimestamp time.Time   `json:"export_timestamp"`
	Templates       []*Template `json:"templates"`
}

// ExportVersion is the current envelope version.
const ExportVersion = "1.0"

// NewRegistry opens (creating if needed) the template directory and loads
// every {id}.json record in it. Corrupt files are skipped with a warning so
// a single torn record never takes the registry down.
func NewRegistry(dir string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return nil, errs.E(errs.InvalidInput, "template directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.StorageIO, "create template directory", err)
	}

	r := &Registry{
		dir:    dir,
		logger: logger,
		byID:   make(map[string]*Template),
		byName: make(map[string]string),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(errs.StorageIO, "scan template directory", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("prompt.registry.load.skip", "file", entry.Name(), "error", err)
			continue
		}
		var t Template
		if err := json.Unmarshal(data, &t); err != nil {
			logger.Warn("prompt.registry.load.skip", "file", entry.Name(), "error", err)
			continue
		}
		if t.ID == "" {
			logger.Warn("prompt.registry.load.skip", "file", entry.Name(), "error", "missing id")
			continue
		}
		if existing, ok := r.byName[t.Name]; ok {
			logger.Warn("prompt.registry.load.name_collision",
				"name", t.Name, "kept", t.ID, "replaced", existing)
			delete(r.byID, existing)
		}
		r.byID[t.ID] = &t
		r.byName[t.Name] = t.ID
	}

	logger.Debug("prompt.registry.loaded", "dir", dir, "templates", len(r.byID))
	return r, nil
}

// Dir returns the directory backing the registry.
func (r *Registry) Dir() string {
	return r.dir
}

// Create validates and persists a new template. The caller's struct is not
// retained; the stored copy is returned with ID, version and timestamps set.
func (r *Registry) Create(t *Template) (*Template, error) {
	if t == nil {
		return nil, errs.E(errs.InvalidInput, "template must not be nil")
	}

	stored := t.Clone()
	if stored.Category == "" {
		stored.Category = CategoryCustom
	}
	if err := stored.validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[stored.Name]; exists {
		return nil, errs.E(errs.InvalidInput, "template name %q already exists", stored.Name)
	}

	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if _, exists := r.byID[stored.ID]; exists {
		return nil, errs.E(errs.InvalidInput, "template id %s already exists", stored.ID)
	}
	if stored.Version == 0 {
		stored.Version = 1
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	if err := r.save(stored); err != nil {
		return nil, err
	}
	r.byID[stored.ID] = stored
	r.byName[stored.Name] = stored.ID

	r.logger.Debug("prompt.registry.create",
		"id", stored.ID,
		"name", stored.Name,
		"category", string(stored.Category),
	)
	return stored.Clone(), nil
}

// GetByID returns a copy of the template with the given id.
func (r *Registry) GetByID(id string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "template %s not found", id)
	}
	return t.Clone(), nil
}

// GetByName returns a copy of the template with the given name.
func (r *Registry) GetByName(name string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return nil, errs.E(errs.NotFound, "template %q not found", name)
	}
	return r.byID[id].Clone(), nil
}

// List returns copies of templates matching the filter. Sorting defaults to
// name ascending; usage_count sorts most-used first.
func (r *Registry) List(filter Filter) []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Template
	for _, t := range r.byID {
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		if !hasAllTags(t.Tags, filter.Tags) {
			continue
		}
		out = append(out, t.Clone())
	}

	switch filter.SortKey {
	case "usage_count":
		sort.Slice(out, func(i, j int) bool {
			if out[i].UsageCount != out[j].UsageCount {
				return out[i].UsageCount > out[j].UsageCount
			}
			return out[i].Name < out[j].Name
		})
	case "created_at":
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	case "updated_at":
		sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	}
	return out
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Updates carries partial template changes; nil fields stay untouched.
type Updates struct {
	Name           *string
	Description    *string
	Category       *Category
	Template       *string
	Variables      []Variable
	Tags           []string
	Author         *string
	ModelOverrides map[string]ModelOptions
}

// Update applies the changes, re-validates, bumps the version and persists.
func (r *Registry) Update(id string, u Updates) (*Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "template %s not found", id)
	}

	updated := current.Clone()
	if u.Name != nil {
		updated.Name = *u.Name
	}
	if u.Description != nil {
		updated.Description = *u.Description
	}
	if u.Category != nil {
		updated.Category = *u.Category
	}
	if u.Template != nil {
		updated.Template = *u.Template
	}
	if u.Variables != nil {
		updated.Variables = u.Variables
	}
	if u.Tags != nil {
		updated.Tags = u.Tags
	}
	if u.Author != nil {
		updated.Author = *u.Author
	}
	if u.ModelOverrides != nil {
		updated.ModelOverrides = u.ModelOverrides
	}

	if err := updated.validate(); err != nil {
		return nil, err
	}
	if updated.Name != current.Name {
		if _, exists := r.byName[updated.Name]; exists {
			return nil, errs.E(errs.InvalidInput, "template name %q already exists", updated.Name)
		}
	}

	updated.Version = current.Version + 1
	updated.UpdatedAt = time.Now().UTC()

	if err := r.save(updated); err != nil {
		return nil, err
	}
	if updated.Name != current.Name {
		delete(r.byName, current.Name)
	}
	r.byID[id] = updated
	r.byName[updated.Name] = id

	r.logger.Debug("prompt.registry.update", "id", id, "version", updated.Version)
	return updated.Clone(), nil
}

// Delete removes the template from disk and memory.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return errs.E(errs.NotFound, "template %s not found", id)
	}
	if err := os.Remove(r.recordPath(id)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.StorageIO, "delete template record", err)
	}
	delete(r.byID, id)
	delete(r.byName, t.Name)

	r.logger.Debug("prompt.registry.delete", "id", id, "name", t.Name)
	return nil
}

// Render substitutes vars into the template and returns the text together
// with the template's model overrides for the requested model (nil when
// none apply). Rendering never mutates the template; usage accounting
// happens in LogExecution.
func (r *Registry) Render(id string, vars map[string]string, model string) (*Rendered, error) {
	r.mu.RLock()
	t, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.E(errs.NotFound, "template %s not found", id)
	}

	text, err := t.render(vars)
	if err != nil {
		return nil, err
	}

	rendered := &Rendered{Text: text}
	if model != "" {
		if mo, found := t.ModelOverrides[model]; found {
			opts := mo.clone()
			rendered.Options = &opts
		}
	}
	return rendered, nil
}

// LogExecution records one template-driven call: bumps usage_count and
// last_used and folds the outcome into the running success and quality
// means. The updated record is persisted.
func (r *Registry) LogExecution(id string, exec Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return errs.E(errs.NotFound, "template %s not found", id)
	}

	t.UsageCount++
	now := time.Now().UTC()
	t.LastUsed = &now

	success := 0.0
	if exec.Success {
		success = 1.0
	}
	t.SuccessRate += (success - t.SuccessRate) / float64(t.UsageCount)

	if exec.QualityScore != nil {
		t.QualitySamples++
		t.AvgQualityScore += (*exec.QualityScore - t.AvgQualityScore) / float64(t.QualitySamples)
	}

	return r.save(t)
}

// Export bundles templates (all when no ids are given) into the portable
// envelope, sorted by name for stable output.
func (r *Registry) Export(ids ...string) (*ExportPayload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var templates []*Template
	if len(ids) == 0 {
		for _, t := range r.byID {
			templates = append(templates, t.Clone())
		}
	} else {
		for _, id := range ids {
			t, ok := r.byID[id]
			if !ok {
				return nil, errs.E(errs.NotFound, "template %s not found", id)
			}
			templates = append(templates, t.Clone())
		}
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })

	return &ExportPayload{
		ExportVersion:   ExportVersion,
		ExportTimestamp: time.Now().UTC(),
		Templates:       templates,
	}, nil
}

// Import loads templates from an export payload. Existing templates (by id
// or name) are skipped unless overwrite is set. Returns how many templates
// were written.
func (r *Registry) Import(payload *ExportPayload, overwrite bool) (int, error) {
	if payload == nil {
		return 0, errs.E(errs.InvalidInput, "import payload must not be nil")
	}
	if payload.ExportVersion != ExportVersion {
		return 0, errs.E(errs.InvalidInput,
			"unsupported export version %q (want %s)", payload.ExportVersion, ExportVersion)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	imported := 0
	for _, incoming := range payload.Templates {
		t := incoming.Clone()
		if t.Category == "" {
			t.Category = CategoryCustom
		}
		if err := t.validate(); err != nil {
			return imported, fmt.Errorf("template %q: %w", t.Name, err)
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}

		existingID, nameTaken := r.byName[t.Name]
		_, idTaken := r.byID[t.ID]
		if (nameTaken || idTaken) && !overwrite {
			r.logger.Debug("prompt.registry.import.skip", "name", t.Name)
			continue
		}
		if nameTaken && existingID != t.ID {
			// Overwrite by name: retire the old record.
			if err := os.Remove(r.recordPath(existingID)); err != nil && !os.IsNotExist(err) {
				return imported, errs.Wrap(errs.StorageIO, "replace template record", err)
			}
			delete(r.byID, existingID)
		}

		now := time.Now().UTC()
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now
		if t.Version == 0 {
			t.Version = 1
		}

		if err := r.save(t); err != nil {
			return imported, err
		}
		r.byID[t.ID] = t
		r.byName[t.Name] = t.ID
		imported++
	}

	r.logger.Info("prompt.registry.import",
		"templates", imported,
		"overwrite", overwrite,
	)
	return imported, nil
}

// Stats returns totals, per-category counts and the most used template name.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Total:      len(r.byID),
		ByCategory: make(map[string]int),
	}
	maxUsage := 0
	for _, t := range r.byID {
		stats.ByCategory[string(t.Category)]++
		stats.TotalUsage += t.UsageCount
		if t.UsageCount > maxUsage {
			maxUsage = t.UsageCount
			stats.MostUsed = t.Name
		}
	}
	return stats
}

func (r *Registry) recordPath(id string) string {
	return filepath.Join(r.dir, id+".json")
}

// save writes the template record atomically: marshal, write to a temp
// file, rename over the destination.
func (r *Registry) save(t *Template) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errs.Wrap(errs.StorageIO, "marshal template", err)
	}

	path := r.recordPath(t.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.StorageIO, "write template record", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.StorageIO, "rename template record", err)
	}
	return nil
}
