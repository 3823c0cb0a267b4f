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

package vectorstore

import (
	"context"
	"math"
	"reflect"
	"sort"

	errs "github.com/kraklabs/cortex/internal/errors"
)

// Match is one query hit. Similarity is in [0, 1]; Rank is 1-based and
// dense, so ties share a rank.
type Match struct {
	Document   Document `json:"document"`
	Similarity float64  `json:"similarity"`
	Rank       int      `json:"rank"`
}

// Query embeds queryText and returns the k nearest documents by L2 distance,
// most similar first. filter is an AND of equality predicates over metadata
// keys; an unknown key selects nothing. k <= 0 returns an empty result.
func (s *Store) Query(ctx context.Context, queryText string, k int, filter map[string]any) ([]Match, error) {
	if queryText == "" {
		return nil, errs.E(errs.InvalidInput, "query text must not be empty")
	}
	if k <= 0 {
		return nil, nil
	}
	if s.embedder == nil {
		return nil, errs.E(errs.NoProviderAvailable, "store has no embedding provider")
	}

	qvec, _, err := s.embedder.EmbedOne(ctx, queryText)
	if err != nil {
		if errs.KindOf(err) == "" {
			return nil, errs.Wrap(errs.EmbeddingFailure, "embed query", err)
		}
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, s.errClosed()
	}

	var dimension int
	if err := s.db.QueryRowContext(ctx,
		`SELECT dimension FROM collections WHERE name = ?`, s.collection,
	).Scan(&dimension); err != nil {
		return nil, errs.Wrap(errs.StorageIO, "read collection dimension", err)
	}
	if dimension == 0 {
		// Empty collection.
		return nil, nil
	}
	if dimension != len(qvec) {
		return nil, errs.E(errs.DimensionMismatch,
			"query embedding has dimension %d, collection %q is locked to %d",
			len(qvec), s.collection, dimension)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata, embedding, embedding_model, created_at, seq
		 FROM documents WHERE collection = ? ORDER BY seq`, s.collection,
	)
	if err != nil {
		return nil, errs.Wrap(errs.StorageIO, "scan collection", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []Match
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, errs.Wrap(errs.StorageIO, "scan document", err)
		}
		if !matchesFilter(doc.Metadata, filter) {
			continue
		}
		matches = append(matches, Match{
			Document:   *doc,
			Similarity: similarity(qvec, doc.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.StorageIO, "scan collection", err)
	}

	// Candidates arrive in seq order; a stable sort keeps insertion order
	// as the tie-break.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > k {
		matches = matches[:k]
	}

	rank := 0
	for i := range matches {
		if i == 0 || matches[i].Similarity < matches[i-1].Similarity {
			rank++
		}
		matches[i].Rank = rank
	}
	return matches, nil
}

// similarity maps L2 distance into (0, 1]: identical vectors score 1.
func similarity(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return 1.0 / (1.0 + math.Sqrt(sum))
}

// matchesFilter applies an AND of equality predicates over metadata.
func matchesFilter(metadata, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok || !equalValues(got, want) {
			return false
		}
	}
	return true
}

// equalValues compares a stored metadata value (decoded from JSON, so
// numbers are float64) against a caller-supplied filter value, tolerating
// Go's integer types on the filter side.
func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	return 0, false
}
