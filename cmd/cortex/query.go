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

package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cortex/internal/bootstrap"
	"github.com/kraklabs/cortex/internal/errors"
	"github.com/kraklabs/cortex/internal/output"
	"github.com/kraklabs/cortex/internal/ui"
	"github.com/kraklabs/cortex/pkg/pipeline"
	"github.com/kraklabs/cortex/pkg/vectorstore"
)

// QueryMatch is one search hit in machine-readable output.
type QueryMatch struct {
	Rank       int            `json:"rank"`
	Similarity float64        `json:"similarity"`
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// QueryResult is the full outcome of 'cortex query'.
type QueryResult struct {
	Query   string       `json:"query"`
	K       int          `json:"k"`
	Count   int          `json:"count"`
	Matches []QueryMatch `json:"matches"`
}

// runQuery executes the 'query' CLI command: a one-shot semantic search
// over the workspace vector store.
func runQuery(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	k := fs.IntP("top", "k", 5, "Number of results")
	filters := fs.StringArray("filter", nil, "Metadata equality filter key=value (repeatable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cortex query [options] <text>

Description:
  Embeds the query text and returns the k most similar stored documents.
  Requires a local Ollama or an OPENAI_API_KEY for embeddings.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  cortex query "meeting notes from last week"
  cortex query -k 3 "golang concurrency"
  cortex query --filter source=watch --json "project ideas"
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		errors.FatalError(errors.NewInputError(
			"Missing query text",
			"'cortex query' needs the text to search for",
			"Run: cortex query \"your search text\"",
		), globals.JSON)
	}
	queryText := strings.Join(fs.Args(), " ")

	filter, err := parseFilters(*filters)
	if err != nil {
		errors.FatalError(errors.NewInputError(
			"Invalid --filter",
			err.Error(),
			"Use key=value, e.g. --filter source=watch",
		), globals.JSON)
	}

	info, err := bootstrap.Open(bootstrap.WorkspaceConfig{WorkspaceID: globals.Workspace}, nil)
	if err != nil {
		errors.FatalError(errors.NewNotFoundError(
			"Workspace not found",
			err.Error(),
			"Run 'cortex init' first",
		), globals.JSON)
	}

	embedder, err := pipeline.DefaultEmbedder(nil)
	if err != nil {
		errors.FatalError(errors.NewNetworkError(
			"No embedding provider available",
			err.Error(),
			"Start Ollama or set OPENAI_API_KEY",
			err,
		), globals.JSON)
	}

	store, err := vectorstore.New(vectorstore.Options{
		Path:       info.VectorDBPath,
		Collection: info.Collection,
		Embedder:   embedder,
	})
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot open vector store",
			err.Error(),
			"Check that no other cortex instance holds the database",
			err,
		), globals.JSON)
	}
	defer func() { _ = store.Close() }()

	matches, err := store.Query(context.Background(), queryText, *k, filter)
	if err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Query failed",
			err.Error(),
			"Check the embedding provider and retry",
			err,
		), globals.JSON)
	}

	result := &QueryResult{Query: queryText, K: *k, Count: len(matches), Matches: make([]QueryMatch, 0, len(matches))}
	for _, m := range matches {
		result.Matches = append(result.Matches, QueryMatch{
			Rank:       m.Rank,
			Similarity: m.Similarity,
			ID:         m.Document.ID,
			Content:    m.Document.Content,
			Metadata:   m.Document.Metadata,
		})
	}

	if globals.JSON {
		_ = output.JSON(result)
		return
	}
	printQueryResult(result)
}

// parseFilters turns repeated key=value flags into an equality filter map.
func parseFilters(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	filter := make(map[string]any, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%q is not key=value", kv)
		}
		filter[key] = value
	}
	return filter, nil
}

func printQueryResult(result *QueryResult) {
	if result.Count == 0 {
		ui.Info("No matches")
		return
	}

	for _, m := range result.Matches {
		header := fmt.Sprintf("%d. [%.3f] %s", m.Rank, m.Similarity, m.ID)
		_, _ = ui.Bold.Println(header)
		fmt.Println(indent(preview(m.Content, 400), "   "))
		if len(m.Metadata) > 0 {
			_, _ = ui.Dim.Println(indent(formatMetadata(m.Metadata), "   "))
		}
		fmt.Println()
	}
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func formatMetadata(meta map[string]any) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, meta[k]))
	}
	return strings.Join(parts, " ")
}
