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
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cortex/internal/bootstrap"
	"github.com/kraklabs/cortex/internal/errors"
	"github.com/kraklabs/cortex/internal/output"
	"github.com/kraklabs/cortex/internal/ui"
	"github.com/kraklabs/cortex/pkg/config"
	"github.com/kraklabs/cortex/pkg/vectorstore"
)

// StatusResult represents the workspace status for JSON output.
type StatusResult struct {
	Workspace      string         `json:"workspace"`
	DataDir        string         `json:"data_dir"`
	Collection     string         `json:"collection"`
	Documents      int64          `json:"documents"`
	EmbeddingModel string         `json:"embedding_model,omitempty"`
	Dimension      int            `json:"dimension"`
	Config         map[string]any `json:"config,omitempty"`
	Error          string         `json:"error,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// runStatus executes the 'status' CLI command, showing workspace and store
// statistics plus the active configuration summary.
func runStatus(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cortex status [options]

Description:
  Shows the workspace location, document counts in the vector store and a
  summary of the active .cortex.yaml configuration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  cortex status
  cortex status --json
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	result := &StatusResult{Workspace: globals.Workspace, Timestamp: time.Now().UTC()}

	info, err := bootstrap.Open(bootstrap.WorkspaceConfig{WorkspaceID: globals.Workspace}, nil)
	if err != nil {
		result.Error = err.Error()
		if globals.JSON {
			_ = output.JSON(result)
		} else {
			fmt.Printf("Workspace '%s' not initialized.\n", globals.Workspace)
			fmt.Println("Run 'cortex init' to create it.")
		}
		os.Exit(0)
	}
	result.DataDir = info.DataDir
	result.Collection = info.Collection

	store, err := vectorstore.New(vectorstore.Options{
		Path:       info.VectorDBPath,
		Collection: info.Collection,
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

	stats, err := store.Stats(context.Background())
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Documents = stats.Count
		result.EmbeddingModel = stats.EmbeddingInfo.Model
		result.Dimension = stats.EmbeddingInfo.Dimension
	}

	if cfg, err := config.Load(globals.ConfigPath); err == nil {
		result.Config = cfg.Summary()
	}

	if globals.JSON {
		_ = output.JSON(result)
		return
	}
	printStatus(result)
}

func printStatus(result *StatusResult) {
	ui.Header("cortex status")
	fmt.Printf("Workspace:   %s\n", result.Workspace)
	fmt.Printf("Data Dir:    %s\n", result.DataDir)
	fmt.Printf("Collection:  %s\n", result.Collection)
	fmt.Println()

	fmt.Println("Vector store:")
	fmt.Printf("  Documents:   %d\n", result.Documents)
	if result.EmbeddingModel != "" {
		fmt.Printf("  Model:       %s\n", result.EmbeddingModel)
	}
	fmt.Printf("  Dimension:   %d\n", result.Dimension)

	if result.Config != nil {
		fmt.Println()
		fmt.Println("Configuration:")
		if dirs, ok := result.Config["watched_directories"].([]string); ok {
			fmt.Printf("  Watched:     %s\n", joinOrNone(dirs))
		}
		if tasks, ok := result.Config["processing_tasks"].([]string); ok {
			fmt.Printf("  Tasks:       %s\n", joinOrNone(tasks))
		}
		fmt.Printf("  Workers:     %v\n", result.Config["max_concurrent"])
		fmt.Printf("  Debounce:    %vs\n", result.Config["debounce_seconds"])
	}

	if result.Error != "" {
		fmt.Println()
		ui.Warning(result.Error)
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
