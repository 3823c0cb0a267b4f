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
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cortex/internal/errors"
	"github.com/kraklabs/cortex/internal/ui"
	"github.com/kraklabs/cortex/pkg/config"
	"github.com/kraklabs/cortex/pkg/pipeline"
)

// runWatch executes the 'watch' CLI command: it wires the full pipeline and
// runs it until interrupted.
func runWatch(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	processExisting := fs.Bool("process-existing", false, "Enqueue files already present before watching")
	timeout := fs.Duration("process-timeout", 5*time.Minute, "Per-item processing timeout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cortex watch [options]

Description:
  Runs the pipeline: watches the directories configured in .cortex.yaml,
  debounces filesystem events, processes changed files with the configured
  AI tasks and stores results in the workspace vector store.

  Stops cleanly on Ctrl-C; in-flight items finish first.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  cortex watch
  cortex watch --process-existing
  cortex -v 1 watch
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(globals.ConfigPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load configuration",
			err.Error(),
			"Run 'cortex init' to create a valid .cortex.yaml",
			err,
		), globals.JSON)
	}
	if len(cfg.Watched) == 0 {
		errors.FatalError(errors.NewConfigError(
			"No watched directories configured",
			".cortex.yaml has an empty 'watched' list",
			"Run 'cortex init --force --watch-dir <path>' or edit the config",
			nil,
		), globals.JSON)
	}

	p, err := pipeline.New(cfg, pipeline.Options{
		WorkspaceID:    globals.Workspace,
		ProcessTimeout: *timeout,
	})
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot start pipeline",
			err.Error(),
			"Fix the configuration issues and retry",
			err,
		), globals.JSON)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *processExisting {
		sweepBacklog(ctx, p, globals)
	}

	if !globals.Quiet {
		ui.Header("cortex pipeline")
		ui.Success(fmt.Sprintf("Watching %d directories (workers: %d)", len(cfg.Watched), cfg.MaxConcurrent))
		ui.Info("Press Ctrl-C to stop")
	}

	if err := p.Run(ctx); err != nil {
		errors.FatalError(errors.NewInternalError(
			"Pipeline stopped with an error",
			err.Error(),
			"Re-run with -v 2 for debug logs",
			err,
		), globals.JSON)
	}

	if !globals.Quiet {
		ui.Success("Pipeline stopped")
	}
}

// sweepBacklog enqueues files already on disk, with a progress bar when the
// terminal allows it.
func sweepBacklog(ctx context.Context, p *pipeline.Pipeline, globals GlobalFlags) {
	progressCfg := NewProgressConfig(globals)
	spinner := NewSpinner(progressCfg, "Scanning existing files...")

	count, err := p.Watcher().ProcessExistingFiles(ctx, "", func(path string) {
		if spinner != nil {
			_ = spinner.Add(1)
		}
	})
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Backlog sweep failed",
			err.Error(),
			"Check that the watched directories are readable",
			err,
		), globals.JSON)
	}
	if !globals.Quiet {
		ui.Success(fmt.Sprintf("Enqueued %d existing files", count))
	}
}
