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

// Package main implements the cortex CLI: a local-first pipeline that
// watches directories, runs AI tasks over changed files and stores results
// in a semantic vector store.
//
// Usage:
//
//	cortex init                   Create a workspace and .cortex.yaml
//	cortex watch                  Run the watch-process-store pipeline
//	cortex query <text> [--json]  Semantic search over stored documents
//	cortex status [--json]        Show workspace and store statistics
//	cortex reset --force          Delete workspace data (destructive!)
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kraklabs/cortex/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags carries the options every subcommand honours.
type GlobalFlags struct {
	// JSON switches output to machine-readable JSON on stdout.
	JSON bool

	// Quiet suppresses progress bars and informational chatter.
	Quiet bool

	// NoColor disables ANSI colors (also implied by NO_COLOR).
	NoColor bool

	// Verbose raises the log level: 0 warn, 1 info, 2 debug.
	Verbose int

	// ConfigPath overrides the .cortex.yaml location.
	ConfigPath string

	// Workspace selects the workspace under ~/.cortex/workspaces.
	Workspace string
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		jsonOutput  = flag.Bool("json", false, "Output as JSON")
		quiet       = flag.Bool("quiet", false, "Suppress progress output")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
		verbose     = flag.Int("v", 0, "Verbosity (0=warn, 1=info, 2=debug)")
		configPath  = flag.String("config", "", "Path to .cortex.yaml (default: ./.cortex.yaml)")
		workspace   = flag.String("workspace", "default", "Workspace name")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `cortex - local-first AI processing pipeline

cortex watches directories you care about, runs AI tasks (summarize,
enhance, extract insights, ...) over files as they change, and stores
results in a local semantic vector store you can query.

Usage:
  cortex <command> [options]

Commands:
  init      Create a workspace and default .cortex.yaml configuration
  watch     Run the pipeline: watch, process, store
  query     Semantic search over stored documents
  status    Show workspace, queue and store statistics
  reset     Delete workspace data (destructive!)
  version   Show version information

Global Options:
  --json        Output as JSON
  --quiet       Suppress progress output
  --no-color    Disable colored output
  --config      Path to .cortex.yaml
  --workspace   Workspace name (default: "default")
  -v            Verbosity (0=warn, 1=info, 2=debug)
  --version     Show version and exit

Examples:
  cortex init --watch-dir ~/notes
  cortex watch --process-existing
  cortex query "meeting notes from last week" -k 3
  cortex status --json
  cortex reset --force

Getting Started:
  1. Initialize a workspace:      cortex init --watch-dir ~/notes
  2. Run the pipeline:            cortex watch
  3. Search what it stored:       cortex query "something you wrote"

Data Storage:
  Data is stored locally in ~/.cortex/workspaces/<workspace>/

Environment Variables:
  OLLAMA_HOST      Ollama URL (default: http://localhost:11434)
  OLLAMA_MODEL     Local generation model
  OPENAI_API_KEY   Enables the remote fallback provider

For detailed command help: cortex <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	globals := GlobalFlags{
		JSON:       *jsonOutput,
		Quiet:      *quiet || *jsonOutput,
		NoColor:    *noColor,
		Verbose:    *verbose,
		ConfigPath: *configPath,
		Workspace:  *workspace,
	}
	ui.InitColors(globals.NoColor)
	initLogging(globals)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "watch":
		runWatch(cmdArgs, globals)
	case "query":
		runQuery(cmdArgs, globals)
	case "status":
		runStatus(cmdArgs, globals)
	case "reset":
		runReset(cmdArgs, globals)
	case "version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("cortex version %s\n", version)
	fmt.Printf("commit: %s\n", commit)
	fmt.Printf("built: %s\n", date)
}

// initLogging points slog at stderr with the level picked by -v. Stdout
// stays reserved for command output so --json pipelines stay clean.
func initLogging(globals GlobalFlags) {
	level := slog.LevelWarn
	switch {
	case globals.Verbose >= 2:
		level = slog.LevelDebug
	case globals.Verbose == 1:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
