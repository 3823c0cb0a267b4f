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
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cortex/internal/bootstrap"
	"github.com/kraklabs/cortex/internal/errors"
	"github.com/kraklabs/cortex/internal/output"
	"github.com/kraklabs/cortex/internal/ui"
	"github.com/kraklabs/cortex/pkg/config"
)

// InitResult is the machine-readable outcome of 'cortex init'.
type InitResult struct {
	Workspace    string   `json:"workspace"`
	DataDir      string   `json:"data_dir"`
	VectorDBPath string   `json:"vector_db_path"`
	TemplateDir  string   `json:"template_dir"`
	ConfigPath   string   `json:"config_path"`
	WatchedDirs  []string `json:"watched_dirs"`
}

// runInit executes the 'init' CLI command: it creates (or reopens) the
// workspace under ~/.cortex and writes a default .cortex.yaml.
func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	collection := fs.String("collection", "", "Vector store collection name (default: documents)")
	watchDirs := fs.StringArray("watch-dir", nil, "Directory to watch (repeatable)")
	tasks := fs.StringSlice("task", []string{"summarize"}, "Processing tasks for watched directories")
	store := fs.Bool("store-results", true, "Store task results in the vector store")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cortex init [options]

Description:
  Creates the workspace directory (vector store, template registry) and a
  default .cortex.yaml configuration. Safe to run more than once; the
  workspace is reused and the config is only overwritten with --force.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  cortex init --watch-dir ~/notes
  cortex init --watch-dir ~/notes --watch-dir ~/journal --task summarize --task questions
  cortex init --force
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	info, err := bootstrap.Init(bootstrap.WorkspaceConfig{
		WorkspaceID: globals.Workspace,
		Collection:  *collection,
	}, nil)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot initialize workspace",
			err.Error(),
			"Check that ~/.cortex is writable",
			err,
		), globals.JSON)
	}

	configPath := globals.ConfigPath
	if configPath == "" {
		configPath = config.DefaultFileName
	}
	if _, err := os.Stat(configPath); err == nil && !*force {
		errors.FatalError(errors.NewInputError(
			fmt.Sprintf("%s already exists", configPath),
			"A configuration file is already present in this directory",
			"Use --force to overwrite it",
		), globals.JSON)
	}

	cfg := config.Default()
	var watched []string
	for _, dir := range *watchDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = dir
		}
		if err := cfg.AddWatchedDirectory(config.WatchedDirectory{
			Path:            abs,
			Recursive:       true,
			AutoProcess:     true,
			ProcessingTasks: *tasks,
			StoreInVectorDB: *store,
		}); err != nil {
			errors.FatalError(errors.NewInputError(
				"Invalid watch directory",
				err.Error(),
				"Pass each directory once via --watch-dir",
			), globals.JSON)
		}
		watched = append(watched, abs)
	}

	if err := cfg.Save(configPath); err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot save configuration",
			err.Error(),
			"Check directory permissions",
			err,
		), globals.JSON)
	}

	result := &InitResult{
		Workspace:    info.WorkspaceID,
		DataDir:      info.DataDir,
		VectorDBPath: info.VectorDBPath,
		TemplateDir:  info.TemplateDir,
		ConfigPath:   configPath,
		WatchedDirs:  watched,
	}

	if globals.JSON {
		_ = output.JSON(result)
		return
	}

	ui.Success(fmt.Sprintf("Workspace '%s' ready at %s", info.WorkspaceID, info.DataDir))
	ui.Success(fmt.Sprintf("Created %s", configPath))
	if len(watched) == 0 {
		fmt.Println()
		fmt.Println("No directories configured yet. Add one with:")
		fmt.Println("  cortex init --force --watch-dir <path>")
		fmt.Printf("or edit %s directly.\n", configPath)
	}
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit .cortex.yaml if needed")
	fmt.Println("  2. Run 'cortex watch' to start the pipeline")
	fmt.Println("  3. Run 'cortex query <text>' to search stored results")
}
