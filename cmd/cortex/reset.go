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
	"bufio"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cortex/internal/bootstrap"
	"github.com/kraklabs/cortex/internal/errors"
	"github.com/kraklabs/cortex/internal/output"
	"github.com/kraklabs/cortex/internal/ui"
)

// runReset executes the 'reset' CLI command, deleting all workspace data:
// the vector store, the template registry and the workspace record.
func runReset(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	force := fs.Bool("force", false, "Skip the confirmation prompt")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cortex reset [options]

Description:
  Deletes the workspace data directory: the vector store with every stored
  document, the template registry and the workspace record. The .cortex.yaml
  in the current directory is left untouched.

  This is destructive and cannot be undone.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  cortex reset
  cortex reset --force
  cortex --workspace scratch reset --force
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	info, err := bootstrap.Open(bootstrap.WorkspaceConfig{WorkspaceID: globals.Workspace}, nil)
	if err != nil {
		errors.FatalError(errors.NewNotFoundError(
			"Workspace not found",
			err.Error(),
			"Nothing to reset; run 'cortex init' to create a workspace",
		), globals.JSON)
	}

	if !*force {
		if globals.JSON {
			errors.FatalError(errors.NewInputError(
				"Refusing to reset without --force",
				"JSON mode cannot prompt for confirmation",
				"Re-run with --force",
			), globals.JSON)
		}
		ui.Warning(fmt.Sprintf("This deletes ALL data in %s", info.DataDir))
		fmt.Print("Type the workspace name to confirm: ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(answer) != info.WorkspaceID {
			ui.Info("Aborted")
			os.Exit(0)
		}
	}

	if err := os.RemoveAll(info.DataDir); err != nil {
		errors.FatalError(errors.NewPermissionError(
			"Cannot delete workspace data",
			err.Error(),
			"Check directory permissions and that no cortex instance is running",
			err,
		), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(map[string]any{
			"workspace": info.WorkspaceID,
			"deleted":   info.DataDir,
		})
		return
	}
	ui.Success(fmt.Sprintf("Workspace '%s' reset (%s removed)", info.WorkspaceID, info.DataDir))
}
