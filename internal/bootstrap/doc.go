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

// Package bootstrap handles cortex workspace initialization and discovery.
//
// A workspace is the on-disk home of one pipeline instance: it owns the
// sqlite vector database, the prompt template directory, and a small JSON
// record describing both. Workspaces live under ~/.cortex/workspaces/<id>
// unless a custom data directory is configured.
//
// # Initialization Workflow
//
// A typical workflow for setting up a new workspace:
//
//	// Initialize the workspace (creates directories, schema, record)
//	info, err := bootstrap.Init(bootstrap.WorkspaceConfig{
//	    WorkspaceID: "notes",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Workspace initialized at: %s\n", info.DataDir)
//
//	// Later, open the workspace to wire up the pipeline
//	info, err = bootstrap.Open(bootstrap.WorkspaceConfig{
//	    WorkspaceID: "notes",
//	}, logger)
//
// # Idempotency
//
// Init is idempotent: calling it multiple times on the same workspace is
// safe and will not corrupt existing data. The original workspace record
// is preserved.
//
// # Workspace Discovery
//
// List existing workspaces in the default data directory:
//
//	workspaces, err := bootstrap.List()
//	for _, id := range workspaces {
//	    fmt.Println(id)
//	}
package bootstrap
