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

package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInit_CreatesWorkspace(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "ws")

	info, err := Init(WorkspaceConfig{
		WorkspaceID: "notes",
		DataDir:     dataDir,
	}, nil)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if info.WorkspaceID != "notes" {
		t.Errorf("WorkspaceID = %q, want %q", info.WorkspaceID, "notes")
	}
	if info.Collection != "documents" {
		t.Errorf("Collection = %q, want default %q", info.Collection, "documents")
	}

	for _, p := range []string{info.TemplateDir, info.VectorDBPath, filepath.Join(dataDir, recordFile)} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
}

func TestInit_Idempotent(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "ws")
	cfg := WorkspaceConfig{WorkspaceID: "notes", DataDir: dataDir}

	first, err := Init(cfg, nil)
	if err != nil {
		t.Fatalf("first Init() error = %v", err)
	}

	second, err := Init(cfg, nil)
	if err != nil {
		t.Fatalf("second Init() error = %v", err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("second Init() rewrote the record: created_at %v != %v", second.CreatedAt, first.CreatedAt)
	}
}

func TestInit_RequiresWorkspaceID(t *testing.T) {
	if _, err := Init(WorkspaceConfig{}, nil); err == nil {
		t.Fatal("Init() without workspace_id should fail")
	}
}

func TestOpen(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "ws")
	cfg := WorkspaceConfig{WorkspaceID: "notes", DataDir: dataDir}

	if _, err := Init(cfg, nil); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	info, err := Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if info.WorkspaceID != "notes" {
		t.Errorf("WorkspaceID = %q, want %q", info.WorkspaceID, "notes")
	}
	if info.VectorDBPath == "" {
		t.Error("VectorDBPath should be populated from the record")
	}
}

func TestOpen_MissingWorkspace(t *testing.T) {
	_, err := Open(WorkspaceConfig{
		WorkspaceID: "ghost",
		DataDir:     filepath.Join(t.TempDir(), "nope"),
	}, nil)
	if err == nil {
		t.Fatal("Open() on a missing workspace should fail")
	}
}
