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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kraklabs/cortex/pkg/vectorstore"
)

// WorkspaceConfig holds configuration for initializing a workspace.
type WorkspaceConfig struct {
	// WorkspaceID is the logical workspace identifier.
	WorkspaceID string

	// DataDir is the directory where the workspace keeps its data.
	// Defaults to ~/.cortex/workspaces/<workspace_id>
	DataDir string

	// Collection is the vector store collection name.
	// Defaults to "documents".
	Collection string
}

// WorkspaceInfo describes an initialized workspace and is persisted as
// workspace.json inside the workspace data directory.
type WorkspaceInfo struct {
	WorkspaceID  string    `json:"workspace_id"`
	DataDir      string    `json:"data_dir"`
	VectorDBPath string    `json:"vector_db_path"`
	TemplateDir  string    `json:"template_dir"`
	Collection   string    `json:"collection"`
	CreatedAt    time.Time `json:"created_at"`
}

// recordFile is the workspace record filename inside DataDir.
const recordFile = "workspace.json"

func applyDefaults(config *WorkspaceConfig) error {
	if config.WorkspaceID == "" {
		return fmt.Errorf("workspace_id is required")
	}
	if config.Collection == "" {
		config.Collection = "documents"
	}
	if config.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home dir: %w", err)
		}
		config.DataDir = filepath.Join(homeDir, ".cortex", "workspaces", config.WorkspaceID)
	}
	return nil
}

// Init initializes a new cortex workspace.
// This function is idempotent: calling it multiple times is safe.
//
// The function:
//  1. Creates the data and template directories if they don't exist
//  2. Creates the vector store schema (sqlite) for the collection
//  3. Writes the workspace record atomically
//
// After successful initialization the workspace can be opened with Open
// and the pipeline can attach its store and template registry to it.
func Init(config WorkspaceConfig, logger *slog.Logger) (*WorkspaceInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := applyDefaults(&config); err != nil {
		return nil, err
	}

	logger.Info("bootstrap.workspace.init.start",
		"workspace_id", config.WorkspaceID,
		"data_dir", config.DataDir,
	)

	templateDir := filepath.Join(config.DataDir, "templates")
	if err := os.MkdirAll(templateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create template dir: %w", err)
	}

	dbPath := filepath.Join(config.DataDir, "vector.db")
	store, err := vectorstore.New(vectorstore.Options{
		Path:       dbPath,
		Collection: config.Collection,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	if err := store.Close(); err != nil {
		return nil, fmt.Errorf("close vector store: %w", err)
	}

	info := &WorkspaceInfo{
		WorkspaceID:  config.WorkspaceID,
		DataDir:      config.DataDir,
		VectorDBPath: dbPath,
		TemplateDir:  templateDir,
		Collection:   config.Collection,
		CreatedAt:    time.Now().UTC(),
	}

	recordPath := filepath.Join(config.DataDir, recordFile)
	if existing, err := loadRecord(recordPath); err == nil {
		// Workspace already initialized; keep the original record.
		logger.Info("bootstrap.workspace.init.exists", "workspace_id", existing.WorkspaceID)
		return existing, nil
	}

	if err := saveRecord(recordPath, info); err != nil {
		return nil, fmt.Errorf("save workspace record: %w", err)
	}

	logger.Info("bootstrap.workspace.init.success",
		"workspace_id", config.WorkspaceID,
		"data_dir", config.DataDir,
	)

	return info, nil
}

// Open opens an existing cortex workspace by loading its record.
func Open(config WorkspaceConfig, logger *slog.Logger) (*WorkspaceInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := applyDefaults(&config); err != nil {
		return nil, err
	}

	recordPath := filepath.Join(config.DataDir, recordFile)
	info, err := loadRecord(recordPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("workspace not found: %s (run 'cortex init' first)", config.DataDir)
		}
		return nil, fmt.Errorf("load workspace record: %w", err)
	}

	logger.Debug("bootstrap.workspace.open",
		"workspace_id", info.WorkspaceID,
		"data_dir", info.DataDir,
	)

	return info, nil
}

// List returns the workspace IDs present in the default data directory.
func List() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}

	root := filepath.Join(homeDir, ".cortex", "workspaces")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No workspaces yet
		}
		return nil, fmt.Errorf("read workspaces dir: %w", err)
	}

	var workspaces []string
	for _, entry := range entries {
		if entry.IsDir() {
			workspaces = append(workspaces, entry.Name())
		}
	}

	return workspaces, nil
}

func loadRecord(path string) (*WorkspaceInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info WorkspaceInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse workspace record: %w", err)
	}
	return &info, nil
}

// saveRecord writes the workspace record atomically (temp file + rename)
// so a crash mid-write never leaves a torn record behind.
func saveRecord(path string, info *WorkspaceInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal workspace record: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write workspace record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename workspace record: %w", err)
	}
	return nil
}
