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
package config

import (
	"testing"
)

func TestMatchGlob_BasicPatterns(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		pattern string
		want    bool
	}{
		// Exact match
		{"exact match", "notes.md", "notes.md", true},
		{"exact no match", "notes.md", "tasks.md", false},

		// * wildcard (single segment)
		{"star prefix", "notes.md", "*.md", true},
		{"star suffix", "daily_note", "daily_*", true},
		{"star middle", "daily_note_draft", "daily_*_draft", true},
		{"star no match ext", "notes.txt", "*.md", false},

		// ** wildcard (any depth)
		{"doublestar prefix any depth", "vault/projects/q3/notes.md", "**/*.md", true},
		{"doublestar prefix root", "notes.md", "**/*.md", true},
		{"doublestar suffix", ".obsidian/plugins/index.js", ".obsidian/**", true},
		{"doublestar suffix nested", ".obsidian/a/b/c/d.json", ".obsidian/**", true},

		// ? wildcard (single char)
		{"question single", "note1.md", "note?.md", true},
		{"question no match", "note12.md", "note?.md", false},

		// Character classes
		{"char class match", "note.md", "note.[mt]d", true},
		{"char class no match", "note.md", "note.[ab]d", false},
		{"char range match", "week1.md", "week[0-9].md", true},
		{"char range no match", "weekA.md", "week[0-9].md", false},
		{"negated class match", "note.md", "note.[!ab]d", true},
		{"negated class no match", "note.ad", "note.[!ab]d", false},

		// Common ignore patterns
		{".git dir exact", ".git", ".git/**", true},
		{".git subdir", ".git/objects/pack", ".git/**", true},
		{"node_modules deep", "node_modules/lodash/package.json", "node_modules/**", true},
		{"trash match", ".trash/old-note.md", ".trash/**", true},

		// Pattern without ** can match anywhere
		{"implicit prefix", "vault/inbox.md", "inbox.md", true},
		{"implicit prefix nested", "a/b/c/inbox.md", "inbox.md", true},

		// Directory patterns match nested occurrences too
		{"archive nested dir", "vault/projects/archive", "archive/**", true},
		{"archive exact", "archive", "archive/**", true},
		{"archive nested file", "vault/projects/archive/old.md", "archive/**", true},
		{"archives no match", "vault/archives-index/foo", "archive/**", false},

		// Hidden files
		{"dotfile at root", ".DS_Store", ".*", true},
		{"dotfile nested", "vault/notes/.hidden.md", ".*", true},
		{"plain file not hidden", "vault/notes/visible.md", ".*", false},

		// Editor droppings
		{"vim swap", "notes.md.swp", "*.swp", true},
		{"backup tilde", "notes.md~", "*~", true},

		// Complex patterns
		{"complex nested", "vault/projects/q3/summary.draft.md", "**/*.draft.md", true},
		{"complex no match", "vault/projects/q3/summary.md", "**/*.draft.md", false},

		// Edge cases
		{"empty path", "", "**", true},
		{"empty pattern", "notes.md", "", false},
		{"path with dots", "notes.2026.08.md", "*.md", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchGlob(tt.path, tt.pattern)
			if got != tt.want {
				t.Errorf("MatchGlob(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestMatchGlob_DefaultIgnorePatterns(t *testing.T) {
	cfg := Default()

	// Paths the defaults should drop
	ignoredPaths := []string{
		".DS_Store",
		"vault/.obsidian-cache",
		"notes.md~",
		"draft.tmp",
		"notes.md.swp",
		"report.bak",
		".git/objects/pack/file",
		".git/HEAD",
		"node_modules/lodash/index.js",
	}

	// Paths that should survive
	keptPaths := []string{
		"vault/notes.md",
		"inbox/reading-list.txt",
		"projects/q3/retro.org",
		"git/file.md",        // not .git
		"modules/foo.md",     // not node_modules
		"tmpnotes.md",        // not *.tmp
		"backup-schedule.md", // not *.bak
	}

	for _, path := range ignoredPaths {
		if !cfg.ShouldIgnoreFile(path) {
			t.Errorf("ShouldIgnoreFile(%q) = false, want true", path)
		}
	}

	for _, path := range keptPaths {
		if cfg.ShouldIgnoreFile(path) {
			t.Errorf("ShouldIgnoreFile(%q) = true, want false", path)
		}
	}
}

func TestMatchCharClass(t *testing.T) {
	tests := []struct {
		name  string
		c     byte
		class string
		want  bool
	}{
		{"simple match", 'a', "abc", true},
		{"simple no match", 'd', "abc", false},
		{"range match", 'e', "a-z", true},
		{"range no match", 'E', "a-z", false},
		{"digit range", '5', "0-9", true},
		{"negated match", 'd', "!abc", true},
		{"negated no match", 'a', "!abc", false},
		{"caret negation", 'd', "^abc", true},
		{"mixed", 'f', "a-z0-9", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchCharClass(tt.c, tt.class)
			if got != tt.want {
				t.Errorf("matchCharClass(%c, %q) = %v, want %v", tt.c, tt.class, got, tt.want)
			}
		})
	}
}

func TestMatchPattern_Complex(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		pattern string
		want    bool
	}{
		// Multiple wildcards
		{"multi star", "vault/daily/monday.md", "vault/*/*.md", true},
		{"multi star deep", "a/b/c/d.md", "a/*/c/*.md", true},

		// ** in middle
		{"doublestar middle", "vault/projects/q3/index.md", "vault/**/index.md", true},
		{"doublestar middle deep", "a/b/c/d/e/f.md", "a/**/f.md", true},

		// Mixed wildcards
		{"mixed wildcards", "daily_notes/entry_1.json", "daily_*/*_?.json", true},

		// Trailing patterns
		{"file in dir", "inbox/item.md", "inbox/*", true},
		{"nested file", "inbox/sub/item.md", "inbox/*/*", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchPattern(tt.path, tt.pattern)
			if got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
			}
		})
	}
}
