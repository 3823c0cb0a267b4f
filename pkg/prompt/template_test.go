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
package prompt

import (
	"testing"

	errs "github.com/kraklabs/cortex/internal/errors"
)

func summariseTemplate() *Template {
	return &Template{
		Name:     "summarize-short",
		Category: CategorySummarization,
		Template: "Summarise: {content} in {max} words",
		Variables: []Variable{
			{Name: "content", Required: true},
			{Name: "max", Required: false, Default: strPtr("50")},
		},
	}
}

func TestRender_DefaultsAndRequired(t *testing.T) {
	tpl := summariseTemplate()

	got, err := tpl.render(map[string]string{"content": "Hi"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Summarise: Hi in 50 words" {
		t.Errorf("render = %q, want %q", got, "Summarise: Hi in 50 words")
	}

	// Supplied value beats the default.
	got, err = tpl.render(map[string]string{"content": "Hi", "max": "10"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Summarise: Hi in 10 words" {
		t.Errorf("render = %q", got)
	}

	// Missing required variable aborts.
	_, err = tpl.render(map[string]string{})
	if !errs.IsKind(err, errs.MissingVariable) {
		t.Errorf("render({}) = %v, want MissingVariable", err)
	}
}

func TestRender_Idempotent(t *testing.T) {
	tpl := summariseTemplate()
	vars := map[string]string{"content": "The quick brown fox"}

	first, err := tpl.render(vars)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := tpl.render(vars)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if first != second {
		t.Errorf("renders differ: %q vs %q", first, second)
	}
}

func TestRender_ValidationPattern(t *testing.T) {
	tpl := &Template{
		Name:     "limited",
		Category: CategoryCustom,
		Template: "take {count}",
		Variables: []Variable{
			{Name: "count", Required: true, ValidationPattern: `\d+`},
		},
	}

	if _, err := tpl.render(map[string]string{"count": "42"}); err != nil {
		t.Fatalf("render(42): %v", err)
	}

	// Pattern must match the entire value, not a substring.
	_, err := tpl.render(map[string]string{"count": "42 apples"})
	if !errs.IsKind(err, errs.InvalidInput) {
		t.Errorf("render(42 apples) = %v, want InvalidInput", err)
	}
}

func TestRender_OptionalWithoutDefaultKeepsPlaceholder(t *testing.T) {
	tpl := &Template{
		Name:     "partial",
		Category: CategoryCustom,
		Template: "hello {name}{punct}",
		Variables: []Variable{
			{Name: "name", Required: true},
			{Name: "punct", Required: false},
		},
	}

	got, err := tpl.render(map[string]string{"name": "world"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "hello world{punct}" {
		t.Errorf("render = %q", got)
	}
}

func TestRender_UnknownPlaceholder(t *testing.T) {
	// Built by hand, bypassing Create's validation.
	tpl := &Template{
		Name:      "broken",
		Category:  CategoryCustom,
		Template:  "hello {nobody}",
		Variables: nil,
	}

	_, err := tpl.render(map[string]string{})
	if !errs.IsKind(err, errs.UnknownPlaceholder) {
		t.Errorf("render = %v, want UnknownPlaceholder", err)
	}
}

func TestRender_ValueBracesNotReExpanded(t *testing.T) {
	tpl := &Template{
		Name:     "braces",
		Category: CategoryCustom,
		Template: "{a} and {b}",
		Variables: []Variable{
			{Name: "a", Required: true},
			{Name: "b", Required: true},
		},
	}

	got, err := tpl.render(map[string]string{"a": "{b}", "b": "beta"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "{b} and beta" {
		t.Errorf("render = %q, want literal {b} preserved", got)
	}
}

func TestRender_ExtraVarsIgnored(t *testing.T) {
	tpl := summariseTemplate()
	got, err := tpl.render(map[string]string{"content": "Hi", "unrelated": "x"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Summarise: Hi in 50 words" {
		t.Errorf("render = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		template *Template
		wantKind errs.Kind
	}{
		{
			name: "valid",
			template: &Template{
				Name: "ok", Category: CategoryCustom, Template: "x {a}",
				Variables: []Variable{{Name: "a"}},
			},
		},
		{
			name:     "empty name",
			template: &Template{Category: CategoryCustom, Template: "x"},
			wantKind: errs.InvalidInput,
		},
		{
			name:     "empty text",
			template: &Template{Name: "t", Category: CategoryCustom},
			wantKind: errs.InvalidInput,
		},
		{
			name:     "unknown category",
			template: &Template{Name: "t", Category: "poetry", Template: "x"},
			wantKind: errs.InvalidInput,
		},
		{
			name: "bad variable identifier",
			template: &Template{
				Name: "t", Category: CategoryCustom, Template: "{9lives}",
				Variables: []Variable{{Name: "9lives"}},
			},
			wantKind: errs.InvalidInput,
		},
		{
			name: "duplicate variable",
			template: &Template{
				Name: "t", Category: CategoryCustom, Template: "{a}",
				Variables: []Variable{{Name: "a"}, {Name: "a"}},
			},
			wantKind: errs.InvalidInput,
		},
		{
			name: "placeholder not declared",
			template: &Template{
				Name: "t", Category: CategoryCustom, Template: "{a} {b}",
				Variables: []Variable{{Name: "a"}},
			},
			wantKind: errs.UnknownPlaceholder,
		},
		{
			name: "variable not used",
			template: &Template{
				Name: "t", Category: CategoryCustom, Template: "{a}",
				Variables: []Variable{{Name: "a"}, {Name: "b"}},
			},
			wantKind: errs.InvalidInput,
		},
		{
			name: "invalid validation pattern",
			template: &Template{
				Name: "t", Category: CategoryCustom, Template: "{a}",
				Variables: []Variable{{Name: "a", ValidationPattern: "["}},
			},
			wantKind: errs.InvalidInput,
		},
		{
			name: "non-identifier braces are not placeholders",
			template: &Template{
				Name: "t", Category: CategoryCustom,
				Template: `reply as JSON like {"key": "value"} using {a}`,
				Variables: []Variable{{Name: "a"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.template.validate()
			if tt.wantKind == "" {
				if err != nil {
					t.Errorf("validate = %v, want nil", err)
				}
				return
			}
			if !errs.IsKind(err, tt.wantKind) {
				t.Errorf("validate = %v, want kind %s", err, tt.wantKind)
			}
		})
	}
}

func TestClone_Independence(t *testing.T) {
	temp := 0.7
	tpl := &Template{
		Name: "orig", Category: CategoryCustom, Template: "{a}",
		Variables:      []Variable{{Name: "a", Default: strPtr("x")}},
		Tags:           []string{"one"},
		ModelOverrides: map[string]ModelOptions{"m": {Temperature: &temp}},
	}

	cp := tpl.Clone()
	*cp.Variables[0].Default = "mutated"
	cp.Tags[0] = "mutated"
	*cp.ModelOverrides["m"].Temperature = 0.1

	if *tpl.Variables[0].Default != "x" {
		t.Error("variable default shared between clone and original")
	}
	if tpl.Tags[0] != "one" {
		t.Error("tags shared between clone and original")
	}
	if *tpl.ModelOverrides["m"].Temperature != 0.7 {
		t.Error("model overrides shared between clone and original")
	}
}
