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
	"regexp"
	"time"

	errs "github.com/kraklabs/cortex/internal/errors"
)

// Category groups templates by purpose.
type Category string

const (
	CategoryAnalysis       Category = "analysis"
	CategoryEnhancement    Category = "enhancement"
	CategorySummarization  Category = "summarization"
	CategoryExtraction     Category = "extraction"
	CategoryClassification Category = "classification"
	CategoryGeneration     Category = "generation"
	CategoryCustom         Category = "custom"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryAnalysis, CategoryEnhancement, CategorySummarization,
		CategoryExtraction, CategoryClassification, CategoryGeneration,
		CategoryCustom:
		return true
	}
	return false
}

// Variable declares one placeholder of a template.
type Variable struct {
	// Name must be a valid identifier and appear as {name} in the template.
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	// Default is used when the caller supplies no value. A nil Default on
	// an optional variable leaves the placeholder untouched.
	Default *string `json:"default,omitempty"`
	// ValidationPattern, when set, must match the entire supplied value.
	ValidationPattern string `json:"validation_pattern,omitempty"`
}

// ModelOptions are per-model call options carried on a template and handed
// to the processor alongside the rendered text.
type ModelOptions struct {
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
	TopP        *float64       `json:"top_p,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

func (m ModelOptions) clone() ModelOptions {
	cp := m
	if m.Temperature != nil {
		v := *m.Temperature
		cp.Temperature = &v
	}
	if m.MaxTokens != nil {
		v := *m.MaxTokens
		cp.MaxTokens = &v
	}
	if m.TopP != nil {
		v := *m.TopP
		cp.TopP = &v
	}
	if m.Extra != nil {
		cp.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			cp.Extra[k] = v
		}
	}
	return cp
}

// Template is one prompt template with declared variables and usage stats.
// All timestamps serialise as RFC 3339.
type Template struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Category    Category   `json:"category"`
	Template    string     `json:"template"`
	Variables   []Variable `json:"variables"`
	Tags        []string   `json:"tags,omitempty"`
	Author      string     `json:"author,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	UsageCount      int        `json:"usage_count"`
	LastUsed        *time.Time `json:"last_used,omitempty"`
	AvgQualityScore float64    `json:"avg_quality_score"`
	QualitySamples  int        `json:"quality_samples"`
	SuccessRate     float64    `json:"success_rate"`

	ModelOverrides map[string]ModelOptions `json:"model_overrides,omitempty"`
}

var (
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	// placeholderRe extracts identifier-shaped {name} placeholders. Brace
	// pairs around anything else (JSON snippets, prose) are left alone.
	placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// placeholderNames returns the identifier placeholders used in text, in
// order of first appearance, without duplicates.
func placeholderNames(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// validate checks structural soundness: a known category, identifier
// variable names, compilable validation patterns, and an empty symmetric
// difference between declared variables and placeholders used in the text.
func (t *Template) validate() error {
	if t.Name == "" {
		return errs.E(errs.InvalidInput, "template name must not be empty")
	}
	if t.Template == "" {
		return errs.E(errs.InvalidInput, "template text must not be empty")
	}
	if !t.Category.Valid() {
		return errs.E(errs.InvalidInput, "unknown category %q", t.Category)
	}

	declared := make(map[string]bool, len(t.Variables))
	for _, v := range t.Variables {
		if !identRe.MatchString(v.Name) {
			return errs.E(errs.InvalidInput, "variable name %q is not a valid identifier", v.Name)
		}
		if declared[v.Name] {
			return errs.E(errs.InvalidInput, "variable %q declared twice", v.Name)
		}
		declared[v.Name] = true
		if v.ValidationPattern != "" {
			if _, err := regexp.Compile(v.ValidationPattern); err != nil {
				return errs.E(errs.InvalidInput, "variable %q has an invalid validation pattern: %v", v.Name, err)
			}
		}
	}

	used := placeholderNames(t.Template)
	usedSet := make(map[string]bool, len(used))
	for _, name := range used {
		usedSet[name] = true
		if !declared[name] {
			return errs.E(errs.UnknownPlaceholder, "placeholder {%s} is not declared as a variable", name)
		}
	}
	for _, v := range t.Variables {
		if !usedSet[v.Name] {
			return errs.E(errs.InvalidInput, "variable %q does not appear in the template", v.Name)
		}
	}
	return nil
}

// render resolves variables and substitutes placeholders. It is a pure
// function: usage stats are the registry's concern, not the template's.
//
// Resolution runs over declared variables in order: a supplied value is
// validated against the variable's pattern, a missing value falls back to
// the default, and a missing required variable aborts with MissingVariable.
// Optional variables with neither value nor default keep their literal
// placeholder.
func (t *Template) render(vars map[string]string) (string, error) {
	resolved := make(map[string]string, len(t.Variables))
	declared := make(map[string]bool, len(t.Variables))

	for _, v := range t.Variables {
		declared[v.Name] = true

		val, ok := vars[v.Name]
		if ok {
			if v.ValidationPattern != "" {
				re, err := regexp.Compile("^(?:" + v.ValidationPattern + ")$")
				if err != nil {
					return "", errs.E(errs.InvalidInput,
						"variable %q has an invalid validation pattern: %v", v.Name, err)
				}
				if !re.MatchString(val) {
					return "", errs.E(errs.InvalidInput,
						"variable %q value does not match pattern %q", v.Name, v.ValidationPattern)
				}
			}
			resolved[v.Name] = val
			continue
		}
		if v.Default != nil {
			resolved[v.Name] = *v.Default
			continue
		}
		if v.Required {
			return "", errs.E(errs.MissingVariable, "missing required variable %q", v.Name)
		}
	}

	for _, name := range placeholderNames(t.Template) {
		if !declared[name] {
			return "", errs.E(errs.UnknownPlaceholder,
				"template references undeclared placeholder {%s}", name)
		}
	}

	// Single pass so braces inside substituted values are never re-expanded.
	out := placeholderRe.ReplaceAllStringFunc(t.Template, func(m string) string {
		name := m[1 : len(m)-1]
		if val, ok := resolved[name]; ok {
			return val
		}
		return m
	})
	return out, nil
}

// Clone returns a deep copy. Registry read operations hand out clones so
// callers can never mutate registry state.
func (t *Template) Clone() *Template {
	cp := *t
	if t.Variables != nil {
		cp.Variables = make([]Variable, len(t.Variables))
		copy(cp.Variables, t.Variables)
		for i, v := range t.Variables {
			if v.Default != nil {
				d := *v.Default
				cp.Variables[i].Default = &d
			}
		}
	}
	if t.Tags != nil {
		cp.Tags = append([]string(nil), t.Tags...)
	}
	if t.LastUsed != nil {
		lu := *t.LastUsed
		cp.LastUsed = &lu
	}
	if t.ModelOverrides != nil {
		cp.ModelOverrides = make(map[string]ModelOptions, len(t.ModelOverrides))
		for k, v := range t.ModelOverrides {
			cp.ModelOverrides[k] = v.clone()
		}
	}
	return &cp
}
