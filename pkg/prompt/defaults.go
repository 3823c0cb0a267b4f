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

func strPtr(s string) *string { return &s }

// defaultTemplates are the convention templates the LLM processors select
// by task name. A fresh workspace gets all five via EnsureDefaults.
func defaultTemplates() []*Template {
	return []*Template{
		{
			Name:        "summarize",
			Description: "Condense a document into a short summary.",
			Category:    CategorySummarization,
			Template: "Summarise the following content clearly and concisely.\n\n" +
				"Content:\n{content}\n\n" +
				"Write a summary of at most {max_words} words. Respond with the summary only.",
			Variables: []Variable{
				{Name: "content", Description: "The document body", Required: true},
				{Name: "max_words", Description: "Summary length cap", Default: strPtr("150"),
					ValidationPattern: `\d+`},
			},
			Tags:   []string{"default"},
			Author: "cortex",
		},
		{
			Name:        "enhance",
			Description: "Improve clarity and structure without changing meaning.",
			Category:    CategoryEnhancement,
			Template: "Improve the clarity, structure and grammar of the following text " +
				"while preserving its meaning and tone.\n\n" +
				"{content}\n\n" +
				"Respond with the improved text only.",
			Variables: []Variable{
				{Name: "content", Description: "The text to improve", Required: true},
			},
			Tags:   []string{"default"},
			Author: "cortex",
		},
		{
			Name:        "extract_insights",
			Description: "Pull the key insights out of a document.",
			Category:    CategoryExtraction,
			Template: "Extract the key insights from the following content.\n\n" +
				"{content}\n\n" +
				"List the {max_insights} most important insights as bullet points.",
			Variables: []Variable{
				{Name: "content", Description: "The document body", Required: true},
				{Name: "max_insights", Description: "How many insights to list", Default: strPtr("5"),
					ValidationPattern: `\d+`},
			},
			Tags:   []string{"default"},
			Author: "cortex",
		},
		{
			Name:        "questions",
			Description: "Generate questions that deepen understanding of a document.",
			Category:    CategoryGeneration,
			Template: "Generate {num_questions} thoughtful questions that deepen understanding " +
				"of the following content.\n\n" +
				"{content}\n\n" +
				"Number each question.",
			Variables: []Variable{
				{Name: "content", Description: "The document body", Required: true},
				{Name: "num_questions", Description: "How many questions to generate", Default: strPtr("5"),
					ValidationPattern: `\d+`},
			},
			Tags:   []string{"default"},
			Author: "cortex",
		},
		{
			Name:        "classify",
			Description: "Assign a document to one of a fixed set of categories.",
			Category:    CategoryClassification,
			Template: "Classify the following content into one of these categories: {categories}.\n\n" +
				"Content:\n{content}\n\n" +
				"Respond with the category name only.",
			Variables: []Variable{
				{Name: "content", Description: "The document body", Required: true},
				{Name: "categories", Description: "Comma-separated category names",
					Default: strPtr("note, article, reference, journal, task, idea")},
			},
			Tags:   []string{"default"},
			Author: "cortex",
		},
	}
}

// EnsureDefaults creates any missing convention templates and returns how
// many were created. Existing templates are never touched, so user edits
// to a default template survive restarts.
func (r *Registry) EnsureDefaults() (int, error) {
	created := 0
	for _, t := range defaultTemplates() {
		if _, err := r.GetByName(t.Name); err == nil {
			continue
		}
		if _, err := r.Create(t); err != nil {
			return created, err
		}
		created++
	}
	if created > 0 {
		r.logger.Info("prompt.registry.defaults", "created", created)
	}
	return created, nil
}
