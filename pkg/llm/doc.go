// Copyright 2026 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package llm provides a unified interface for Large Language Model providers.
//
// This package abstracts the differences between LLM APIs behind a single
// Generate call. The processing pipeline uses it to run rendered prompt
// templates against whichever backend the item's processor kind selects.
//
// # Supported Providers
//
//   - Ollama: Local models, no API key required (default)
//   - OpenAI: GPT models and OpenAI-compatible APIs
//   - Mock: For testing without real API calls
//
// # Quick Start
//
// Create a provider explicitly:
//
//	provider, err := llm.NewProvider(llm.Config{
//	    Type:   "openai",
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := provider.Generate(ctx, llm.GenerateRequest{
//	    Prompt:      "Summarise the following note: ...",
//	    Temperature: llm.Float64(0.3),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Text)
//
// Or use [DefaultProvider], which picks a backend from the environment:
// Ollama when OLLAMA_HOST or OLLAMA_MODEL is set, OpenAI when OPENAI_API_KEY
// is set, and mock otherwise.
//
// # Environment Variables
//
// Ollama (local, free):
//   - OLLAMA_HOST: Server URL (default: http://localhost:11434)
//   - OLLAMA_MODEL: Model name (e.g., "llama3.2", "mistral")
//
// OpenAI:
//   - OPENAI_API_KEY: API key (required)
//   - OPENAI_BASE_URL: API URL for compatible services (e.g., Azure)
//   - OPENAI_MODEL: Model name (default: gpt-4o-mini)
//
// # Error Handling
//
// Provider errors carry the pipeline's error taxonomy: 401/403 map to
// AuthFailure, 429 to RateLimited, 400 to InvalidInput and network or 5xx
// failures to ProviderTransport. Workers use the kind to decide whether a
// failed item is retried.
package llm
