// Copyright 2025 KrakLabs
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

// Package llm provides a unified interface for chat-completion providers.
//
// It is used by the README generator to send the assembled prompt to a
// hosted or local model and read back the reply.
//
// # Supported Providers
//
//   - Groq: OpenAI-compatible endpoint, default model llama3-70b-8192 (default)
//   - OpenAI: GPT models and any OpenAI-compatible API
//   - Ollama: Local models, no API key required
//   - Mock: For testing without real API calls
//
// # Quick Start
//
//	provider, err := llm.NewProvider(llm.ProviderConfig{
//	    Type:   "groq",
//	    APIKey: os.Getenv("GROQ_API_KEY"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := provider.Chat(ctx, llm.ChatRequest{
//	    Messages: llm.BuildChatMessages("", "Write a README for ..."),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Message.Content)
//
// # Retries
//
// Transport errors, 429 and 5xx responses are retried up to MaxRetries
// times (default 3), waiting attempt*RetryBackoff between attempts. Other
// statuses, malformed JSON and context cancellation fail immediately.
//
// # Error Handling
//
// Non-200 responses are returned as *APIError:
//
//	var apiErr *llm.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
//	    // bad credential
//	}
package llm
