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

package readme

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kraklabs/readmegen/internal/errors"
	"github.com/kraklabs/readmegen/pkg/llm"
)

// GeneratorConfig tunes the completion request.
type GeneratorConfig struct {
	Model       string  // Empty uses the provider's default model
	MaxTokens   int     // 0 lets the provider decide
	Temperature float64 // 0 lets the provider decide
}

// Generator sends an assembled prompt to an LLM provider.
type Generator struct {
	provider llm.Provider
	cfg      GeneratorConfig
	logger   *slog.Logger
}

// NewGenerator creates a generator backed by provider.
func NewGenerator(provider llm.Provider, cfg GeneratorConfig, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{provider: provider, cfg: cfg, logger: logger}
}

// Generate sends prompt as a single user message and returns the text of the
// first choice, unmodified. Every failure is a GenerationFailed error.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	g.logger.Info("readme.generate.request",
		"provider", g.provider.Name(),
		"model", g.cfg.Model,
		"prompt_chars", len(prompt),
	)

	resp, err := g.provider.Chat(ctx, llm.ChatRequest{
		Messages:    llm.BuildChatMessages("", prompt),
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	elapsed := time.Since(start)
	recordGeneration(err == nil, elapsed)
	if err != nil {
		g.logger.Warn("readme.generate.failed", "provider", g.provider.Name(), "err", err, "elapsed", elapsed)
		return "", errors.NewGenerationError(
			"README generation failed",
			generationCause(err),
			generationFix(err),
			fmt.Errorf("%s: %w", g.provider.Name(), err),
		)
	}

	g.logger.Info("readme.generate.complete",
		"model", resp.Model,
		"prompt_tokens", resp.PromptTokens,
		"output_tokens", resp.OutputTokens,
		"attempts", resp.Attempts,
		"elapsed", elapsed,
	)
	return resp.Message.Content, nil
}

func generationCause(err error) string {
	var apiErr *llm.APIError
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return "The text-generation service did not answer in time"
	case stderrors.As(err, &apiErr):
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return "The text-generation service rejected the credential"
		case http.StatusTooManyRequests:
			return "The text-generation service is rate limiting requests"
		}
		return fmt.Sprintf("The text-generation service answered with status %d", apiErr.StatusCode)
	}
	return err.Error()
}

func generationFix(err error) string {
	var apiErr *llm.APIError
	if stderrors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
		return "Check the API key (GROQ_API_KEY or llm.api_key)"
	}
	return "Retry later, or raise llm.timeout / llm.max_retries"
}
