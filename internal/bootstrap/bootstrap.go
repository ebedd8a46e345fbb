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

package bootstrap

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kraklabs/readmegen/internal/config"
	"github.com/kraklabs/readmegen/internal/errors"
	"github.com/kraklabs/readmegen/pkg/ingestion"
	"github.com/kraklabs/readmegen/pkg/llm"
	"github.com/kraklabs/readmegen/pkg/progress"
	"github.com/kraklabs/readmegen/pkg/readme"
)

// App is the application context shared by every request. It is built once
// at startup and is read-only afterwards.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Provider llm.Provider
	Service  *readme.Service
	Hub      *progress.Hub
	Notifier *progress.Notifier
}

// Options adjusts how New builds the App.
type Options struct {
	// LogWriter receives log output. Defaults to os.Stderr.
	LogWriter io.Writer

	// Provider replaces the configured LLM provider (tests, dry runs).
	Provider llm.Provider
}

// New validates cfg and wires the application.
//
// The function:
//  1. Validates the configuration (a missing credential fails here)
//  2. Builds the logger from log.level and log.format
//  3. Creates the LLM provider and the README generator
//  4. Creates the ingestion components, the progress hub and the service
//
// Every error is an *errors.UserError with exit code ExitConfig.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.LogWriter == nil {
		opts.LogWriter = os.Stderr
	}

	if opts.Provider == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger, err := NewLogger(cfg.Log, opts.LogWriter)
	if err != nil {
		return nil, errors.NewConfigError("Invalid log configuration", err.Error(), "Check log.level and log.format", err)
	}

	provider := opts.Provider
	if provider == nil {
		provider, err = llm.NewProvider(cfg.ProviderConfig())
		if err != nil {
			return nil, errors.NewConfigError("Cannot create LLM provider", err.Error(), "Check llm.provider", err)
		}
	}

	if cfg.WorkDir != "" {
		if err := os.MkdirAll(cfg.WorkDir, 0o700); err != nil {
			return nil, errors.NewConfigError(
				"Cannot create work directory",
				fmt.Sprintf("%s: %v", cfg.WorkDir, err),
				"Point work_dir (READMEGEN_WORK_DIR) at a writable directory",
				err,
			)
		}
	}

	hub := progress.NewHub(cfg.Progress.Retention, logger)
	svc, err := readme.NewService(readme.Options{
		WorkDir:   cfg.WorkDir,
		Fetcher:   ingestion.NewRepoFetcher(cfg.FetcherConfig(), logger),
		Extractor: ingestion.NewArchiveExtractor(cfg.ArchiveLimits(), logger),
		Scanner:   ingestion.NewScanner(cfg.ScanOptions(), logger),
		Generator: readme.NewGenerator(provider, cfg.GeneratorConfig(), logger),
		Progress:  hub,
		Logger:    logger,
	})
	if err != nil {
		return nil, errors.NewConfigError("Cannot create README service", err.Error(), "", err)
	}

	logger.Info("bootstrap.app.ready",
		"provider", provider.Name(),
		"model", cfg.LLM.Model,
		"max_concurrent", cfg.Server.MaxConcurrent,
		"work_dir", cfg.WorkDir,
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Provider: provider,
		Service:  svc,
		Hub:      hub,
		Notifier: progress.NewNotifier(cfg.Progress.StepDelay),
	}, nil
}

// NewLogger builds a slog logger writing to w in the configured format.
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}
