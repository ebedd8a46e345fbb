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

// Package config loads readmegen configuration.
//
// Values are resolved in this order, later sources winning:
//
//  1. Built-in defaults (Default)
//  2. The YAML file (readmegen.yaml in the working directory, or --config)
//  3. Environment variables, including those read from a .env file
//
// A .env file never overrides variables already set in the environment.
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/readmegen/internal/errors"
	"github.com/kraklabs/readmegen/pkg/ingestion"
	"github.com/kraklabs/readmegen/pkg/llm"
	"github.com/kraklabs/readmegen/pkg/progress"
	"github.com/kraklabs/readmegen/pkg/readme"
)

// File names looked up in the working directory.
const (
	DefaultConfigFile = "readmegen.yaml"
	DefaultEnvFile    = ".env"
)

// Config is the complete service configuration.
type Config struct {
	WorkDir  string         `yaml:"work_dir,omitempty"`
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Scan     ScanConfig     `yaml:"scan"`
	Progress ProgressConfig `yaml:"progress"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	LegacyStatus    bool          `yaml:"legacy_status"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig selects and tunes the text-generation provider.
type LLMConfig struct {
	Provider     string        `yaml:"provider"`
	BaseURL      string        `yaml:"base_url,omitempty"`
	APIKey       string        `yaml:"api_key,omitempty"`
	Model        string        `yaml:"model,omitempty"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	MaxTokens    int           `yaml:"max_tokens,omitempty"`
	Temperature  float64       `yaml:"temperature,omitempty"`
}

// FetchConfig configures repository cloning.
type FetchConfig struct {
	GitBinary string        `yaml:"git_binary,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
	AllowFile bool          `yaml:"allow_file,omitempty"`
}

// ArchiveConfig bounds uploaded archives.
type ArchiveConfig struct {
	MaxEntries    int   `yaml:"max_entries"`
	MaxTotalBytes int64 `yaml:"max_total_bytes"`
}

// ScanConfig configures the project scanner.
type ScanConfig struct {
	Extensions  []string `yaml:"extensions,omitempty"`
	ExcludeDirs []string `yaml:"exclude_dirs,omitempty"`
	MaxFileSize int64    `yaml:"max_file_size,omitempty"`
}

// ProgressConfig configures progress reporting.
type ProgressConfig struct {
	StepDelay time.Duration `yaml:"step_delay"`
	Retention time.Duration `yaml:"retention"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			MaxConcurrent:   8,
			MaxUploadBytes:  50 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			Provider:     "groq",
			Timeout:      llm.DefaultTimeout,
			MaxRetries:   0,
			RetryBackoff: llm.DefaultRetryBackoff,
		},
		Fetch: FetchConfig{
			Timeout: ingestion.DefaultCloneTimeout,
		},
		Archive: ArchiveConfig{
			MaxEntries:    ingestion.DefaultMaxArchiveEntries,
			MaxTotalBytes: ingestion.DefaultMaxArchiveBytes,
		},
		Progress: ProgressConfig{
			StepDelay: progress.DefaultStepDelay,
			Retention: progress.DefaultRetention,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load resolves the configuration from defaults, the YAML file at path and
// the environment. An empty path uses readmegen.yaml when it exists. envFile
// names a dotenv file to load first; a missing file is ignored.
//
// Load does not validate; call Validate before using the result.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewConfigError(
				"Cannot read environment file",
				fmt.Sprintf("%s: %v", envFile, err),
				"Fix the syntax of the file or remove it",
				err,
			)
		}
	}

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
	switch {
	case err == nil:
		if err := cfg.decode(data); err != nil {
			return nil, errors.NewConfigError(
				"Invalid configuration file",
				fmt.Sprintf("%s: %v", path, err),
				"Check the YAML syntax and field names",
				err,
			)
		}
	case explicit || !stderrors.Is(err, fs.ErrNotExist):
		return nil, errors.NewConfigError(
			"Cannot read configuration file",
			err.Error(),
			"Check the --config path",
			err,
		)
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !stderrors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Save writes c as YAML to path.
func Save(c *Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LookupFunc reports the value of an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from environment variables.
//
// Recognized variables: READMEGEN_ADDR, READMEGEN_MAX_CONCURRENT,
// READMEGEN_MAX_UPLOAD_BYTES, READMEGEN_LEGACY_STATUS, READMEGEN_WORK_DIR,
// READMEGEN_LOG_LEVEL, READMEGEN_LOG_FORMAT, READMEGEN_STEP_DELAY,
// READMEGEN_CLONE_TIMEOUT, LLM_PROVIDER, LLM_MODEL, LLM_BASE_URL,
// LLM_TIMEOUT, GROQ_API_KEY, OPENAI_API_KEY, OPENAI_BASE_URL and OLLAMA_HOST.
// Values that do not parse are ignored.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	int64v := func(key string, dst *int64) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				*dst = n
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
				*dst = d
			}
		}
	}

	str("READMEGEN_ADDR", &c.Server.Addr)
	integer("READMEGEN_MAX_CONCURRENT", &c.Server.MaxConcurrent)
	int64v("READMEGEN_MAX_UPLOAD_BYTES", &c.Server.MaxUploadBytes)
	boolean("READMEGEN_LEGACY_STATUS", &c.Server.LegacyStatus)
	str("READMEGEN_WORK_DIR", &c.WorkDir)
	str("READMEGEN_LOG_LEVEL", &c.Log.Level)
	str("READMEGEN_LOG_FORMAT", &c.Log.Format)
	duration("READMEGEN_STEP_DELAY", &c.Progress.StepDelay)
	duration("READMEGEN_CLONE_TIMEOUT", &c.Fetch.Timeout)

	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_MODEL", &c.LLM.Model)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	duration("LLM_TIMEOUT", &c.LLM.Timeout)

	switch strings.ToLower(c.LLM.Provider) {
	case "groq", "":
		str("GROQ_API_KEY", &c.LLM.APIKey)
	case "openai", "openai-compatible":
		str("OPENAI_API_KEY", &c.LLM.APIKey)
		str("OPENAI_BASE_URL", &c.LLM.BaseURL)
	case "ollama", "local":
		str("OLLAMA_HOST", &c.LLM.BaseURL)
	}
}

// Validate checks the configuration and fails fast on anything that would
// break at request time, most importantly a missing provider credential.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "groq", "", "openai", "openai-compatible", "ollama", "local", "mock", "test":
	default:
		return errors.NewConfigError(
			"Unknown LLM provider",
			fmt.Sprintf("llm.provider is %q", c.LLM.Provider),
			"Use one of: groq, openai, ollama, mock",
			nil,
		)
	}

	if llm.RequiresAPIKey(c.LLM.Provider) && c.LLM.APIKey == "" {
		key := c.APIKeyEnv()
		return errors.NewConfigError(
			"Missing "+key,
			fmt.Sprintf("The %s provider needs an API key and none was configured", c.providerName()),
			fmt.Sprintf("Set %s in the environment or in a .env file", key),
			nil,
		)
	}

	checks := []struct {
		ok    bool
		field string
	}{
		{c.Server.MaxConcurrent > 0, "server.max_concurrent"},
		{c.Server.MaxUploadBytes > 0, "server.max_upload_bytes"},
		{c.LLM.Timeout > 0, "llm.timeout"},
		{c.LLM.MaxRetries >= 0, "llm.max_retries"},
		{c.Fetch.Timeout > 0, "fetch.timeout"},
		{c.Archive.MaxEntries > 0, "archive.max_entries"},
		{c.Archive.MaxTotalBytes > 0, "archive.max_total_bytes"},
		{c.Scan.MaxFileSize >= 0, "scan.max_file_size"},
		{c.Progress.StepDelay >= 0, "progress.step_delay"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return errors.NewConfigError(
				"Invalid configuration value",
				chk.field+" is out of range",
				"Use a positive value for "+chk.field,
				nil,
			)
		}
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return errors.NewConfigError("Invalid log level", err.Error(), "Use debug, info, warn or error", err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return errors.NewConfigError("Invalid log format", fmt.Sprintf("log.format is %q", c.Log.Format), "Use text or json", nil)
	}
	return nil
}

// APIKeyEnv names the environment variable holding the provider credential.
func (c *Config) APIKeyEnv() string {
	if p := strings.ToLower(c.LLM.Provider); p == "openai" || p == "openai-compatible" {
		return "OPENAI_API_KEY"
	}
	return "GROQ_API_KEY"
}

func (c *Config) providerName() string {
	if c.LLM.Provider == "" {
		return "groq"
	}
	return c.LLM.Provider
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.LLM.APIKey != "" {
		cp.LLM.APIKey = "***"
	}
	return &cp
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}

// ProviderConfig returns the llm provider settings.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Type:         c.LLM.Provider,
		BaseURL:      c.LLM.BaseURL,
		APIKey:       c.LLM.APIKey,
		DefaultModel: c.LLM.Model,
		Timeout:      c.LLM.Timeout,
		MaxRetries:   retriesForProvider(c.LLM.MaxRetries),
		RetryBackoff: c.LLM.RetryBackoff,
	}
}

// retriesForProvider converts a retry count to the provider's convention,
// where 0 selects the default and a negative value disables retries.
func retriesForProvider(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

// GeneratorConfig returns the completion request settings.
func (c *Config) GeneratorConfig() readme.GeneratorConfig {
	return readme.GeneratorConfig{
		Model:       c.LLM.Model,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: c.LLM.Temperature,
	}
}

// FetcherConfig returns the clone settings.
func (c *Config) FetcherConfig() ingestion.FetcherConfig {
	return ingestion.FetcherConfig{
		GitBinary: c.Fetch.GitBinary,
		Timeout:   c.Fetch.Timeout,
		AllowFile: c.Fetch.AllowFile,
	}
}

// ArchiveLimits returns the extraction limits.
func (c *Config) ArchiveLimits() ingestion.ArchiveLimits {
	return ingestion.ArchiveLimits{
		MaxEntries:    c.Archive.MaxEntries,
		MaxTotalBytes: c.Archive.MaxTotalBytes,
	}
}

// ScanOptions returns the scanner settings.
func (c *Config) ScanOptions() ingestion.ScanOptions {
	return ingestion.ScanOptions{
		Extensions:  c.Scan.Extensions,
		ExcludeDirs: c.Scan.ExcludeDirs,
		MaxFileSize: c.Scan.MaxFileSize,
	}
}
