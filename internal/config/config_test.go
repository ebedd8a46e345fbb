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

package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/readmegen/internal/errors"
	"github.com/kraklabs/readmegen/pkg/llm"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "readmegen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Server.MaxConcurrent)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxUploadBytes)
	assert.False(t, cfg.Server.LegacyStatus)
	assert.Equal(t, "groq", cfg.LLM.Provider)
	assert.Equal(t, 2*time.Minute, cfg.Fetch.Timeout)
	assert.Equal(t, time.Second, cfg.Progress.StepDelay)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  max_concurrent: 2
  legacy_status: true
llm:
  provider: openai
  model: gpt-4o
  timeout: 30s
fetch:
  timeout: 45s
scan:
  exclude_dirs: [node_modules, .git]
  max_file_size: 1048576
progress:
  step_delay: 250ms
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Server.MaxConcurrent)
	assert.True(t, cfg.Server.LegacyStatus)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxUploadBytes, "unset fields keep defaults")
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 45*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, []string{"node_modules", ".git"}, cfg.Scan.ExcludeDirs)
	assert.Equal(t, int64(1048576), cfg.Scan.MaxFileSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Progress.StepDelay)
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeConfig(t, "server:\n  adress: \":9000\"\n")

	_, err := Load(path, "")
	require.Error(t, err)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""), "")
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	require.Error(t, err)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}

func TestLoad_MissingDefaultFileIsFine(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "groq", cfg.LLM.Provider)
}

func TestLoad_EnvFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GROQ_API_KEY", "")
	require.NoError(t, os.Unsetenv("GROQ_API_KEY"))
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GROQ_API_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("GROQ_API_KEY") })

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.LLM.APIKey)
}

func TestLoad_EnvFileDoesNotOverrideEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GROQ_API_KEY", "from-env")
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GROQ_API_KEY=from-dotenv\n"), 0o600))

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(envMap(map[string]string{
		"READMEGEN_ADDR":             "127.0.0.1:8080",
		"READMEGEN_MAX_CONCURRENT":   "3",
		"READMEGEN_MAX_UPLOAD_BYTES": "1024",
		"READMEGEN_LEGACY_STATUS":    "true",
		"READMEGEN_STEP_DELAY":       "0s",
		"READMEGEN_CLONE_TIMEOUT":    "not-a-duration",
		"LLM_MODEL":                  "llama-3.1-8b-instant",
		"GROQ_API_KEY":               " gsk_test ",
	}))

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Server.MaxConcurrent)
	assert.Equal(t, int64(1024), cfg.Server.MaxUploadBytes)
	assert.True(t, cfg.Server.LegacyStatus)
	assert.Equal(t, time.Duration(0), cfg.Progress.StepDelay)
	assert.Equal(t, 2*time.Minute, cfg.Fetch.Timeout, "unparsable values are ignored")
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, "gsk_test", cfg.LLM.APIKey)
}

func TestApplyEnv_ProviderSpecificKeys(t *testing.T) {
	env := envMap(map[string]string{
		"LLM_PROVIDER":    "openai",
		"GROQ_API_KEY":    "groq-key",
		"OPENAI_API_KEY":  "openai-key",
		"OPENAI_BASE_URL": "https://llm.internal/v1",
	})
	cfg := Default()
	cfg.ApplyEnv(env)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "openai-key", cfg.LLM.APIKey)
	assert.Equal(t, "https://llm.internal/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.APIKeyEnv())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.LLM.APIKey = "k"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing groq key", func(c *Config) { c.LLM.APIKey = "" }, "Missing GROQ_API_KEY"},
		{"missing openai key", func(c *Config) { c.LLM.Provider = "openai"; c.LLM.APIKey = "" }, "Missing OPENAI_API_KEY"},
		{"ollama needs no key", func(c *Config) { c.LLM.Provider = "ollama"; c.LLM.APIKey = "" }, ""},
		{"mock needs no key", func(c *Config) { c.LLM.Provider = "mock"; c.LLM.APIKey = "" }, ""},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bard" }, "Unknown LLM provider"},
		{"zero concurrency", func(c *Config) { c.Server.MaxConcurrent = 0 }, "Invalid configuration value"},
		{"zero upload cap", func(c *Config) { c.Server.MaxUploadBytes = 0 }, "Invalid configuration value"},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }, "Invalid configuration value"},
		{"zero clone timeout", func(c *Config) { c.Fetch.Timeout = 0 }, "Invalid configuration value"},
		{"zero step delay ok", func(c *Config) { c.Progress.StepDelay = 0 }, ""},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "Invalid log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "Invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, errors.KindConfig, errors.KindOf(err))
			assert.Equal(t, errors.ExitConfig, errors.AsUserError(err).ExitCode)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ":7000"
	cfg.Scan.ExcludeDirs = []string{"vendor"}
	path := filepath.Join(t.TempDir(), "readmegen.yaml")

	require.NoError(t, Save(cfg, path))
	loaded, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, ":7000", loaded.Server.Addr)
	assert.Equal(t, []string{"vendor"}, loaded.Scan.ExcludeDirs)
	assert.Equal(t, cfg.LLM.Timeout, loaded.LLM.Timeout)
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKey = "secret"

	assert.Equal(t, "***", cfg.Redacted().LLM.APIKey)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
}

func TestProviderConfig(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKey = "k"
	require.Equal(t, 0, cfg.LLM.MaxRetries)

	pc := cfg.ProviderConfig()
	assert.Equal(t, "groq", pc.Type)
	assert.Equal(t, "k", pc.APIKey)
	assert.Equal(t, -1, pc.MaxRetries)
}

func TestProviderConfig_DefaultSendsOneRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	cfg := Default()
	cfg.LLM.APIKey = "k"
	cfg.LLM.BaseURL = server.URL
	p, err := llm.NewProvider(cfg.ProviderConfig())
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), llm.ChatRequest{Messages: []llm.Message{{Role: "user", Content: "x"}}})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent to testing.T.Chdir in Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
