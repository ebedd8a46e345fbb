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

package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/kraklabs/readmegen/internal/errors"
)

// DefaultCloneTimeout bounds a shallow clone when no timeout is configured.
const DefaultCloneTimeout = 2 * time.Minute

var (
	// validGitURLPattern matches valid SSH git URLs
	// Allows: git@github.com:user/repo.git, ssh://git@host/user/repo
	validGitURLPattern = regexp.MustCompile(`^(git@|ssh://)[\w.\-@:/%~]+$`)

	// dangerousCharsPattern matches characters that could be used for command injection
	dangerousCharsPattern = regexp.MustCompile(`[;&|$` + "`" + `\n\r\\<>'"\s]`)
)

// FetcherConfig configures a RepoFetcher.
type FetcherConfig struct {
	GitBinary string        // Defaults to "git" on PATH
	Timeout   time.Duration // Defaults to DefaultCloneTimeout
	AllowFile bool          // Permit file:// URLs (tests, local mirrors)
}

// RepoFetcher performs shallow clones of remote repositories.
type RepoFetcher struct {
	cfg    FetcherConfig
	logger *slog.Logger
}

// NewRepoFetcher creates a fetcher.
func NewRepoFetcher(cfg FetcherConfig, logger *slog.Logger) *RepoFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GitBinary == "" {
		cfg.GitBinary = "git"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCloneTimeout
	}
	return &RepoFetcher{cfg: cfg, logger: logger}
}

// Clone runs "git clone --depth 1" of gitURL into dest.
//
// git is executed with an argument vector, never through a shell, and the URL
// is validated first. Every failure, including a rejected URL and a timeout,
// is reported as a FetchFailed error.
func (f *RepoFetcher) Clone(ctx context.Context, gitURL, dest string) error {
	gitURL = strings.TrimSpace(gitURL)
	logURL := sanitizeURLForLog(gitURL)

	if err := validateGitURL(gitURL, f.cfg.AllowFile); err != nil {
		recordClone(false, 0)
		f.logger.Warn("repo.clone.rejected", "url", logURL, "err", err)
		return errors.NewFetchError(
			"Failed to clone repository",
			err.Error(),
			"Pass an https:// or git@ URL of a public repository",
			err,
		)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	// #nosec G204 - gitURL is validated above and passed after "--"
	cmd := exec.CommandContext(ctx, f.cfg.GitBinary, "clone", "--depth", "1", "--quiet", "--", gitURL, dest)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=true")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// git-remote-https can outlive a killed git and hold stderr open.
	cmd.WaitDelay = 5 * time.Second

	f.logger.Info("repo.clone.start", "url", logURL, "dest", dest)
	start := time.Now()

	if err := cmd.Run(); err != nil {
		recordClone(false, time.Since(start))
		cause := lastLines(stderr.String(), 5)
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
			cause = fmt.Sprintf("git clone did not finish within %s", f.cfg.Timeout)
		}
		f.logger.Warn("repo.clone.error", "url", logURL, "err", err, "stderr", cause)
		return errors.NewFetchError(
			"Failed to clone repository",
			cause,
			"Check that the repository exists, is public, and the host is reachable",
			fmt.Errorf("git clone: %w", err),
		)
	}

	recordClone(true, time.Since(start))
	f.logger.Info("repo.clone.success", "url", logURL, "elapsed", time.Since(start))
	return nil
}

// validateGitURL validates a git URL to prevent command and option injection.
func validateGitURL(gitURL string, allowFile bool) error {
	if gitURL == "" {
		return fmt.Errorf("git URL is empty")
	}

	if dangerousCharsPattern.MatchString(gitURL) {
		return fmt.Errorf("git URL contains dangerous characters")
	}

	switch {
	case strings.HasPrefix(gitURL, "http://"), strings.HasPrefix(gitURL, "https://"):
		parsed, err := url.Parse(gitURL)
		if err != nil {
			return fmt.Errorf("invalid URL format: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("git URL missing host")
		}
		if parsed.User != nil {
			if _, hasPassword := parsed.User.Password(); hasPassword {
				return fmt.Errorf("git URL should not contain embedded password")
			}
		}
		return nil

	case strings.HasPrefix(gitURL, "git@"), strings.HasPrefix(gitURL, "ssh://"):
		if !validGitURLPattern.MatchString(gitURL) {
			return fmt.Errorf("invalid SSH git URL format")
		}
		return nil

	case strings.HasPrefix(gitURL, "file://"):
		if !allowFile {
			return fmt.Errorf("file:// URLs are not allowed")
		}
		return nil
	}

	return fmt.Errorf("unsupported git URL protocol: must be https://, git@ or ssh://")
}

// sanitizeURLForLog hides credentials and query parameters.
func sanitizeURLForLog(gitURL string) string {
	parsed, err := url.Parse(gitURL)
	if err != nil || parsed.Scheme == "" {
		return gitURL
	}
	parsed.RawQuery = ""
	if parsed.User != nil {
		parsed.User = url.User("***")
	}
	return parsed.String()
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
