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
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultExtensions is the allow-list of file suffixes included in the
// content blob.
var DefaultExtensions = []string{".md", ".py", ".js", ".ts", ".jsx", ".java", ".html", ".css", ".json"}

// ScanOptions configures a Scanner.
type ScanOptions struct {
	// Extensions is the suffix allow-list. Matching is case-sensitive.
	// Defaults to DefaultExtensions.
	Extensions []string

	// ExcludeDirs lists directory base names whose subtrees are not walked.
	ExcludeDirs []string

	// MaxFileSize skips files larger than this many bytes (0 = unlimited).
	MaxFileSize int64
}

// ScanResult is the output of a scan.
type ScanResult struct {
	Content     string         // Aggregated content blob
	Files       []string       // Included files, slash-separated and relative to the root
	Bytes       int64          // Decoded bytes appended
	SkipReasons map[string]int // Reason -> count, for allow-listed files and pruned dirs
	Elapsed     time.Duration
}

// Scanner walks a project tree and concatenates the text of allow-listed files.
type Scanner struct {
	opts   ScanOptions
	logger *slog.Logger
}

// NewScanner creates a scanner.
func NewScanner(opts ScanOptions, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	return &Scanner{opts: opts, logger: logger}
}

// FileHeader returns the separator and header written before a file's text.
func FileHeader(relPath string) string {
	return "\n---\n# File: " + relPath + "\n"
}

// Scan visits every file under root in walk order. For each allow-listed file
// it appends FileHeader(path) followed by the decoded text. Files that cannot
// be read are skipped; a tree with no matching files yields empty content.
// The project tree is never modified.
func (s *Scanner) Scan(ctx context.Context, root string) (*ScanResult, error) {
	start := time.Now()
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}

	var sb strings.Builder
	result := &ScanResult{SkipReasons: make(map[string]int)}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Log but continue on permission errors
			s.logger.Debug("scan.walk.error", "path", path, "err", err)
			return nil
		}

		if d.IsDir() {
			if path != root && s.excludedDir(d.Name()) {
				result.SkipReasons["excluded_dir"]++
				return filepath.SkipDir
			}
			return nil
		}

		ext, ok := s.matchExtension(d.Name())
		if !ok {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		// Symlinks may point outside the project; never follow them.
		if d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
			s.skip(result, "not_regular", relPath)
			return nil
		}

		if s.opts.MaxFileSize > 0 {
			if info, err := d.Info(); err == nil && info.Size() > s.opts.MaxFileSize {
				s.skip(result, "too_large", relPath)
				return nil
			}
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			s.skip(result, "unreadable", relPath)
			return nil
		}

		text := DecodeText(raw)
		sb.WriteString(FileHeader(relPath))
		sb.WriteString(text)

		result.Files = append(result.Files, relPath)
		result.Bytes += int64(len(text))
		recordFileIncluded(ext, len(text))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk project: %w", err)
	}

	result.Content = sb.String()
	result.Elapsed = time.Since(start)
	recordScan(result.Elapsed)

	s.logger.Info("scan.complete",
		"files", len(result.Files),
		"bytes", result.Bytes,
		"skipped", result.SkipReasons,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

func (s *Scanner) skip(result *ScanResult, reason, relPath string) {
	result.SkipReasons[reason]++
	recordFileSkipped(reason)
	s.logger.Debug("scan.skip", "path", relPath, "reason", reason)
}

func (s *Scanner) matchExtension(name string) (string, bool) {
	for _, ext := range s.opts.Extensions {
		if strings.HasSuffix(name, ext) {
			return ext, true
		}
	}
	return "", false
}

func (s *Scanner) excludedDir(name string) bool {
	for _, ex := range s.opts.ExcludeDirs {
		if name == ex {
			return true
		}
	}
	return false
}

// DecodeText decodes b as UTF-8, dropping invalid byte sequences, and
// normalizes CRLF and lone CR line endings to LF.
func DecodeText(b []byte) string {
	s := string(b)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	if strings.IndexByte(s, '\r') >= 0 {
		s = strings.ReplaceAll(s, "\r\n", "\n")
		s = strings.ReplaceAll(s, "\r", "\n")
	}
	return s
}
