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
	"archive/zip"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kraklabs/readmegen/internal/errors"
)

// Default extraction limits.
const (
	DefaultMaxArchiveEntries = 20000
	DefaultMaxArchiveBytes   = 512 << 20
)

// ArchiveLimits bounds what an uploaded archive may expand to.
// Zero values fall back to the defaults.
type ArchiveLimits struct {
	MaxEntries    int
	MaxTotalBytes int64
}

// ExtractResult describes a completed extraction.
type ExtractResult struct {
	Files   []string // Slash-separated paths of extracted files, in archive order
	Dirs    int
	Bytes   int64
	Elapsed time.Duration
}

// ArchiveExtractor validates and unpacks uploaded ZIP archives.
type ArchiveExtractor struct {
	limits ArchiveLimits
	logger *slog.Logger
}

// NewArchiveExtractor creates an extractor with the given limits.
func NewArchiveExtractor(limits ArchiveLimits, logger *slog.Logger) *ArchiveExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if limits.MaxEntries <= 0 {
		limits.MaxEntries = DefaultMaxArchiveEntries
	}
	if limits.MaxTotalBytes <= 0 {
		limits.MaxTotalBytes = DefaultMaxArchiveBytes
	}
	return &ArchiveExtractor{limits: limits, logger: logger}
}

// IsZip reports whether path holds a readable ZIP archive.
func IsZip(path string) bool {
	r, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	_ = r.Close()
	return true
}

// Extract unpacks archivePath into dest, preserving relative paths.
//
// The whole entry list is validated before the first byte is written: an
// archive that is corrupt, escapes dest, or exceeds the limits yields an
// InvalidArchive error and leaves dest untouched. Decompression errors found
// while writing (bad checksums, truncated data) are also InvalidArchive; the
// caller's workspace teardown removes whatever was written.
func (e *ArchiveExtractor) Extract(ctx context.Context, archivePath, dest string) (*ExtractResult, error) {
	start := time.Now()

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		recordArchiveRejected()
		return nil, errors.NewInvalidArchiveError("The upload could not be opened as a ZIP archive", err)
	}
	defer func() { _ = r.Close() }()

	targets, err := e.plan(r.File, dest)
	if err != nil {
		recordArchiveRejected()
		e.logger.Warn("archive.extract.rejected", "archive", filepath.Base(archivePath), "err", err)
		return nil, err
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create extraction dir: %w", err)
	}

	result := &ExtractResult{}
	budget := e.limits.MaxTotalBytes
	for i, f := range r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := targets[i]
		if target == "" {
			continue
		}

		if isDirEntry(f) {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("create dir %s: %w", f.Name, err)
			}
			result.Dirs++
			continue
		}

		n, err := extractFile(f, target, budget)
		if err != nil {
			recordArchiveRejected()
			return nil, err
		}
		budget -= n
		result.Bytes += n
		rel, err := filepath.Rel(dest, target)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", f.Name, err)
		}
		result.Files = append(result.Files, filepath.ToSlash(rel))
	}

	result.Elapsed = time.Since(start)
	recordArchiveExtracted(result.Bytes, result.Elapsed)
	e.logger.Info("archive.extract.complete",
		"files", len(result.Files),
		"dirs", result.Dirs,
		"bytes", result.Bytes,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// plan resolves every entry to its destination path and enforces the limits.
// Entries that resolve to dest itself ("./") map to "".
func (e *ArchiveExtractor) plan(files []*zip.File, dest string) ([]string, error) {
	if len(files) > e.limits.MaxEntries {
		return nil, errors.NewInvalidArchiveError(
			fmt.Sprintf("The archive has %d entries; the limit is %d", len(files), e.limits.MaxEntries), nil)
	}

	cleanDest := filepath.Clean(dest)
	targets := make([]string, len(files))
	var total uint64
	for i, f := range files {
		target, err := entryTarget(cleanDest, f.Name)
		if err != nil {
			return nil, err
		}
		targets[i] = target

		total += f.UncompressedSize64
		if total > uint64(e.limits.MaxTotalBytes) {
			return nil, errors.NewInvalidArchiveError(
				fmt.Sprintf("The archive expands beyond %d bytes", e.limits.MaxTotalBytes), nil)
		}
	}
	return targets, nil
}

// entryTarget maps an entry name to a path under dest, rejecting names that
// are absolute or climb out of dest.
func entryTarget(dest, name string) (string, error) {
	slashed := strings.ReplaceAll(name, "\\", "/")
	if slashed == "" || strings.HasPrefix(slashed, "/") || filepath.VolumeName(name) != "" {
		return "", errors.NewInvalidArchiveError(fmt.Sprintf("The archive contains an absolute entry path %q", name), nil)
	}

	target := filepath.Join(dest, filepath.FromSlash(slashed))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.NewInvalidArchiveError(fmt.Sprintf("The archive entry %q escapes the extraction directory", name), nil)
	}
	if rel == "." {
		return "", nil
	}
	return target, nil
}

func isDirEntry(f *zip.File) bool {
	return strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir()
}

// extractFile writes one entry as a regular file. Symlink entries end up as
// files holding the link target. At most budget bytes are accepted so an
// entry that lies about its size cannot fill the disk.
func extractFile(f *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create parent of %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return 0, errors.NewInvalidArchiveError(fmt.Sprintf("Entry %q cannot be opened", f.Name), err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", f.Name, err)
	}

	n, copyErr := io.CopyN(out, rc, budget+1)
	closeErr := out.Close()
	if copyErr != nil && !stderrors.Is(copyErr, io.EOF) {
		return n, errors.NewInvalidArchiveError(fmt.Sprintf("Entry %q is corrupt", f.Name), copyErr)
	}
	if n > budget {
		return n, errors.NewInvalidArchiveError("The archive expands beyond its declared size", nil)
	}
	if closeErr != nil {
		return n, fmt.Errorf("write %s: %w", f.Name, closeErr)
	}
	return n, nil
}
