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
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Workspace is a scratch directory exclusively owned by one request.
//
// Close removes it unconditionally. Files and directories whose permission
// bits would block removal are made writable first, so a project that ships
// read-only files (git packs, vendored trees) cannot leak a workspace.
type Workspace struct {
	dir    string
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewWorkspace creates a fresh directory under baseDir (os.TempDir() when empty).
func NewWorkspace(baseDir string, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir, err := os.MkdirTemp(baseDir, "readmegen-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	recordWorkspaceCreated()
	logger.Debug("workspace.create", "dir", dir)
	return &Workspace{dir: dir, logger: logger}, nil
}

// Dir returns the workspace root.
func (w *Workspace) Dir() string { return w.dir }

// Path joins elem onto the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.dir}, elem...)...)
}

// Close deletes the workspace. It is safe to call more than once; later calls
// return the first call's result.
func (w *Workspace) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = RemoveTree(w.dir)
		if w.closeErr != nil {
			recordCleanupError()
			w.logger.Warn("workspace.cleanup.error", "dir", w.dir, "err", w.closeErr)
			return
		}
		w.logger.Debug("workspace.cleanup", "dir", w.dir)
	})
	return w.closeErr
}

// RemoveTree removes path and everything below it. When the first attempt
// fails it grants the owner write access across the tree and retries.
func RemoveTree(path string) error {
	err := os.RemoveAll(path)
	if err == nil {
		return nil
	}
	recordCleanupRetry()
	makeWritable(path)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// makeWritable chmods directories to 0700 and regular files to 0600.
// A directory is fixed in its first walk callback, before WalkDir reads it.
// Symlinks are left alone so their targets are never touched.
func makeWritable(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d == nil {
			return nil
		}
		switch {
		case d.Type()&fs.ModeSymlink != 0:
		case d.IsDir():
			_ = os.Chmod(path, 0o700)
		default:
			_ = os.Chmod(path, 0o600)
		}
		return nil
	})
}
