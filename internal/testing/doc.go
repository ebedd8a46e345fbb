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

// Package testing provides fixtures for readmegen tests.
//
// # Quick Start
//
// Build a project tree or a ZIP archive under t.TempDir():
//
//	func TestMyFeature(t *testing.T) {
//	    root := testing.WriteTree(t, map[string]string{
//	        "README.md": "# widget",
//	        "app.py":    "print('hi')",
//	    })
//
//	    zipPath := testing.WriteZip(t, map[string]string{
//	        "widget/README.md": "# widget",
//	    })
//	}
//
// # Helpers
//
//   - WriteTree: create files (and parent directories) under a temp dir
//   - WriteZip: build a ZIP archive from a path -> content map
//   - WriteZipEntries: build a ZIP archive with explicit entry order and raw names
//   - WriteFile: write arbitrary bytes, e.g. a non-archive upload
//   - DirExists: report whether a path is still on disk
//   - ListFiles: relative, sorted file list of a tree
package testing
