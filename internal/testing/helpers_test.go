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

package testing

import (
	"archive/zip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWriteTree verifies nested files are created.
func TestWriteTree(t *testing.T) {
	root := WriteTree(t, map[string]string{
		"README.md":       "# widget",
		"src/app/main.js": "console.log(1)",
	})

	assert.Equal(t, []string{"README.md", "src/app/main.js"}, ListFiles(t, root))
}

// TestWriteZip verifies the archive holds the requested entries in name order.
func TestWriteZip(t *testing.T) {
	path := WriteZip(t, map[string]string{
		"b.py": "print(2)",
		"a.md": "# a",
	})

	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.File, 2)
	assert.Equal(t, "a.md", r.File[0].Name)
	assert.Equal(t, "b.py", r.File[1].Name)
}

// TestWriteZipEntries verifies raw names are preserved.
func TestWriteZipEntries(t *testing.T) {
	path := WriteZipEntries(t, ZipEntry{Name: "../evil.txt", Body: "x"})

	r, err := zip.OpenReader(path)
	if err == nil {
		defer r.Close()
		require.Len(t, r.File, 1)
		assert.Equal(t, "../evil.txt", r.File[0].Name)
	} else {
		// GODEBUG=zipinsecurepath=0 makes the reader refuse such names.
		assert.ErrorIs(t, err, zip.ErrInsecurePath)
	}
}

// TestDirExists verifies presence checks.
func TestDirExists(t *testing.T) {
	root := t.TempDir()
	assert.True(t, DirExists(t, root))
	assert.False(t, DirExists(t, root+"/missing"))
}
