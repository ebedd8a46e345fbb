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

package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

// withPlainOutput disables colors and captures Out for the test's duration.
func withPlainOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	original := color.NoColor
	originalOut := Out
	color.NoColor = true
	var buf bytes.Buffer
	Out = &buf
	t.Cleanup(func() {
		color.NoColor = original
		Out = originalOut
	})
	return &buf
}

func TestInitColors(t *testing.T) {
	original := color.NoColor
	defer func() { color.NoColor = original }()

	for _, noColor := range []bool{false, true} {
		InitColors(noColor)
		if color.NoColor != noColor {
			t.Errorf("InitColors(%v): color.NoColor = %v", noColor, color.NoColor)
		}
	}
}

func TestMessageHelpers(t *testing.T) {
	tests := []struct {
		name  string
		print func()
		want  string
	}{
		{"success", func() { Success("README written") }, "✓ README written\n"},
		{"successf", func() { Successf("%d files", 3) }, "✓ 3 files\n"},
		{"warningf", func() { Warningf("skipped %s", "x") }, "⚠ skipped x\n"},
		{"errorf", func() { Errorf("failed: %v", "boom") }, "✗ failed: boom\n"},
		{"info", func() { Info("cloning") }, "ℹ cloning\n"},
		{"infof", func() { Infof("%s", "scanning") }, "ℹ scanning\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := withPlainOutput(t)
			tt.print()
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestHeader(t *testing.T) {
	buf := withPlainOutput(t)
	Header("Generating README")
	want := "Generating README\n=================\n"
	if buf.String() != want {
		t.Errorf("Header() wrote %q, want %q", buf.String(), want)
	}
}

func TestField(t *testing.T) {
	buf := withPlainOutput(t)
	Field("Files", 12)
	if !strings.Contains(buf.String(), "Files:") || !strings.Contains(buf.String(), "12") {
		t.Errorf("Field() wrote %q", buf.String())
	}
}

func TestInlineFormatters(t *testing.T) {
	withPlainOutput(t)
	if got := Label("Repo:"); got != "Repo:" {
		t.Errorf("Label() = %q", got)
	}
	if got := DimText("/tmp/x"); got != "/tmp/x" {
		t.Errorf("DimText() = %q", got)
	}
	if got := CountText(42); got != "42" {
		t.Errorf("CountText() = %q", got)
	}
}
