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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want RepoIdentity
	}{
		{
			name: "github with .git",
			raw:  "https://github.com/acme/widget.git",
			want: RepoIdentity{Owner: "acme", Name: "widget", URL: "https://github.com/acme/widget.git"},
		},
		{
			name: "github without .git",
			raw:  "https://github.com/acme/widget",
			want: RepoIdentity{Owner: "acme", Name: "widget", URL: "https://github.com/acme/widget"},
		},
		{
			name: "surrounding whitespace trimmed",
			raw:  "  https://github.com/acme/widget.git\n",
			want: RepoIdentity{Owner: "acme", Name: "widget", URL: "https://github.com/acme/widget.git"},
		},
		{
			name: "ssh form",
			raw:  "git@github.com:acme/widget.git",
			want: RepoIdentity{URL: "git@github.com:acme/widget.git"},
		},
		{
			name: "dotted repo name",
			raw:  "https://github.com/acme/widget.js",
			want: RepoIdentity{Owner: "acme", Name: "widget.js", URL: "https://github.com/acme/widget.js"},
		},
		{
			name: "not github",
			raw:  "https://example.com/not-github",
			want: RepoIdentity{URL: "https://example.com/not-github"},
		},
		{
			name: "trailing path segment",
			raw:  "https://github.com/acme/widget/tree/main",
			want: RepoIdentity{URL: "https://github.com/acme/widget/tree/main"},
		},
		{
			name: "empty",
			raw:  "",
			want: RepoIdentity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRepoURL(tt.raw))
		})
	}
}

func TestRepoIdentity_Recognized(t *testing.T) {
	assert.True(t, ParseRepoURL("https://github.com/acme/widget").Recognized())
	assert.False(t, ParseRepoURL("https://gitlab.com/acme/widget").Recognized())
}
