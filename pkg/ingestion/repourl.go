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
	"regexp"
	"strings"
)

// githubRepoPattern matches "github.com/<owner>/<name>[.git]" at the end of a URL.
var githubRepoPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+?)(?:\.git)?$`)

// RepoIdentity identifies a hosted repository. Owner and Name are empty when
// the URL is not a recognized GitHub repository URL.
type RepoIdentity struct {
	Owner string `json:"owner,omitempty"`
	Name  string `json:"name,omitempty"`
	URL   string `json:"url"`
}

// Recognized reports whether owner and name were extracted.
func (id RepoIdentity) Recognized() bool {
	return id.Owner != "" && id.Name != ""
}

// ParseRepoURL extracts owner and name from a GitHub URL. It never fails:
// unrecognized URLs keep only the trimmed URL.
//
//	ParseRepoURL("https://github.com/acme/widget.git") // {acme widget https://github.com/acme/widget.git}
//	ParseRepoURL("https://example.com/not-github")     // {"" "" https://example.com/not-github}
func ParseRepoURL(raw string) RepoIdentity {
	trimmed := strings.TrimSpace(raw)
	m := githubRepoPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return RepoIdentity{URL: trimmed}
	}
	return RepoIdentity{Owner: m[1], Name: m[2], URL: trimmed}
}
