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

// Package prompt assembles the instruction sent to the text-generation
// service from a project's content blob and its identity.
package prompt

import (
	"strings"
	"unicode/utf8"
)

// MaxContentChars is the number of characters of the content blob kept in
// the prompt.
const MaxContentChars = 12000

// Defaults substituted for missing context fields.
const (
	DefaultRepoName = "Unknown Project"
	DefaultAuthor   = "Unknown Author"
	DefaultRepoURL  = "Not provided"
	defaultTeam     = "the team"
)

// Context identifies the project the README is written for. Empty fields
// fall back to the defaults above.
type Context struct {
	RepoName string
	Author   string
	RepoURL  string
}

// styleRules is the fixed instruction block. {{author_or_team}} is replaced
// with the author name, or "the team" when it is unknown.
const styleRules = `Generate ONLY a fully polished README.md for GitHub in valid markdown + minimal HTML.
It must look like a top-starred open-source project page.

✨ Style Requirements:
1️⃣ Title:
- BIG, centered title: either <h1 align="center"> or markdown heading with an emoji.
- Below title: one-line bold tagline, centered, with 1-2 emojis.
- Immediately after tagline: Shields.io badges in one line (GitHub stars, forks, issues, license) using repo name/author if available.

2️⃣ Section Formatting:
- **Every single section must be wrapped with horizontal separators**: add ` + "`" + `---` + "`" + ` on a separate line above AND below the section content (including before the first section and after the last).
- Section headers must use emojis:
  - 🚀 Features
  - 📦 Installation
  - ⚙️ Usage
  - 🤝 Contributing
  - 📜 License

3️⃣ Features Section:
- Always a markdown unordered list.
- Each feature starts with ✅, 🔥, or ⚡ emoji, then **bold title**, colon, short description.
- Each feature is its own bullet, no paragraphs.

4️⃣ Usage Section:
- Use syntax-highlighted triple backticks for commands.
- If commands exist in repo files, list each command separately with a short description above it.

5️⃣ Other Rules:
- Use tables only for structured data (e.g., feature comparisons).
- If repo has images/screenshots, show them centered using markdown image links or <img>.
- End with a call-to-action: "⭐ Star this repo if you like it!" and "Made with ❤️ by {{author_or_team}}".
- No placeholders or fake info. Omit sections with no data.

`

// Assemble builds the full prompt: the style rules, the context block and the
// first MaxContentChars characters of content.
func Assemble(content string, c Context) string {
	var sb strings.Builder
	sb.Grow(len(styleRules) + min(len(content), MaxContentChars*utf8.UTFMax) + 256)

	sb.WriteString("\n\n")
	sb.WriteString(strings.ReplaceAll(styleRules, "{{author_or_team}}", orDefault(c.Author, defaultTeam)))
	sb.WriteString("📌 Context:\n")
	sb.WriteString("Repository name: " + orDefault(c.RepoName, DefaultRepoName) + "\n")
	sb.WriteString("Author: " + orDefault(c.Author, DefaultAuthor) + "\n")
	sb.WriteString("Repository URL: " + orDefault(c.RepoURL, DefaultRepoURL) + "\n")
	sb.WriteString("\n\nRepository content for analysis:\n")
	sb.WriteString(Truncate(content, MaxContentChars))
	sb.WriteString("\n")
	return sb.String()
}

// Truncate returns the first n characters of s. Multi-byte characters are
// never split.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Truncated reports whether Assemble drops part of content.
func Truncated(content string) bool {
	return utf8.RuneCountInString(content) > MaxContentChars
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
