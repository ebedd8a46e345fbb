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

// Package readme turns a project into a generated README.
//
// Service runs the whole pipeline for one request: it acquires a scratch
// workspace, materializes the project from an uploaded ZIP archive or a
// repository URL, scans the project's text files, assembles the prompt and
// asks the configured LLM provider for the README. The workspace is removed
// on every exit path.
//
// # Usage Example
//
//	gen := readme.NewGenerator(provider, readme.GeneratorConfig{}, logger)
//	svc, err := readme.NewService(readme.Options{Generator: gen, Logger: logger})
//	if err != nil {
//	    return err
//	}
//	res, err := svc.Generate(ctx, readme.Input{RepoURL: "https://github.com/acme/widget"})
//
// Every error returned by Service.Generate is an *errors.UserError whose Kind
// tells the caller which step failed.
package readme
