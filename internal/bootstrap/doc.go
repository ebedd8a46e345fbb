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

// Package bootstrap builds the readmegen application context.
//
// The CLI loads the configuration, then hands it to New, which validates it
// and wires every long-lived component: the logger, the LLM provider, the
// ingestion pipeline, the progress hub and the README service. Startup fails
// here, before any request is served, when the provider credential is
// missing.
//
// # Usage Example
//
//	cfg, err := config.Load(configPath, config.DefaultEnvFile)
//	if err != nil {
//	    errors.FatalError(err, false)
//	}
//	app, err := bootstrap.New(cfg, bootstrap.Options{})
//	if err != nil {
//	    errors.FatalError(err, false)
//	}
//	res, err := app.Service.Generate(ctx, readme.Input{RepoURL: url})
package bootstrap
