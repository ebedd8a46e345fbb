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

// Package server exposes the README pipeline over HTTP.
//
// Routes:
//
//	POST /generate-readme   multipart form: file (ZIP) or repo_url, optional request_id
//	GET  /progress-stream   server-sent events; ?request_id= relays real stages
//	GET  /health            liveness probe
//	GET  /metrics           Prometheus exposition
//
// Every route allows cross-origin requests from any origin. Generation
// requests are bounded by a concurrency limit; requests over the limit wait
// until a slot frees up or their context ends.
package server
