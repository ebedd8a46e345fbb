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

// Package progress reports pipeline progress to clients.
//
// Two sources are provided:
//
//   - Notifier emits the fixed four-step sequence on a timer. It is not tied
//     to any request and only gives the user something to look at.
//   - Hub relays the real stage transitions of one request, keyed by the
//     request ID the client sent with its upload.
//
// Hub keeps the events of each request for a short time after it finishes,
// so a client that subscribes late still sees the full sequence. Only the
// latest run of a request ID is kept: Begin refuses an ID whose run is still
// in flight and clears the history of one that has finished.
package progress
