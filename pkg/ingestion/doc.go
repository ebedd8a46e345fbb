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

// Package ingestion turns an untrusted project (an uploaded ZIP archive or a
// remote git repository) into a bounded text blob for prompt assembly.
//
// # Pipeline Overview
//
//  1. Workspace: a per-request scratch directory, always removed on Close
//  2. Acquisition: ArchiveExtractor unpacks an upload, or RepoFetcher
//     shallow-clones a URL (git is run with an argument vector, never a shell)
//  3. Scanning: Scanner concatenates the text of allow-listed files, each
//     preceded by a "# File: <path>" header
//
// # Safety
//
// Archives are validated entry by entry before anything is written: absolute
// paths, ".." escapes, too many entries and oversized expansions are all
// rejected as InvalidArchive. The scanner never follows symlinks and never
// writes to the tree it walks.
//
// # Quick Start
//
//	ws, err := ingestion.NewWorkspace("", logger)
//	if err != nil {
//	    return err
//	}
//	defer ws.Close()
//
//	fetcher := ingestion.NewRepoFetcher(ingestion.FetcherConfig{}, logger)
//	if err := fetcher.Clone(ctx, "https://github.com/acme/widget.git", ws.Path("repo")); err != nil {
//	    return err // FetchFailed
//	}
//
//	res, err := ingestion.NewScanner(ingestion.ScanOptions{}, logger).Scan(ctx, ws.Path("repo"))
//	if err != nil {
//	    return err
//	}
//	fmt.Println(len(res.Files), "files,", res.Bytes, "bytes")
//
// # Metrics
//
// Counters and histograms prefixed readmegen_ing_ are registered with the
// default Prometheus registry on first use.
package ingestion
