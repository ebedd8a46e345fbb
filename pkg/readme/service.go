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

package readme

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kraklabs/readmegen/internal/errors"
	"github.com/kraklabs/readmegen/pkg/ingestion"
	"github.com/kraklabs/readmegen/pkg/progress"
	"github.com/kraklabs/readmegen/pkg/prompt"
)

// Names used inside a request workspace.
const (
	uploadFile   = "upload.zip"
	extractedDir = "extracted"
	clonedDir    = "repo"
)

// Fetcher clones a repository into dest.
type Fetcher interface {
	Clone(ctx context.Context, url, dest string) error
}

// TextGenerator turns a prompt into README text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StagePublisher receives the stage transitions of a request. Begin claims
// the request ID before the first stage and fails while another run of the
// same ID is in flight.
type StagePublisher interface {
	Begin(requestID string) error
	Publish(requestID string, stage progress.Stage, detail string)
}

// Input is one README request. RepoURL takes precedence over Archive when
// both are set.
type Input struct {
	RequestID   string    // Optional; stages are published under this ID
	Archive     io.Reader // Uploaded ZIP bytes, nil when absent
	ArchiveName string    // Client-side file name, for logs only
	RepoURL     string    // Remote repository URL, empty when absent
}

// Result is a generated README with statistics about the run.
type Result struct {
	Readme       string        `json:"readme"`
	RepoName     string        `json:"repo_name"`
	Author       string        `json:"author"`
	RepoURL      string        `json:"repo_url,omitempty"`
	FilesScanned int           `json:"files_scanned"`
	ContentChars int           `json:"content_chars"`
	Truncated    bool          `json:"truncated"`
	Duration     time.Duration `json:"duration"`
}

// Options wires a Service. Generator is required; the ingestion components
// default to their zero-configuration versions.
type Options struct {
	WorkDir   string // Parent of request workspaces, os.TempDir() when empty
	Fetcher   Fetcher
	Extractor *ingestion.ArchiveExtractor
	Scanner   *ingestion.Scanner
	Generator TextGenerator
	Progress  StagePublisher
	Logger    *slog.Logger
}

// Service runs the README pipeline. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	opts   Options
	logger *slog.Logger
}

// NewService validates opts and creates a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("readme service: generator is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = ingestion.NewRepoFetcher(ingestion.FetcherConfig{}, opts.Logger)
	}
	if opts.Extractor == nil {
		opts.Extractor = ingestion.NewArchiveExtractor(ingestion.ArchiveLimits{}, opts.Logger)
	}
	if opts.Scanner == nil {
		opts.Scanner = ingestion.NewScanner(ingestion.ScanOptions{}, opts.Logger)
	}
	return &Service{opts: opts, logger: opts.Logger}, nil
}

// Generate produces a README for in.
//
// A request with neither input fails with NoInputProvided before any
// workspace exists. Otherwise the workspace is removed before Generate
// returns, whatever the outcome. Errors are always *errors.UserError.
func (s *Service) Generate(ctx context.Context, in Input) (res *Result, err error) {
	start := time.Now()
	logger := s.logger.With("request_id", in.RequestID)
	if err := s.begin(in.RequestID); err != nil {
		logger.Warn("readme.request.rejected", "err", err)
		return nil, errors.NewRequestIDInUseError(in.RequestID, err)
	}
	recordRequestStart()

	defer func() {
		if err != nil {
			ue := errors.AsUserError(err)
			err = ue
			s.publish(in.RequestID, progress.StageFailed, ue.PublicMessage())
			logger.Warn("readme.request.failed", "kind", ue.Kind, "err", err, "elapsed", time.Since(start))
		} else {
			s.publish(in.RequestID, progress.StageCompleted, "")
			logger.Info("readme.request.complete", "repo", res.RepoName, "elapsed", res.Duration)
		}
		recordRequestEnd(err, time.Since(start))
	}()

	repoURL := strings.TrimSpace(in.RepoURL)
	if repoURL == "" && in.Archive == nil {
		return nil, errors.NewNoInputError()
	}

	ws, err := ingestion.NewWorkspace(s.opts.WorkDir, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ws.Close() }()
	s.publish(in.RequestID, progress.StageWorkspaceReady, "")

	var (
		root string
		pc   prompt.Context
	)
	if repoURL != "" {
		root, pc, err = s.fromRepo(ctx, ws, repoURL, logger)
	} else {
		root, pc, err = s.fromArchive(ctx, ws, in, logger)
	}
	if err != nil {
		return nil, err
	}

	scan, err := s.opts.Scanner.Scan(ctx, root)
	if err != nil {
		return nil, err
	}
	chars := utf8.RuneCountInString(scan.Content)
	recordContent(chars)
	s.publish(in.RequestID, progress.StageContentRead, "")

	text := prompt.Assemble(scan.Content, pc)
	s.publish(in.RequestID, progress.StageGenerationRequested, "")

	readme, err := s.opts.Generator.Generate(ctx, text)
	if err != nil {
		var ue *errors.UserError
		if !stderrors.As(err, &ue) {
			err = errors.NewGenerationError("README generation failed", err.Error(), "", err)
		}
		return nil, err
	}

	return &Result{
		Readme:       readme,
		RepoName:     orDefault(pc.RepoName, prompt.DefaultRepoName),
		Author:       orDefault(pc.Author, prompt.DefaultAuthor),
		RepoURL:      pc.RepoURL,
		FilesScanned: len(scan.Files),
		ContentChars: chars,
		Truncated:    prompt.Truncated(scan.Content),
		Duration:     time.Since(start),
	}, nil
}

// fromRepo clones repoURL into the workspace. The identity is parsed first
// and never fails; an unrecognized URL just leaves name and owner empty.
func (s *Service) fromRepo(ctx context.Context, ws *ingestion.Workspace, repoURL string, logger *slog.Logger) (string, prompt.Context, error) {
	id := ingestion.ParseRepoURL(repoURL)
	pc := prompt.Context{RepoName: id.Name, Author: id.Owner, RepoURL: id.URL}
	logger.Info("readme.input.repo", "owner", id.Owner, "name", id.Name, "recognized", id.Recognized())

	dest := ws.Path(clonedDir)
	if err := s.opts.Fetcher.Clone(ctx, repoURL, dest); err != nil {
		return "", pc, err
	}
	return dest, pc, nil
}

// fromArchive stores the upload, checks it is a ZIP and extracts it. The
// project name is guessed from the first top-level entry.
func (s *Service) fromArchive(ctx context.Context, ws *ingestion.Workspace, in Input, logger *slog.Logger) (string, prompt.Context, error) {
	pc := prompt.Context{Author: prompt.DefaultAuthor}
	logger.Info("readme.input.archive", "name", in.ArchiveName)

	archivePath := ws.Path(uploadFile)
	if err := saveUpload(in.Archive, archivePath); err != nil {
		return "", pc, err
	}
	if !ingestion.IsZip(archivePath) {
		return "", pc, errors.NewInvalidArchiveError("The upload is not a ZIP archive", nil)
	}

	dest := ws.Path(extractedDir)
	if _, err := s.opts.Extractor.Extract(ctx, archivePath, dest); err != nil {
		return "", pc, err
	}
	pc.RepoName = guessRepoName(dest)
	return dest, pc, nil
}

func saveUpload(r io.Reader, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("store upload: %w", err)
	}
	return f.Close()
}

// guessRepoName returns the first top-level entry of dir in name order, or
// the default project name when dir is empty or unreadable.
func guessRepoName(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return prompt.DefaultRepoName
	}
	return entries[0].Name()
}

func (s *Service) begin(requestID string) error {
	if s.opts.Progress == nil || requestID == "" {
		return nil
	}
	return s.opts.Progress.Begin(requestID)
}

func (s *Service) publish(requestID string, stage progress.Stage, detail string) {
	if s.opts.Progress == nil || requestID == "" {
		return
	}
	s.opts.Progress.Publish(requestID, stage, detail)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
