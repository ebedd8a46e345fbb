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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/readmegen/internal/bootstrap"
	"github.com/kraklabs/readmegen/internal/errors"
	"github.com/kraklabs/readmegen/internal/output"
	"github.com/kraklabs/readmegen/internal/ui"
	"github.com/kraklabs/readmegen/pkg/progress"
	"github.com/kraklabs/readmegen/pkg/readme"
)

// runGenerate executes the 'generate' command: it runs the README pipeline
// once, without the HTTP service, and prints or saves the result.
//
// Examples:
//
//	readmegen generate --repo https://github.com/acme/widget
//	readmegen generate --zip widget.zip -o README.md
//	readmegen --json generate --zip widget.zip
func runGenerate(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	zipPath := fs.String("zip", "", "Path to a ZIP archive of the project")
	repoURL := fs.String("repo", "", "Repository URL to clone (takes precedence over --zip)")
	outPath := fs.StringP("output", "o", "", "Write the README to this file instead of stdout")
	provider := fs.String("provider", "", "LLM provider override (groq, openai, ollama, mock)")
	model := fs.String("model", "", "Model override")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: readmegen generate [options]

Description:
  Generate a README.md for a project. Give either a ZIP archive or a
  repository URL. The README is printed to stdout unless -o is set.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  readmegen generate --repo https://github.com/acme/widget
  readmegen generate --zip widget.zip -o README.md
  readmegen generate --zip widget.zip --provider mock
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(globals, "warn")
	if *provider != "" && *provider != cfg.LLM.Provider {
		cfg.LLM.Provider = *provider
		cfg.LLM.APIKey = os.Getenv(cfg.APIKeyEnv())
	}
	if *model != "" {
		cfg.LLM.Model = *model
	}

	app, err := bootstrap.New(cfg, bootstrap.Options{})
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	in := readme.Input{RequestID: uuid.NewString(), RepoURL: *repoURL}
	if *zipPath != "" && *repoURL == "" {
		f, err := os.Open(*zipPath)
		if err != nil {
			errors.FatalError(errors.NewConfigError(
				"Cannot open archive",
				err.Error(),
				"Check the --zip path",
				err,
			), globals.JSON)
		}
		defer func() { _ = f.Close() }()
		in.Archive = f
		in.ArchiveName = filepath.Base(*zipPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spinner := NewSpinner(NewProgressConfig(globals), "Starting")
	done := followStages(spinner, app.Hub, in.RequestID)

	res, err := app.Service.Generate(ctx, in)
	<-done()
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(res.Readme), 0o644); err != nil {
			errors.FatalError(errors.NewConfigError(
				"Cannot write README",
				err.Error(),
				"Check that the output directory exists and is writable",
				err,
			), globals.JSON)
		}
	}

	if globals.JSON {
		if err := output.JSON(res); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	if *outPath == "" {
		fmt.Print(res.Readme)
		if len(res.Readme) > 0 && res.Readme[len(res.Readme)-1] != '\n' {
			fmt.Println()
		}
		return
	}

	ui.Successf("README written to %s", *outPath)
	printSummary(res)
}

func printSummary(res *readme.Result) {
	fmt.Fprintln(ui.Out)
	ui.Header("Summary")
	ui.Field("Project", res.RepoName)
	ui.Field("Author", res.Author)
	if res.RepoURL != "" {
		ui.Field("Repository", ui.DimText(res.RepoURL))
	}
	ui.Field("Files", ui.CountText(res.FilesScanned))
	ui.Field("Characters", ui.CountText(res.ContentChars))
	ui.Field("Duration", res.Duration.Round(time.Millisecond))
	if res.Truncated {
		ui.Warningf("Project content was truncated before generation")
	}
}

// followStages animates spinner with the stage messages of requestID. The
// returned function stops the animation and yields a channel closed once
// the spinner is cleared.
func followStages(spinner *progressbar.ProgressBar, hub *progress.Hub, requestID string) func() <-chan struct{} {
	events, cancel := hub.Subscribe(requestID)
	quit := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if spinner != nil {
					spinner.Describe(ev.Message)
				}
			case <-ticker.C:
				if spinner != nil {
					_ = spinner.Add(1)
				}
			case <-quit:
				if spinner != nil {
					_ = spinner.Finish()
				}
				return
			}
		}
	}()

	return func() <-chan struct{} {
		cancel()
		close(quit)
		return finished
	}
}
