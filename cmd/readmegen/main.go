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

// Package main implements the readmegen CLI: the HTTP service and one-shot
// README generation from the terminal.
//
// Usage:
//
//	readmegen serve                       Start the HTTP service
//	readmegen generate --zip project.zip  Generate a README from an archive
//	readmegen generate --repo <url>       Generate a README from a repository
//	readmegen init                        Write a default readmegen.yaml
//	readmegen config                      Print the effective configuration
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/readmegen/internal/config"
	"github.com/kraklabs/readmegen/internal/errors"
	"github.com/kraklabs/readmegen/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags are the options shared by every command.
type GlobalFlags struct {
	ConfigPath string
	EnvFile    string
	JSON       bool
	Quiet      bool
	NoColor    bool
	Verbose    int
}

func main() {
	var globals GlobalFlags
	flag.CommandLine.SetInterspersed(false)
	flag.StringVar(&globals.ConfigPath, "config", "", "Path to the YAML config file (default: ./readmegen.yaml)")
	flag.StringVar(&globals.EnvFile, "env-file", config.DefaultEnvFile, "Dotenv file loaded before reading the environment")
	flag.BoolVar(&globals.JSON, "json", false, "Machine-readable JSON output")
	flag.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress progress output")
	flag.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	flag.CountVarP(&globals.Verbose, "verbose", "v", "Verbose logging (repeat for more)")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `readmegen - AI README generator

readmegen reads a project (an uploaded ZIP archive or a git repository),
collects its README and source files, and asks a language model to write
a polished README.md for it.

Usage:
  readmegen [global options] <command> [options]

Commands:
  serve         Start the HTTP service
  generate      Generate a README from a ZIP archive or repository URL
  init          Write a default readmegen.yaml
  config        Print the effective configuration (secrets redacted)
  version       Show version information

Global Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  readmegen serve
  readmegen generate --repo https://github.com/acme/widget -o README.md
  readmegen generate --zip widget.zip --json
  readmegen --config prod.yaml serve --addr :9000

Environment Variables:
  GROQ_API_KEY        API key for the default groq provider (required)
  READMEGEN_ADDR      Listen address (default: :8000)
  LLM_PROVIDER        groq, openai, ollama or mock

For detailed command help: readmegen <command> --help
`)
	}

	flag.Parse()

	if globals.JSON {
		globals.Quiet = true
		ui.Out = os.Stderr
	}
	ui.InitColors(globals.NoColor)

	if *showVersion {
		printVersion()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "serve":
		runServe(cmdArgs, globals)
	case "generate":
		runGenerate(cmdArgs, globals)
	case "init":
		runInit(cmdArgs, globals)
	case "config":
		runConfig(cmdArgs, globals)
	case "version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("readmegen version %s\n", version)
	fmt.Printf("commit: %s\n", commit)
	fmt.Printf("built: %s\n", date)
}

// loadConfig resolves the configuration for a command. Verbosity raises the
// log level; quietLevel applies when no -v was given.
func loadConfig(globals GlobalFlags, quietLevel string) *config.Config {
	cfg, err := config.Load(globals.ConfigPath, globals.EnvFile)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	switch {
	case globals.Verbose > 0:
		cfg.Log.Level = "debug"
	case quietLevel != "":
		cfg.Log.Level = quietLevel
	}
	return cfg
}
