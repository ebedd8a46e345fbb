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
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/readmegen/internal/config"
	"github.com/kraklabs/readmegen/internal/errors"
	"github.com/kraklabs/readmegen/internal/output"
	"github.com/kraklabs/readmegen/internal/ui"
	"github.com/kraklabs/readmegen/pkg/llm"
)

// runInit executes the 'init' command, writing a readmegen.yaml with the
// built-in defaults. Secrets are never written; they come from the
// environment or the .env file.
func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.BoolP("force", "f", false, "Overwrite an existing file")
	provider := fs.String("provider", "", "LLM provider to configure (groq, openai, ollama, mock)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: readmegen init [options] [path]

Writes a configuration file with the built-in defaults
(default path: readmegen.yaml).

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	path := config.DefaultConfigFile
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	if err := writeDefaultConfig(path, *provider, *force); err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(map[string]string{"config": path})
		return
	}
	ui.Successf("Wrote %s", path)
	printNextSteps(*provider)
}

func printNextSteps(provider string) {
	cfg := config.Default()
	if provider != "" {
		cfg.LLM.Provider = provider
	}

	fmt.Fprintln(ui.Out)
	ui.Header("Next steps")
	if llm.RequiresAPIKey(cfg.LLM.Provider) {
		ui.Infof("Set %s in the environment or in .env", cfg.APIKeyEnv())
	}
	ui.Info("Run " + ui.Label("readmegen serve") + " and POST to /generate-readme")
}

func writeDefaultConfig(path, provider string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.NewConfigError(
			"Config file already exists",
			path,
			"Use --force to overwrite it",
			nil,
		)
	}

	cfg := config.Default()
	if provider != "" {
		cfg.LLM.Provider = provider
	}
	// The key is supplied at runtime; validate everything else.
	probe := *cfg
	probe.LLM.APIKey = "unset"
	if err := probe.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return errors.NewConfigError("Cannot write config file", err.Error(), "Check directory permissions", err)
	}
	return nil
}

// runConfig executes the 'config' command, printing the effective
// configuration with secrets redacted.
func runConfig(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	validate := fs.Bool("validate", false, "Exit non-zero when the configuration is invalid")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: readmegen config [options]

Prints the configuration resolved from defaults, the config file,
the .env file and the environment. API keys are redacted.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(globals, "")
	if *validate {
		if err := cfg.Validate(); err != nil {
			errors.FatalError(err, globals.JSON)
		}
	}

	redacted := cfg.Redacted()
	if globals.JSON {
		if err := output.JSON(redacted); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(redacted); err != nil {
		errors.FatalError(err, false)
	}
	_ = enc.Close()

	// stdout carries the YAML document.
	ui.Out = os.Stderr
	reportValidity(cfg)
}

func reportValidity(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		ue := errors.AsUserError(err)
		ui.Errorf("%s", ue.Message)
		if ue.Fix != "" {
			fmt.Fprintln(ui.Out, "  "+ui.DimText(ue.Fix))
		}
		return
	}
	ui.Success("Configuration is valid")
}
