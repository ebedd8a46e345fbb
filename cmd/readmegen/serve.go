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
	"syscall"

	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/readmegen/internal/bootstrap"
	"github.com/kraklabs/readmegen/internal/errors"
	"github.com/kraklabs/readmegen/internal/server"
)

// runServe executes the 'serve' command: it starts the HTTP service and
// blocks until SIGINT or SIGTERM, then drains in-flight requests.
func runServe(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides server.addr)")
	maxConcurrent := fs.Int("max-concurrent", 0, "Maximum concurrent generations (overrides server.max_concurrent)")
	legacy := fs.Bool("legacy-status", false, "Answer every generation request with 200, errors included")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: readmegen serve [options]

Description:
  Start the README HTTP service. Routes:
    POST /generate-readme   multipart: file (ZIP) or repo_url
    GET  /progress-stream   server-sent progress events
    GET  /health            liveness probe
    GET  /metrics           Prometheus metrics

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  readmegen serve
  readmegen serve --addr 127.0.0.1:9000 --max-concurrent 2
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(globals, "")
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *maxConcurrent > 0 {
		cfg.Server.MaxConcurrent = *maxConcurrent
	}
	if *legacy {
		cfg.Server.LegacyStatus = true
	}

	app, err := bootstrap.New(cfg, bootstrap.Options{})
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if globals.Verbose == 0 {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.FromApp(app).Run(ctx, cfg.Server.Addr); err != nil {
		errors.FatalError(errors.NewConfigError(
			"HTTP server stopped with an error",
			err.Error(),
			"Check that the listen address is free and valid",
			err,
		), globals.JSON)
	}
	app.Logger.Info("server.stopped")
}
