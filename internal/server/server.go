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

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/readmegen/internal/bootstrap"
	"github.com/kraklabs/readmegen/pkg/progress"
	"github.com/kraklabs/readmegen/pkg/readme"
)

// Generator runs the README pipeline for one request.
type Generator interface {
	Generate(ctx context.Context, in readme.Input) (*readme.Result, error)
}

// Subscriber delivers the stage events of one request.
type Subscriber interface {
	Subscribe(requestID string) (<-chan progress.Event, func())
}

// Config tunes the HTTP surface.
type Config struct {
	// MaxConcurrent bounds the number of generations running at once.
	MaxConcurrent int

	// MaxUploadBytes caps the request body of /generate-readme.
	MaxUploadBytes int64

	// LegacyStatus answers every generation request with 200, errors included.
	LegacyStatus bool

	// RelayIdleTimeout ends a progress relay that has seen no event for this long.
	RelayIdleTimeout time.Duration

	// ShutdownTimeout bounds the graceful shutdown in Run.
	ShutdownTimeout time.Duration
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Service  Generator
	Hub      Subscriber
	Notifier *progress.Notifier
	Logger   *slog.Logger
}

const (
	defaultMaxConcurrent    = 8
	defaultMaxUploadBytes   = 50 << 20
	defaultRelayIdleTimeout = time.Minute
	defaultShutdownTimeout  = 10 * time.Second
)

// Server is the HTTP front end of the README service.
type Server struct {
	cfg      Config
	service  Generator
	hub      Subscriber
	notifier *progress.Notifier
	logger   *slog.Logger
	slots    chan struct{}
	router   *gin.Engine
}

// New creates a server and registers its routes.
func New(cfg Config, deps Deps) *Server {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.RelayIdleTimeout <= 0 {
		cfg.RelayIdleTimeout = defaultRelayIdleTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = progress.NewNotifier(progress.DefaultStepDelay)
	}

	s := &Server{
		cfg:      cfg,
		service:  deps.Service,
		hub:      deps.Hub,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		slots:    make(chan struct{}, cfg.MaxConcurrent),
		router:   gin.New(),
	}
	s.routes()
	return s
}

// FromApp builds a server around a bootstrapped application.
func FromApp(app *bootstrap.App) *Server {
	sc := app.Config.Server
	return New(Config{
		MaxConcurrent:    sc.MaxConcurrent,
		MaxUploadBytes:   sc.MaxUploadBytes,
		LegacyStatus:     sc.LegacyStatus,
		RelayIdleTimeout: app.Config.Progress.Retention,
		ShutdownTimeout:  sc.ShutdownTimeout,
	}, Deps{
		Service:  app.Service,
		Hub:      app.Hub,
		Notifier: app.Notifier,
		Logger:   app.Logger,
	})
}

func (s *Server) routes() {
	s.router.Use(gin.Recovery(), requestID(), requestLogger(s.logger), cors())

	s.router.POST("/generate-readme", s.handleGenerate)
	s.router.GET("/progress-stream", s.handleProgress)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler returns the http.Handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server.shutdown", "timeout", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return err
	}
	return nil
}

// acquire takes a generation slot, waiting until one frees up or ctx ends.
func (s *Server) acquire(ctx context.Context) (release func(), err error) {
	select {
	case s.slots <- struct{}{}:
	default:
		recordQueued(1)
		defer recordQueued(-1)
		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return func() { <-s.slots }, nil
}
