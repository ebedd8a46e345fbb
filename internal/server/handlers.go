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
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kraklabs/readmegen/internal/errors"
	"github.com/kraklabs/readmegen/pkg/readme"
)

// GenerateResponse is the success body of POST /generate-readme.
type GenerateResponse struct {
	Readme string `json:"readme"`
}

// handleGenerate runs the pipeline for an uploaded archive or a repository URL.
func (s *Server) handleGenerate(c *gin.Context) {
	if c.Request.ContentLength > s.cfg.MaxUploadBytes {
		s.writeError(c, http.StatusRequestEntityTooLarge, errors.ErrorJSON{Error: s.tooLargeMessage()})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	if err := c.Request.ParseMultipartForm(s.router.MaxMultipartMemory); err != nil && !stderrors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.writeError(c, http.StatusRequestEntityTooLarge, errors.ErrorJSON{Error: s.tooLargeMessage()})
			return
		}
		s.writeError(c, http.StatusBadRequest, errors.ErrorJSON{Error: "Malformed form body: " + err.Error()})
		return
	}

	in := readme.Input{
		RequestID: strings.TrimSpace(c.PostForm("request_id")),
		RepoURL:   strings.TrimSpace(c.PostForm("repo_url")),
	}
	if in.RequestID == "" {
		in.RequestID = c.GetString(ctxRequestID)
	}

	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			s.writePipelineError(c, errors.NewUnclassifiedError(fmt.Errorf("open upload: %w", err)))
			return
		}
		defer func() { _ = f.Close() }()
		in.Archive = f
		in.ArchiveName = fh.Filename
	}

	release, err := s.acquire(c.Request.Context())
	if err != nil {
		s.writeError(c, http.StatusServiceUnavailable, errors.ErrorJSON{Error: "Request canceled while waiting for a free worker"})
		return
	}
	defer release()

	res, err := s.service.Generate(c.Request.Context(), in)
	if err != nil {
		s.writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenerateResponse{Readme: res.Readme})
}

func (s *Server) tooLargeMessage() string {
	return fmt.Sprintf("Upload exceeds the %d byte limit", s.cfg.MaxUploadBytes)
}

func (s *Server) writePipelineError(c *gin.Context, err error) {
	ue := errors.AsUserError(err)
	s.writeError(c, errors.HTTPStatus(ue), ue.PublicJSON())
}

// writeError answers with an error body. In legacy mode the status is always 200.
func (s *Server) writeError(c *gin.Context, status int, body errors.ErrorJSON) {
	if s.cfg.LegacyStatus {
		status = http.StatusOK
	}
	c.JSON(status, body)
}

// handleProgress streams progress as server-sent events.
//
// Without a request_id it plays the fixed four-step sequence. With one it
// relays the stage events of that request until a terminal stage, the client
// disconnects, or no event arrives for RelayIdleTimeout.
func (s *Server) handleProgress(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	recordStream(1)
	defer recordStream(-1)

	ctx := c.Request.Context()
	requestID := strings.TrimSpace(c.Query("request_id"))
	if requestID == "" {
		err := s.notifier.Stream(ctx, func(msg string) error {
			return sendSSE(c.Writer, msg)
		})
		if err != nil && ctx.Err() == nil {
			s.logger.Debug("progress.stream.aborted", "err", err)
		}
		return
	}

	events, cancel := s.hub.Subscribe(requestID)
	defer cancel()

	idle := time.NewTimer(s.cfg.RelayIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("progress.relay.encode", "request_id", requestID, "err", err)
				return
			}
			if err := sendSSE(c.Writer, string(data)); err != nil {
				return
			}
			idle.Reset(s.cfg.RelayIdleTimeout)
		case <-idle.C:
			s.logger.Debug("progress.relay.idle", "request_id", requestID)
			return
		case <-ctx.Done():
			return
		}
	}
}

// sendSSE writes one data frame and flushes it to the client.
func sendSSE(w gin.ResponseWriter, data string) error {
	if _, err := io.WriteString(w, "data: "+data+"\n\n"); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
