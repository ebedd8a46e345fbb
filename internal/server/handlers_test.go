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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/readmegen/internal/bootstrap"
	"github.com/kraklabs/readmegen/internal/config"
	"github.com/kraklabs/readmegen/internal/errors"
	rgtest "github.com/kraklabs/readmegen/internal/testing"
	"github.com/kraklabs/readmegen/pkg/llm"
	"github.com/kraklabs/readmegen/pkg/progress"
	"github.com/kraklabs/readmegen/pkg/readme"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockGenerator implements Generator for testing.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, in readme.Input) (*readme.Result, error)
}

func (m *MockGenerator) Generate(ctx context.Context, in readme.Input) (*readme.Result, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, in)
	}
	return &readme.Result{Readme: "# Mock"}, nil
}

func newTestServer(t *testing.T, cfg Config, gen Generator) (*Server, *progress.Hub) {
	t.Helper()
	hub := progress.NewHub(time.Minute, nil)
	return New(cfg, Deps{Service: gen, Hub: hub, Notifier: progress.NewNotifier(0)}), hub
}

// newAppServer wires the real pipeline around a mock LLM provider.
func newAppServer(t *testing.T, legacy bool, provider llm.Provider) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	cfg.Server.LegacyStatus = legacy
	cfg.Progress.StepDelay = 0
	app, err := bootstrap.New(cfg, bootstrap.Options{LogWriter: io.Discard, Provider: provider})
	require.NoError(t, err)
	return FromApp(app)
}

type formFile struct {
	name string
	body []byte
}

func multipartRequest(t *testing.T, fields map[string]string, file *formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		fw, err := w.CreateFormFile("file", file.name)
		require.NoError(t, err)
		_, err = fw.Write(file.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/generate-readme", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	data, err := os.ReadFile(rgtest.WriteZip(t, files))
	require.NoError(t, err)
	return data
}

func TestGenerate_NoInput(t *testing.T) {
	s := newAppServer(t, false, &llm.MockProvider{})

	rec := serve(s, multipartRequest(t, nil, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file or repo URL provided", decodeBody(t, rec)["error"])
}

func TestGenerate_EmptyBody(t *testing.T) {
	s := newAppServer(t, false, &llm.MockProvider{})

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/generate-readme", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.MsgNoInput, decodeBody(t, rec)["error"])
}

func TestGenerate_InvalidArchive(t *testing.T) {
	s := newAppServer(t, false, &llm.MockProvider{})

	rec := serve(s, multipartRequest(t, nil, &formFile{name: "project.zip", body: []byte("hello")}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Uploaded file is not a valid ZIP", body["error"])
	assert.Equal(t, string(errors.KindInvalidArchive), body["kind"])
}

func TestGenerate_LegacyStatus(t *testing.T) {
	s := newAppServer(t, true, &llm.MockProvider{})

	rec := serve(s, multipartRequest(t, nil, &formFile{name: "project.zip", body: []byte("hello")}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, errors.MsgInvalidArchive, decodeBody(t, rec)["error"])
}

func TestGenerate_FromArchive(t *testing.T) {
	var gotPrompt string
	provider := &llm.MockProvider{ChatFunc: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		gotPrompt = req.Messages[len(req.Messages)-1].Content
		return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: "# Demo\n\nGenerated."}}, nil
	}}
	s := newAppServer(t, false, provider)

	archive := zipBytes(t, map[string]string{"demo/README.md": "hello", "demo/main.go": "package main"})
	rec := serve(s, multipartRequest(t, nil, &formFile{name: "demo.zip", body: archive}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]string{"readme": "# Demo\n\nGenerated."}, decodeBody(t, rec))
	assert.Contains(t, gotPrompt, "Repository name: demo")
	assert.Contains(t, gotPrompt, "# File: demo/main.go")
}

func TestGenerate_PassesFormFields(t *testing.T) {
	var got readme.Input
	var archive []byte
	gen := &MockGenerator{GenerateFunc: func(_ context.Context, in readme.Input) (*readme.Result, error) {
		got = in
		if in.Archive != nil {
			archive, _ = io.ReadAll(in.Archive)
		}
		return &readme.Result{Readme: "ok"}, nil
	}}
	s, _ := newTestServer(t, Config{}, gen)

	req := multipartRequest(t,
		map[string]string{"repo_url": " https://github.com/acme/widget ", "request_id": "req-1"},
		&formFile{name: "p.zip", body: []byte("PK")},
	)
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "https://github.com/acme/widget", got.RepoURL)
	assert.Equal(t, "p.zip", got.ArchiveName)
	assert.Equal(t, []byte("PK"), archive)
}

func TestGenerate_RequestIDFromHeader(t *testing.T) {
	var got string
	gen := &MockGenerator{GenerateFunc: func(_ context.Context, in readme.Input) (*readme.Result, error) {
		got = in.RequestID
		return &readme.Result{}, nil
	}}
	s, _ := newTestServer(t, Config{}, gen)

	req := multipartRequest(t, map[string]string{"repo_url": "https://github.com/a/b"}, nil)
	req.Header.Set(HeaderRequestID, "from-header")
	rec := serve(s, req)

	assert.Equal(t, "from-header", got)
	assert.Equal(t, "from-header", rec.Header().Get(HeaderRequestID))
}

func TestGenerate_AssignsRequestID(t *testing.T) {
	var got string
	gen := &MockGenerator{GenerateFunc: func(_ context.Context, in readme.Input) (*readme.Result, error) {
		got = in.RequestID
		return &readme.Result{}, nil
	}}
	s, _ := newTestServer(t, Config{}, gen)

	rec := serve(s, multipartRequest(t, map[string]string{"repo_url": "https://github.com/a/b"}, nil))

	assert.NotEmpty(t, got)
	assert.Equal(t, got, rec.Header().Get(HeaderRequestID))
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	gen := &MockGenerator{GenerateFunc: func(context.Context, readme.Input) (*readme.Result, error) {
		return nil, errors.NewFetchError("Failed to clone repository", "", "", io.ErrUnexpectedEOF)
	}}
	s, _ := newTestServer(t, Config{}, gen)

	rec := serve(s, multipartRequest(t, map[string]string{"repo_url": "https://github.com/a/b"}, nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Failed to clone repository: unexpected EOF", body["error"])
	assert.Equal(t, string(errors.KindFetchFailed), body["kind"])
}

func TestGenerate_TooLarge(t *testing.T) {
	called := false
	gen := &MockGenerator{GenerateFunc: func(context.Context, readme.Input) (*readme.Result, error) {
		called = true
		return &readme.Result{}, nil
	}}
	s, _ := newTestServer(t, Config{MaxUploadBytes: 1024}, gen)

	rec := serve(s, multipartRequest(t, nil, &formFile{name: "big.zip", body: bytes.Repeat([]byte("x"), 4096)}))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "1024 byte limit")
	assert.False(t, called)
}

func TestGenerate_TooLargeWithoutContentLength(t *testing.T) {
	s, _ := newTestServer(t, Config{MaxUploadBytes: 1024}, &MockGenerator{})

	req := multipartRequest(t, nil, &formFile{name: "big.zip", body: bytes.Repeat([]byte("x"), 4096)})
	req.ContentLength = -1
	rec := serve(s, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGenerate_WaitsForFreeSlot(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	gen := &MockGenerator{GenerateFunc: func(context.Context, readme.Input) (*readme.Result, error) {
		started <- struct{}{}
		<-unblock
		return &readme.Result{Readme: "done"}, nil
	}}
	s, _ := newTestServer(t, Config{MaxConcurrent: 1}, gen)

	firstReq := multipartRequest(t, map[string]string{"repo_url": "https://github.com/a/b"}, nil)
	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- serve(s, firstReq)
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := multipartRequest(t, map[string]string{"repo_url": "https://github.com/a/b"}, nil).WithContext(ctx)
	rec := serve(s, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	close(unblock)
	assert.Equal(t, http.StatusOK, (<-first).Code)

	go func() { <-started }()
	rec = serve(s, multipartRequest(t, map[string]string{"repo_url": "https://github.com/a/b"}, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// readFrames splits an event stream into its data payloads.
func readFrames(t *testing.T, body string) []string {
	t.Helper()
	var frames []string
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), "unexpected line %q", line)
		frames = append(frames, strings.TrimPrefix(line, "data: "))
	}
	return frames
}

func TestProgress_FixedSequence(t *testing.T) {
	s, _ := newTestServer(t, Config{}, &MockGenerator{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/progress-stream", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, progress.Steps, readFrames(t, rec.Body.String()))
	assert.True(t, strings.HasSuffix(rec.Body.String(), "\n\n"))
}

func TestProgress_RelaysRequestStages(t *testing.T) {
	s, hub := newTestServer(t, Config{}, &MockGenerator{})
	hub.Publish("req-7", progress.StageWorkspaceReady, "")
	hub.Publish("req-7", progress.StageContentRead, "")
	hub.Publish("req-7", progress.StageCompleted, "")

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/progress-stream?request_id=req-7", nil))

	frames := readFrames(t, rec.Body.String())
	require.Len(t, frames, 3)
	var stages []progress.Stage
	for _, f := range frames {
		var ev progress.Event
		require.NoError(t, json.Unmarshal([]byte(f), &ev))
		assert.Equal(t, "req-7", ev.RequestID)
		stages = append(stages, ev.Stage)
	}
	assert.Equal(t, []progress.Stage{progress.StageWorkspaceReady, progress.StageContentRead, progress.StageCompleted}, stages)
}

func relayedStages(t *testing.T, s *Server, requestID string) []progress.Stage {
	t.Helper()
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/progress-stream?request_id="+requestID, nil))
	var stages []progress.Stage
	for _, f := range readFrames(t, rec.Body.String()) {
		var ev progress.Event
		require.NoError(t, json.Unmarshal([]byte(f), &ev))
		stages = append(stages, ev.Stage)
	}
	return stages
}

func TestProgress_ReusedRequestIDRelaysLatestRun(t *testing.T) {
	provider := &llm.MockProvider{ChatFunc: func(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: "# Demo"}}, nil
	}}
	s := newAppServer(t, false, provider)

	archive := zipBytes(t, map[string]string{"demo/README.md": "hello"})
	rec := serve(s, multipartRequest(t, map[string]string{"request_id": "fixed"}, &formFile{name: "demo.zip", body: archive}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []progress.Stage{
		progress.StageWorkspaceReady,
		progress.StageContentRead,
		progress.StageGenerationRequested,
		progress.StageCompleted,
	}, relayedStages(t, s, "fixed"))

	rec = serve(s, multipartRequest(t, map[string]string{"request_id": "fixed"}, &formFile{name: "bad.zip", body: []byte("nope")}))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, []progress.Stage{progress.StageWorkspaceReady, progress.StageFailed}, relayedStages(t, s, "fixed"))
}

func TestGenerate_RequestIDInFlightConflicts(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	provider := &llm.MockProvider{ChatFunc: func(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
		once.Do(func() { close(started) })
		<-release
		return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: "# Demo"}}, nil
	}}
	s := newAppServer(t, false, provider)
	archive := zipBytes(t, map[string]string{"demo/README.md": "hello"})

	firstReq := multipartRequest(t, map[string]string{"request_id": "fixed"}, &formFile{name: "demo.zip", body: archive})
	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- serve(s, firstReq) }()
	<-started

	rec := serve(s, multipartRequest(t, map[string]string{"request_id": "fixed"}, &formFile{name: "demo.zip", body: archive}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, `Request ID "fixed" is already in use`, body["error"])
	assert.Equal(t, string(errors.KindRequestIDInUse), body["kind"])

	close(release)
	assert.Equal(t, http.StatusOK, (<-first).Code)
	assert.Equal(t, []progress.Stage{
		progress.StageWorkspaceReady,
		progress.StageContentRead,
		progress.StageGenerationRequested,
		progress.StageCompleted,
	}, relayedStages(t, s, "fixed"))
}

func TestProgress_RelayEndsWhenIdle(t *testing.T) {
	s, _ := newTestServer(t, Config{RelayIdleTimeout: 20 * time.Millisecond}, &MockGenerator{})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- serve(s, httptest.NewRequest(http.MethodGet, "/progress-stream?request_id=unknown", nil))
	}()

	select {
	case rec := <-done:
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not end after the idle timeout")
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Config{}, &MockGenerator{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestCORS_Preflight(t *testing.T) {
	s, _ := newTestServer(t, Config{}, &MockGenerator{})

	req := httptest.NewRequest(http.MethodOptions, "/generate-readme", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type,x-request-id")
	rec := serve(s, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Equal(t, "content-type,x-request-id", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORS_SimpleRequest(t *testing.T) {
	s, _ := newTestServer(t, Config{}, &MockGenerator{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = serve(s, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t, Config{}, &MockGenerator{})
	serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "readmegen_http_requests_total")
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, Config{ShutdownTimeout: time.Second}, &MockGenerator{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
