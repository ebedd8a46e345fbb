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

package progress

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRequestIDInUse is returned by Begin while another run holds the ID.
var ErrRequestIDInUse = errors.New("request ID is already in use")

// Stage is one transition of the README pipeline.
type Stage string

// Pipeline stages, in order. Completed and Failed are terminal.
const (
	StageWorkspaceReady      Stage = "workspace_ready"
	StageContentRead         Stage = "content_read"
	StageGenerationRequested Stage = "generation_requested"
	StageCompleted           Stage = "completed"
	StageFailed              Stage = "failed"
)

// Terminal reports whether no stage follows s.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Message returns the user-facing text for s.
func (s Stage) Message() string {
	switch s {
	case StageWorkspaceReady:
		return Steps[0]
	case StageContentRead:
		return Steps[1]
	case StageGenerationRequested:
		return Steps[2]
	case StageCompleted:
		return Steps[3]
	case StageFailed:
		return "❌ README generation failed"
	}
	return string(s)
}

// Event is a stage transition of one request.
type Event struct {
	RequestID string    `json:"request_id"`
	Stage     Stage     `json:"stage"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Hub defaults.
const (
	DefaultRetention  = time.Minute
	subscriberBacklog = 16
)

// topic holds the latest run of one request ID.
type topic struct {
	events  []Event
	subs    map[int]chan Event
	running bool
	done    bool
	expires time.Time
}

func (t *topic) reset() {
	t.events = nil
	t.done = false
	t.expires = time.Time{}
}

// Hub fans out stage events to subscribers of a request ID.
// It is safe for concurrent use.
type Hub struct {
	mu        sync.Mutex
	topics    map[string]*topic
	nextSub   int
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewHub creates a hub that keeps finished requests for retention.
func NewHub(retention time.Duration, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Hub{
		topics:    make(map[string]*topic),
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Begin claims requestID for a new run. It fails with ErrRequestIDInUse
// while an earlier run of the same ID has not reached a terminal stage. The
// history of a finished run is dropped, so subscribers that arrive from now
// on only see the new run. Subscribers already waiting are kept.
// An empty requestID is ignored.
func (h *Hub) Begin(requestID string) error {
	if requestID == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.sweepLocked()

	t := h.topicLocked(requestID)
	if t.running {
		return ErrRequestIDInUse
	}
	if t.done {
		h.logger.Debug("progress.run.restart", "request_id", requestID)
		t.reset()
	}
	t.running = true
	return nil
}

// Publish records a stage for requestID and delivers it to current
// subscribers. Publishing a terminal stage closes every subscription.
// A stage published after a terminal one starts a new run, as if Begin had
// been called. An empty requestID is ignored.
func (h *Hub) Publish(requestID string, stage Stage, detail string) {
	if requestID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.sweepLocked()

	t := h.topicLocked(requestID)
	if t.done {
		h.logger.Debug("progress.run.restart", "request_id", requestID, "stage", stage)
		t.reset()
	}
	t.running = true

	ev := Event{RequestID: requestID, Stage: stage, Message: stage.Message(), Error: detail, Time: h.now()}
	t.events = append(t.events, ev)
	for id, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("progress.subscriber.slow", "request_id", requestID, "subscriber", id)
		}
	}

	if stage.Terminal() {
		t.running = false
		t.done = true
		t.expires = h.now().Add(h.retention)
		for id, ch := range t.subs {
			close(ch)
			delete(t.subs, id)
		}
	}
}

// Subscribe returns a channel that first replays the events already
// published for the latest run of requestID, then receives new ones. The
// channel is closed after the terminal stage; a run that already finished is
// replayed and closed at once. Call cancel to stop receiving early.
func (h *Hub) Subscribe(requestID string) (events <-chan Event, cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sweepLocked()

	t := h.topicLocked(requestID)
	ch := make(chan Event, subscriberBacklog+len(t.events))
	for _, ev := range t.events {
		ch <- ev
	}
	if t.done {
		close(ch)
		return ch, func() {}
	}

	id := h.nextSub
	h.nextSub++
	t.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := t.subs[id]; ok {
				close(sub)
				delete(t.subs, id)
			}
			if len(t.subs) == 0 && len(t.events) == 0 && !t.running && h.topics[requestID] == t {
				delete(h.topics, requestID)
			}
		})
	}
}

func (h *Hub) topicLocked(requestID string) *topic {
	t, ok := h.topics[requestID]
	if !ok {
		t = &topic{subs: make(map[int]chan Event)}
		h.topics[requestID] = t
	}
	return t
}

func (h *Hub) sweepLocked() {
	now := h.now()
	for id, t := range h.topics {
		if t.done && now.After(t.expires) {
			delete(h.topics, id)
		}
	}
}
