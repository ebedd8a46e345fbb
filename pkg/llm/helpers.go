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

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxErrorBody caps how much of an error response body is kept.
const maxErrorBody = 512

// APIError is returned when the provider answers with a non-200 status.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s chat error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if retried.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type retryPolicy struct {
	maxRetries int
	backoff    time.Duration
}

// wait sleeps attempt*backoff or until ctx is done.
func (r retryPolicy) wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * r.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// postJSON posts payload to url and decodes a 200 response into out.
// Transport errors, 429 and 5xx responses are retried up to the policy's
// limit. It returns the number of attempts made.
func postJSON(ctx context.Context, client *http.Client, policy retryPolicy, provider, url string, headers map[string]string, payload, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("%s: encode request: %w", provider, err)
	}

	for attempt := 1; ; attempt++ {
		retry, err := postOnce(ctx, client, provider, url, headers, body, out)
		if err == nil {
			return attempt, nil
		}
		if !retry || attempt > policy.maxRetries || ctx.Err() != nil {
			return attempt, err
		}
		if waitErr := policy.wait(ctx, attempt); waitErr != nil {
			return attempt, fmt.Errorf("%s chat: %w (last error: %v)", provider, waitErr, err)
		}
	}
}

func postOnce(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body []byte, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return true, fmt.Errorf("%s chat: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Provider: provider, StatusCode: resp.StatusCode, Body: string(bodyBytes)}
		return apiErr.Temporary(), apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("%s chat: decode response: %w", provider, err)
	}
	return false, nil
}

// BuildChatMessages creates a chat message array with an optional system prompt.
func BuildChatMessages(systemPrompt, userPrompt string, history ...Message) []Message {
	messages := make([]Message, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: userPrompt})
	return messages
}
