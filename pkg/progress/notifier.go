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
	"context"
	"time"
)

// DefaultStepDelay is the pause after each emitted step.
const DefaultStepDelay = time.Second

// Steps is the fixed message sequence emitted by Notifier.
var Steps = []string{
	"📂 Processing upload / cloning repo...",
	"📄 Reading project files...",
	"🤖 Asking AI to write README...",
	"✅ README ready!",
}

// Notifier emits Steps with a fixed delay after each one.
type Notifier struct {
	delay time.Duration
}

// NewNotifier creates a notifier. A negative delay is treated as zero.
func NewNotifier(delay time.Duration) *Notifier {
	if delay < 0 {
		delay = 0
	}
	return &Notifier{delay: delay}
}

// Stream calls emit once per step, in order, sleeping for the delay after
// each call. It returns early with the context's error when ctx is done, or
// with emit's error when a write fails.
func (n *Notifier) Stream(ctx context.Context, emit func(msg string) error) error {
	for _, step := range Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(step); err != nil {
			return err
		}
		if err := sleep(ctx, n.delay); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
