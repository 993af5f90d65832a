/*
 * Copyright 2025 CamGrid Systems.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package timesync

import (
	"context"
	"fmt"
	"time"

	"github.com/camgrid/shuttersync/pkg/logger"
)

const (
	sessionIDPrefix = "capture_"

	// coarseStep bounds how long a wait sleeps without re-reading the
	// offset, so a mid-wait resync correction takes effect quickly.
	coarseStep = time.Second
)

// Scheduler converts capture delays into absolute synchronized instants and
// waits them out on the synchronized clock.
type Scheduler struct {
	clock  *Service
	logger logger.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler bound to one clock sync service.
func NewScheduler(clock *Service, log logger.Logger) *Scheduler {
	return &Scheduler{
		clock:  clock,
		logger: log,
		now:    time.Now,
	}
}

// NewSessionID mints a session identifier from the millisecond epoch.
func (s *Scheduler) NewSessionID() string {
	return fmt.Sprintf("%s%d", sessionIDPrefix, s.now().UnixMilli())
}

// Schedule computes the shared capture instant for a session. If the clock
// estimate is stale a sync is attempted first; a failed sync is not an
// error, the capture proceeds on the local clock.
func (s *Scheduler) Schedule(ctx context.Context, sessionID string, delay time.Duration) time.Time {
	if !s.clock.IsSynchronized() {
		if err := s.clock.Sync(ctx); err != nil {
			s.logger.Warn().Err(err).
				Str("session_id", sessionID).
				Msg("Clock not synchronized, scheduling on local time")
		}
	}

	captureTime := s.clock.SynchronizedTime().Add(delay)

	s.logger.Info().
		Str("session_id", sessionID).
		Str("capture_time", s.clock.FormatTime(captureTime)).
		Msg("Capture scheduled")

	return captureTime
}

// WaitUntil blocks until captureTime on the synchronized clock, then invokes
// action exactly once. While more than a second remains it sleeps in
// one-second steps; the final remainder is slept in one shot. A capture time
// already in the past fires immediately; a missed deadline is never an
// error, the action just runs late. Cancelling the context abandons the wait
// without firing.
func (s *Scheduler) WaitUntil(ctx context.Context, captureTime time.Time, action func()) error {
	for {
		remaining := captureTime.Sub(s.clock.SynchronizedTime())

		if remaining <= 0 {
			action()
			return nil
		}

		step := remaining
		if step > coarseStep {
			step = coarseStep
		}

		timer := time.NewTimer(step)

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Filename derives an artifact name from the capture instant and node id,
// e.g. 20260831_142050_123-node07.jpg.
func Filename(nodeID int, captureTime time.Time) string {
	return fmt.Sprintf("%s_%03d-node%02d.jpg",
		captureTime.Format("20060102_150405"),
		captureTime.Nanosecond()/int(time.Millisecond),
		nodeID)
}
