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
	"time"

	"github.com/camgrid/shuttersync/pkg/logger"
)

// ResyncLoop periodically refreshes the clock offset estimate. It never
// touches in-flight waits; those re-read the offset on every iteration.
type ResyncLoop struct {
	svc      *Service
	interval time.Duration
	logger   logger.Logger
	done     chan struct{}
}

// NewResyncLoop creates a resync worker for the given service. A zero
// interval falls back to the service's configured sync interval.
func NewResyncLoop(svc *Service, interval time.Duration, log logger.Logger) *ResyncLoop {
	if interval <= 0 {
		interval = svc.syncInterval
	}

	return &ResyncLoop{
		svc:      svc,
		interval: interval,
		logger:   log,
		done:     make(chan struct{}),
	}
}

// Start runs the resync loop until the context is cancelled.
func (r *ResyncLoop) Start(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Msg("Starting clock resync loop")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case <-ticker.C:
			if err := r.svc.Sync(ctx); err != nil {
				r.logger.Warn().Err(err).Msg("Periodic clock resync failed")
			}
		}
	}
}

// Stop signals the resync loop to exit.
func (r *ResyncLoop) Stop(_ context.Context) error {
	close(r.done)
	return nil
}
