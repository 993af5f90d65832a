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

package registry

import (
	"context"
)

// Monitor is the heartbeat-timeout watchdog. It is the only mechanism that
// detects silent node loss; explicit offline notices go straight to
// MarkOffline.
type Monitor struct {
	registry *Registry
	done     chan struct{}
}

// NewMonitor creates the watchdog for a registry.
func NewMonitor(r *Registry) *Monitor {
	return &Monitor{
		registry: r,
		done:     make(chan struct{}),
	}
}

// Start runs the monitor loop until the context is cancelled. Each tick
// expires every node whose heartbeat is older than the configured timeout.
func (m *Monitor) Start(ctx context.Context) error {
	r := m.registry

	r.logger.Info().
		Dur("interval", r.monitorInterval).
		Dur("timeout", r.heartbeatTimeout).
		Msg("Starting heartbeat monitor")

	ticker := r.clock.Ticker(r.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return nil
		case <-ticker.Chan():
			m.tick()
		}
	}
}

// Stop signals the monitor to exit.
func (m *Monitor) Stop(_ context.Context) error {
	close(m.done)
	return nil
}

func (m *Monitor) tick() {
	expired := m.registry.expireStale(m.registry.clock.Now())

	for _, id := range expired {
		m.registry.logger.Warn().Int("node_id", id).Msg("Heartbeat timeout, node marked offline")
	}
}
