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

package agent

import (
	"context"
	"time"

	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
)

const heartbeatErrorBackoff = 5 * time.Second

// HeartbeatLoop periodically reports liveness and camera readiness to the
// master. Send failures are logged and the loop backs off briefly; they
// never stop the loop.
type HeartbeatLoop struct {
	server   *Server
	client   *MasterClient
	interval time.Duration
	logger   logger.Logger
	done     chan struct{}
}

// NewHeartbeatLoop creates a heartbeat loop for a running agent.
func NewHeartbeatLoop(server *Server, client *MasterClient, interval time.Duration, log logger.Logger) *HeartbeatLoop {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}

	return &HeartbeatLoop{
		server:   server,
		client:   client,
		interval: interval,
		logger:   log,
		done:     make(chan struct{}),
	}
}

// Start begins the heartbeat loop. It runs until the context is cancelled.
func (h *HeartbeatLoop) Start(ctx context.Context) error {
	h.logger.Info().Dur("interval", h.interval).Msg("Starting heartbeat loop")

	// First heartbeat goes out immediately so the master sees the node
	// without waiting a full interval.
	h.send(ctx)

	for {
		wait := h.interval

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return nil
		case <-time.After(wait):
			if err := h.sendOnce(ctx); err != nil {
				h.logger.Debug().Err(err).Msg("Heartbeat send failed")

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-h.done:
					return nil
				case <-time.After(heartbeatErrorBackoff):
				}
			}
		}
	}
}

// Stop signals the heartbeat loop to exit.
func (h *HeartbeatLoop) Stop(_ context.Context) error {
	close(h.done)
	return nil
}

func (h *HeartbeatLoop) send(ctx context.Context) {
	if err := h.sendOnce(ctx); err != nil {
		h.logger.Debug().Err(err).Msg("Heartbeat send failed")
	}
}

func (h *HeartbeatLoop) sendOnce(ctx context.Context) error {
	return h.client.Heartbeat(ctx, models.HeartbeatRequest{
		NodeID:    h.server.NodeID(),
		Status:    string(models.NodeOnline),
		Timestamp: models.EpochSeconds(h.server.clock.SynchronizedTime()),
		IsReady:   h.server.camera.Ready(),
		LocalIP:   h.server.config.LocalIP,
	})
}
