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

// Package dispatch fans a capture command out to every ready node and
// aggregates the per-node send outcomes.
package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
	"github.com/camgrid/shuttersync/pkg/registry"
	"github.com/camgrid/shuttersync/pkg/timesync"
)

// CommandSender delivers one capture command to one node.
type CommandSender interface {
	SendCapture(ctx context.Context, device models.Device, cmd models.CaptureRequest) error
}

// Dispatcher coordinates a synchronized capture across the fleet.
type Dispatcher struct {
	registry  *registry.Registry
	scheduler *timesync.Scheduler
	sender    CommandSender
	logger    logger.Logger
}

// New creates a dispatcher.
func New(reg *registry.Registry, sched *timesync.Scheduler, sender CommandSender, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		registry:  reg,
		scheduler: sched,
		sender:    sender,
		logger:    log,
	}
}

// TriggerCapture probes readiness, computes the shared capture instant and
// sends the command to every ready node concurrently. The readiness snapshot
// taken here fixes the participant set; nodes becoming ready mid-dispatch
// are not included. The call returns once every send has completed or
// failed; it does not wait for nodes to fire or upload.
func (d *Dispatcher) TriggerCapture(ctx context.Context, delay time.Duration) *models.CaptureResult {
	readyStatus := d.registry.CheckAllReady(ctx)

	readyNodes := make([]int, 0, len(readyStatus))

	for id, ready := range readyStatus {
		if ready {
			readyNodes = append(readyNodes, id)
		}
	}

	sort.Ints(readyNodes)

	if len(readyNodes) == 0 {
		d.logger.Warn().Msg("Capture trigger with no ready nodes")

		return &models.CaptureResult{
			Success:     false,
			Error:       "no ready capture nodes",
			ReadyStatus: readyStatus,
		}
	}

	sessionID := d.scheduler.NewSessionID()
	captureTime := d.scheduler.Schedule(ctx, sessionID, delay)

	cmd := models.CaptureRequest{
		CaptureTime:  models.EpochSeconds(captureTime),
		SessionID:    sessionID,
		DelaySeconds: delay.Seconds(),
	}

	sendResults := make(map[int]bool, len(readyNodes))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, id := range readyNodes {
		device, ok := d.registry.Device(id)
		if !ok {
			mu.Lock()
			sendResults[id] = false
			mu.Unlock()

			continue
		}

		wg.Add(1)

		go func(device models.Device) {
			defer wg.Done()

			err := d.sender.SendCapture(ctx, device, cmd)
			if err != nil {
				d.logger.Error().Err(err).Int("node_id", device.ID).
					Str("session_id", sessionID).
					Msg("Capture command send failed")

				d.registry.MarkError(device.ID)
			} else {
				d.registry.MarkCapturing(device.ID)
			}

			mu.Lock()
			sendResults[device.ID] = err == nil
			mu.Unlock()
		}(device)
	}

	wg.Wait()

	d.logger.Info().
		Str("session_id", sessionID).
		Ints("ready_nodes", readyNodes).
		Msg("Capture dispatched")

	return &models.CaptureResult{
		Success:       true,
		SessionID:     sessionID,
		CaptureTime:   cmd.CaptureTime,
		CaptureTimeAt: captureTime,
		ReadyNodes:    readyNodes,
		SendResults:   sendResults,
		ReadyStatus:   readyStatus,
	}
}
