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

// Package core is the master controller's operator surface: the fleet
// view, preview switching, readiness checks and capture triggering.
package core

import (
	"context"
	"time"

	"github.com/camgrid/shuttersync/pkg/dispatch"
	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
	"github.com/camgrid/shuttersync/pkg/registry"
)

// Manager exposes the operations the operator UI consumes. The transport
// (HTTP/WebSocket) lives in core/api; these are plain calls.
type Manager struct {
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	logger     logger.Logger
}

// NewManager creates the operator surface over a registry and dispatcher.
func NewManager(reg *registry.Registry, disp *dispatch.Dispatcher, log logger.Logger) *Manager {
	return &Manager{
		registry:   reg,
		dispatcher: disp,
		logger:     log,
	}
}

// Registry exposes the underlying fleet registry.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// GetCameras lists all tracked capture nodes.
func (m *Manager) GetCameras() []models.Device {
	return m.registry.Devices()
}

// PreviewNode returns the current preview node id, 0 if none.
func (m *Manager) PreviewNode() int {
	return m.registry.PreviewNode()
}

// SwitchCamera moves the preview role to another online node.
func (m *Manager) SwitchCamera(id int) error {
	return m.registry.SwitchPreview(id)
}

// CheckReady actively probes every online node's readiness.
func (m *Manager) CheckReady(ctx context.Context) map[int]bool {
	return m.registry.CheckAllReady(ctx)
}

// TriggerCapture runs one coordinated capture across all ready nodes.
func (m *Manager) TriggerCapture(ctx context.Context, delay time.Duration) *models.CaptureResult {
	return m.dispatcher.TriggerCapture(ctx, delay)
}
