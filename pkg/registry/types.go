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

// Package registry owns the set of known capture nodes: identity
// allocation, liveness tracking, readiness, and the preview-node pointer.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
)

const (
	defaultHeartbeatTimeout = 30 * time.Second
	defaultMonitorInterval  = 10 * time.Second
	defaultProbeTimeout     = 5 * time.Second

	// noPreviewNode means no node currently holds the preview role.
	noPreviewNode = 0
)

// Config configures the fleet registry and its monitor loop. The heartbeat
// timeout must stay coarser than the monitor interval.
type Config struct {
	HeartbeatTimeout models.Duration `json:"heartbeat_timeout"`
	MonitorInterval  models.Duration `json:"monitor_interval"`
	ProbeTimeout     models.Duration `json:"probe_timeout"`
}

// Validate applies defaults for unset fields.
func (c *Config) Validate() error {
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = models.Duration(defaultHeartbeatTimeout)
	}

	if c.MonitorInterval <= 0 {
		c.MonitorInterval = models.Duration(defaultMonitorInterval)
	}

	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = models.Duration(defaultProbeTimeout)
	}

	if time.Duration(c.HeartbeatTimeout) <= time.Duration(c.MonitorInterval) {
		return ErrTimeoutTooTight
	}

	return nil
}

// Clock abstracts time for the registry so monitor behavior is testable.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts time.Ticker.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Prober checks a single node's readiness endpoint. Failures and timeouts
// are reported as not-ready, never as errors.
type Prober interface {
	ProbeReady(ctx context.Context, device models.Device) bool
}

// Registry is the exclusive owner of Device records. All mutation goes
// through its methods; callers get copies, never shared pointers.
type Registry struct {
	mu          sync.RWMutex
	nodes       map[int]*models.Device
	previewNode int
	nextID      int

	heartbeatTimeout time.Duration
	monitorInterval  time.Duration

	clock  Clock
	prober Prober
	logger logger.Logger
}
