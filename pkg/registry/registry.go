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
	"sort"
	"time"

	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
)

// New creates a fleet registry. A nil clock defaults to the real clock.
func New(cfg *Config, prober Prober, clock Clock, log logger.Logger) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = RealClock()
	}

	return &Registry{
		nodes:            make(map[int]*models.Device),
		previewNode:      noPreviewNode,
		nextID:           1,
		heartbeatTimeout: time.Duration(cfg.HeartbeatTimeout),
		monitorInterval:  time.Duration(cfg.MonitorInterval),
		clock:            clock,
		prober:           prober,
		logger:           log,
	}, nil
}

// Register allocates an id for a new node and tracks it as online. The
// first node ever registered becomes the preview node.
func (r *Registry) Register(ip string, port int, caps models.Capabilities) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.allocateID()

	r.nodes[id] = &models.Device{
		ID:            id,
		IP:            ip,
		Port:          port,
		State:         models.NodeOnline,
		LastHeartbeat: r.clock.Now(),
		Capabilities:  caps,
	}

	if r.previewNode == noPreviewNode {
		r.previewNode = id
	}

	r.logger.Info().Int("node_id", id).Str("ip", ip).Int("port", port).Msg("Node registered")

	return id
}

// allocateID returns the smallest id at or past the allocation cursor that
// is not currently tracked. Offline nodes stay tracked, so their ids are
// never handed out again. Caller must hold the lock.
func (r *Registry) allocateID() int {
	for {
		if _, taken := r.nodes[r.nextID]; !taken {
			break
		}

		r.nextID++
	}

	id := r.nextID
	r.nextID++

	return id
}

// MarkOnline upserts a node announcing itself with a known id, handling a
// node that restarted with a previously assigned identity.
func (r *Registry) MarkOnline(id int, ip string, port int, caps models.Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, known := r.nodes[id]
	if !known {
		node = &models.Device{ID: id}
		r.nodes[id] = node

		if r.previewNode == noPreviewNode {
			r.previewNode = id
		}
	}

	node.IP = ip
	node.Port = port
	node.State = models.NodeOnline
	node.LastHeartbeat = r.clock.Now()
	node.Capabilities = caps

	r.logger.Info().Int("node_id", id).Str("ip", ip).Bool("known", known).Msg("Node online")
}

// MarkOffline transitions a node to offline and clears its readiness. If it
// held the preview role the role moves to the lowest-id online node, or to
// none when no node remains online.
func (r *Registry) MarkOffline(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return ErrUnknownNode
	}

	node.State = models.NodeOffline
	node.IsReady = false

	if r.previewNode == id {
		r.reassignPreviewLocked()
	}

	r.logger.Info().Int("node_id", id).Msg("Node offline")

	return nil
}

// reassignPreviewLocked picks the lowest-id online node as the new preview
// node. Caller must hold the lock.
func (r *Registry) reassignPreviewLocked() {
	r.previewNode = noPreviewNode

	for _, id := range r.sortedIDsLocked() {
		if r.nodes[id].State == models.NodeOnline {
			r.previewNode = id
			r.logger.Info().Int("node_id", id).Msg("Preview node reassigned")

			return
		}
	}

	r.logger.Warn().Msg("No online node left for preview")
}

// UpdateHeartbeat refreshes a node's liveness and readiness. A node the
// monitor had marked offline resumes online here; the heartbeat path wins
// any race with the monitor because both use LastHeartbeat. Capturing and
// error are transient dispatch states, so a heartbeat clears them too: the
// node reporting in is the signal that it is back to normal service.
func (r *Registry) UpdateHeartbeat(id int, isReady bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return ErrUnknownNode
	}

	node.LastHeartbeat = r.clock.Now()
	node.IsReady = isReady

	if node.State == models.NodeOffline {
		r.logger.Info().Int("node_id", id).Msg("Node resumed by heartbeat")
	}

	node.State = models.NodeOnline

	return nil
}

// MarkCapturing records that a capture command was dispatched to a node.
func (r *Registry) MarkCapturing(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if node, ok := r.nodes[id]; ok {
		node.State = models.NodeCapturing
	}
}

// MarkError records a dispatch failure against a node.
func (r *Registry) MarkError(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if node, ok := r.nodes[id]; ok {
		node.State = models.NodeError
	}
}

// Device returns a copy of one node record.
func (r *Registry) Device(id int) (models.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[id]
	if !ok {
		return models.Device{}, false
	}

	return *node, true
}

// Devices returns copies of all node records in ascending id order.
func (r *Registry) Devices() []models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Device, 0, len(r.nodes))
	for _, id := range r.sortedIDsLocked() {
		out = append(out, *r.nodes[id])
	}

	return out
}

func (r *Registry) sortedIDsLocked() []int {
	ids := make([]int, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	return ids
}

// PreviewNode returns the id of the current preview node, or 0 if none.
func (r *Registry) PreviewNode() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.previewNode
}

// SwitchPreview moves the preview role to an online node.
func (r *Registry) SwitchPreview(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return ErrUnknownNode
	}

	if node.State != models.NodeOnline && node.State != models.NodeReady {
		return ErrNodeNotOnline
	}

	r.previewNode = id
	r.logger.Info().Int("node_id", id).Msg("Preview switched")

	return nil
}

// OnlineCount returns how many nodes are currently not offline.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0

	for _, node := range r.nodes {
		if node.State != models.NodeOffline {
			n++
		}
	}

	return n
}

// ReadyCount returns how many nodes currently report ready.
func (r *Registry) ReadyCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0

	for _, node := range r.nodes {
		if node.IsReady {
			n++
		}
	}

	return n
}

// expireStale transitions every node whose heartbeat is older than the
// timeout to offline and returns the affected ids. Preview reassignment
// happens inline so the role never points at a dead node for more than one
// monitor cycle.
func (r *Registry) expireStale(now time.Time) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []int

	for _, id := range r.sortedIDsLocked() {
		node := r.nodes[id]

		if node.State == models.NodeOffline {
			continue
		}

		if now.Sub(node.LastHeartbeat) <= r.heartbeatTimeout {
			continue
		}

		node.State = models.NodeOffline
		node.IsReady = false
		expired = append(expired, id)

		if r.previewNode == id {
			r.reassignPreviewLocked()
		}
	}

	return expired
}
