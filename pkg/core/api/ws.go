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

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/camgrid/shuttersync/pkg/core"
	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
)

const statusBroadcastInterval = 5 * time.Second

// fleetStatus is the periodic snapshot pushed to operator clients.
type fleetStatus struct {
	Type        string          `json:"type"`
	Cameras     []models.Device `json:"cameras"`
	PreviewNode int             `json:"preview_node"`
	OnlineCount int             `json:"online_count"`
	ReadyCount  int             `json:"ready_count"`
	Timestamp   float64         `json:"timestamp"`
}

// StatusHub pushes fleet snapshots to connected operator WebSockets.
type StatusHub struct {
	manager  *core.Manager
	upgrader websocket.Upgrader
	logger   logger.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	done    chan struct{}
}

// NewStatusHub creates the broadcast hub.
func NewStatusHub(manager *core.Manager, log logger.Logger) *StatusHub {
	return &StatusHub{
		manager: manager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		logger:  log,
		clients: make(map[*websocket.Conn]struct{}),
		done:    make(chan struct{}),
	}
}

// HandleWS upgrades an operator connection and tracks it for broadcasts.
func (h *StatusHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	h.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("Operator connected")

	// Drain reads so close frames are processed; operators only listen.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Start broadcasts fleet snapshots until the context is cancelled.
func (h *StatusHub) Start(ctx context.Context) error {
	ticker := time.NewTicker(statusBroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return nil
		case <-ticker.C:
			h.broadcast()
		}
	}
}

// Stop closes all operator connections.
func (h *StatusHub) Stop(_ context.Context) error {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		_ = conn.Close()
	}

	h.clients = make(map[*websocket.Conn]struct{})

	return nil
}

func (h *StatusHub) broadcast() {
	reg := h.manager.Registry()

	snapshot := fleetStatus{
		Type:        "fleet_status",
		Cameras:     h.manager.GetCameras(),
		PreviewNode: h.manager.PreviewNode(),
		OnlineCount: reg.OnlineCount(),
		ReadyCount:  reg.ReadyCount(),
		Timestamp:   models.EpochSeconds(time.Now()),
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))

	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(snapshot); err != nil {
			h.drop(conn)
		}
	}
}

func (h *StatusHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()

	_ = conn.Close()
}
