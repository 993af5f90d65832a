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

// Package api provides the master controller's HTTP API: the node-facing
// registry endpoints and the operator-facing trigger surface.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/camgrid/shuttersync/pkg/core"
	srhttp "github.com/camgrid/shuttersync/pkg/http"
	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
)

// APIServer serves the master's HTTP surface.
type APIServer struct {
	manager      *core.Manager
	artifacts    *ArtifactStore
	hub          *StatusHub
	listenPort   int
	defaultDelay float64
	logger       logger.Logger
	router       *mux.Router
	httpSrv      *http.Server
}

// NewAPIServer creates the master API server.
func NewAPIServer(manager *core.Manager, listenPort int, log logger.Logger, options ...func(*APIServer)) *APIServer {
	s := &APIServer{
		manager:      manager,
		listenPort:   listenPort,
		defaultDelay: 0.5,
		logger:       log,
		router:       mux.NewRouter(),
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithArtifactStore adds upload handling to the API server.
func WithArtifactStore(store *ArtifactStore) func(*APIServer) {
	return func(server *APIServer) {
		server.artifacts = store
	}
}

// WithStatusHub adds the operator WebSocket endpoint to the API server.
func WithStatusHub(hub *StatusHub) func(*APIServer) {
	return func(server *APIServer) {
		server.hub = hub
	}
}

// WithDefaultDelay sets the capture delay used when a trigger omits one.
func WithDefaultDelay(seconds float64) func(*APIServer) {
	return func(server *APIServer) {
		if seconds > 0 {
			server.defaultDelay = seconds
		}
	}
}

func (s *APIServer) setupRoutes() {
	s.router.Use(srhttp.CommonMiddleware(s.logger))

	// Node-facing registry endpoints.
	s.router.HandleFunc("/api/register", s.handleRegister).Methods(http.MethodPost)
	s.router.HandleFunc("/api/node_online", s.handleNodeOnline).Methods(http.MethodPost)
	s.router.HandleFunc("/api/node_offline", s.handleNodeOffline).Methods(http.MethodPost)
	s.router.HandleFunc("/api/heartbeat", s.handleHeartbeat).Methods(http.MethodPost)

	if s.artifacts != nil {
		s.router.HandleFunc("/api/upload", s.handleUpload).Methods(http.MethodPost)
	}

	// Operator-facing trigger surface.
	s.router.HandleFunc("/api/cameras", s.handleGetCameras).Methods(http.MethodGet)
	s.router.HandleFunc("/api/switch_camera", s.handleSwitchCamera).Methods(http.MethodPost)
	s.router.HandleFunc("/api/check_ready", s.handleCheckReady).Methods(http.MethodGet)
	s.router.HandleFunc("/api/trigger_capture", s.handleTriggerCapture).Methods(http.MethodPost)

	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.HandleWS).Methods(http.MethodGet)
	}
}

// Router exposes the handler for tests.
func (s *APIServer) Router() http.Handler {
	return s.router
}

// Start serves the API until the context is cancelled. A bind failure is
// fatal to startup.
func (s *APIServer) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.listenPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Int("port", s.listenPort).Msg("Master API listening")

	errCh := make(chan error, 1)

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Stop shuts the HTTP server down.
func (s *APIServer) Stop(ctx context.Context) error {
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}

	return nil
}

func writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, models.ErrorResponse{
		Message: message,
		Status:  statusCode,
	})
}
