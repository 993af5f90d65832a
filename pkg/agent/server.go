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

// Package agent runs on each capture node: it receives capture commands,
// waits out the synchronized instant, fires the camera and uploads the
// artifact.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
	"github.com/camgrid/shuttersync/pkg/timesync"
)

// Uploader pushes a finished capture artifact to the master.
type Uploader interface {
	Upload(ctx context.Context, path, filename string) error
}

// Server is the node-side HTTP surface plus the pending-capture bookkeeping.
type Server struct {
	config    *NodeConfig
	camera    Camera
	clock     *timesync.Service
	scheduler *timesync.Scheduler
	uploader  Uploader
	logger    logger.Logger

	router  *mux.Router
	httpSrv *http.Server

	mu      sync.Mutex
	nodeID  int
	pending map[string]time.Time

	// waitCtx governs in-flight scheduled waits; cancelled on Stop so a
	// draining node abandons waits instead of firing after shutdown.
	waitCtx    context.Context
	waitCancel context.CancelFunc
}

// NewServer creates the capture agent server.
func NewServer(cfg *NodeConfig, camera Camera, clock *timesync.Service, sched *timesync.Scheduler, uploader Uploader, log logger.Logger) *Server {
	waitCtx, waitCancel := context.WithCancel(context.Background())

	s := &Server{
		config:     cfg,
		camera:     camera,
		clock:      clock,
		scheduler:  sched,
		uploader:   uploader,
		logger:     log,
		router:     mux.NewRouter(),
		nodeID:     cfg.NodeID,
		pending:    make(map[string]time.Time),
		waitCtx:    waitCtx,
		waitCancel: waitCancel,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.router.HandleFunc("/capture", s.handleCapture).Methods(http.MethodPost)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// NodeID returns the node's current identity.
func (s *Server) NodeID() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nodeID
}

// SetNodeID records the identity allocated by the registry.
func (s *Server) SetNodeID(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodeID = id
}

// PendingCaptures returns how many scheduled captures are waiting to fire.
func (s *Server) PendingCaptures() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending)
}

// Start serves the node HTTP API until the context is cancelled. A bind
// failure is fatal to startup.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.NodePort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Int("port", s.config.NodePort).Msg("Capture agent listening")

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

// Stop shuts down the HTTP server and abandons pending waits.
func (s *Server) Stop(ctx context.Context) error {
	s.waitCancel()

	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}

	return nil
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.ReadyResponse{
		Ready:            s.camera.Ready(),
		NodeID:           s.NodeID(),
		Timestamp:        models.EpochSeconds(s.clock.SynchronizedTime()),
		TimeSynchronized: s.clock.IsSynchronized(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.NodeStatusResponse{
		NodeID:            s.NodeID(),
		Status:            string(models.NodeOnline),
		CameraReady:       s.camera.Ready(),
		TimeSynchronized:  s.clock.IsSynchronized(),
		CurrentTime:       models.EpochSeconds(s.clock.SynchronizedTime()),
		ScheduledCaptures: s.PendingCaptures(),
		System:            collectSystemInfo(),
	})
}

// handleCapture validates the command, accepts it immediately and schedules
// the wait in the background. A duplicate command for an already pending
// session is acknowledged without scheduling a second wait.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var cmd models.CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, models.CaptureResponse{
			Success: false,
			Error:   "malformed capture command",
		})

		return
	}

	if cmd.CaptureTime == 0 || cmd.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, models.CaptureResponse{
			Success: false,
			Error:   "missing capture_time or session_id",
		})

		return
	}

	if !s.camera.Ready() {
		writeJSON(w, http.StatusBadRequest, models.CaptureResponse{
			Success: false,
			Error:   "camera not ready",
		})

		return
	}

	captureAt := models.TimeFromEpoch(cmd.CaptureTime)

	s.mu.Lock()

	_, duplicate := s.pending[cmd.SessionID]
	if !duplicate {
		s.pending[cmd.SessionID] = captureAt
	}

	s.mu.Unlock()

	if duplicate {
		s.logger.Debug().Str("session_id", cmd.SessionID).Msg("Duplicate capture command ignored")
	} else {
		s.logger.Info().
			Str("session_id", cmd.SessionID).
			Str("capture_time", s.clock.FormatTime(captureAt)).
			Msg("Capture command accepted")

		go s.executeScheduled(cmd.SessionID, captureAt)
	}

	writeJSON(w, http.StatusOK, models.CaptureResponse{
		Success:     true,
		SessionID:   cmd.SessionID,
		CaptureTime: cmd.CaptureTime,
		NodeID:      s.NodeID(),
	})
}

// executeScheduled waits out the synchronized instant and fires. The
// pending entry is removed whatever happens to the capture or the upload.
func (s *Server) executeScheduled(sessionID string, captureAt time.Time) {
	defer func() {
		s.mu.Lock()
		delete(s.pending, sessionID)
		s.mu.Unlock()
	}()

	err := s.scheduler.WaitUntil(s.waitCtx, captureAt, func() {
		s.performCapture(sessionID, captureAt)
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("session_id", sessionID).Msg("Scheduled wait abandoned")
	}
}

func (s *Server) performCapture(sessionID string, captureAt time.Time) {
	filename := timesync.Filename(s.NodeID(), captureAt)
	path := filepath.Join(s.config.StoragePath, filename)

	if err := s.camera.Capture(s.waitCtx, path); err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Capture failed")
		return
	}

	s.logger.Info().Str("session_id", sessionID).Str("path", path).Msg("Capture complete")

	if err := s.uploader.Upload(s.waitCtx, path, filename); err != nil {
		s.logger.Error().Err(err).Str("filename", filename).Msg("Artifact upload failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(data)
}
