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
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/camgrid/shuttersync/pkg/models"
	"github.com/camgrid/shuttersync/pkg/registry"
)

// handleRegister allocates an id for a node that has none.
func (s *APIServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.RegisterResponse{
			Success: false,
			Error:   "malformed register request",
		})

		return
	}

	if req.LocalIP == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.RegisterResponse{
			Success: false,
			Error:   "missing node IP address",
		})

		return
	}

	id := s.manager.Registry().Register(req.LocalIP, req.NodePort, req.Capabilities)

	writeJSONResponse(w, http.StatusOK, models.RegisterResponse{
		Success: true,
		NodeID:  id,
	})
}

// handleNodeOnline upserts a node announcing itself with a known id.
func (s *APIServer) handleNodeOnline(w http.ResponseWriter, r *http.Request) {
	var req models.NodeOnlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NodeID <= 0 || req.LocalIP == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.StatusResponse{
			Success: false,
			Error:   "missing node_id or local_ip",
		})

		return
	}

	s.manager.Registry().MarkOnline(req.NodeID, req.LocalIP, req.NodePort, req.Capabilities)

	writeJSONResponse(w, http.StatusOK, models.StatusResponse{Success: true})
}

// handleNodeOffline records an explicit goodbye from a node.
func (s *APIServer) handleNodeOffline(w http.ResponseWriter, r *http.Request) {
	var req models.NodeOfflineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.StatusResponse{
			Success: false,
			Error:   "malformed offline notice",
		})

		return
	}

	if err := s.manager.Registry().MarkOffline(req.NodeID); err != nil {
		if errors.Is(err, registry.ErrUnknownNode) {
			s.logger.Debug().Int("node_id", req.NodeID).Msg("Offline notice for unknown node")
		}
	}

	writeJSONResponse(w, http.StatusOK, models.StatusResponse{Success: true})
}

// handleHeartbeat refreshes a node's liveness.
func (s *APIServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req models.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.HeartbeatResponse{Success: false})
		return
	}

	err := s.manager.Registry().UpdateHeartbeat(req.NodeID, req.IsReady)

	writeJSONResponse(w, http.StatusOK, models.HeartbeatResponse{
		Success:   err == nil,
		Timestamp: models.EpochSeconds(time.Now()),
	})
}

// handleUpload stores an artifact pushed by a node after a capture.
func (s *APIServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	filename, path, err := s.artifacts.Save(r)
	if err != nil {
		s.logger.Error().Err(err).Msg("Artifact upload failed")

		writeJSONResponse(w, http.StatusBadRequest, models.UploadResponse{
			Success: false,
			Error:   err.Error(),
		})

		return
	}

	writeJSONResponse(w, http.StatusOK, models.UploadResponse{
		Success:  true,
		Filename: filename,
		Path:     path,
	})
}
