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
	"net/http"
	"time"

	"github.com/camgrid/shuttersync/pkg/models"
)

type camerasResponse struct {
	Cameras     []models.Device `json:"cameras"`
	PreviewNode int             `json:"preview_node"`
}

type switchCameraRequest struct {
	NodeID int `json:"node_id"`
}

type checkReadyResponse struct {
	ReadyStatus map[int]bool `json:"ready_status"`
}

type triggerCaptureRequest struct {
	DelaySeconds float64 `json:"delay_seconds"`
}

func (s *APIServer) handleGetCameras(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, camerasResponse{
		Cameras:     s.manager.GetCameras(),
		PreviewNode: s.manager.PreviewNode(),
	})
}

func (s *APIServer) handleSwitchCamera(w http.ResponseWriter, r *http.Request) {
	var req switchCameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "malformed switch request", http.StatusBadRequest)
		return
	}

	if err := s.manager.SwitchCamera(req.NodeID); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSONResponse(w, http.StatusOK, models.StatusResponse{Success: true})
}

func (s *APIServer) handleCheckReady(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, checkReadyResponse{
		ReadyStatus: s.manager.CheckReady(r.Context()),
	})
}

// handleTriggerCapture starts a coordinated capture. The response reports
// per-node send outcomes; capture completion arrives later via uploads.
func (s *APIServer) handleTriggerCapture(w http.ResponseWriter, r *http.Request) {
	var req triggerCaptureRequest

	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.DelaySeconds <= 0 {
		req.DelaySeconds = s.defaultDelay
	}

	delay := time.Duration(req.DelaySeconds * float64(time.Second))

	result := s.manager.TriggerCapture(r.Context(), delay)

	writeJSONResponse(w, http.StatusOK, result)
}
