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

package models

// Wire messages exchanged between capture nodes and the master registry.
// Every message is an explicit schema validated at the boundary; timestamps
// travel as fractional Unix seconds to match the synchronized-clock math.

// RegisterRequest is sent by a node that has no assigned id yet.
type RegisterRequest struct {
	LocalIP      string       `json:"local_ip"`
	NodePort     int          `json:"node_port"`
	Capabilities Capabilities `json:"capabilities"`
}

// RegisterResponse carries the registry-allocated node id.
type RegisterResponse struct {
	Success bool   `json:"success"`
	NodeID  int    `json:"node_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NodeOnlineRequest announces a node (re)joining with a known id.
type NodeOnlineRequest struct {
	NodeID       int          `json:"node_id"`
	LocalIP      string       `json:"local_ip"`
	NodePort     int          `json:"node_port"`
	Capabilities Capabilities `json:"capabilities"`
}

// NodeOfflineRequest is a best-effort goodbye sent on node shutdown.
type NodeOfflineRequest struct {
	NodeID  int    `json:"node_id"`
	LocalIP string `json:"local_ip"`
}

// HeartbeatRequest is the periodic liveness signal from a node.
type HeartbeatRequest struct {
	NodeID    int     `json:"node_id"`
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
	IsReady   bool    `json:"is_ready"`
	LocalIP   string  `json:"local_ip"`
}

// HeartbeatResponse echoes the registry's synchronized receive time.
type HeartbeatResponse struct {
	Success   bool    `json:"success"`
	Timestamp float64 `json:"timestamp"`
}

// StatusResponse is the generic success/error envelope for registry writes.
type StatusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ReadyResponse answers a readiness probe against a node.
type ReadyResponse struct {
	Ready            bool    `json:"ready"`
	NodeID           int     `json:"node_id"`
	Timestamp        float64 `json:"timestamp"`
	TimeSynchronized bool    `json:"time_synchronized"`
}

// CaptureRequest commands a node to fire at a shared synchronized instant.
type CaptureRequest struct {
	CaptureTime  float64 `json:"capture_time"`
	SessionID    string  `json:"session_id"`
	DelaySeconds float64 `json:"delay_seconds"`
}

// CaptureResponse acknowledges that a capture command was accepted.
type CaptureResponse struct {
	Success     bool    `json:"success"`
	SessionID   string  `json:"session_id,omitempty"`
	CaptureTime float64 `json:"capture_time,omitempty"`
	NodeID      int     `json:"node_id,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// NodeStatusResponse is a node's self-reported status.
type NodeStatusResponse struct {
	NodeID            int         `json:"node_id"`
	Status            string      `json:"status"`
	CameraReady       bool        `json:"camera_ready"`
	TimeSynchronized  bool        `json:"time_synchronized"`
	CurrentTime       float64     `json:"current_time"`
	ScheduledCaptures int         `json:"scheduled_captures"`
	System            *SystemInfo `json:"system,omitempty"`
}

// SystemInfo is host-level detail included in node status reports.
type SystemInfo struct {
	Hostname      string  `json:"hostname"`
	Platform      string  `json:"platform"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	MemoryTotal   uint64  `json:"memory_total"`
	MemoryUsedPct float64 `json:"memory_used_pct"`
}

// UploadResponse acknowledges a stored capture artifact.
type UploadResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename,omitempty"`
	Path     string `json:"path,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ErrorResponse is the JSON body for HTTP-level errors.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Discovery messages, exchanged over UDP broadcast.
const (
	DiscoverTypeRequest  = "discover_master"
	DiscoverTypeResponse = "master_response"
)

// DiscoverRequest is broadcast by a node looking for the master.
type DiscoverRequest struct {
	Type   string `json:"type"`
	NodeIP string `json:"node_ip"`
}

// DiscoverResponse is unicast back to the requesting node.
type DiscoverResponse struct {
	Type       string `json:"type"`
	MasterIP   string `json:"master_ip"`
	MasterPort int    `json:"master_port"`
}
