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
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camgrid/shuttersync/pkg/core"
	"github.com/camgrid/shuttersync/pkg/dispatch"
	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
	"github.com/camgrid/shuttersync/pkg/registry"
	"github.com/camgrid/shuttersync/pkg/timesync"
)

// fixedProber reports readiness per node id from a fixed map.
type fixedProber struct {
	ready map[int]bool
}

func (p *fixedProber) ProbeReady(_ context.Context, device models.Device) bool {
	return p.ready[device.ID]
}

// fixedSender acknowledges every dispatched command.
type fixedSender struct{}

func (fixedSender) SendCapture(context.Context, models.Device, models.CaptureRequest) error {
	return nil
}

func newTestAPIServer(t *testing.T, prober registry.Prober, options ...func(*APIServer)) (*APIServer, *registry.Registry) {
	t.Helper()

	log := logger.NewTestLogger()

	if prober == nil {
		prober = &fixedProber{}
	}

	reg, err := registry.New(&registry.Config{}, prober, nil, log)
	require.NoError(t, err)

	clock := timesync.NewService(&timesync.ClockConfig{}, log,
		timesync.WithQuerier(func(string, time.Duration) (time.Duration, error) {
			return 0, nil
		}))
	sched := timesync.NewScheduler(clock, log)

	disp := dispatch.New(reg, sched, fixedSender{}, log)
	manager := core.NewManager(reg, disp, log)

	return NewAPIServer(manager, 0, log, options...), reg
}

func doJSON(t *testing.T, s *APIServer, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader

	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	return rec
}

func TestRegisterAllocatesIDs(t *testing.T) {
	s, _ := newTestAPIServer(t, nil)

	for want := 1; want <= 3; want++ {
		rec := doJSON(t, s, http.MethodPost, "/api/register", models.RegisterRequest{
			LocalIP:  "192.168.1.50",
			NodePort: 8084,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp models.RegisterResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

		assert.True(t, resp.Success)
		assert.Equal(t, want, resp.NodeID)
	}
}

func TestRegisterRejectsMissingIP(t *testing.T) {
	s, _ := newTestAPIServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/register", models.RegisterRequest{NodePort: 8084})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader("not json"))
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNodeOnlineUpserts(t *testing.T) {
	s, reg := newTestAPIServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/node_online", models.NodeOnlineRequest{
		NodeID:   4,
		LocalIP:  "192.168.1.54",
		NodePort: 8084,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	node, ok := reg.Device(4)
	require.True(t, ok)
	assert.Equal(t, models.NodeOnline, node.State)
	assert.Equal(t, "192.168.1.54", node.IP)
}

func TestNodeOnlineRejectsMissingFields(t *testing.T) {
	s, _ := newTestAPIServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/node_online", models.NodeOnlineRequest{LocalIP: "192.168.1.54"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/node_online", models.NodeOnlineRequest{NodeID: 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNodeOfflineAlwaysSucceeds(t *testing.T) {
	s, reg := newTestAPIServer(t, nil)

	id := reg.Register("192.168.1.50", 8084, models.DefaultCapabilities())

	rec := doJSON(t, s, http.MethodPost, "/api/node_offline", models.NodeOfflineRequest{NodeID: id})
	require.Equal(t, http.StatusOK, rec.Code)

	node, _ := reg.Device(id)
	assert.Equal(t, models.NodeOffline, node.State)

	// An unknown node still gets a success envelope; goodbyes are
	// best-effort from the node's point of view.
	rec = doJSON(t, s, http.MethodPost, "/api/node_offline", models.NodeOfflineRequest{NodeID: 99})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
}

func TestHeartbeatRefreshesAndReportsUnknown(t *testing.T) {
	s, reg := newTestAPIServer(t, nil)

	id := reg.Register("192.168.1.50", 8084, models.DefaultCapabilities())

	rec := doJSON(t, s, http.MethodPost, "/api/heartbeat", models.HeartbeatRequest{
		NodeID:  id,
		IsReady: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HeartbeatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.NotZero(t, resp.Timestamp)

	node, _ := reg.Device(id)
	assert.True(t, node.IsReady)

	// Unknown node: acknowledged with success=false so the node knows to
	// re-register.
	rec = doJSON(t, s, http.MethodPost, "/api/heartbeat", models.HeartbeatRequest{NodeID: 99})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
}

func TestGetCameras(t *testing.T) {
	s, reg := newTestAPIServer(t, nil)

	n1 := reg.Register("192.168.1.50", 8084, models.DefaultCapabilities())
	reg.Register("192.168.1.51", 8084, models.DefaultCapabilities())

	rec := doJSON(t, s, http.MethodGet, "/api/cameras", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp camerasResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Len(t, resp.Cameras, 2)
	assert.Equal(t, n1, resp.PreviewNode)
}

func TestSwitchCamera(t *testing.T) {
	s, reg := newTestAPIServer(t, nil)

	reg.Register("192.168.1.50", 8084, models.DefaultCapabilities())
	n2 := reg.Register("192.168.1.51", 8084, models.DefaultCapabilities())

	rec := doJSON(t, s, http.MethodPost, "/api/switch_camera", switchCameraRequest{NodeID: n2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, n2, reg.PreviewNode())

	rec = doJSON(t, s, http.MethodPost, "/api/switch_camera", switchCameraRequest{NodeID: 99})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckReady(t *testing.T) {
	prober := &fixedProber{ready: map[int]bool{1: true, 2: false}}
	s, reg := newTestAPIServer(t, prober)

	reg.Register("192.168.1.50", 8084, models.DefaultCapabilities())
	reg.Register("192.168.1.51", 8084, models.DefaultCapabilities())

	rec := doJSON(t, s, http.MethodGet, "/api/check_ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp checkReadyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, map[int]bool{1: true, 2: false}, resp.ReadyStatus)
}

func TestTriggerCaptureAppliesDefaultDelay(t *testing.T) {
	prober := &fixedProber{ready: map[int]bool{1: true}}
	s, reg := newTestAPIServer(t, prober, WithDefaultDelay(0.2))

	reg.Register("192.168.1.50", 8084, models.DefaultCapabilities())

	before := time.Now()

	rec := doJSON(t, s, http.MethodPost, "/api/trigger_capture", triggerCaptureRequest{})
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.CaptureResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))

	require.True(t, result.Success)
	assert.Equal(t, []int{1}, result.ReadyNodes)
	assert.Equal(t, map[int]bool{1: true}, result.SendResults)
	require.True(t, strings.HasPrefix(result.SessionID, "capture_"))

	// Capture instant sits roughly the default delay out.
	captureAt := models.TimeFromEpoch(result.CaptureTime)
	assert.WithinDuration(t, before.Add(200*time.Millisecond), captureAt, time.Second)
}

func TestTriggerCaptureNoReadyNodes(t *testing.T) {
	s, reg := newTestAPIServer(t, nil)

	reg.Register("192.168.1.50", 8084, models.DefaultCapabilities())

	rec := doJSON(t, s, http.MethodPost, "/api/trigger_capture", triggerCaptureRequest{DelaySeconds: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.CaptureResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))

	assert.False(t, result.Success)
	assert.Equal(t, "no ready capture nodes", result.Error)
	assert.Empty(t, result.SessionID)
}

func TestUploadStoresArtifact(t *testing.T) {
	dir := t.TempDir()

	store, err := NewArtifactStore(dir, logger.NewTestLogger())
	require.NoError(t, err)

	s, _ := newTestAPIServer(t, nil, WithArtifactStore(store))

	var body bytes.Buffer

	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "20260831_142050_123-node01.jpg")
	require.NoError(t, err)

	_, err = part.Write([]byte{0xFF, 0xD8, 0xFF, 0xD9})
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.True(t, resp.Success)
	assert.Equal(t, "20260831_142050_123-node01.jpg", resp.Filename)

	stored, err := os.ReadFile(filepath.Join(dir, "20260831_142050_123-node01.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, stored)
}

func TestUploadRejectsMissingImageField(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir(), logger.NewTestLogger())
	require.NoError(t, err)

	s, _ := newTestAPIServer(t, nil, WithArtifactStore(store))

	var body bytes.Buffer

	writer := multipart.NewWriter(&body)
	field, err := writer.CreateFormField("other")
	require.NoError(t, err)

	_, err = field.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRouteAbsentWithoutStore(t *testing.T) {
	s, _ := newTestAPIServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", http.NoBody)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadSanitizesFilename(t *testing.T) {
	dir := t.TempDir()

	store, err := NewArtifactStore(dir, logger.NewTestLogger())
	require.NoError(t, err)

	s, _ := newTestAPIServer(t, nil, WithArtifactStore(store))

	var body bytes.Buffer

	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "../../etc/escape.jpg")
	require.NoError(t, err)

	_, err = part.Write([]byte{0xFF, 0xD8})
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// The path components are stripped; the file lands inside the store.
	_, err = os.Stat(filepath.Join(dir, "escape.jpg"))
	require.NoError(t, err)
}
