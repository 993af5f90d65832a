package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
)

// fakeMaster records node-facing API calls behind an httptest server.
type fakeMaster struct {
	mu         sync.Mutex
	heartbeats []models.HeartbeatRequest
	uploads    []string
	srv        *httptest.Server
}

func newFakeMaster(t *testing.T) *fakeMaster {
	t.Helper()

	m := &fakeMaster{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, models.RegisterResponse{Success: true, NodeID: 3})
	})
	mux.HandleFunc("/api/node_online", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, models.StatusResponse{Success: true})
	})
	mux.HandleFunc("/api/node_offline", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, models.StatusResponse{Success: true})
	})
	mux.HandleFunc("/api/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		var hb models.HeartbeatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&hb))

		m.mu.Lock()
		m.heartbeats = append(m.heartbeats, hb)
		m.mu.Unlock()

		writeJSON(w, http.StatusOK, models.HeartbeatResponse{
			Success:   true,
			Timestamp: models.EpochSeconds(time.Now()),
		})
	})
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer func() { _ = f.Close() }()

		m.mu.Lock()
		m.uploads = append(m.uploads, header.Filename)
		m.mu.Unlock()

		writeJSON(w, http.StatusOK, models.UploadResponse{Success: true, Filename: header.Filename})
	})

	m.srv = httptest.NewServer(mux)
	t.Cleanup(m.srv.Close)

	return m
}

func (m *fakeMaster) heartbeatCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.heartbeats)
}

func TestRegisterReturnsAllocatedID(t *testing.T) {
	master := newFakeMaster(t)
	client := NewMasterClient(master.srv.URL, logger.NewTestLogger())

	id, err := client.Register(context.Background(), models.RegisterRequest{
		LocalIP:  "192.168.1.50",
		NodePort: 8084,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, id)
}

func TestRegisterRejectedByMaster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, models.RegisterResponse{Success: false, Error: "registry full"})
	}))
	t.Cleanup(srv.Close)

	client := NewMasterClient(srv.URL, logger.NewTestLogger())

	_, err := client.Register(context.Background(), models.RegisterRequest{LocalIP: "192.168.1.50"})
	require.ErrorIs(t, err, ErrRegistrationFailed)
}

func TestHeartbeatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewMasterClient(srv.URL, logger.NewTestLogger())

	err := client.Heartbeat(context.Background(), models.HeartbeatRequest{NodeID: 1})
	require.ErrorIs(t, err, ErrRequestFailed)
}

func TestUploadSendsMultipartArtifact(t *testing.T) {
	master := newFakeMaster(t)
	client := NewMasterClient(master.srv.URL, logger.NewTestLogger())

	dir := t.TempDir()
	path := filepath.Join(dir, "20260831_142050_123-node03.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o600))

	err := client.Upload(context.Background(), path, "20260831_142050_123-node03.jpg")
	require.NoError(t, err)

	assert.Equal(t, []string{"20260831_142050_123-node03.jpg"}, master.uploads)
}

func TestUploadMissingFile(t *testing.T) {
	master := newFakeMaster(t)
	client := NewMasterClient(master.srv.URL, logger.NewTestLogger())

	err := client.Upload(context.Background(), "/nonexistent/file.jpg", "file.jpg")
	require.Error(t, err)
}

func TestHeartbeatLoopSendsImmediatelyAndPeriodically(t *testing.T) {
	master := newFakeMaster(t)
	client := NewMasterClient(master.srv.URL, logger.NewTestLogger())

	camera := NewStubCamera()
	require.NoError(t, camera.Initialize(context.Background()))

	server := newTestServer(t, camera, newRecordingUploader())
	server.SetNodeID(3)

	loop := NewHeartbeatLoop(server, client, 50*time.Millisecond, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Start(ctx) }()

	require.Eventually(t, func() bool {
		return master.heartbeatCount() >= 3
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, loop.Stop(context.Background()))
	require.NoError(t, <-done)

	master.mu.Lock()
	defer master.mu.Unlock()

	hb := master.heartbeats[0]
	assert.Equal(t, 3, hb.NodeID)
	assert.Equal(t, "online", hb.Status)
	assert.True(t, hb.IsReady)
	assert.Equal(t, "192.168.1.50", hb.LocalIP)
}
