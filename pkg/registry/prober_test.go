package registry

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
)

// startReadyServer runs an httptest server answering /ready with the given
// body and returns its host/port split for the registry.
func startReadyServer(t *testing.T, status int, body string) (string, int) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ready", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return host, port
}

func TestCheckAllReadyProbesOnlineNodes(t *testing.T) {
	readyHost, readyPort := startReadyServer(t, http.StatusOK, `{"ready":true,"node_id":1}`)
	busyHost, busyPort := startReadyServer(t, http.StatusOK, `{"ready":false,"node_id":2}`)

	prober := NewHTTPProber(2*time.Second, logger.NewTestLogger())

	r, err := New(&Config{}, prober, nil, logger.NewTestLogger())
	require.NoError(t, err)

	n1 := r.Register(readyHost, readyPort, models.DefaultCapabilities())
	n2 := r.Register(busyHost, busyPort, models.DefaultCapabilities())
	n3 := r.Register("192.0.2.1", 9999, models.DefaultCapabilities())
	require.NoError(t, r.MarkOffline(n3))

	status := r.CheckAllReady(context.Background())

	assert.Equal(t, map[int]bool{n1: true, n2: false, n3: false}, status)

	// Stored readiness flags track the probe results.
	node, _ := r.Device(n1)
	assert.True(t, node.IsReady)

	node, _ = r.Device(n2)
	assert.False(t, node.IsReady)
}

func TestProbeReadyUnreachableNode(t *testing.T) {
	prober := NewHTTPProber(200*time.Millisecond, logger.NewTestLogger())

	ready := prober.ProbeReady(context.Background(), models.Device{ID: 1, IP: "127.0.0.1", Port: 1})
	assert.False(t, ready)
}

func TestProbeReadyNon200(t *testing.T) {
	host, port := startReadyServer(t, http.StatusServiceUnavailable, `{}`)

	prober := NewHTTPProber(2*time.Second, logger.NewTestLogger())

	ready := prober.ProbeReady(context.Background(), models.Device{ID: 1, IP: host, Port: port})
	assert.False(t, ready)
}

func TestProbeReadyMalformedBody(t *testing.T) {
	host, port := startReadyServer(t, http.StatusOK, `not json`)

	prober := NewHTTPProber(2*time.Second, logger.NewTestLogger())

	ready := prober.ProbeReady(context.Background(), models.Device{ID: 1, IP: host, Port: port})
	assert.False(t, ready)
}
