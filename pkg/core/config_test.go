package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camgrid/shuttersync/pkg/discovery"
)

func TestMasterConfigDefaults(t *testing.T) {
	cfg := &MasterConfig{AdvertiseIP: "192.168.1.100"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.ListenPort)
	assert.Equal(t, "/opt/camera_images", cfg.StoragePath)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.SendTimeout))
	assert.InDelta(t, 0.5, cfg.DefaultDelay, 1e-9)

	// Discovery advertises the API address unless overridden.
	assert.Equal(t, "192.168.1.100", cfg.Discovery.AdvertiseIP)
	assert.Equal(t, 8080, cfg.Discovery.AdvertisePort)
	assert.Equal(t, 8085, cfg.Discovery.Port)
}

func TestMasterConfigDiscoveryOverride(t *testing.T) {
	cfg := &MasterConfig{
		AdvertiseIP: "192.168.1.100",
		ListenPort:  9090,
		Discovery: discovery.ResponderConfig{
			AdvertiseIP:   "10.0.0.5",
			AdvertisePort: 9191,
		},
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "10.0.0.5", cfg.Discovery.AdvertiseIP)
	assert.Equal(t, 9191, cfg.Discovery.AdvertisePort)
}
