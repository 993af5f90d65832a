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

package core

import (
	"time"

	"github.com/camgrid/shuttersync/pkg/discovery"
	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
	"github.com/camgrid/shuttersync/pkg/registry"
	"github.com/camgrid/shuttersync/pkg/timesync"
)

const (
	defaultListenPort   = 8080
	defaultStoragePath  = "/opt/camera_images"
	defaultSendTimeout  = 10 * time.Second
	defaultDelaySeconds = 0.5
)

// MasterConfig configures the master controller process.
type MasterConfig struct {
	ListenPort   int                       `json:"listen_port"`
	AdvertiseIP  string                    `json:"advertise_ip"`
	StoragePath  string                    `json:"storage_path"`
	SendTimeout  models.Duration           `json:"send_timeout"`
	DefaultDelay float64                   `json:"default_delay_seconds"`
	Registry     registry.Config           `json:"registry"`
	Clock        timesync.ClockConfig      `json:"clock"`
	Discovery    discovery.ResponderConfig `json:"discovery"`
	Logging      *logger.Config            `json:"logging"`
}

// Validate applies defaults and wires the discovery advertisement to the
// listen port when unset.
func (c *MasterConfig) Validate() error {
	if c.ListenPort <= 0 {
		c.ListenPort = defaultListenPort
	}

	if c.StoragePath == "" {
		c.StoragePath = defaultStoragePath
	}

	if c.SendTimeout <= 0 {
		c.SendTimeout = models.Duration(defaultSendTimeout)
	}

	if c.DefaultDelay <= 0 {
		c.DefaultDelay = defaultDelaySeconds
	}

	if err := c.Registry.Validate(); err != nil {
		return err
	}

	if err := c.Clock.Validate(); err != nil {
		return err
	}

	if c.AdvertiseIP == "" {
		ip, err := discovery.DetectLocalIP()
		if err != nil {
			return err
		}

		c.AdvertiseIP = ip
	}

	if c.Discovery.AdvertiseIP == "" {
		c.Discovery.AdvertiseIP = c.AdvertiseIP
	}

	if c.Discovery.AdvertisePort <= 0 {
		c.Discovery.AdvertisePort = c.ListenPort
	}

	return c.Discovery.Validate()
}
