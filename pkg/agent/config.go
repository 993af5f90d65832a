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

package agent

import (
	"time"

	"github.com/camgrid/shuttersync/pkg/discovery"
	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
	"github.com/camgrid/shuttersync/pkg/timesync"
)

const (
	defaultNodePort          = 8084
	defaultHeartbeatInterval = 5 * time.Second
	defaultStoragePath       = "/tmp/camera_images"
)

// NodeConfig configures one capture node. NodeID zero means the node has no
// identity yet and registers for one; the allocated id is written back to
// the config file.
type NodeConfig struct {
	NodeID            int                  `json:"node_id"`
	MasterURL         string               `json:"master_url"`
	LocalIP           string               `json:"local_ip"`
	NodePort          int                  `json:"node_port"`
	StoragePath       string               `json:"storage_path"`
	HeartbeatInterval models.Duration      `json:"heartbeat_interval"`
	BroadcastAddrs    []string             `json:"broadcast_addrs"`
	Clock             timesync.ClockConfig `json:"clock"`
	Logging           *logger.Config       `json:"logging"`
}

// Validate applies defaults and detects the local IP when unset.
func (c *NodeConfig) Validate() error {
	if c.NodePort <= 0 {
		c.NodePort = defaultNodePort
	}

	if c.StoragePath == "" {
		c.StoragePath = defaultStoragePath
	}

	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = models.Duration(defaultHeartbeatInterval)
	}

	if c.LocalIP == "" {
		ip, err := discovery.DetectLocalIP()
		if err != nil {
			return err
		}

		c.LocalIP = ip
	}

	return c.Clock.Validate()
}
