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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/camgrid/shuttersync/pkg/agent"
	"github.com/camgrid/shuttersync/pkg/config"
	"github.com/camgrid/shuttersync/pkg/discovery"
	"github.com/camgrid/shuttersync/pkg/lifecycle"
	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
	"github.com/camgrid/shuttersync/pkg/timesync"
)

const offlineNoticeTimeout = 5 * time.Second

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/shuttersync/node.json", "Path to node config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg agent.NodeConfig

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	nodeLogger, err := lifecycle.CreateComponentLogger("node", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	clock := timesync.NewService(&cfg.Clock, nodeLogger)
	if syncErr := clock.Sync(ctx); syncErr != nil {
		nodeLogger.Warn().Err(syncErr).Msg("Initial clock sync failed, will retry in the background")
	}

	scheduler := timesync.NewScheduler(clock, nodeLogger)

	// Find the master on the LAN when no URL is configured.
	if cfg.MasterURL == "" {
		locator := discovery.NewLocator(cfg.BroadcastAddrs, discovery.DefaultPort, cfg.LocalIP, nodeLogger)

		ip, port, locErr := locator.Locate(ctx)
		if locErr != nil {
			return locErr
		}

		cfg.MasterURL = fmt.Sprintf("http://%s:%d", ip, port)
		nodeLogger.Info().Str("master_url", cfg.MasterURL).Msg("Discovered master")
	}

	client := agent.NewMasterClient(cfg.MasterURL, nodeLogger)

	// A node without an identity registers for one; the allocated id is
	// persisted so restarts keep the same slot.
	if cfg.NodeID == 0 {
		id, regErr := client.Register(ctx, models.RegisterRequest{
			LocalIP:      cfg.LocalIP,
			NodePort:     cfg.NodePort,
			Capabilities: models.DefaultCapabilities(),
		})
		if regErr != nil {
			return regErr
		}

		cfg.NodeID = id
		nodeLogger.Info().Int("node_id", id).Msg("Registered with master")

		if writeErr := config.WriteToFile(*configPath, &cfg); writeErr != nil {
			nodeLogger.Warn().Err(writeErr).Msg("Failed to persist allocated node id")
		}
	}

	camera := agent.NewStubCamera()
	if camErr := camera.Initialize(ctx); camErr != nil {
		return fmt.Errorf("camera initialization failed: %w", camErr)
	}
	defer func() { _ = camera.Close() }()

	server := agent.NewServer(&cfg, camera, clock, scheduler, client, nodeLogger)

	if onlineErr := client.NodeOnline(ctx, models.NodeOnlineRequest{
		NodeID:       cfg.NodeID,
		LocalIP:      cfg.LocalIP,
		NodePort:     cfg.NodePort,
		Capabilities: models.DefaultCapabilities(),
	}); onlineErr != nil {
		nodeLogger.Warn().Err(onlineErr).Msg("Online notice failed, heartbeats will re-establish the session")
	}

	runErr := lifecycle.Run(ctx, &lifecycle.ServerOptions{
		ServiceName: "node",
		Services: []lifecycle.Service{
			timesync.NewResyncLoop(clock, time.Duration(cfg.Clock.SyncInterval), nodeLogger),
			agent.NewHeartbeatLoop(server, client, time.Duration(cfg.HeartbeatInterval), nodeLogger),
			server,
		},
		Logger: nodeLogger,
	})

	// Best effort. The master expires the node by heartbeat timeout anyway.
	offCtx, cancel := context.WithTimeout(context.Background(), offlineNoticeTimeout)
	defer cancel()

	if offErr := client.NodeOffline(offCtx, models.NodeOfflineRequest{
		NodeID:  cfg.NodeID,
		LocalIP: cfg.LocalIP,
	}); offErr != nil {
		nodeLogger.Warn().Err(offErr).Msg("Offline notice failed")
	}

	return runErr
}
