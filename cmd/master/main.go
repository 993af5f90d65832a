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

	"github.com/camgrid/shuttersync/pkg/config"
	"github.com/camgrid/shuttersync/pkg/core"
	"github.com/camgrid/shuttersync/pkg/core/api"
	"github.com/camgrid/shuttersync/pkg/discovery"
	"github.com/camgrid/shuttersync/pkg/dispatch"
	"github.com/camgrid/shuttersync/pkg/lifecycle"
	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/registry"
	"github.com/camgrid/shuttersync/pkg/timesync"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/shuttersync/master.json", "Path to master config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg core.MasterConfig

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

	masterLogger, err := lifecycle.CreateComponentLogger("master", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	clock := timesync.NewService(&cfg.Clock, masterLogger)
	if syncErr := clock.Sync(ctx); syncErr != nil {
		masterLogger.Warn().Err(syncErr).Msg("Initial clock sync failed, capture timestamps may drift until a source responds")
	}

	scheduler := timesync.NewScheduler(clock, masterLogger)

	prober := registry.NewHTTPProber(time.Duration(cfg.Registry.ProbeTimeout), masterLogger)

	reg, err := registry.New(&cfg.Registry, prober, registry.RealClock(), masterLogger)
	if err != nil {
		return err
	}

	sender := dispatch.NewHTTPSender(time.Duration(cfg.SendTimeout))
	dispatcher := dispatch.New(reg, scheduler, sender, masterLogger)
	manager := core.NewManager(reg, dispatcher, masterLogger)

	artifacts, err := api.NewArtifactStore(cfg.StoragePath, masterLogger)
	if err != nil {
		return err
	}

	hub := api.NewStatusHub(manager, masterLogger)

	apiServer := api.NewAPIServer(manager, cfg.ListenPort, masterLogger,
		api.WithArtifactStore(artifacts),
		api.WithStatusHub(hub),
		api.WithDefaultDelay(cfg.DefaultDelay))

	responder, err := discovery.NewResponder(&cfg.Discovery, masterLogger)
	if err != nil {
		return err
	}

	resync := timesync.NewResyncLoop(clock, time.Duration(cfg.Clock.SyncInterval), masterLogger)

	return lifecycle.Run(ctx, &lifecycle.ServerOptions{
		ServiceName: "master",
		Services: []lifecycle.Service{
			registry.NewMonitor(reg),
			resync,
			responder,
			hub,
			apiServer,
		},
		Logger: masterLogger,
	})
}
