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

// Package lifecycle manages service startup, shutdown and signal handling.
package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/camgrid/shuttersync/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// Service is a long-lived component with explicit start and stop.
// Start blocks until the context is cancelled or the service fails.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ServerOptions bundles the services a process runs and how it logs.
type ServerOptions struct {
	ServiceName     string
	Services        []Service
	ShutdownTimeout time.Duration
	Logger          logger.Logger
}

// Run starts every service, then blocks until SIGINT/SIGTERM or until a
// service fails. All services are stopped before Run returns.
func Run(ctx context.Context, opts *ServerOptions) error {
	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(opts.Services))

	var wg sync.WaitGroup

	for _, svc := range opts.Services {
		wg.Add(1)

		go func(s Service) {
			defer wg.Done()

			if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}(svc)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Str("service", opts.ServiceName).Msg("Shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Str("service", opts.ServiceName).Msg("Service failed")
		runErr = err
	}

	cancel()

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), timeout)
	defer stopCancel()

	for _, svc := range opts.Services {
		if err := svc.Stop(stopCtx); err != nil {
			log.Warn().Err(err).Msg("Error stopping service")
		}
	}

	wg.Wait()

	return runErr
}

// CreateComponentLogger creates a logger tagged with a component name.
func CreateComponentLogger(component string, config *logger.Config) (logger.Logger, error) {
	base, err := logger.New(config)
	if err != nil {
		return nil, err
	}

	return &componentLogger{logger: base.WithComponent(component)}, nil
}
