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

// Package timesync estimates the local clock's offset from NTP time and
// schedules actions at shared synchronized instants.
package timesync

import (
	"context"
	"sync"
	"time"

	"github.com/beevik/ntp"

	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
)

const (
	defaultQueryTimeout = 5 * time.Second
	defaultMaxAge       = 5 * time.Minute
	defaultSyncInterval = 5 * time.Minute
)

func defaultServers() []string {
	return []string{"pool.ntp.org", "time.nist.gov", "time.google.com"}
}

// ClockConfig configures the clock sync service.
type ClockConfig struct {
	Servers      []string        `json:"servers"`
	QueryTimeout models.Duration `json:"query_timeout"`
	MaxAge       models.Duration `json:"max_age"`
	SyncInterval models.Duration `json:"sync_interval"`
}

// Validate applies defaults for unset fields.
func (c *ClockConfig) Validate() error {
	if len(c.Servers) == 0 {
		c.Servers = defaultServers()
	}

	if c.QueryTimeout <= 0 {
		c.QueryTimeout = models.Duration(defaultQueryTimeout)
	}

	if c.MaxAge <= 0 {
		c.MaxAge = models.Duration(defaultMaxAge)
	}

	if c.SyncInterval <= 0 {
		c.SyncInterval = models.Duration(defaultSyncInterval)
	}

	return nil
}

// QueryFunc returns the estimated clock offset from one time source.
type QueryFunc func(server string, timeout time.Duration) (time.Duration, error)

// Service holds this process's clock offset estimate. Each process owns
// exactly one instance; it is injected into whatever needs synchronized time.
type Service struct {
	servers      []string
	queryTimeout time.Duration
	maxAge       time.Duration
	syncInterval time.Duration
	logger       logger.Logger

	query QueryFunc
	now   func() time.Time

	mu       sync.RWMutex
	offset   time.Duration
	lastSync time.Time
}

// NewService creates a clock sync service. The config is validated first so
// a zero config yields the default source list and ages.
func NewService(cfg *ClockConfig, log logger.Logger, options ...func(*Service)) *Service {
	_ = cfg.Validate()

	s := &Service{
		servers:      cfg.Servers,
		queryTimeout: time.Duration(cfg.QueryTimeout),
		maxAge:       time.Duration(cfg.MaxAge),
		syncInterval: time.Duration(cfg.SyncInterval),
		logger:       log,
		query:        ntpQuery,
		now:          time.Now,
	}

	for _, o := range options {
		o(s)
	}

	return s
}

// WithQuerier replaces the NTP querier, mainly for tests.
func WithQuerier(q QueryFunc) func(*Service) {
	return func(s *Service) {
		s.query = q
	}
}

func ntpQuery(server string, timeout time.Duration) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, err
	}

	if err := resp.Validate(); err != nil {
		return 0, err
	}

	return resp.ClockOffset, nil
}

// Sync queries the configured sources in priority order and records the
// offset from the first one that answers. On total failure the previous
// estimate is left in place; callers degrade to local time.
func (s *Service) Sync(ctx context.Context) error {
	for _, server := range s.servers {
		if err := ctx.Err(); err != nil {
			return err
		}

		offset, err := s.query(server, s.queryTimeout)
		if err != nil {
			s.logger.Warn().Err(err).Str("server", server).Msg("Time source query failed")
			continue
		}

		s.mu.Lock()
		s.offset = offset
		s.lastSync = s.now()
		s.mu.Unlock()

		s.logger.Info().
			Str("server", server).
			Dur("offset", offset).
			Msg("Clock synchronized")

		return nil
	}

	s.logger.Error().Msg("All time sources failed")

	return ErrAllSourcesFailed
}

// SynchronizedTime returns local time adjusted by the current offset
// estimate. With no successful sync the offset is zero, so this degrades to
// plain local time.
func (s *Service) SynchronizedTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.now().Add(s.offset)
}

// Offset returns the current offset estimate.
func (s *Service) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.offset
}

// IsSynchronized reports whether the estimate is fresh per the configured
// max age.
func (s *Service) IsSynchronized() bool {
	return s.SynchronizedWithin(s.maxAge)
}

// SynchronizedWithin reports whether a successful sync happened within
// maxAge. It is false until the first successful sync.
func (s *Service) SynchronizedWithin(maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastSync.IsZero() {
		return false
	}

	return s.now().Sub(s.lastSync) < maxAge
}

// FormatTime renders a timestamp with millisecond precision for logs.
func (s *Service) FormatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.000")
}
