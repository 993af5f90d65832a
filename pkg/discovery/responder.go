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

// Package discovery lets capture nodes find the master over UDP broadcast.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
)

const (
	// DefaultPort is the well-known discovery port.
	DefaultPort = 8085

	readBufferSize = 1024
	pollDeadline   = time.Second
)

// ResponderConfig tells the responder where to listen and what address to
// advertise back to nodes.
type ResponderConfig struct {
	Port          int    `json:"port"`
	AdvertiseIP   string `json:"advertise_ip"`
	AdvertisePort int    `json:"advertise_port"`
}

// Validate applies defaults for unset fields.
func (c *ResponderConfig) Validate() error {
	if c.Port <= 0 {
		c.Port = DefaultPort
	}

	if c.AdvertiseIP == "" {
		return ErrNoAdvertiseAddr
	}

	return nil
}

// Responder passively answers discovery broadcasts with the master's
// address. It runs independently of registration and heartbeat traffic.
type Responder struct {
	config ResponderConfig
	logger logger.Logger
	conn   net.PacketConn
	done   chan struct{}
}

// NewResponder creates a discovery responder.
func NewResponder(cfg *ResponderConfig, log logger.Logger) (*Responder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Responder{
		config: *cfg,
		logger: log,
		done:   make(chan struct{}),
	}, nil
}

// Start binds the discovery port and answers requests until the context is
// cancelled. A bind failure is fatal to startup.
func (r *Responder) Start(ctx context.Context) error {
	conn, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", r.config.Port))
	if err != nil {
		return fmt.Errorf("failed to bind discovery port %d: %w", r.config.Port, err)
	}

	r.conn = conn

	r.logger.Info().Int("port", r.config.Port).Msg("Discovery responder listening")

	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(pollDeadline)); err != nil {
			return err
		}

		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}

			select {
			case <-r.done:
				return nil
			default:
			}

			r.logger.Warn().Err(err).Msg("Discovery read failed")

			continue
		}

		r.handleRequest(buf[:n], addr)
	}
}

// Stop closes the discovery socket.
func (r *Responder) Stop(_ context.Context) error {
	close(r.done)

	if r.conn != nil {
		return r.conn.Close()
	}

	return nil
}

func (r *Responder) handleRequest(data []byte, addr net.Addr) {
	var req models.DiscoverRequest
	if err := json.Unmarshal(data, &req); err != nil {
		r.logger.Debug().Err(err).Str("from", addr.String()).Msg("Malformed discovery request")
		return
	}

	if req.Type != models.DiscoverTypeRequest {
		return
	}

	resp := models.DiscoverResponse{
		Type:       models.DiscoverTypeResponse,
		MasterIP:   r.config.AdvertiseIP,
		MasterPort: r.config.AdvertisePort,
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}

	if _, err := r.conn.WriteTo(payload, addr); err != nil {
		r.logger.Warn().Err(err).Str("to", addr.String()).Msg("Discovery reply failed")
		return
	}

	r.logger.Info().Str("node", addr.String()).Msg("Answered discovery request")
}
