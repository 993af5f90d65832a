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

const defaultReplyWait = 3 * time.Second

// Locator broadcasts discovery requests so a node can find the master
// without knowing its address.
type Locator struct {
	broadcastAddrs []string
	port           int
	replyWait      time.Duration
	localIP        string
	logger         logger.Logger
}

// NewLocator creates a locator. Empty broadcastAddrs falls back to the
// limited broadcast address.
func NewLocator(broadcastAddrs []string, port int, localIP string, log logger.Logger) *Locator {
	if len(broadcastAddrs) == 0 {
		broadcastAddrs = []string{"255.255.255.255"}
	}

	if port <= 0 {
		port = DefaultPort
	}

	return &Locator{
		broadcastAddrs: broadcastAddrs,
		port:           port,
		replyWait:      defaultReplyWait,
		localIP:        localIP,
		logger:         log,
	}
}

// Locate broadcasts to each candidate address in turn and returns the first
// master that answers.
func (l *Locator) Locate(ctx context.Context) (ip string, port int, err error) {
	req := models.DiscoverRequest{
		Type:   models.DiscoverTypeRequest,
		NodeIP: l.localIP,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", 0, err
	}

	for _, addr := range l.broadcastAddrs {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}

		ip, port, err := l.tryBroadcast(payload, addr)
		if err != nil {
			l.logger.Debug().Err(err).Str("broadcast", addr).Msg("Discovery attempt failed")
			continue
		}

		l.logger.Info().Str("master_ip", ip).Int("master_port", port).Msg("Master located")

		return ip, port, nil
	}

	return "", 0, ErrMasterNotFound
}

func (l *Locator) tryBroadcast(payload []byte, broadcastAddr string) (string, int, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = conn.Close() }()

	dst := &net.UDPAddr{
		IP:   net.ParseIP(broadcastAddr),
		Port: l.port,
	}

	if dst.IP == nil {
		return "", 0, fmt.Errorf("%w: %s", ErrBadBroadcastAddr, broadcastAddr)
	}

	if _, err := conn.WriteTo(payload, dst); err != nil {
		return "", 0, err
	}

	if err := conn.SetReadDeadline(time.Now().Add(l.replyWait)); err != nil {
		return "", 0, err
	}

	buf := make([]byte, readBufferSize)

	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return "", 0, err
		}

		var resp models.DiscoverResponse
		if err := json.Unmarshal(buf[:n], &resp); err != nil {
			continue
		}

		if resp.Type != models.DiscoverTypeResponse {
			continue
		}

		return resp.MasterIP, resp.MasterPort, nil
	}
}
