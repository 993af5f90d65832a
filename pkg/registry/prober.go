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

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
)

// HTTPProber probes a node's /ready endpoint over HTTP.
type HTTPProber struct {
	client *http.Client
	logger logger.Logger
}

// NewHTTPProber creates a readiness prober with a per-probe timeout.
func NewHTTPProber(timeout time.Duration, log logger.Logger) *HTTPProber {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	return &HTTPProber{
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

// ProbeReady implements Prober. Any failure, non-200, or timeout counts as
// not ready.
func (p *HTTPProber) ProbeReady(ctx context.Context, device models.Device) bool {
	url := fmt.Sprintf("http://%s:%d/ready", device.IP, device.Port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug().Err(err).Int("node_id", device.ID).Msg("Readiness probe failed")
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var ready models.ReadyResponse
	if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
		p.logger.Debug().Err(err).Int("node_id", device.ID).Msg("Malformed readiness response")
		return false
	}

	return ready.Ready
}

// CheckAllReady actively probes every online node concurrently and returns
// the per-node readiness map. Offline nodes are reported not ready without
// being probed. Each node's stored readiness flag is refreshed from the probe.
func (r *Registry) CheckAllReady(ctx context.Context) map[int]bool {
	nodes := r.Devices()

	status := make(map[int]bool, len(nodes))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, node := range nodes {
		if node.State == models.NodeOffline {
			status[node.ID] = false
			r.setReady(node.ID, false)

			continue
		}

		wg.Add(1)

		go func(device models.Device) {
			defer wg.Done()

			ready := r.prober.ProbeReady(ctx, device)

			mu.Lock()
			status[device.ID] = ready
			mu.Unlock()

			r.setReady(device.ID, ready)
		}(node)
	}

	wg.Wait()

	return status
}

func (r *Registry) setReady(id int, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if node, ok := r.nodes[id]; ok {
		node.IsReady = ready
	}
}
