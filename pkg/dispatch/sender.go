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

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/camgrid/shuttersync/pkg/models"
)

const defaultSendTimeout = 10 * time.Second

// HTTPSender posts capture commands to a node's /capture endpoint.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender creates a sender with a per-send timeout.
func NewHTTPSender(timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	return &HTTPSender{
		client: &http.Client{Timeout: timeout},
	}
}

// SendCapture implements CommandSender.
func (s *HTTPSender) SendCapture(ctx context.Context, device models.Device, cmd models.CaptureRequest) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s:%d/capture", device.IP, device.Port)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: node %d returned %d", ErrCommandRejected, device.ID, resp.StatusCode)
	}

	var ack models.CaptureResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return err
	}

	if !ack.Success {
		return fmt.Errorf("%w: %s", ErrCommandRejected, ack.Error)
	}

	return nil
}
