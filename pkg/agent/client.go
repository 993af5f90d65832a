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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
)

const (
	registerTimeout  = 10 * time.Second
	offlineTimeout   = 5 * time.Second
	heartbeatTimeout = 5 * time.Second
	uploadTimeout    = 30 * time.Second
)

// MasterClient talks to the master's registry API on behalf of a node.
type MasterClient struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

// NewMasterClient creates a client for the given master base URL,
// e.g. http://192.168.1.100:8080.
func NewMasterClient(baseURL string, log logger.Logger) *MasterClient {
	return &MasterClient{
		baseURL: baseURL,
		client:  &http.Client{},
		logger:  log,
	}
}

// BaseURL returns the master address this client talks to.
func (c *MasterClient) BaseURL() string {
	return c.baseURL
}

// Register asks the master to allocate a node id.
func (c *MasterClient) Register(ctx context.Context, req models.RegisterRequest) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()

	var resp models.RegisterResponse
	if err := c.postJSON(ctx, "/api/register", req, &resp); err != nil {
		return 0, err
	}

	if !resp.Success {
		return 0, fmt.Errorf("%w: %s", ErrRegistrationFailed, resp.Error)
	}

	return resp.NodeID, nil
}

// NodeOnline announces this node with its known id.
func (c *MasterClient) NodeOnline(ctx context.Context, req models.NodeOnlineRequest) error {
	ctx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()

	var resp models.StatusResponse
	if err := c.postJSON(ctx, "/api/node_online", req, &resp); err != nil {
		return err
	}

	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error)
	}

	return nil
}

// NodeOffline sends a best-effort goodbye on shutdown.
func (c *MasterClient) NodeOffline(ctx context.Context, req models.NodeOfflineRequest) error {
	ctx, cancel := context.WithTimeout(ctx, offlineTimeout)
	defer cancel()

	var resp models.StatusResponse

	return c.postJSON(ctx, "/api/node_offline", req, &resp)
}

// Heartbeat reports liveness and readiness.
func (c *MasterClient) Heartbeat(ctx context.Context, req models.HeartbeatRequest) error {
	ctx, cancel := context.WithTimeout(ctx, heartbeatTimeout)
	defer cancel()

	var resp models.HeartbeatResponse
	if err := c.postJSON(ctx, "/api/heartbeat", req, &resp); err != nil {
		return err
	}

	if !resp.Success {
		return ErrRequestFailed
	}

	return nil
}

// Upload pushes a capture artifact to the master as multipart form data.
// Callers treat failures as best-effort: logged, not retried.
func (c *MasterClient) Upload(ctx context.Context, path, filename string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return err
	}

	if _, err := io.Copy(part, f); err != nil {
		return err
	}

	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var ack models.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return err
	}

	if !ack.Success {
		return fmt.Errorf("%w: %s", ErrRequestFailed, ack.Error)
	}

	return nil
}

func (c *MasterClient) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrRequestFailed, path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
