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
	"context"
	"os"
	"path/filepath"
	"sync"
)

// Camera abstracts the capture hardware. Real sensor drivers live outside
// this module; StubCamera stands in for development and tests.
type Camera interface {
	Initialize(ctx context.Context) error
	Capture(ctx context.Context, path string) error
	Ready() bool
	Close() error
}

// StubCamera writes placeholder JPEG files instead of driving a sensor.
type StubCamera struct {
	mu    sync.RWMutex
	ready bool
}

// NewStubCamera creates an uninitialized stub camera.
func NewStubCamera() *StubCamera {
	return &StubCamera{}
}

// Initialize marks the camera ready.
func (c *StubCamera) Initialize(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ready = true

	return nil
}

// jpegStub is a minimal JPEG marker pair so artifacts look like images.
var jpegStub = []byte{0xFF, 0xD8, 0xFF, 0xD9}

// Capture writes a placeholder artifact to path.
func (c *StubCamera) Capture(_ context.Context, path string) error {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()

	if !ready {
		return ErrCameraNotReady
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, jpegStub, 0o644)
}

// Ready reports whether Initialize has succeeded.
func (c *StubCamera) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.ready
}

// Close releases the camera.
func (c *StubCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ready = false

	return nil
}
