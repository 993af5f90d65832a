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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camgrid/shuttersync/pkg/logger"
	"github.com/camgrid/shuttersync/pkg/models"
	"github.com/camgrid/shuttersync/pkg/registry"
	"github.com/camgrid/shuttersync/pkg/timesync"
)

var errSendFailed = errors.New("send failed")

// recordingProber reports readiness per node id from a fixed map.
type recordingProber struct {
	ready map[int]bool
}

func (p *recordingProber) ProbeReady(_ context.Context, device models.Device) bool {
	return p.ready[device.ID]
}

// recordingSender records every dispatched command and can fail per node.
type recordingSender struct {
	mu       sync.Mutex
	commands map[int]models.CaptureRequest
	failIDs  map[int]bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		commands: make(map[int]models.CaptureRequest),
		failIDs:  make(map[int]bool),
	}
}

func (s *recordingSender) SendCapture(_ context.Context, device models.Device, cmd models.CaptureRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands[device.ID] = cmd

	if s.failIDs[device.ID] {
		return errSendFailed
	}

	return nil
}

func newTestDispatcher(t *testing.T, prober registry.Prober, sender CommandSender) (*Dispatcher, *registry.Registry) {
	t.Helper()

	log := logger.NewTestLogger()

	reg, err := registry.New(&registry.Config{}, prober, nil, log)
	require.NoError(t, err)

	clock := timesync.NewService(&timesync.ClockConfig{}, log,
		timesync.WithQuerier(func(string, time.Duration) (time.Duration, error) {
			return 0, nil
		}))
	sched := timesync.NewScheduler(clock, log)

	return New(reg, sched, sender, log), reg
}

func TestTriggerCaptureNoReadyNodes(t *testing.T) {
	prober := &recordingProber{ready: map[int]bool{}}
	sender := newRecordingSender()

	d, reg := newTestDispatcher(t, prober, sender)

	n1 := reg.Register("192.168.1.10", 8084, models.DefaultCapabilities())

	result := d.TriggerCapture(context.Background(), 500*time.Millisecond)

	assert.False(t, result.Success)
	assert.Equal(t, "no ready capture nodes", result.Error)
	assert.Empty(t, result.SessionID)
	assert.Equal(t, map[int]bool{n1: false}, result.ReadyStatus)

	// No command left the dispatcher.
	assert.Empty(t, sender.commands)
}

func TestTriggerCaptureSendsIdenticalCommandToAllReady(t *testing.T) {
	prober := &recordingProber{ready: map[int]bool{1: true, 2: true, 3: false}}
	sender := newRecordingSender()

	d, reg := newTestDispatcher(t, prober, sender)

	n1 := reg.Register("192.168.1.10", 8084, models.DefaultCapabilities())
	n2 := reg.Register("192.168.1.11", 8084, models.DefaultCapabilities())
	n3 := reg.Register("192.168.1.12", 8084, models.DefaultCapabilities())

	result := d.TriggerCapture(context.Background(), 500*time.Millisecond)

	require.True(t, result.Success)
	assert.Equal(t, []int{n1, n2}, result.ReadyNodes)
	assert.Equal(t, map[int]bool{n1: true, n2: true}, result.SendResults)
	assert.Equal(t, map[int]bool{n1: true, n2: true, n3: false}, result.ReadyStatus)

	// Every ready node got the same instant and session.
	require.Len(t, sender.commands, 2)
	assert.Equal(t, sender.commands[n1], sender.commands[n2])
	assert.Equal(t, result.SessionID, sender.commands[n1].SessionID)
	assert.Equal(t, result.CaptureTime, sender.commands[n1].CaptureTime)
	assert.InDelta(t, 0.5, sender.commands[n1].DelaySeconds, 1e-9)

	// The not-ready node was left out.
	_, sent := sender.commands[n3]
	assert.False(t, sent)

	node, _ := reg.Device(n1)
	assert.Equal(t, models.NodeCapturing, node.State)
}

func TestTriggerCaptureSendFailureIsIsolated(t *testing.T) {
	prober := &recordingProber{ready: map[int]bool{1: true, 2: true}}
	sender := newRecordingSender()
	sender.failIDs[2] = true

	d, reg := newTestDispatcher(t, prober, sender)

	n1 := reg.Register("192.168.1.10", 8084, models.DefaultCapabilities())
	n2 := reg.Register("192.168.1.11", 8084, models.DefaultCapabilities())

	result := d.TriggerCapture(context.Background(), 0)

	// A per-node send failure does not fail the capture.
	require.True(t, result.Success)
	assert.Equal(t, map[int]bool{n1: true, n2: false}, result.SendResults)

	node, _ := reg.Device(n1)
	assert.Equal(t, models.NodeCapturing, node.State)

	node, _ = reg.Device(n2)
	assert.Equal(t, models.NodeError, node.State)
}

func TestTriggerCaptureSnapshotExcludesOffline(t *testing.T) {
	prober := &recordingProber{ready: map[int]bool{1: true, 2: true}}
	sender := newRecordingSender()

	d, reg := newTestDispatcher(t, prober, sender)

	n1 := reg.Register("192.168.1.10", 8084, models.DefaultCapabilities())
	n2 := reg.Register("192.168.1.11", 8084, models.DefaultCapabilities())
	require.NoError(t, reg.MarkOffline(n2))

	result := d.TriggerCapture(context.Background(), 0)

	require.True(t, result.Success)
	assert.Equal(t, []int{n1}, result.ReadyNodes)
	assert.Equal(t, map[int]bool{n1: true, n2: false}, result.ReadyStatus)
}
