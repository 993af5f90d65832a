package models

import "time"

// CaptureResult aggregates one coordinated capture attempt. Per-node send
// outcomes are reported individually so partial failures stay visible.
type CaptureResult struct {
	Success       bool         `json:"success"`
	Error         string       `json:"error,omitempty"`
	SessionID     string       `json:"session_id,omitempty"`
	CaptureTime   float64      `json:"capture_time,omitempty"`
	ReadyNodes    []int        `json:"ready_nodes,omitempty"`
	SendResults   map[int]bool `json:"send_results,omitempty"`
	ReadyStatus   map[int]bool `json:"ready_status,omitempty"`
	CaptureTimeAt time.Time    `json:"-"`
}

// EpochSeconds converts a time to fractional Unix seconds for the wire.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// TimeFromEpoch converts fractional Unix seconds back to a time.
func TimeFromEpoch(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second)))
}
