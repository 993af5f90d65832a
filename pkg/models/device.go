package models

import (
	"time"
)

// NodeState is the lifecycle state of a capture node.
type NodeState string

const (
	NodeOffline NodeState = "offline"
	NodeOnline  NodeState = "online"

	// NodeReady is reserved for a future probe-confirmed state; nothing
	// assigns it yet, but consumers treat it as serviceable.
	NodeReady NodeState = "ready"

	// NodeCapturing and NodeError are transient dispatch outcomes. The
	// node's next heartbeat returns it to online.
	NodeCapturing NodeState = "capturing"
	NodeError     NodeState = "error"
)

// Capabilities advertises what a capture node can do.
type Capabilities struct {
	Camera  bool `json:"camera"`
	Preview bool `json:"preview"`
	Capture bool `json:"capture"`
}

// DefaultCapabilities is what a node advertises when registration omits them.
func DefaultCapabilities() Capabilities {
	return Capabilities{Camera: true, Preview: true, Capture: true}
}

// Device represents one capture node tracked by the fleet registry.
// The registry is the sole owner of these records; nodes are marked offline
// rather than deleted, so an id is never reassigned while tracked.
type Device struct {
	ID            int          `json:"node_id"`
	IP            string       `json:"ip_address"`
	Port          int          `json:"node_port"`
	State         NodeState    `json:"status"`
	LastHeartbeat time.Time    `json:"last_heartbeat"`
	IsReady       bool         `json:"is_ready"`
	Capabilities  Capabilities `json:"capabilities"`
}
