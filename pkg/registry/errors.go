package registry

import "errors"

var (
	ErrUnknownNode     = errors.New("unknown node")
	ErrNodeNotOnline   = errors.New("node is not online")
	ErrTimeoutTooTight = errors.New("heartbeat timeout must exceed monitor interval")
)
