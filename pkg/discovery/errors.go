package discovery

import "errors"

var (
	ErrNoAdvertiseAddr  = errors.New("no advertise address configured")
	ErrNoLocalIP        = errors.New("unable to determine local IP address")
	ErrMasterNotFound   = errors.New("no master answered discovery")
	ErrBadBroadcastAddr = errors.New("invalid broadcast address")
)
