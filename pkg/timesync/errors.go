package timesync

import "errors"

var (
	ErrAllSourcesFailed = errors.New("all time sources failed")
)
