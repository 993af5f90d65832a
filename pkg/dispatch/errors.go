package dispatch

import "errors"

var (
	ErrCommandRejected = errors.New("capture command rejected")
)
