package agent

import "errors"

var (
	ErrRegistrationFailed = errors.New("registration rejected by master")
	ErrRequestFailed      = errors.New("request rejected by master")
	ErrCameraNotReady     = errors.New("camera not ready")
)
