package device

import "errors"

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceRevoked  = errors.New("device revoked")
	ErrInvalidDevice  = errors.New("invalid device")
)
