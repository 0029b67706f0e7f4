package entity

import "errors"

var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidType   = errors.New("invalid entity type")
	ErrInvalidOp     = errors.New("invalid operation")
	ErrStale         = errors.New("entity changed on server since base timestamp")
	ErrDeviceMissing = errors.New("device id is required")
)
