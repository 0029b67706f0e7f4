package restore

import "errors"

var (
	ErrNotFound          = errors.New("restore not found")
	ErrInvalidRequest    = errors.New("invalid restore request")
	ErrRestoreInProgress = errors.New("another restore is in progress")
	ErrRestoreCancelled  = errors.New("restore cancelled")
	ErrNotActive         = errors.New("restore is not active")
	ErrInterrupted       = errors.New("restore interrupted by agent restart")
)
