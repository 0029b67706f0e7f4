package backup

import "errors"

var (
	ErrNotFound       = errors.New("backup not found")
	ErrInvalidRequest = errors.New("invalid backup request")
	ErrNotAvailable   = errors.New("backup artifact is not available")
	ErrCorruptBackup  = errors.New("backup artifact is corrupt")
	ErrNoIdentity     = errors.New("backup is encrypted and no identity is configured")
	ErrArtifactAbsent = errors.New("artifact not found in vault")
	ErrInterrupted    = errors.New("backup interrupted by agent restart")
)
