package conflict

import "errors"

var (
	ErrNotFound        = errors.New("conflict not found")
	ErrAlreadyResolved = errors.New("conflict already resolved")
	ErrInvalidPolicy   = errors.New("invalid resolution policy")
	// ErrIrreconcilable поля изменены с обеих сторон и не переданы в mergedData
	ErrIrreconcilable = errors.New("conflict fields must be resolved manually")
)
