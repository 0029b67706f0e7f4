package oplog

import (
	"errors"
)

var (
	ErrNotFound          = errors.New("operation not found")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrInvalidTransition = errors.New("invalid operation status transition")
	ErrInFlight          = errors.New("operation is being synced")
)

// PermanentError ошибка, после которой операция не повторяется (валидация, отзыв устройства)
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent помечает ошибку как неповторяемую
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func isPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p) || errors.Is(err, ErrInvalidOperation)
}
