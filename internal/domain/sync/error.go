package sync

import (
	"context"
	"errors"
	"net"

	"recipesync/internal/domain/device"
	"recipesync/internal/domain/entity"
)

var (
	ErrSyncInProgress  = errors.New("sync already in progress")
	ErrPaused          = errors.New("sync is paused")
	ErrOffline         = errors.New("server is unreachable")
	ErrBackoff         = errors.New("sync is backed off after server errors")
	ErrMeteredNetwork  = errors.New("sync skipped on metered network")
	ErrNotConfirmed    = errors.New("reset must be confirmed")
	ErrNetwork         = errors.New("network error")
	ErrServer          = errors.New("server error")
	ErrValidation      = errors.New("validation error")
	ErrUnknownConflict = errors.New("conflict not found")
)

// Kind категория ошибки синхронизации
type Kind string

const (
	KindNone       Kind = ""
	KindNetwork    Kind = "network"
	KindConflict   Kind = "conflict"
	KindValidation Kind = "validation"
	KindServer     Kind = "server"
	KindRevoked    Kind = "revoked"
)

// Classify относит ошибку шлюза к одной из категорий.
// Неизвестные ошибки считаются сетевыми: их безопасно повторить.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var stale *entity.StaleError
	var netErr net.Error
	switch {
	case errors.Is(err, device.ErrDeviceRevoked):
		return KindRevoked
	case errors.As(err, &stale), errors.Is(err, entity.ErrStale):
		return KindConflict
	case errors.Is(err, ErrValidation),
		errors.Is(err, entity.ErrInvalidOp),
		errors.Is(err, entity.ErrInvalidType),
		errors.Is(err, entity.ErrNotFound):
		return KindValidation
	case errors.Is(err, ErrServer):
		return KindServer
	case errors.Is(err, ErrNetwork),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return KindNetwork
	}
	return KindNetwork
}
