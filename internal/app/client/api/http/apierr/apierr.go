// Package apierr переводит ошибки агента в HTTP-ответы локального API.
package apierr

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"recipesync/internal/domain/backup"
	"recipesync/internal/domain/conflict"
	"recipesync/internal/domain/device"
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/oplog"
	"recipesync/internal/domain/restore"
	"recipesync/internal/domain/settings"
	syncdomain "recipesync/internal/domain/sync"
)

// From возвращает ошибку со статусом для huma
func From(err error) error {
	switch {
	case err == nil:
		return nil

	case errors.Is(err, oplog.ErrNotFound),
		errors.Is(err, conflict.ErrNotFound),
		errors.Is(err, syncdomain.ErrUnknownConflict),
		errors.Is(err, backup.ErrNotFound),
		errors.Is(err, restore.ErrNotFound),
		errors.Is(err, device.ErrDeviceNotFound):
		return huma.Error404NotFound(err.Error())

	case errors.Is(err, syncdomain.ErrSyncInProgress),
		errors.Is(err, syncdomain.ErrPaused),
		errors.Is(err, oplog.ErrInFlight),
		errors.Is(err, oplog.ErrInvalidTransition),
		errors.Is(err, conflict.ErrAlreadyResolved),
		errors.Is(err, restore.ErrRestoreInProgress),
		errors.Is(err, restore.ErrNotActive),
		errors.Is(err, backup.ErrNotAvailable):
		return huma.Error409Conflict(err.Error())

	case errors.Is(err, device.ErrDeviceRevoked):
		return huma.NewError(http.StatusGone, err.Error())

	case errors.Is(err, syncdomain.ErrOffline),
		errors.Is(err, syncdomain.ErrBackoff),
		errors.Is(err, syncdomain.ErrNetwork),
		errors.Is(err, syncdomain.ErrServer):
		return huma.Error503ServiceUnavailable(err.Error())

	case errors.Is(err, syncdomain.ErrMeteredNetwork):
		return huma.NewError(http.StatusPreconditionFailed, err.Error())

	case errors.Is(err, syncdomain.ErrNotConfirmed),
		errors.Is(err, syncdomain.ErrValidation),
		errors.Is(err, oplog.ErrInvalidOperation),
		errors.Is(err, conflict.ErrInvalidPolicy),
		errors.Is(err, conflict.ErrIrreconcilable),
		errors.Is(err, settings.ErrInvalidSettings),
		errors.Is(err, backup.ErrInvalidRequest),
		errors.Is(err, restore.ErrInvalidRequest),
		errors.Is(err, entity.ErrInvalidType),
		errors.Is(err, device.ErrInvalidDevice):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError("internal error")
}
