// Package apierr переводит ошибки домена в HTTP-ответы сервера синхронизации.
package apierr

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"recipesync/internal/domain/device"
	"recipesync/internal/domain/entity"
)

// StaleError ответ 409: сервер изменил сущность после базовой версии операции.
// Current позволяет устройству разобрать конфликт без дополнительного запроса.
type StaleError struct {
	Status  int            `json:"status"`
	Title   string         `json:"title"`
	Detail  string         `json:"detail"`
	Current *entity.Entity `json:"current,omitempty"`
}

func (e *StaleError) Error() string  { return e.Detail }
func (e *StaleError) GetStatus() int { return e.Status }

// From возвращает ошибку со статусом для huma. Неизвестные ошибки
// становятся 500 без подробностей.
func From(err error) error {
	var stale *entity.StaleError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &stale):
		return &StaleError{
			Status:  http.StatusConflict,
			Title:   http.StatusText(http.StatusConflict),
			Detail:  entity.ErrStale.Error(),
			Current: stale.Current,
		}
	case errors.Is(err, device.ErrDeviceRevoked):
		return huma.NewError(http.StatusGone, device.ErrDeviceRevoked.Error())
	case errors.Is(err, entity.ErrNotFound), errors.Is(err, device.ErrDeviceNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, entity.ErrInvalidType),
		errors.Is(err, entity.ErrInvalidOp),
		errors.Is(err, entity.ErrDeviceMissing),
		errors.Is(err, device.ErrInvalidDevice):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError("internal error")
}
