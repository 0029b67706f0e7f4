package devices

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "devices-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/devices",
		Summary:     "Устройства аккаунта",
		Description: "Запрашивается у сервера аккаунта. Текущее устройство помечено is_current_device.",
		Tags:        []string{"devices"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) renameOp() huma.Operation {
	return huma.Operation{
		OperationID: "devices-rename",
		Method:      http.MethodPut,
		Path:        "/api/v1/devices/{id}",
		Summary:     "Переименовать устройство",
		Tags:        []string{"devices"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) revokeOp() huma.Operation {
	return huma.Operation{
		OperationID:   "devices-revoke",
		Method:        http.MethodDelete,
		Path:          "/api/v1/devices/{id}",
		Summary:       "Отозвать устройство",
		Description:   "Сервер отклоняет дальнейшие запросы отозванного устройства.",
		Tags:          []string{"devices"},
		DefaultStatus: http.StatusNoContent,
		Middlewares:   h.middleware,
	}
}
