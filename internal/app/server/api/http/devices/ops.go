package devices

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (h *Handler) touchOp() huma.Operation {
	return huma.Operation{
		OperationID: "devices-touch",
		Method:      http.MethodPost,
		Path:        "/api/v1/devices/touch",
		Summary:     "Регистрация устройства и обновление lastSeen",
		Tags:        []string{"devices"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "devices-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/devices",
		Summary:     "Устройства аккаунта",
		Tags:        []string{"devices"},
		Security:    bearer,
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
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) revokeOp() huma.Operation {
	return huma.Operation{
		OperationID:   "devices-revoke",
		Method:        http.MethodDelete,
		Path:          "/api/v1/devices/{id}",
		Summary:       "Отозвать устройство",
		Description:   "Последующие запросы отозванного устройства получают 410.",
		Tags:          []string{"devices"},
		Security:      bearer,
		DefaultStatus: http.StatusNoContent,
		Middlewares:   h.middleware,
	}
}
