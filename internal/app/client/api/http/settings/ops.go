package settings

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) getOp() huma.Operation {
	return huma.Operation{
		OperationID: "settings-get",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/settings",
		Summary:     "Настройки синхронизации",
		Tags:        []string{"settings"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) updateOp() huma.Operation {
	return huma.Operation{
		OperationID: "settings-update",
		Method:      http.MethodPut,
		Path:        "/api/v1/sync/settings",
		Summary:     "Заменить настройки синхронизации",
		Description: "Настройки заменяются целиком. Новый интервал применяется к следующему таймеру.",
		Tags:        []string{"settings"},
		Middlewares: h.middleware,
	}
}
