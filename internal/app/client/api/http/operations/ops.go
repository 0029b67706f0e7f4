package operations

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "operations-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/operations",
		Summary:     "Журнал операций",
		Description: "Операции в порядке отправки: по времени постановки, внутри сущности по seq.",
		Tags:        []string{"operations"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) enqueueOp() huma.Operation {
	return huma.Operation{
		OperationID:   "operations-enqueue",
		Method:        http.MethodPost,
		Path:          "/api/v1/sync/operations",
		Summary:       "Поставить локальную мутацию в очередь",
		Tags:          []string{"operations"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) retryOp() huma.Operation {
	return huma.Operation{
		OperationID: "operations-retry",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/operations/{id}/retry",
		Summary:     "Повторить неудачную операцию",
		Tags:        []string{"operations"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) cancelOp() huma.Operation {
	return huma.Operation{
		OperationID:   "operations-cancel",
		Method:        http.MethodPost,
		Path:          "/api/v1/sync/operations/{id}/cancel",
		Summary:       "Отменить неотправленную операцию",
		Tags:          []string{"operations"},
		DefaultStatus: http.StatusNoContent,
		Middlewares:   h.middleware,
	}
}
