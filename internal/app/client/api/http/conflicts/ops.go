package conflicts

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "conflicts-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/conflicts",
		Summary:     "Конфликты синхронизации",
		Description: "Открытые конфликты первыми, затем от новых к старым.",
		Tags:        []string{"conflicts"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) resolveOp() huma.Operation {
	return huma.Operation{
		OperationID: "conflicts-resolve",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/conflicts/{id}/resolve",
		Summary:     "Разрешить конфликт",
		Description: "Для merge поля, измененные обеими сторонами, передаются в merged_data, иначе 422 и конфликт остается открытым.",
		Tags:        []string{"conflicts"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) resolveAllOp() huma.Operation {
	return huma.Operation{
		OperationID: "conflicts-resolve-all",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/conflicts/resolve-all",
		Summary:     "Разрешить все открытые конфликты",
		Tags:        []string{"conflicts"},
		Middlewares: h.middleware,
	}
}
