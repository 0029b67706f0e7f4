package restores

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) startOp() huma.Operation {
	return huma.Operation{
		OperationID:   "restores-start",
		Method:        http.MethodPost,
		Path:          "/api/v1/restores",
		Summary:       "Восстановить из резервной копии",
		Description:   "Восстановление выполняется в фоне, синхронизация на это время приостанавливается. Ход виден через GET /api/v1/restores/{id}.",
		Tags:          []string{"restores"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "restores-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/restores",
		Summary:     "История восстановлений",
		Tags:        []string{"restores"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) getOp() huma.Operation {
	return huma.Operation{
		OperationID: "restores-get",
		Method:      http.MethodGet,
		Path:        "/api/v1/restores/{id}",
		Summary:     "Ход и манифест восстановления",
		Tags:        []string{"restores"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) cancelOp() huma.Operation {
	return huma.Operation{
		OperationID:   "restores-cancel",
		Method:        http.MethodPost,
		Path:          "/api/v1/restores/{id}/cancel",
		Summary:       "Отменить восстановление",
		Description:   "Отмена срабатывает на границе сущности. Уже примененные сущности сохраняются.",
		Tags:          []string{"restores"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   h.middleware,
	}
}
