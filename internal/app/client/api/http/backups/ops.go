package backups

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "backups-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/backups",
		Summary:     "Резервные копии",
		Description: "Новые первыми. Просроченные копии остаются в списке со статусом expired.",
		Tags:        []string{"backups"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) createOp() huma.Operation {
	return huma.Operation{
		OperationID:   "backups-create",
		Method:        http.MethodPost,
		Path:          "/api/v1/backups",
		Summary:       "Создать резервную копию",
		Description:   "Копия снимается с офлайн-кэша. Неудачная копия сохраняется со статусом failed и текстом ошибки.",
		Tags:          []string{"backups"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) getOp() huma.Operation {
	return huma.Operation{
		OperationID: "backups-get",
		Method:      http.MethodGet,
		Path:        "/api/v1/backups/{id}",
		Summary:     "Сведения о резервной копии",
		Tags:        []string{"backups"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) retryOp() huma.Operation {
	return huma.Operation{
		OperationID: "backups-retry",
		Method:      http.MethodPost,
		Path:        "/api/v1/backups/{id}/retry",
		Summary:     "Повторить неудачную копию",
		Tags:        []string{"backups"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) downloadOp() huma.Operation {
	return huma.Operation{
		OperationID: "backups-download",
		Method:      http.MethodGet,
		Path:        "/api/v1/backups/{id}/download",
		Summary:     "Скачать артефакт",
		Tags:        []string{"backups"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Артефакт резервной копии",
				Content: map[string]*huma.MediaType{
					"application/octet-stream": {},
				},
			},
		},
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteOp() huma.Operation {
	return huma.Operation{
		OperationID:   "backups-delete",
		Method:        http.MethodDelete,
		Path:          "/api/v1/backups/{id}",
		Summary:       "Удалить резервную копию",
		Tags:          []string{"backups"},
		DefaultStatus: http.StatusNoContent,
		Middlewares:   h.middleware,
	}
}
