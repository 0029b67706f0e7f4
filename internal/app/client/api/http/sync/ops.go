package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) statusOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/status",
		Summary:     "Состояние синхронизации",
		Description: "Опрос. Для подписки на изменения есть /api/v1/sync/status/stream.",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) syncOp() huma.Operation {
	return huma.Operation{
		OperationID:   "sync-start",
		Method:        http.MethodPost,
		Path:          "/api/v1/sync",
		Summary:       "Запустить цикл синхронизации",
		Tags:          []string{"sync"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) pauseOp() huma.Operation {
	return huma.Operation{
		OperationID:   "sync-pause",
		Method:        http.MethodPost,
		Path:          "/api/v1/sync/pause",
		Summary:       "Приостановить синхронизацию",
		Description:   "Текущий пакет операций завершается, следующий не начинается.",
		Tags:          []string{"sync"},
		DefaultStatus: http.StatusNoContent,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) resumeOp() huma.Operation {
	return huma.Operation{
		OperationID:   "sync-resume",
		Method:        http.MethodPost,
		Path:          "/api/v1/sync/resume",
		Summary:       "Возобновить синхронизацию",
		Tags:          []string{"sync"},
		DefaultStatus: http.StatusNoContent,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) entityOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-entity",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/entity/{type}/{id}",
		Summary:     "Принудительно синхронизировать одну сущность",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) resetOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-reset",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/reset",
		Summary:     "Сбросить локальное состояние",
		Description: "Очищает очередь операций и конфликты и заново загружает сущности с сервера. Требует confirm=true.",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}
