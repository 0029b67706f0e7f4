package entities

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (h *Handler) getOp() huma.Operation {
	return huma.Operation{
		OperationID: "entities-get",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities/{type}/{id}",
		Summary:     "Текущая версия сущности",
		Tags:        []string{"entities"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) changesOp() huma.Operation {
	return huma.Operation{
		OperationID: "entities-changes",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities/changes",
		Summary:     "Сущности, измененные после метки",
		Description: "Результат упорядочен по updated_at. Удаленные сущности возвращаются с deleted=true.",
		Tags:        []string{"entities"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "entities-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities",
		Summary:     "Все сущности аккаунта",
		Tags:        []string{"entities"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) pushOp() huma.Operation {
	return huma.Operation{
		OperationID: "entities-push",
		Method:      http.MethodPost,
		Path:        "/api/v1/entities/push",
		Summary:     "Применить операцию устройства",
		Description: "409 с текущей версией, если сущность изменилась после base_timestamp. 410, если устройство отозвано.",
		Tags:        []string{"entities"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}
