package entities

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/server/api/http/apierr"
	"recipesync/internal/app/server/api/http/middleware/auth"
	"recipesync/internal/domain/entity"
)

type Handler struct {
	service    entity.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
	// limit верхняя граница выдачи изменений
	limit int
}

func NewHandler(service entity.Servicer, changesLimit int, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With("component", "entities_handler"),
		middleware: mws,
		limit:      changesLimit,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.changesOp(), h.changes)
	huma.Register(api, h.getOp(), h.get)
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.pushOp(), h.push)
}

func (h *Handler) get(ctx context.Context, input *getInput) (*getOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	e, err := h.service.Get(ctx, userID, entity.Key{Type: entity.Type(input.Type), ID: input.ID})
	if err != nil {
		return nil, apierr.From(err)
	}
	return &getOutput{Body: e}, nil
}

func (h *Handler) changes(ctx context.Context, input *changesInput) (*listOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	var since time.Time
	if input.Since != "" {
		t, err := time.Parse(time.RFC3339Nano, input.Since)
		if err != nil {
			return nil, huma.Error400BadRequest("since must be an RFC 3339 timestamp", err)
		}
		since = t
	}
	cur := entity.Cursor{Since: since}
	if input.After != "" {
		if since.IsZero() {
			return nil, huma.Error400BadRequest("after requires since")
		}
		key, err := entity.ParseKey(input.After)
		if err != nil {
			return nil, huma.Error400BadRequest("after must be a type/id key", err)
		}
		cur.After = key
	}
	limit := input.Limit
	if limit <= 0 || limit > h.limit {
		limit = h.limit
	}

	list, err := h.service.Changes(ctx, userID, cur, limit)
	if err != nil {
		h.log.Error("changes", "account_id", userID, "error", err)
		return nil, apierr.From(err)
	}
	return &listOutput{Body: EntitiesResponse{Entities: nonNil(list)}}, nil
}

func (h *Handler) list(ctx context.Context, _ *struct{}) (*listOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	list, err := h.service.List(ctx, userID)
	if err != nil {
		h.log.Error("list", "account_id", userID, "error", err)
		return nil, apierr.From(err)
	}
	return &listOutput{Body: EntitiesResponse{Entities: nonNil(list)}}, nil
}

func (h *Handler) push(ctx context.Context, input *pushInput) (*pushOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	res, err := h.service.Push(ctx, userID, input.DeviceID, input.Body)
	if err != nil {
		return nil, apierr.From(err)
	}
	return &pushOutput{Body: res}, nil
}

func nonNil(list []*entity.Entity) []*entity.Entity {
	if list == nil {
		return []*entity.Entity{}
	}
	return list
}
