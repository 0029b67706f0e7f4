package restores

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/client/api/http/apierr"
	"recipesync/internal/domain/restore"
)

type Engine interface {
	Start(ctx context.Context, req restore.Request) (*restore.Restore, error)
	Get(ctx context.Context, id string) (*restore.Restore, error)
	List(ctx context.Context) ([]*restore.Restore, error)
	Cancel(ctx context.Context, id string) error
}

type Handler struct {
	engine     Engine
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(engine Engine, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		engine:     engine,
		log:        log.With("component", "restores_handler"),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.startOp(), h.start)
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.getOp(), h.get)
	huma.Register(api, h.cancelOp(), h.cancel)
}

func (h *Handler) start(ctx context.Context, input *startInput) (*restoreOutput, error) {
	r, err := h.engine.Start(ctx, input.Body)
	if err != nil {
		return nil, apierr.From(err)
	}
	return &restoreOutput{Body: r}, nil
}

func (h *Handler) list(ctx context.Context, _ *struct{}) (*listOutput, error) {
	all, err := h.engine.List(ctx)
	if err != nil {
		return nil, apierr.From(err)
	}
	if all == nil {
		all = []*restore.Restore{}
	}
	return &listOutput{Body: RestoresResponse{Restores: all}}, nil
}

func (h *Handler) get(ctx context.Context, input *idInput) (*restoreOutput, error) {
	r, err := h.engine.Get(ctx, input.ID)
	if err != nil {
		return nil, apierr.From(err)
	}
	return &restoreOutput{Body: r}, nil
}

func (h *Handler) cancel(ctx context.Context, input *idInput) (*struct{}, error) {
	if err := h.engine.Cancel(ctx, input.ID); err != nil {
		h.log.Debug("cancel restore", "id", input.ID, "error", err)
		return nil, apierr.From(err)
	}
	return nil, nil
}
