package settings

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/client/api/http/apierr"
	"recipesync/internal/domain/settings"
)

type Store interface {
	Get() settings.Settings
	Update(ctx context.Context, next settings.Settings) (settings.Settings, error)
}

type Handler struct {
	store      Store
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(store Store, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		store:      store,
		log:        log.With("component", "settings_handler"),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.getOp(), h.get)
	huma.Register(api, h.updateOp(), h.update)
}

func (h *Handler) get(_ context.Context, _ *struct{}) (*settingsOutput, error) {
	return &settingsOutput{Body: h.store.Get()}, nil
}

func (h *Handler) update(ctx context.Context, input *updateInput) (*settingsOutput, error) {
	s, err := h.store.Update(ctx, input.Body)
	if err != nil {
		return nil, apierr.From(err)
	}
	return &settingsOutput{Body: s}, nil
}
