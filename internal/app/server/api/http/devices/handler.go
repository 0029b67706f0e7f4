package devices

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/server/api/http/apierr"
	"recipesync/internal/app/server/api/http/middleware/auth"
	"recipesync/internal/domain/device"
)

type Handler struct {
	service    device.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service device.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With("component", "devices_handler"),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.touchOp(), h.touch)
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.renameOp(), h.rename)
	huma.Register(api, h.revokeOp(), h.revoke)
}

func (h *Handler) touch(ctx context.Context, input *touchInput) (*deviceOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	d, err := h.service.Touch(ctx, userID, input.DeviceID, input.Body)
	if err != nil {
		return nil, apierr.From(err)
	}
	d.IsCurrentDevice = true
	return &deviceOutput{Body: d}, nil
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	list, err := h.service.List(ctx, userID, input.DeviceID)
	if err != nil {
		h.log.Error("list devices", "account_id", userID, "error", err)
		return nil, apierr.From(err)
	}
	if list == nil {
		list = []*device.DeviceInfo{}
	}
	return &listOutput{Body: DevicesResponse{Devices: list}}, nil
}

func (h *Handler) rename(ctx context.Context, input *renameInput) (*deviceOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	d, err := h.service.Rename(ctx, userID, input.ID, input.Body.Name)
	if err != nil {
		return nil, apierr.From(err)
	}
	return &deviceOutput{Body: d}, nil
}

func (h *Handler) revoke(ctx context.Context, input *revokeInput) (*struct{}, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	if err := h.service.Revoke(ctx, userID, input.ID); err != nil {
		return nil, apierr.From(err)
	}
	return nil, nil
}
