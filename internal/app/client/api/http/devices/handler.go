package devices

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/client/api/http/apierr"
	"recipesync/internal/domain/device"
)

// Registry реестр устройств на сервере аккаунта
type Registry interface {
	Devices(ctx context.Context) ([]*device.DeviceInfo, error)
	RenameDevice(ctx context.Context, id, name string) (*device.DeviceInfo, error)
	RevokeDevice(ctx context.Context, id string) error
}

type Handler struct {
	registry   Registry
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(registry Registry, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		registry:   registry,
		log:        log.With("component", "devices_handler"),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.renameOp(), h.rename)
	huma.Register(api, h.revokeOp(), h.revoke)
}

func (h *Handler) list(ctx context.Context, _ *struct{}) (*listOutput, error) {
	list, err := h.registry.Devices(ctx)
	if err != nil {
		return nil, h.remoteErr("list devices", err)
	}
	if list == nil {
		list = []*device.DeviceInfo{}
	}
	return &listOutput{Body: DevicesResponse{Devices: list}}, nil
}

func (h *Handler) rename(ctx context.Context, input *renameInput) (*deviceOutput, error) {
	d, err := h.registry.RenameDevice(ctx, input.ID, input.Body.Name)
	if err != nil {
		return nil, h.remoteErr("rename device", err)
	}
	return &deviceOutput{Body: d}, nil
}

func (h *Handler) revoke(ctx context.Context, input *revokeInput) (*struct{}, error) {
	if err := h.registry.RevokeDevice(ctx, input.ID); err != nil {
		return nil, h.remoteErr("revoke device", err)
	}
	h.log.Info("device revoked", "id", input.ID)
	return nil, nil
}

// remoteErr ошибки сервера аккаунта без доменного смысла отдаются как 502
func (h *Handler) remoteErr(op string, err error) error {
	mapped := apierr.From(err)
	var se huma.StatusError
	if errors.As(mapped, &se) && se.GetStatus() == http.StatusInternalServerError {
		h.log.Warn(op, "error", err)
		return huma.Error502BadGateway(err.Error())
	}
	return mapped
}
