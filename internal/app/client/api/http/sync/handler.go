package sync

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/client/api/http/apierr"
	"recipesync/internal/domain/entity"
	syncdomain "recipesync/internal/domain/sync"
)

// Coordinator операции координатора, доступные через API
type Coordinator interface {
	Status() syncdomain.Status
	Subscribe() (<-chan syncdomain.Status, func())
	Sync(ctx context.Context, trig syncdomain.Trigger) (*syncdomain.CycleResult, error)
	Request(trig syncdomain.Trigger) (string, error)
	SyncEntity(ctx context.Context, key entity.Key) (*syncdomain.CycleResult, error)
	Pause()
	Resume()
	Reset(ctx context.Context, confirm bool) error
}

type Handler struct {
	coordinator Coordinator
	log         *slog.Logger
	middleware  huma.Middlewares
}

func NewHandler(coordinator Coordinator, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		coordinator: coordinator,
		log:         log.With("component", "sync_handler"),
		middleware:  mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.statusOp(), h.status)
	huma.Register(api, h.syncOp(), h.sync)
	huma.Register(api, h.pauseOp(), h.pause)
	huma.Register(api, h.resumeOp(), h.resume)
	huma.Register(api, h.entityOp(), h.syncEntity)
	huma.Register(api, h.resetOp(), h.reset)
}

func (h *Handler) status(_ context.Context, _ *struct{}) (*statusOutput, error) {
	return &statusOutput{Body: h.coordinator.Status()}, nil
}

func (h *Handler) sync(ctx context.Context, input *syncInput) (*syncOutput, error) {
	req := SyncRequest{}
	if input.Body != nil {
		req = *input.Body
	}

	trig := syncdomain.Trigger{Kind: syncdomain.TriggerManual, Force: req.Force}
	if req.Trigger == string(syncdomain.TriggerForeground) {
		trig.Kind = syncdomain.TriggerForeground
	}
	for _, ref := range req.Entities {
		trig.Entities = append(trig.Entities, entity.Key{Type: ref.Type, ID: ref.ID})
	}

	if req.Wait {
		res, err := h.coordinator.Sync(ctx, trig)
		if err != nil && res == nil {
			return nil, apierr.From(err)
		}
		out := SyncResponse{SyncID: res.ID, Message: "sync completed", Result: res}
		if err != nil {
			out.Message = err.Error()
		}
		return &syncOutput{Body: out}, nil
	}

	id, err := h.coordinator.Request(trig)
	if err != nil {
		return nil, apierr.From(err)
	}
	h.log.Debug("sync requested", "id", id, "trigger", trig.Kind, "force", trig.Force)
	return &syncOutput{Body: SyncResponse{SyncID: id, Message: "sync started"}}, nil
}

func (h *Handler) pause(_ context.Context, _ *struct{}) (*struct{}, error) {
	h.coordinator.Pause()
	return nil, nil
}

func (h *Handler) resume(_ context.Context, _ *struct{}) (*struct{}, error) {
	h.coordinator.Resume()
	return nil, nil
}

func (h *Handler) syncEntity(ctx context.Context, input *entityInput) (*cycleOutput, error) {
	res, err := h.coordinator.SyncEntity(ctx, entity.Key{Type: entity.Type(input.Type), ID: input.ID})
	if err != nil && res == nil {
		return nil, apierr.From(err)
	}
	return &cycleOutput{Body: res}, nil
}

func (h *Handler) reset(ctx context.Context, input *resetInput) (*statusOutput, error) {
	if err := h.coordinator.Reset(ctx, input.Confirm); err != nil {
		if !errors.Is(err, syncdomain.ErrNotConfirmed) {
			h.log.Error("reset failed", "error", err)
		}
		return nil, apierr.From(err)
	}
	return &statusOutput{Body: h.coordinator.Status()}, nil
}
