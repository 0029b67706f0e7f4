package operations

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/client/api/http/apierr"
	"recipesync/internal/domain/oplog"
)

// Queue чтение журнала операций
type Queue interface {
	List(p oplog.Page) ([]*oplog.Operation, bool)
}

// Coordinator изменения журнала проходят через координатор
type Coordinator interface {
	Enqueue(ctx context.Context, op oplog.Operation) (*oplog.Operation, error)
	Retry(ctx context.Context, id string) (*oplog.Operation, error)
	Cancel(ctx context.Context, id string) error
}

type Handler struct {
	queue       Queue
	coordinator Coordinator
	log         *slog.Logger
	middleware  huma.Middlewares
}

func NewHandler(queue Queue, coordinator Coordinator, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		queue:       queue,
		coordinator: coordinator,
		log:         log.With("component", "operations_handler"),
		middleware:  mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.enqueueOp(), h.enqueue)
	huma.Register(api, h.retryOp(), h.retry)
	huma.Register(api, h.cancelOp(), h.cancel)
}

func (h *Handler) list(_ context.Context, input *listInput) (*listOutput, error) {
	ops, more := h.queue.List(oplog.Page{
		Page:   input.Page,
		Limit:  input.Limit,
		Status: oplog.Status(input.Status),
	})
	if ops == nil {
		ops = []*oplog.Operation{}
	}
	return &listOutput{Body: OperationsResponse{Operations: ops, HasMore: more}}, nil
}

func (h *Handler) enqueue(ctx context.Context, input *enqueueInput) (*operationOutput, error) {
	op, err := h.coordinator.Enqueue(ctx, oplog.Operation{
		Type:       input.Body.Type,
		EntityType: input.Body.EntityType,
		EntityID:   input.Body.EntityID,
		Payload:    oplog.Payload{Fields: input.Body.Fields},
	})
	if err != nil {
		return nil, apierr.From(err)
	}
	return &operationOutput{Body: op}, nil
}

func (h *Handler) retry(ctx context.Context, input *idInput) (*operationOutput, error) {
	op, err := h.coordinator.Retry(ctx, input.ID)
	if err != nil {
		return nil, apierr.From(err)
	}
	h.log.Info("operation retry requested", "id", input.ID)
	return &operationOutput{Body: op}, nil
}

func (h *Handler) cancel(ctx context.Context, input *idInput) (*struct{}, error) {
	if err := h.coordinator.Cancel(ctx, input.ID); err != nil {
		return nil, apierr.From(err)
	}
	h.log.Info("operation cancelled", "id", input.ID)
	return nil, nil
}
