package health

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Clock interface {
	Now() time.Time
}

type Handler struct {
	clock      Clock
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(clock Clock, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		clock:      clock,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
	huma.Register(api, h.pingOp(), h.ping)
}

func (h *Handler) healthCheck(_ context.Context, _ *Input) (*Output, error) {
	h.log.Debug("health check request received")

	return &Output{
		Body: Response{
			Status: "OK",
		},
	}, nil
}

func (h *Handler) ping(_ context.Context, _ *Input) (*pingOutput, error) {
	return &pingOutput{
		Body: PingResponse{ServerTime: h.clock.Now()},
	}, nil
}
