package conflicts

import (
	"context"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/client/api/http/apierr"
	"recipesync/internal/domain/conflict"
)

type Lister interface {
	List(p conflict.Page) ([]*conflict.Conflict, bool)
}

// Resolver разрешение проходит через координатор, который ставит
// принудительную операцию в журнал
type Resolver interface {
	ResolveConflict(ctx context.Context, id string, res conflict.Resolution, merged map[string]any, resolvedBy string) (*conflict.Conflict, error)
	ResolveAllConflicts(ctx context.Context, res conflict.Resolution, resolvedBy string) (int, error)
}

type Handler struct {
	store    Lister
	resolver Resolver
	// resolvedBy устройство, от имени которого принимаются решения
	resolvedBy string
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(store Lister, resolver Resolver, resolvedBy string, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		store:      store,
		resolver:   resolver,
		resolvedBy: resolvedBy,
		log:        log.With("component", "conflicts_handler"),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.resolveAllOp(), h.resolveAll)
	huma.Register(api, h.resolveOp(), h.resolve)
}

func (h *Handler) list(_ context.Context, input *listInput) (*listOutput, error) {
	list, more := h.store.List(conflict.Page{Page: input.Page, Limit: input.Limit, OnlyOpen: input.OnlyOpen})
	if list == nil {
		list = []*conflict.Conflict{}
	}
	return &listOutput{Body: ConflictsResponse{Conflicts: list, HasMore: more}}, nil
}

func (h *Handler) resolve(ctx context.Context, input *resolveInput) (*conflictOutput, error) {
	c, err := h.resolver.ResolveConflict(ctx, input.ID, input.Body.Resolution, input.Body.MergedData, h.resolvedBy)
	if errors.Is(err, conflict.ErrIrreconcilable) && c != nil {
		return nil, huma.Error422UnprocessableEntity(
			err.Error() + ": " + strings.Join(c.ConflictFields, ", "))
	}
	if err != nil {
		return nil, apierr.From(err)
	}
	return &conflictOutput{Body: c}, nil
}

// resolveAll частичный успех не ошибка: число разрешенных возвращается вместе с причиной остановки
func (h *Handler) resolveAll(ctx context.Context, input *resolveAllInput) (*resolveAllOutput, error) {
	n, err := h.resolver.ResolveAllConflicts(ctx, input.Body.Resolution, h.resolvedBy)
	if err != nil && n == 0 {
		return nil, apierr.From(err)
	}
	out := ResolveAllResponse{Resolved: n}
	if err != nil {
		h.log.Warn("some conflicts were not resolved", "resolved", n, "error", err)
		out.Error = err.Error()
	}
	return &resolveAllOutput{Body: out}, nil
}
