package backups

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/client/api/http/apierr"
	"recipesync/internal/domain/backup"
)

type Manager interface {
	Create(ctx context.Context, req backup.CreateRequest) (*backup.Backup, error)
	Retry(ctx context.Context, id string) (*backup.Backup, error)
	Get(ctx context.Context, id string) (*backup.Backup, error)
	List(ctx context.Context, p backup.Page) ([]*backup.Backup, bool, error)
	Delete(ctx context.Context, id string) error
	Open(ctx context.Context, id string) (io.ReadCloser, *backup.Backup, error)
}

type Handler struct {
	manager    Manager
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(manager Manager, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		manager:    manager,
		log:        log.With("component", "backups_handler"),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.createOp(), h.create)
	huma.Register(api, h.getOp(), h.get)
	huma.Register(api, h.retryOp(), h.retry)
	huma.Register(api, h.downloadOp(), h.download)
	huma.Register(api, h.deleteOp(), h.delete)
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	list, more, err := h.manager.List(ctx, backup.Page{Page: input.Page, Limit: input.Limit})
	if err != nil {
		h.log.Error("list backups", "error", err)
		return nil, apierr.From(err)
	}
	if list == nil {
		list = []*backup.Backup{}
	}
	return &listOutput{Body: BackupsResponse{Backups: list, HasMore: more}}, nil
}

func (h *Handler) create(ctx context.Context, input *createInput) (*backupOutput, error) {
	typ := input.Body.Type
	if typ == "" {
		typ = backup.TypeManual
	}
	b, err := h.manager.Create(ctx, backup.CreateRequest{
		Type:          typ,
		IncludeImages: input.Body.IncludeImages,
		Compression:   input.Body.Compression,
	})
	// неудачная копия уже сохранена и видна в списке
	if err != nil && b == nil {
		return nil, apierr.From(err)
	}
	return &backupOutput{Body: b}, nil
}

func (h *Handler) get(ctx context.Context, input *idInput) (*backupOutput, error) {
	b, err := h.manager.Get(ctx, input.ID)
	if err != nil {
		return nil, apierr.From(err)
	}
	return &backupOutput{Body: b}, nil
}

func (h *Handler) retry(ctx context.Context, input *idInput) (*backupOutput, error) {
	b, err := h.manager.Retry(ctx, input.ID)
	if err != nil && b == nil {
		return nil, apierr.From(err)
	}
	return &backupOutput{Body: b}, nil
}

func (h *Handler) download(ctx context.Context, input *idInput) (*huma.StreamResponse, error) {
	rc, b, err := h.manager.Open(ctx, input.ID)
	if errors.Is(err, backup.ErrArtifactAbsent) {
		return nil, huma.Error404NotFound(err.Error())
	}
	if err != nil {
		return nil, apierr.From(err)
	}

	return &huma.StreamResponse{
		Body: func(hctx huma.Context) {
			defer rc.Close()
			hctx.SetHeader("Content-Type", "application/octet-stream")
			hctx.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(b.Artifact)))
			if b.Size > 0 {
				hctx.SetHeader("Content-Length", strconv.FormatInt(b.Size, 10))
			}
			if b.Checksum != "" {
				hctx.SetHeader("X-Checksum-SHA256", b.Checksum)
			}
			if _, err := io.Copy(hctx.BodyWriter(), rc); err != nil {
				h.log.Warn("artifact download interrupted", "id", b.ID, "error", err)
			}
		},
	}, nil
}

func (h *Handler) delete(ctx context.Context, input *idInput) (*struct{}, error) {
	if err := h.manager.Delete(ctx, input.ID); err != nil {
		return nil, apierr.From(err)
	}
	return nil, nil
}
