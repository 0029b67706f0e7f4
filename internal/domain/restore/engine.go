package restore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"recipesync/internal/domain/backup"
	"recipesync/internal/domain/cache"
	"recipesync/internal/domain/conflict"
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/oplog"
	"recipesync/internal/metrics"
	"recipesync/internal/utils/clock"
	"recipesync/internal/utils/validate"
)

// Loader читает снимок резервной копии
type Loader interface {
	Load(ctx context.Context, id string) (*backup.Artifact, error)
}

// Pauser приостанавливает синхронизацию на время восстановления
type Pauser interface {
	// PauseAndWait возвращает true, если синхронизация уже стояла на паузе
	PauseAndWait(ctx context.Context) (bool, error)
	Resume()
}

// Appender журнал операций, через который восстановленные сущности попадают на сервер
type Appender interface {
	Append(ctx context.Context, op oplog.Operation) (*oplog.Operation, error)
}

// Engine применяет снимок резервной копии к живому состоянию устройства.
// Одновременно выполняется не более одного восстановления.
type Engine struct {
	repo   Repository
	loader Loader
	cache  *cache.Cache
	ops    Appender
	pauser Pauser
	clock  clock.Clock
	ids    clock.IDGenerator
	log    *slog.Logger

	mu     sync.Mutex
	active string
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewEngine(repo Repository, loader Loader, c *cache.Cache, ops Appender, pauser Pauser, clk clock.Clock, ids clock.IDGenerator, log *slog.Logger) *Engine {
	return &Engine{
		repo:   repo,
		loader: loader,
		cache:  c,
		ops:    ops,
		pauser: pauser,
		clock:  clk,
		ids:    ids,
		log:    log.With("component", "restore_engine"),
	}
}

// Start запускает восстановление в фоне и сразу возвращает запись в статусе preparing
func (e *Engine) Start(ctx context.Context, req Request) (*Restore, error) {
	r, runCtx, done, err := e.begin(ctx, req, context.Background())
	if err != nil {
		return nil, err
	}
	snapshot := r.Clone()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(done)
		_ = e.execute(runCtx, r)
	}()
	return snapshot, nil
}

// Run выполняет восстановление синхронно. Отмена ctx останавливает его
// на границе сущности так же, как Cancel.
func (e *Engine) Run(ctx context.Context, req Request) (*Restore, error) {
	r, runCtx, done, err := e.begin(ctx, req, ctx)
	if err != nil {
		return nil, err
	}
	defer close(done)
	err = e.execute(runCtx, r)
	return r.Clone(), err
}

func (e *Engine) begin(ctx context.Context, req Request, parent context.Context) (*Restore, context.Context, chan struct{}, error) {
	if err := validate.Struct(req); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != "" {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrRestoreInProgress, e.active)
	}

	r := &Restore{
		ID:                 e.ids.New(),
		BackupID:           req.BackupID,
		Status:             StatusPreparing,
		ConflictResolution: req.ConflictResolution,
		RestoreImages:      req.RestoreImages,
		Conflicts:          []Conflict{},
		StartedAt:          e.clock.Now(),
	}
	if err := e.repo.Save(ctx, r); err != nil {
		return nil, nil, nil, fmt.Errorf("save restore: %w", err)
	}

	runCtx, cancel := context.WithCancel(parent)
	e.active = r.ID
	e.cancel = cancel
	e.done = make(chan struct{})
	e.log.Info("restore started", "id", r.ID, "backup_id", r.BackupID, "policy", r.ConflictResolution)
	return r, runCtx, e.done, nil
}

func (e *Engine) finish(r *Restore) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == r.ID {
		e.cancel()
		e.active = ""
		e.cancel = nil
	}
}

// execute основной проход. Запись r принадлежит только этому вызову.
func (e *Engine) execute(ctx context.Context, r *Restore) (err error) {
	defer e.finish(r)
	save := context.WithoutCancel(ctx)

	defer func() {
		done := e.clock.Now()
		r.CompletedAt = &done
		if err != nil {
			r.Status = StatusFailed
			r.Error = err.Error()
			e.log.Error("restore failed", "id", r.ID, "backup_id", r.BackupID, "processed", r.Processed, "error", err)
		} else {
			r.Status = StatusCompleted
			r.Progress = 100
			e.log.Info("restore completed",
				"id", r.ID,
				"restored", r.ItemsRestored.Total(),
				"unchanged", r.Unchanged,
				"conflicts", len(r.Conflicts),
				"failures", len(r.Failures),
			)
		}
		metrics.Restores.WithLabelValues(string(r.Status)).Inc()
		if serr := e.repo.Save(save, r); serr != nil {
			e.log.Error("save restore", "id", r.ID, "error", serr)
		}
	}()

	already, err := e.pauser.PauseAndWait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ErrRestoreCancelled
		}
		return fmt.Errorf("pause sync: %w", err)
	}
	if !already {
		defer e.pauser.Resume()
	}

	art, err := e.loader.Load(ctx, r.BackupID)
	if err != nil {
		return fmt.Errorf("load backup: %w", err)
	}

	stage, err := e.cache.Begin(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ErrRestoreCancelled
		}
		return fmt.Errorf("acquire cache: %w", err)
	}
	defer stage.Discard()

	r.Status = StatusRestoring
	r.Total = len(art.Entities)
	if err := e.repo.Save(save, r); err != nil {
		return fmt.Errorf("save restore: %w", err)
	}

	cancelled := false
	for _, item := range art.Entities {
		// отмена действует только между сущностями
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if err := e.restoreOne(save, stage, art, r, item); err != nil {
			r.Failures = append(r.Failures, Failure{EntityType: item.Type, EntityID: item.ID, Error: err.Error()})
			metrics.RestoredEntities.WithLabelValues("failed").Inc()
		}
		r.Processed++
		r.Progress = progress(r.Processed, r.Total, r.Progress)
		if err := e.repo.Save(save, r); err != nil {
			e.log.Warn("save restore progress", "id", r.ID, "error", err)
		}
	}

	// уже примененное сохраняется и при отмене
	if err := stage.Commit(save); err != nil {
		return fmt.Errorf("commit cache: %w", err)
	}
	if cancelled {
		return ErrRestoreCancelled
	}
	return nil
}

// restoreOne сравнивает сущность из копии с живой версией и применяет политику
func (e *Engine) restoreOne(ctx context.Context, stage *cache.Stage, art *backup.Artifact, r *Restore, item *entity.Entity) error {
	if !item.Type.Valid() || item.ID == "" {
		return fmt.Errorf("%w: %s", entity.ErrInvalidType, item.Key())
	}
	item = item.Clone()
	item.Deleted = false

	live, exists := stage.Get(item.Key())
	if !r.RestoreImages {
		item.Fields = entity.WithoutFields(item.Fields, entity.ImageFields)
		if exists {
			// изображения живой версии не трогаем
			for _, name := range entity.ImageFields {
				if v, ok := live.Fields[name]; ok {
					item.Fields[name] = v
				}
			}
		}
	}

	if !exists {
		if err := e.apply(ctx, stage, oplog.TypeCreate, nil, item, item.Fields); err != nil {
			return err
		}
		e.restored(r, item.Type, "created")
		return nil
	}

	if live.Equal(item) {
		r.Unchanged++
		metrics.RestoredEntities.WithLabelValues("unchanged").Inc()
		return nil
	}

	rc := Conflict{
		EntityType:   item.Type,
		EntityID:     item.ID,
		ExistingItem: live,
		BackupItem:   item,
	}

	switch r.ConflictResolution {
	case PolicySkip:
		rc.Resolution = ResolutionSkip
		e.conflict(r, rc)
		return nil

	case PolicyReplace:
		if err := e.apply(ctx, stage, oplog.TypeUpdate, live, item, patchOf(live.Fields, item.Fields)); err != nil {
			return err
		}
		e.restored(r, item.Type, "replaced")
		return nil

	case PolicyMerge:
		in := conflict.Input{
			Local:           item,
			Remote:          live,
			LocalFields:     mergeFields(live, item, art.CreatedAt),
			RemoteFields:    live.TouchedSince(art.CreatedAt),
			LocalTimestamp:  art.CreatedAt,
			RemoteTimestamp: live.UpdatedAt,
		}
		d, err := conflict.Resolve(in, conflict.PolicyMerge)
		if errors.Is(err, conflict.ErrIrreconcilable) {
			rc.Resolution = ResolutionMerge
			rc.ConflictFields = d.ConflictFields
			e.conflict(r, rc)
			return nil
		}
		if err != nil {
			return err
		}
		if !d.Push() {
			r.Unchanged++
			return nil
		}
		if err := e.apply(ctx, stage, oplog.TypeUpdate, live, d.Entity, d.Patch); err != nil {
			return err
		}
		e.restored(r, item.Type, "merged")
		return nil

	case PolicyRename:
		copied := item.Clone()
		copied.ID = e.renamedID(stage, item)
		if err := e.apply(ctx, stage, oplog.TypeCreate, nil, copied, copied.Fields); err != nil {
			return err
		}
		rc.Resolution = ResolutionRename
		rc.RenamedTo = copied.ID
		e.conflict(r, rc)
		e.restored(r, item.Type, "renamed")
		return nil
	}

	// ask: решение за пользователем, ничего не применяем
	e.conflict(r, rc)
	return nil
}

// apply ставит операцию в журнал и только затем меняет черновик кэша
func (e *Engine) apply(ctx context.Context, stage *cache.Stage, typ oplog.Type, live, next *entity.Entity, fields map[string]any) error {
	op := oplog.Operation{
		Type:       typ,
		EntityType: next.Type,
		EntityID:   next.ID,
		Payload:    oplog.Payload{Fields: fields},
	}
	stored := next.Clone()
	if live != nil {
		op.BaseTimestamp = live.UpdatedAt
		op.BaseVersion = live.Version
		stored.Version = live.Version
		stored.UpdatedAt = live.UpdatedAt
		stored.FieldUpdatedAt = live.FieldUpdatedAt
	} else {
		stored.Version = 0
		stored.UpdatedAt = time.Time{}
		stored.FieldUpdatedAt = nil
	}
	if _, err := e.ops.Append(ctx, op); err != nil {
		return fmt.Errorf("append operation: %w", err)
	}
	stage.Put(stored)
	return nil
}

func (e *Engine) restored(r *Restore, t entity.Type, outcome string) {
	r.ItemsRestored.Add(t)
	metrics.RestoredEntities.WithLabelValues(outcome).Inc()
}

func (e *Engine) conflict(r *Restore, c Conflict) {
	r.Conflicts = append(r.Conflicts, c)
	metrics.RestoredEntities.WithLabelValues("conflict").Inc()
}

func (e *Engine) renamedID(stage *cache.Stage, item *entity.Entity) string {
	for {
		id := item.ID + "-restored-" + e.ids.New()
		if _, taken := stage.Get(entity.Key{Type: item.Type, ID: id}); !taken {
			return id
		}
	}
}

// Recover закрывает восстановления, оставшиеся активными после аварийного
// завершения агента. Вызывается до первого Start.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	all, err := e.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list restores: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, r := range all {
		if !r.Status.Active() || r.ID == e.active {
			continue
		}
		done := e.clock.Now()
		r.Status = StatusFailed
		r.Error = ErrInterrupted.Error()
		r.CompletedAt = &done
		if err := e.repo.Save(ctx, r); err != nil {
			return n, fmt.Errorf("recover restore %s: %w", r.ID, err)
		}
		n++
	}
	if n > 0 {
		e.log.Warn("interrupted restores marked failed", "count", n)
	}
	return n, nil
}

// Get текущее состояние восстановления
func (e *Engine) Get(ctx context.Context, id string) (*Restore, error) {
	return e.repo.Get(ctx, id)
}

// List восстановления, последние первыми
func (e *Engine) List(ctx context.Context) ([]*Restore, error) {
	all, err := e.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list restores: %w", err)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].StartedAt.Equal(all[j].StartedAt) {
			return all[i].StartedAt.After(all[j].StartedAt)
		}
		return all[i].ID > all[j].ID
	})
	return all, nil
}

// Cancel кооперативная отмена: восстановление остановится на границе сущности
func (e *Engine) Cancel(ctx context.Context, id string) error {
	e.mu.Lock()
	if e.active == id && e.cancel != nil {
		e.cancel()
		e.mu.Unlock()
		e.log.Info("restore cancel requested", "id", id)
		return nil
	}
	e.mu.Unlock()

	if _, err := e.repo.Get(ctx, id); err != nil {
		return err
	}
	return ErrNotActive
}

// Wait ждет завершения восстановления id
func (e *Engine) Wait(ctx context.Context, id string) (*Restore, error) {
	e.mu.Lock()
	done := e.done
	active := e.active == id
	e.mu.Unlock()

	if active {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.repo.Get(ctx, id)
}

// Close ждет завершения фоновых восстановлений
func (e *Engine) Close() {
	e.wg.Wait()
}

// progress не убывает
func progress(processed, total int, prev float64) float64 {
	if total <= 0 {
		return prev
	}
	p := float64(processed) * 100 / float64(total)
	if p > 100 {
		p = 100
	}
	if p < prev {
		return prev
	}
	return p
}

// patchOf изменения, переводящие from в to; nil удаляет поле
func patchOf(from, to map[string]any) map[string]any {
	names := entity.DiffFields(from, to)
	patch := make(map[string]any, len(names))
	for _, name := range names {
		patch[name] = to[name]
	}
	return patch
}

// mergeFields как patchOf, но поля, добавленные в живую версию после снятия
// копии, не удаляются
func mergeFields(live, item *entity.Entity, since time.Time) map[string]any {
	patch := patchOf(live.Fields, item.Fields)
	for name := range patch {
		if _, inBackup := item.Fields[name]; inBackup {
			continue
		}
		if live.FieldUpdatedAt[name].After(since) {
			delete(patch, name)
		}
	}
	return patch
}
