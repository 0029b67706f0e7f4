package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipesync/internal/domain/cache"
	"recipesync/internal/domain/conflict"
	"recipesync/internal/domain/device"
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/oplog"
	"recipesync/internal/metrics"
)

// runCycle один цикл: связь, регистрация устройства, отправка очереди
// пакетами, получение изменений сервера, подмена кэша.
func (c *Coordinator) runCycle(ctx context.Context, id string, trig Trigger, started time.Time) (*CycleResult, error) {
	res := &CycleResult{ID: id, Trigger: trig.Kind, StartedAt: started}

	sentAt := c.clock.Now()
	serverTime, err := c.gw.Ping(ctx)
	if err != nil {
		if Classify(err) == KindServer {
			return res, err
		}
		// очередь не трогаем
		c.setOnline(false)
		return res, fmt.Errorf("%w: %v", ErrOffline, err)
	}
	c.setOnline(true)
	if c.skew != nil {
		c.skew.Observe(serverTime, sentAt, c.clock.Now().Sub(sentAt))
	}

	if _, err := c.gw.Touch(ctx, c.cfg.Device); err != nil {
		if Classify(err) == KindRevoked {
			return res, c.revoke(ctx, err)
		}
		return res, fmt.Errorf("touch device: %w", err)
	}

	stage, err := c.cache.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer stage.Discard()

	// внутри пакета отмена не действует: пакет всегда доводится до конца
	work := context.WithoutCancel(ctx)
	cycleErr := c.pushAll(ctx, work, stage, trig, res)

	if cycleErr == nil && !res.Paused && ctx.Err() == nil {
		if len(trig.Entities) > 0 {
			cycleErr = c.refetch(work, stage, trig.Entities, res)
		} else {
			cycleErr = c.pull(work, stage, res)
		}
	}

	if cycleErr == nil && !res.Paused {
		stage.MarkSynced(c.clock.Now())
	}
	if err := stage.Commit(work); err != nil {
		return res, errors.Join(cycleErr, err)
	}

	if Classify(cycleErr) == KindRevoked {
		return res, c.revoke(work, cycleErr)
	}
	if cycleErr == nil && ctx.Err() != nil {
		cycleErr = ctx.Err()
	}
	return res, cycleErr
}

// pushAll отправляет очередь пакетами. Пауза и отмена проверяются между пакетами.
func (c *Coordinator) pushAll(ctx, work context.Context, stage *cache.Stage, trig Trigger, res *CycleResult) error {
	for {
		if c.Paused() {
			res.Paused = true
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		batch, err := c.ops.Drain(work, c.cfg.BatchSize, trig.Entities...)
		if err != nil {
			c.releaseAll(work, batch)
			return fmt.Errorf("drain operations: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		for i, op := range batch {
			if err := c.process(work, stage, op, res); err != nil {
				// серверная ошибка или отзыв устройства: остаток пакета возвращается в очередь
				c.releaseAll(work, batch[i:])
				return err
			}
		}
	}
}

func (c *Coordinator) releaseAll(ctx context.Context, ops []*oplog.Operation) {
	for _, op := range ops {
		if err := c.ops.Release(ctx, op.ID); err != nil {
			c.log.Debug("release operation", "id", op.ID, "error", err)
			continue
		}
		metrics.Operations.WithLabelValues("released").Inc()
	}
}

// process доставляет одну операцию. Возвращает ошибку только для серверных
// ошибок и отзыва устройства, которые прерывают весь цикл.
func (c *Coordinator) process(ctx context.Context, stage *cache.Stage, op *oplog.Operation, res *CycleResult) error {
	key := op.Key()

	// уже применена сервером: повтор ничего не меняет
	if op.Seq <= stage.Applied(key) {
		res.Duplicates++
		metrics.Operations.WithLabelValues("duplicate").Inc()
		return c.ops.Ack(ctx, op.ID)
	}

	// сервер сам отсекает повтор по seq и отклоняет устаревшую базу
	result, err := c.gw.Push(ctx, pushRequest(op, op.Payload.Fields, op.Type, op.Force))
	var stale *entity.StaleError
	if errors.As(err, &stale) {
		return c.reconcile(ctx, stage, op, stale.Current, res)
	}
	if err != nil {
		return c.failed(ctx, op, err, res)
	}
	return c.delivered(ctx, stage, op, result, res)
}

// reconcile передает расхождение резолверу
func (c *Coordinator) reconcile(ctx context.Context, stage *cache.Stage, op *oplog.Operation, remote *entity.Entity, res *CycleResult) error {
	key := op.Key()
	in := conflict.Input{
		Local:           localView(stage, op),
		Remote:          remote,
		LocalFields:     op.Payload.Fields,
		LocalDeleted:    op.Type == oplog.TypeDelete,
		RemoteFields:    remote.TouchedSince(op.BaseTimestamp),
		LocalTimestamp:  op.Timestamp,
		RemoteTimestamp: remote.UpdatedAt,
	}

	policy := c.settings.Get().ConflictResolution
	// пока конфликт по сущности открыт, новые расхождения только дополняют его
	if _, open := c.conflicts.OpenFor(key); open {
		policy = conflict.PolicyAsk
	}

	d, err := conflict.Resolve(in, policy)
	if err != nil {
		return c.failed(ctx, op, oplog.Permanent(err), res)
	}

	if d.Open {
		cf, _, err := c.conflicts.Record(ctx, conflict.Conflict{
			EntityType:      op.EntityType,
			EntityID:        op.EntityID,
			LocalVersion:    in.Local,
			RemoteVersion:   remote,
			LocalChanges:    op.Payload.Fields,
			LocalDeleted:    in.LocalDeleted,
			RemoteChanged:   in.RemoteFields,
			LocalTimestamp:  op.Timestamp,
			RemoteTimestamp: remote.UpdatedAt,
			ConflictFields:  d.ConflictFields,
		})
		if err != nil {
			return c.failed(ctx, op, err, res)
		}
		putRemote(stage, remote)
		res.Conflicts++
		metrics.Operations.WithLabelValues("conflict").Inc()
		return c.ops.AckConflict(ctx, op.ID, cf.ID)
	}

	if !d.Push() {
		// победила серверная версия
		putRemote(stage, remote)
		if _, err := c.ops.Rebase(ctx, remote); err != nil {
			c.log.Warn("rebase after remote win", "entity", key.String(), "error", err)
		}
		metrics.Operations.WithLabelValues("acked").Inc()
		return c.ops.Ack(ctx, op.ID)
	}

	result, err := c.gw.Push(ctx, pushRequest(op, d.Patch, opTypeFor(d, remote), true))
	if err != nil {
		return c.failed(ctx, op, err, res)
	}
	return c.delivered(ctx, stage, op, result, res)
}

func (c *Coordinator) delivered(ctx context.Context, stage *cache.Stage, op *oplog.Operation, result *entity.PushResult, res *CycleResult) error {
	key := op.Key()
	if result.Duplicate {
		res.Duplicates++
		metrics.Operations.WithLabelValues("duplicate").Inc()
	} else {
		res.Pushed++
		metrics.Operations.WithLabelValues("acked").Inc()
	}
	if result.Entity != nil {
		putRemote(stage, result.Entity)
		if _, err := c.ops.Rebase(ctx, result.Entity); err != nil {
			c.log.Warn("rebase queued operations", "entity", key.String(), "error", err)
		}
	}
	stage.SetApplied(key, op.Seq)
	return c.ops.Ack(ctx, op.ID)
}

// failed распределяет ошибку по категориям
func (c *Coordinator) failed(ctx context.Context, op *oplog.Operation, cause error, res *CycleResult) error {
	switch Classify(cause) {
	case KindServer, KindRevoked:
		return cause
	case KindValidation:
		cause = oplog.Permanent(cause)
	}
	res.Failed++
	metrics.Operations.WithLabelValues("failed").Inc()
	c.log.Debug("operation failed", "id", op.ID, "entity", op.Key().String(), "error", cause)
	if err := c.ops.Fail(ctx, op.ID, cause); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// pull получает изменения сервера после курсора. Сущности с неотправленными
// локальными операциями пропускаются: их обновит доставка операции.
func (c *Coordinator) pull(ctx context.Context, stage *cache.Stage, res *CycleResult) error {
	cur := entity.Cursor{Since: stage.Cursor()}
	for {
		changes, err := c.gw.Changes(ctx, cur, c.cfg.PullLimit)
		if err != nil {
			if Classify(err) == KindServer {
				return err
			}
			c.log.Warn("pull changes", "error", err)
			return nil
		}
		for _, e := range changes {
			if cur.Precedes(e) {
				cur = cur.Next(e)
			}
			if c.ops.HasPending(e.Key()) {
				continue
			}
			putRemote(stage, e)
			res.Pulled++
		}
		stage.SetCursor(cur.Since)
		if len(changes) < c.cfg.PullLimit {
			return nil
		}
	}
}

// refetch обновляет в кэше только перечисленные сущности
func (c *Coordinator) refetch(ctx context.Context, stage *cache.Stage, keys []entity.Key, res *CycleResult) error {
	for _, key := range keys {
		if c.ops.HasPending(key) {
			continue
		}
		e, err := c.gw.Fetch(ctx, key)
		switch {
		case errors.Is(err, entity.ErrNotFound):
			stage.Delete(key)
		case err != nil:
			if Classify(err) == KindServer {
				return err
			}
			c.log.Warn("refetch entity", "entity", key.String(), "error", err)
		default:
			putRemote(stage, e)
			res.Pulled++
		}
	}
	return nil
}

// revoke сервер отозвал устройство: все неотправленные операции недействительны
func (c *Coordinator) revoke(ctx context.Context, cause error) error {
	c.mu.Lock()
	c.revoked = true
	c.mu.Unlock()

	n, err := c.ops.InvalidateAll(ctx, cause)
	if err != nil {
		c.log.Error("invalidate operations", "error", err)
	}
	c.log.Warn("device revoked by server, sync stopped", "invalidated", n)
	return fmt.Errorf("%w: %d operations invalidated", device.ErrDeviceRevoked, n)
}

func localView(stage *cache.Stage, op *oplog.Operation) *entity.Entity {
	base, ok := stage.Get(op.Key())
	if !ok || op.Type == oplog.TypeCreate {
		base = &entity.Entity{Type: op.EntityType, ID: op.EntityID, Fields: map[string]any{}}
	}
	base.Patch(op.Payload.Fields, op.Timestamp)
	base.Deleted = op.Type == oplog.TypeDelete
	return base
}

func putRemote(stage *cache.Stage, e *entity.Entity) {
	if e.Deleted {
		stage.Delete(e.Key())
		return
	}
	stage.Put(e)
}

func pushRequest(op *oplog.Operation, fields map[string]any, typ oplog.Type, force bool) entity.PushRequest {
	return entity.PushRequest{
		OperationID:   op.ID,
		Type:          entity.OpType(typ),
		EntityType:    op.EntityType,
		EntityID:      op.EntityID,
		Seq:           op.Seq,
		Fields:        fields,
		BaseTimestamp: op.BaseTimestamp,
		Force:         force,
	}
}
