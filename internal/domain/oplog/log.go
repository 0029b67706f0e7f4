package oplog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"recipesync/internal/domain/entity"
	"recipesync/internal/utils/clock"
	"recipesync/internal/utils/validate"
)

// Log упорядоченная очередь локальных мутаций устройства.
// Добавлять операции могут многие, забирает на отправку один координатор.
type Log struct {
	repo  Repository
	clock clock.Clock
	ids   clock.IDGenerator
	cfg   Config
	log   *slog.Logger

	mu   sync.Mutex
	ops  map[string]*Operation
	seqs map[entity.Key]int64
	// locks токен блокировки сущности - ID операции в полете
	locks map[entity.Key]string
	// bases последняя версия сервера, которую видело устройство
	bases map[entity.Key]base
}

type base struct {
	at      time.Time
	version int64
}

// Open загружает журнал из хранилища. Операции, оставшиеся в syncing после
// аварийного завершения, возвращаются в pending без расхода попытки.
func Open(ctx context.Context, repo Repository, clk clock.Clock, ids clock.IDGenerator, cfg Config, log *slog.Logger) (*Log, error) {
	l := &Log{
		repo:  repo,
		clock: clk,
		ids:   ids,
		cfg:   cfg,
		log:   log.With("component", "oplog"),
		ops:   make(map[string]*Operation),
		locks: make(map[entity.Key]string),
		bases: make(map[entity.Key]base),
	}

	seqs, err := repo.LoadSequences(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sequences: %w", err)
	}
	l.seqs = seqs

	ops, err := repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load operations: %w", err)
	}
	recovered := 0
	for _, op := range ops {
		if op.Status == StatusSyncing {
			op.Status = StatusPending
			if err := repo.Save(ctx, op); err != nil {
				return nil, fmt.Errorf("recover operation %s: %w", op.ID, err)
			}
			recovered++
		}
		l.ops[op.ID] = op
		if op.Seq > l.seqs[op.Key()] {
			l.seqs[op.Key()] = op.Seq
		}
	}
	if recovered > 0 {
		l.log.Warn("operations returned to queue after restart", "count", recovered)
	}
	return l, nil
}

func (l *Log) Config() Config {
	return l.cfg
}

// Append ставит мутацию в очередь и присваивает ей следующий порядковый номер сущности
func (l *Log) Append(ctx context.Context, op Operation) (*Operation, error) {
	if err := validate.Struct(op); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	if op.Type != TypeDelete && len(op.Payload.Fields) == 0 && !op.Force {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidOperation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := op.Key()
	seq := l.seqs[key] + 1
	if err := l.repo.SaveSequence(ctx, key, seq); err != nil {
		return nil, fmt.Errorf("save sequence: %w", err)
	}
	l.seqs[key] = seq

	if op.ID == "" {
		op.ID = l.ids.New()
	}
	// базу снимают с кэша, который обновляется только в конце цикла
	if b, ok := l.bases[key]; ok && op.BaseTimestamp.Before(b.at) {
		op.BaseTimestamp = b.at
		op.BaseVersion = b.version
	}
	op.Seq = seq
	op.Timestamp = l.clock.Now()
	op.Status = StatusPending
	op.RetryCount = 0
	op.NextRetryAt = time.Time{}
	op.LastError = ""
	op.Permanent = false

	stored := op.clone()
	if err := l.repo.Save(ctx, stored); err != nil {
		return nil, fmt.Errorf("save operation: %w", err)
	}
	l.ops[stored.ID] = stored

	l.log.Debug("operation appended", "id", stored.ID, "entity", key.String(), "seq", seq, "type", stored.Type)
	return stored.clone(), nil
}

// Drain забирает до batchSize готовых к отправке операций и переводит их в syncing.
// Для каждой сущности рассматривается только головная (с наименьшим Seq) незавершенная
// операция, поэтому операции одной сущности уходят на сервер строго по порядку.
// Если задан only, рассматриваются только перечисленные сущности.
func (l *Log) Drain(ctx context.Context, batchSize int, only ...entity.Key) ([]*Operation, error) {
	if batchSize <= 0 {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var filter map[entity.Key]struct{}
	if len(only) > 0 {
		filter = make(map[entity.Key]struct{}, len(only))
		for _, k := range only {
			filter[k] = struct{}{}
		}
	}

	heads := make(map[entity.Key]*Operation)
	for _, op := range l.ops {
		if op.Status == StatusCompleted {
			continue
		}
		key := op.Key()
		if h, ok := heads[key]; !ok || op.Seq < h.Seq {
			heads[key] = op
		}
	}

	now := l.clock.Now()
	ready := make([]*Operation, 0, len(heads))
	for key, op := range heads {
		if _, locked := l.locks[key]; locked {
			continue
		}
		if filter != nil {
			if _, ok := filter[key]; !ok {
				continue
			}
		}
		if l.eligible(op, now) {
			ready = append(ready, op)
		}
	}
	sortQueue(ready)
	if len(ready) > batchSize {
		ready = ready[:batchSize]
	}

	out := make([]*Operation, 0, len(ready))
	for _, op := range ready {
		prev := op.Status
		op.Status = StatusSyncing
		if err := l.repo.Save(ctx, op); err != nil {
			op.Status = prev
			return out, fmt.Errorf("mark syncing %s: %w", op.ID, err)
		}
		l.locks[op.Key()] = op.ID
		out = append(out, op.clone())
	}
	return out, nil
}

func (l *Log) eligible(op *Operation, now time.Time) bool {
	switch op.Status {
	case StatusPending:
		return true
	case StatusFailed:
		return !l.exhausted(op) && !op.NextRetryAt.After(now)
	}
	return false
}

func (l *Log) exhausted(op *Operation) bool {
	return op.Status == StatusFailed && (op.Permanent || op.RetryCount >= l.cfg.MaxRetryCount)
}

// Ack подтверждает доставку операции
func (l *Log) Ack(ctx context.Context, id string) error {
	return l.complete(ctx, id, "")
}

// AckConflict завершает операцию, переданную в открытый конфликт
func (l *Log) AckConflict(ctx context.Context, id, conflictID string) error {
	return l.complete(ctx, id, conflictID)
}

func (l *Log) complete(ctx context.Context, id, conflictID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	op, err := l.inFlight(id)
	if err != nil {
		return err
	}
	op.Status = StatusCompleted
	op.ConflictID = conflictID
	op.LastError = ""
	op.NextRetryAt = time.Time{}
	if err := l.repo.Save(ctx, op); err != nil {
		return fmt.Errorf("save operation: %w", err)
	}
	delete(l.locks, op.Key())

	return l.trimCompleted(ctx)
}

// Fail фиксирует неудачную попытку. Постоянные ошибки исчерпывают попытки сразу,
// остальные планируют повтор с экспоненциальной задержкой.
func (l *Log) Fail(ctx context.Context, id string, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	op, err := l.inFlight(id)
	if err != nil {
		return err
	}

	op.Status = StatusFailed
	op.RetryCount++
	if cause != nil {
		op.LastError = cause.Error()
	}
	if isPermanent(cause) {
		op.Permanent = true
		if op.RetryCount < l.cfg.MaxRetryCount {
			op.RetryCount = l.cfg.MaxRetryCount
		}
		op.NextRetryAt = time.Time{}
	} else {
		op.NextRetryAt = l.clock.Now().Add(Backoff(l.cfg, op.RetryCount))
	}
	if err := l.repo.Save(ctx, op); err != nil {
		return fmt.Errorf("save operation: %w", err)
	}
	delete(l.locks, op.Key())

	if l.exhausted(op) {
		l.log.Warn("operation exhausted retries", "id", op.ID, "entity", op.Key().String(), "error", op.LastError)
	}
	return nil
}

// Release возвращает операцию в очередь без расхода попытки
func (l *Log) Release(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	op, err := l.inFlight(id)
	if err != nil {
		return err
	}
	if op.RetryCount > 0 {
		op.Status = StatusFailed
	} else {
		op.Status = StatusPending
	}
	if err := l.repo.Save(ctx, op); err != nil {
		return fmt.Errorf("save operation: %w", err)
	}
	delete(l.locks, op.Key())
	return nil
}

func (l *Log) inFlight(id string) (*Operation, error) {
	op, ok := l.ops[id]
	if !ok {
		return nil, ErrNotFound
	}
	if op.Status != StatusSyncing || l.locks[op.Key()] != id {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, op.Status)
	}
	return op, nil
}

// Retry ручной повтор неудачной операции: счетчик попыток сбрасывается
func (l *Log) Retry(ctx context.Context, id string) (*Operation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	op, ok := l.ops[id]
	if !ok {
		return nil, ErrNotFound
	}
	if op.Status != StatusFailed {
		return nil, fmt.Errorf("%w: only failed operations can be retried", ErrInvalidTransition)
	}

	op.Status = StatusPending
	op.RetryCount = 0
	op.Permanent = false
	op.NextRetryAt = time.Time{}
	op.LastError = ""
	if err := l.repo.Save(ctx, op); err != nil {
		return nil, fmt.Errorf("save operation: %w", err)
	}
	return op.clone(), nil
}

// Rebase переносит базу ожидающих операций сущности на версию сервера, которую
// устройство уже увидело. Иначе собственные записи устройства выглядели бы
// как чужие изменения при отправке следующих операций. Версия запоминается и
// для операций, добавленных позже.
func (l *Log) Rebase(ctx context.Context, seen *entity.Entity) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := seen.Key()
	if b, ok := l.bases[key]; !ok || b.at.Before(seen.UpdatedAt) {
		l.bases[key] = base{at: seen.UpdatedAt, version: seen.Version}
	}

	n := 0
	for _, op := range l.ops {
		if op.Key() != key || op.Status == StatusCompleted || op.Status == StatusSyncing {
			continue
		}
		if !op.BaseTimestamp.Before(seen.UpdatedAt) {
			continue
		}
		op.BaseTimestamp = seen.UpdatedAt
		op.BaseVersion = seen.Version
		if err := l.repo.Save(ctx, op); err != nil {
			return n, fmt.Errorf("rebase operation %s: %w", op.ID, err)
		}
		n++
	}
	return n, nil
}

// Cancel удаляет неотправленную операцию из очереди
func (l *Log) Cancel(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	op, ok := l.ops[id]
	if !ok {
		return ErrNotFound
	}
	switch op.Status {
	case StatusSyncing:
		return ErrInFlight
	case StatusCompleted:
		return fmt.Errorf("%w: operation already completed", ErrInvalidTransition)
	}

	if err := l.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete operation: %w", err)
	}
	delete(l.ops, id)
	l.log.Info("operation cancelled", "id", id, "entity", op.Key().String())
	return nil
}

func (l *Log) Get(id string) (*Operation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	op, ok := l.ops[id]
	if !ok {
		return nil, ErrNotFound
	}
	return op.clone(), nil
}

// List постраничный список операций в порядке очереди
func (l *Log) List(p Page) ([]*Operation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := make([]*Operation, 0, len(l.ops))
	for _, op := range l.ops {
		if p.Status != "" && op.Status != p.Status {
			continue
		}
		all = append(all, op)
	}
	sortQueue(all)

	page, limit := normalizePage(p.Page, p.Limit)
	start := (page - 1) * limit
	if start >= len(all) {
		return []*Operation{}, false
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}

	out := make([]*Operation, 0, end-start)
	for _, op := range all[start:end] {
		out = append(out, op.clone())
	}
	return out, end < len(all)
}

// PendingCount число незавершенных операций
func (l *Log) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, op := range l.ops {
		if op.Status != StatusCompleted {
			n++
		}
	}
	return n
}

// HasPending есть ли у сущности незавершенные операции
func (l *Log) HasPending(key entity.Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, op := range l.ops {
		if op.Status != StatusCompleted && op.Key() == key {
			return true
		}
	}
	return false
}

// Errors операции, исчерпавшие попытки. Они остаются в журнале до ручного повтора или отмены.
func (l *Log) Errors() []SyncError {
	l.mu.Lock()
	defer l.mu.Unlock()

	var failed []*Operation
	for _, op := range l.ops {
		if l.exhausted(op) {
			failed = append(failed, op)
		}
	}
	sortQueue(failed)

	out := make([]SyncError, 0, len(failed))
	for _, op := range failed {
		out = append(out, SyncError{
			OperationID: op.ID,
			EntityType:  op.EntityType,
			EntityID:    op.EntityID,
			Error:       op.LastError,
			RetryCount:  op.RetryCount,
			Timestamp:   op.Timestamp,
		})
	}
	return out
}

// Reset очищает очередь. Счетчики порядковых номеров сохраняются, иначе сервер
// принял бы новые операции за уже примененные.
func (l *Log) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.locks) > 0 {
		return ErrInFlight
	}
	if err := l.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete operations: %w", err)
	}
	l.ops = make(map[string]*Operation)
	l.log.Info("operation log reset")
	return nil
}

// InvalidateAll переводит все незавершенные операции в окончательно неудачные.
// Используется, когда сервер отозвал устройство.
func (l *Log) InvalidateAll(ctx context.Context, reason error) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := "invalidated"
	if reason != nil {
		msg = reason.Error()
	}

	n := 0
	var errs []error
	for _, op := range l.ops {
		if op.Status == StatusCompleted {
			continue
		}
		op.Status = StatusFailed
		op.Permanent = true
		op.LastError = msg
		op.NextRetryAt = time.Time{}
		if op.RetryCount < l.cfg.MaxRetryCount {
			op.RetryCount = l.cfg.MaxRetryCount
		}
		if err := l.repo.Save(ctx, op); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	l.locks = make(map[entity.Key]string)

	l.log.Warn("operations invalidated", "count", n, "reason", msg)
	return n, errors.Join(errs...)
}

// trimCompleted удаляет самые старые завершенные операции сверх RetainCompleted
func (l *Log) trimCompleted(ctx context.Context) error {
	if l.cfg.RetainCompleted < 0 {
		return nil
	}
	var done []*Operation
	for _, op := range l.ops {
		if op.Status == StatusCompleted {
			done = append(done, op)
		}
	}
	excess := len(done) - l.cfg.RetainCompleted
	if excess <= 0 {
		return nil
	}
	sortQueue(done)
	for _, op := range done[:excess] {
		if err := l.repo.Delete(ctx, op.ID); err != nil {
			return fmt.Errorf("trim completed: %w", err)
		}
		delete(l.ops, op.ID)
	}
	return nil
}

// Backoff задержка перед повтором номер retry: min(base * 2^(retry-1), max)
func Backoff(cfg Config, retry int) time.Duration {
	if retry <= 0 {
		return 0
	}
	d := cfg.BaseDelay
	for i := 1; i < retry; i++ {
		d *= 2
		if cfg.MaxDelay > 0 && d >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return d
}

func sortQueue(ops []*Operation) {
	sort.Slice(ops, func(i, j int) bool {
		if !ops[i].Timestamp.Equal(ops[j].Timestamp) {
			return ops[i].Timestamp.Before(ops[j].Timestamp)
		}
		if ops[i].Seq != ops[j].Seq {
			return ops[i].Seq < ops[j].Seq
		}
		return ops[i].ID < ops[j].ID
	})
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
