package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/exp/slog"

	"recipesync/internal/domain/cache"
	"recipesync/internal/domain/conflict"
	"recipesync/internal/domain/device"
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/oplog"
	"recipesync/internal/domain/settings"
	"recipesync/internal/metrics"
	"recipesync/internal/utils/clock"
)

// Deps компоненты, которыми управляет координатор
type Deps struct {
	Gateway   Gateway
	Log       *oplog.Log
	Conflicts *conflict.Store
	Cache     *cache.Cache
	Settings  *settings.Store
	Clock     clock.Clock
	IDs       clock.IDGenerator
	// Skew необязателен: оценка расхождения часов по ответу Ping
	Skew  SkewObserver
	Probe NetworkProbe
}

// Coordinator оркестрирует циклы синхронизации устройства.
// Одновременно выполняется не более одного цикла.
type Coordinator struct {
	gw        Gateway
	ops       *oplog.Log
	conflicts *conflict.Store
	cache     *cache.Cache
	settings  *settings.Store
	clock     clock.Clock
	ids       clock.IDGenerator
	skew      SkewObserver
	probe     NetworkProbe
	cfg       Config
	log       *slog.Logger

	breaker *gobreaker.CircuitBreaker[*CycleResult]

	// cycle семафор единственного цикла
	cycle    chan struct{}
	requests chan request
	reconfig chan struct{}

	mu      gosync.Mutex
	paused  bool
	online  bool
	revoked bool
	running bool

	statuses *hub[Status]
	results  *hub[CycleResult]
}

type request struct {
	id      string
	trigger Trigger
}

func NewCoordinator(deps Deps, cfg Config, log *slog.Logger) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.PullLimit <= 0 {
		cfg.PullLimit = DefaultConfig().PullLimit
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = DefaultConfig().BreakerThreshold
	}
	if cfg.ServerBackoff <= 0 {
		cfg.ServerBackoff = DefaultConfig().ServerBackoff
	}
	probe := deps.Probe
	if probe == nil {
		probe = AlwaysUnmetered{}
	}

	c := &Coordinator{
		gw:        deps.Gateway,
		ops:       deps.Log,
		conflicts: deps.Conflicts,
		cache:     deps.Cache,
		settings:  deps.Settings,
		clock:     deps.Clock,
		ids:       deps.IDs,
		skew:      deps.Skew,
		probe:     probe,
		cfg:       cfg,
		log:       log.With("component", "sync_coordinator"),
		cycle:     make(chan struct{}, 1),
		requests:  make(chan request, 8),
		reconfig:  make(chan struct{}, 1),
		online:    true,
		statuses:  newHub[Status](),
		results:   newHub[CycleResult](),
	}
	c.breaker = c.newBreaker()

	deps.Settings.OnChange(func(settings.Settings) {
		select {
		case c.reconfig <- struct{}{}:
		default:
		}
	})
	return c
}

func (c *Coordinator) newBreaker() *gobreaker.CircuitBreaker[*CycleResult] {
	return gobreaker.NewCircuitBreaker[*CycleResult](gobreaker.Settings{
		Name:        "account-server",
		MaxRequests: 1,
		Timeout:     c.cfg.ServerBackoff,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.cfg.BreakerThreshold
		},
		// только серверные ошибки откладывают весь цикл
		IsSuccessful: func(err error) bool {
			return !errors.Is(err, ErrServer)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("server backoff state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.Set(float64(to))
		},
	})
}

// Sync выполняет один цикл синхронизации
func (c *Coordinator) Sync(ctx context.Context, trig Trigger) (*CycleResult, error) {
	return c.sync(ctx, c.ids.New(), trig)
}

// SyncEntity принудительная синхронизация одной сущности
func (c *Coordinator) SyncEntity(ctx context.Context, key entity.Key) (*CycleResult, error) {
	if !key.Type.Valid() || key.ID == "" {
		return nil, fmt.Errorf("%w: %s", entity.ErrInvalidType, key)
	}
	return c.Sync(ctx, Trigger{Kind: TriggerEntity, Force: true, Entities: []entity.Key{key}})
}

// Request ставит цикл в очередь фонового цикла и сразу возвращает его ID
func (c *Coordinator) Request(trig Trigger) (string, error) {
	if err := c.admit(context.Background(), trig); err != nil {
		return "", err
	}
	c.mu.Lock()
	busy := c.running
	c.mu.Unlock()
	if busy {
		return "", ErrSyncInProgress
	}

	id := c.ids.New()
	select {
	case c.requests <- request{id: id, trigger: trig}:
		return id, nil
	default:
		return "", ErrSyncInProgress
	}
}

// admit проверяет, можно ли запускать цикл с этим триггером
func (c *Coordinator) admit(ctx context.Context, trig Trigger) error {
	c.mu.Lock()
	paused, revoked := c.paused, c.revoked
	c.mu.Unlock()

	switch {
	case revoked:
		return device.ErrDeviceRevoked
	case paused:
		return ErrPaused
	}
	if !trig.Force && c.settings.Get().SyncOnWiFiOnly && !c.probe.Unmetered(ctx) {
		return ErrMeteredNetwork
	}
	return nil
}

func (c *Coordinator) sync(ctx context.Context, id string, trig Trigger) (*CycleResult, error) {
	if err := c.admit(ctx, trig); err != nil {
		return nil, err
	}

	select {
	case c.cycle <- struct{}{}:
	default:
		return nil, ErrSyncInProgress
	}
	defer func() { <-c.cycle }()

	c.setRunning(true)
	started := c.clock.Now()

	res, err := c.breaker.Execute(func() (*CycleResult, error) {
		return c.runCycle(ctx, id, trig, started)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %v", ErrBackoff, err)
	}
	if res == nil {
		res = &CycleResult{ID: id, Trigger: trig.Kind, StartedAt: started}
	}
	res.FinishedAt = c.clock.Now()
	if err != nil {
		res.Error = err.Error()
	}

	c.setRunning(false)
	c.recordCycle(res, err)
	c.refresh()
	c.results.publish(*res)

	return res, err
}

func (c *Coordinator) recordCycle(res *CycleResult, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrOffline):
		outcome = "offline"
	case errors.Is(err, ErrBackoff):
		outcome = "backoff"
	case Classify(err) == KindRevoked:
		outcome = "revoked"
	case err != nil:
		outcome = "error"
	case res.Paused:
		outcome = "paused"
	}
	metrics.SyncCycles.WithLabelValues(outcome).Inc()
	metrics.SyncCycleDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())

	if err != nil && !errors.Is(err, ErrOffline) {
		c.log.Warn("sync cycle failed", "id", res.ID, "trigger", res.Trigger, "error", err)
		return
	}
	c.log.Info("sync cycle finished",
		"id", res.ID,
		"trigger", res.Trigger,
		"outcome", outcome,
		"pushed", res.Pushed,
		"pulled", res.Pulled,
		"conflicts", res.Conflicts,
		"failed", res.Failed,
	)
}

// Pause кооперативная пауза: текущий пакет завершается, следующий не начинается
func (c *Coordinator) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	c.refresh()
}

func (c *Coordinator) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.refresh()
}

// PauseAndWait ставит паузу и ждет завершения текущего цикла.
// Возвращает true, если координатор уже был на паузе.
func (c *Coordinator) PauseAndWait(ctx context.Context) (bool, error) {
	c.mu.Lock()
	already := c.paused
	c.paused = true
	c.mu.Unlock()
	c.refresh()

	select {
	case c.cycle <- struct{}{}:
		<-c.cycle
		return already, nil
	case <-ctx.Done():
		if !already {
			c.Resume()
		}
		return already, ctx.Err()
	}
}

func (c *Coordinator) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Coordinator) setRunning(v bool) {
	c.mu.Lock()
	c.running = v
	c.mu.Unlock()
	c.refresh()
}

func (c *Coordinator) setOnline(v bool) {
	c.mu.Lock()
	c.online = v
	c.mu.Unlock()
	if v {
		metrics.Online.Set(1)
	} else {
		metrics.Online.Set(0)
	}
}

// Status текущая проекция состояния
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	paused, online, revoked, running := c.paused, c.online, c.revoked, c.running
	c.mu.Unlock()

	st := Status{
		IsOnline:       online,
		SyncInProgress: running,
		PendingChanges: c.ops.PendingCount(),
		ConflictsCount: c.conflicts.OpenCount(),
		SyncErrors:     c.ops.Errors(),
		Revoked:        revoked,
	}
	if synced := c.cache.Snapshot().SyncedAt(); !synced.IsZero() {
		st.LastSyncTime = &synced
	}

	switch {
	case running:
		st.State = StateSyncing
	case paused || revoked:
		st.State = StatePaused
	case st.ConflictsCount > 0:
		st.State = StateConflictPending
	default:
		st.State = StateIdle
	}
	return st
}

// Subscribe поток статусов. Подписчик сразу получает текущий статус.
func (c *Coordinator) Subscribe() (<-chan Status, func()) {
	ch, cancel := c.statuses.subscribe()
	c.statuses.publish(c.Status())
	return ch, cancel
}

// Cycles поток итогов циклов
func (c *Coordinator) Cycles() (<-chan CycleResult, func()) {
	return c.results.subscribe()
}

func (c *Coordinator) refresh() {
	st := c.Status()
	metrics.PendingOperations.Set(float64(st.PendingChanges))
	metrics.OpenConflicts.Set(float64(st.ConflictsCount))
	c.statuses.publish(st)
}

// Enqueue принимает локальную мутацию. База операции - версия сущности в кэше.
func (c *Coordinator) Enqueue(ctx context.Context, op oplog.Operation) (*oplog.Operation, error) {
	if op.BaseTimestamp.IsZero() {
		if e, ok := c.cache.Snapshot().Get(op.Key()); ok {
			op.BaseTimestamp = e.UpdatedAt
			op.BaseVersion = e.Version
		}
	}
	stored, err := c.ops.Append(ctx, op)
	if err != nil {
		return nil, err
	}
	c.refresh()
	return stored, nil
}

// Retry ручной повтор операции
func (c *Coordinator) Retry(ctx context.Context, id string) (*oplog.Operation, error) {
	op, err := c.ops.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	c.refresh()
	return op, nil
}

// Cancel отмена неотправленной операции
func (c *Coordinator) Cancel(ctx context.Context, id string) error {
	if err := c.ops.Cancel(ctx, id); err != nil {
		return err
	}
	c.refresh()
	return nil
}

// ResolveConflict разрешает конфликт. Победа локальной стороны или слияние
// превращаются в принудительную операцию журнала, победа сервера ничего не
// отправляет: кэш уже содержит серверную версию.
func (c *Coordinator) ResolveConflict(ctx context.Context, id string, res conflict.Resolution, merged map[string]any, resolvedBy string) (*conflict.Conflict, error) {
	resolved, err := c.conflicts.Resolve(ctx, id, res, merged, resolvedBy, c.applyResolution)
	c.refresh()
	if err != nil {
		return resolved, err
	}
	c.afterResolution()
	return resolved, nil
}

// ResolveAllConflicts применяет решение ко всем конфликтам, открытым на момент вызова
func (c *Coordinator) ResolveAllConflicts(ctx context.Context, res conflict.Resolution, resolvedBy string) (int, error) {
	n, err := c.conflicts.ResolveAll(ctx, res, resolvedBy, c.applyResolution)
	c.refresh()
	if n > 0 {
		c.afterResolution()
	}
	return n, err
}

func (c *Coordinator) applyResolution(ctx context.Context, cf *conflict.Conflict, d conflict.Decision) error {
	if !d.Push() {
		return nil
	}
	op := oplog.Operation{
		Type:          opTypeFor(d, cf.RemoteVersion),
		EntityType:    cf.EntityType,
		EntityID:      cf.EntityID,
		Payload:       oplog.Payload{Fields: d.Patch},
		BaseTimestamp: cf.RemoteTimestamp,
		Force:         true,
		ConflictID:    cf.ID,
	}
	if cf.RemoteVersion != nil {
		op.BaseVersion = cf.RemoteVersion.Version
	}
	_, err := c.ops.Append(ctx, op)
	return err
}

// afterResolution отправляет принудительные операции, если включена автосинхронизация
func (c *Coordinator) afterResolution() {
	if !c.settings.Get().AutoSync {
		return
	}
	if _, err := c.Request(Trigger{Kind: TriggerResolution}); err != nil && !errors.Is(err, ErrSyncInProgress) {
		c.log.Debug("sync after resolution skipped", "error", err)
	}
}

// Reset очищает очередь и конфликты и заново загружает состояние с сервера
func (c *Coordinator) Reset(ctx context.Context, confirm bool) error {
	if !confirm {
		return ErrNotConfirmed
	}

	select {
	case c.cycle <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.cycle }()

	serverTime, err := c.gw.Ping(ctx)
	if err != nil {
		c.setOnline(false)
		c.refresh()
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	all, err := c.gw.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	if err := c.ops.Reset(ctx); err != nil {
		return fmt.Errorf("reset operation log: %w", err)
	}
	if err := c.conflicts.Reset(ctx); err != nil {
		return fmt.Errorf("reset conflicts: %w", err)
	}

	stage, err := c.cache.Begin(ctx)
	if err != nil {
		return err
	}
	stage.Clear()
	for _, e := range all {
		if !e.Deleted {
			stage.Put(e)
		}
	}
	stage.SetCursor(serverTime)
	stage.MarkSynced(c.clock.Now())
	if err := stage.Commit(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	c.setOnline(true)
	c.refresh()
	c.log.Warn("local sync state reset", "entities", len(all))
	return nil
}

// Serve фоновый цикл: таймер автосинхронизации и очередь запросов
func (c *Coordinator) Serve(ctx context.Context) error {
	timer := time.NewTimer(c.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-c.reconfig:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(c.interval())

		case <-timer.C:
			if c.settings.Get().AutoSync {
				c.runLogged(ctx, c.ids.New(), Trigger{Kind: TriggerTimer})
			}
			timer.Reset(c.interval())

		case req := <-c.requests:
			c.runLogged(ctx, req.id, req.trigger)
		}
	}
}

func (c *Coordinator) runLogged(ctx context.Context, id string, trig Trigger) {
	_, err := c.sync(ctx, id, trig)
	switch {
	case err == nil,
		errors.Is(err, ErrOffline),
		errors.Is(err, ErrPaused),
		errors.Is(err, ErrMeteredNetwork),
		errors.Is(err, ErrSyncInProgress):
	default:
		c.log.Debug("background sync ended with error", "id", id, "trigger", trig.Kind, "error", err)
	}
}

func (c *Coordinator) interval() time.Duration {
	d := c.settings.Get().Interval()
	if d <= 0 {
		d = 15 * time.Minute
	}
	return d
}

func opTypeFor(d conflict.Decision, remote *entity.Entity) oplog.Type {
	switch {
	case d.Delete:
		return oplog.TypeDelete
	case remote == nil || remote.Deleted:
		return oplog.TypeCreate
	}
	return oplog.TypeUpdate
}

func (c *Coordinator) String() string {
	return "sync-coordinator"
}
