package conflict

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/exp/slog"

	"recipesync/internal/domain/entity"
	"recipesync/internal/utils/clock"
)

// Applier применяет решение по конфликту: ставит принудительную операцию
// в журнал или обновляет кэш. Вызывается под блокировкой сущности.
type Applier func(ctx context.Context, c *Conflict, d Decision) error

// Store реестр конфликтов устройства: не более одного открытого конфликта на сущность
type Store struct {
	repo  Repository
	clock clock.Clock
	ids   clock.IDGenerator
	log   *slog.Logger

	mu    sync.Mutex
	items map[string]*Conflict
	open  map[entity.Key]string

	locksMu sync.Mutex
	locks   map[entity.Key]*sync.Mutex
}

func Open(ctx context.Context, repo Repository, clk clock.Clock, ids clock.IDGenerator, log *slog.Logger) (*Store, error) {
	s := &Store{
		repo:  repo,
		clock: clk,
		ids:   ids,
		log:   log.With("component", "conflict_store"),
		items: make(map[string]*Conflict),
		open:  make(map[entity.Key]string),
		locks: make(map[entity.Key]*sync.Mutex),
	}

	all, err := repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load conflicts: %w", err)
	}
	for _, c := range all {
		s.items[c.ID] = c
		if c.Open() {
			s.open[c.Key()] = c.ID
		}
	}
	return s, nil
}

func (s *Store) lockEntity(key entity.Key) func() {
	s.locksMu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

// Record сохраняет новый конфликт. Если по сущности уже есть открытый, он
// замещается на месте: тот же ID, новые версии, объединение полей и самая
// ранняя локальная метка времени.
func (s *Store) Record(ctx context.Context, c Conflict) (*Conflict, bool, error) {
	key := c.Key()
	unlock := s.lockEntity(key)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.open[key]; ok {
		prev := s.items[id]
		next := prev.Clone()
		next.LocalVersion = c.LocalVersion.Clone()
		next.RemoteVersion = c.RemoteVersion.Clone()
		next.RemoteTimestamp = c.RemoteTimestamp
		next.LocalDeleted = c.LocalDeleted
		if next.LocalChanges == nil {
			next.LocalChanges = make(map[string]any, len(c.LocalChanges))
		}
		for k, v := range c.LocalChanges {
			next.LocalChanges[k] = v
		}
		next.RemoteChanged = unionStrings(prev.RemoteChanged, c.RemoteChanged)
		next.ConflictFields = unionStrings(prev.ConflictFields, c.ConflictFields)
		if c.LocalTimestamp.Before(prev.LocalTimestamp) {
			next.LocalTimestamp = c.LocalTimestamp
		}

		if err := s.repo.Save(ctx, next); err != nil {
			return nil, false, fmt.Errorf("save conflict: %w", err)
		}
		s.items[id] = next
		s.log.Info("conflict superseded", "id", id, "entity", key.String(), "fields", next.ConflictFields)
		return next.Clone(), true, nil
	}

	stored := c.Clone()
	stored.ID = s.ids.New()
	stored.CreatedAt = s.clock.Now()
	stored.Resolution = ""
	stored.ResolvedAt = nil
	stored.ResolvedBy = ""
	if err := s.repo.Save(ctx, stored); err != nil {
		return nil, false, fmt.Errorf("save conflict: %w", err)
	}
	s.items[stored.ID] = stored
	s.open[key] = stored.ID
	s.log.Info("conflict opened", "id", stored.ID, "entity", key.String(), "fields", stored.ConflictFields)
	return stored.Clone(), false, nil
}

// Resolve разрешает открытый конфликт выбранной стороной. Для merge поля,
// измененные обеими сторонами, должны быть в mergedData, иначе конфликт
// остается открытым только с этими полями и возвращается ErrIrreconcilable.
func (s *Store) Resolve(ctx context.Context, id string, res Resolution, merged map[string]any, resolvedBy string, apply Applier) (*Conflict, error) {
	if !res.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, res)
	}

	s.mu.Lock()
	c, ok := s.items[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	unlock := s.lockEntity(c.Key())
	defer unlock()

	s.mu.Lock()
	current := s.items[id].Clone()
	s.mu.Unlock()
	if !current.Open() {
		return nil, ErrAlreadyResolved
	}

	d, err := Resolve(inputOf(current, merged), Policy(res))
	if errors.Is(err, ErrIrreconcilable) {
		current.ConflictFields = d.ConflictFields
		if saveErr := s.save(ctx, current); saveErr != nil {
			return nil, saveErr
		}
		return current, err
	}
	if err != nil {
		return nil, err
	}
	// решение относится к выбранной пользователем стороне, а не к автоматическому объединению
	d.Resolution = res

	// решение сохраняется до применения: при ошибке применения оно откатывается
	now := s.clock.Now()
	resolved := current.Clone()
	resolved.Resolution = res
	resolved.ResolvedAt = &now
	resolved.ResolvedBy = resolvedBy
	if err := s.save(ctx, resolved); err != nil {
		return nil, err
	}

	if apply != nil {
		if err := apply(ctx, resolved, d); err != nil {
			cause := fmt.Errorf("apply resolution: %w", err)
			if rbErr := s.save(ctx, current); rbErr != nil {
				s.log.Error("reopen conflict after failed apply", "id", id, "error", rbErr)
				return nil, errors.Join(cause, rbErr)
			}
			return nil, cause
		}
	}

	s.mu.Lock()
	if s.open[resolved.Key()] == resolved.ID {
		delete(s.open, resolved.Key())
	}
	s.mu.Unlock()

	s.log.Info("conflict resolved", "id", id, "entity", resolved.Key().String(), "resolution", res, "by", resolvedBy)
	return resolved.Clone(), nil
}

// ResolveAll применяет одно решение ко всем конфликтам, открытым на момент вызова.
// Конфликты, появившиеся во время обхода, не затрагиваются.
func (s *Store) ResolveAll(ctx context.Context, res Resolution, resolvedBy string, apply Applier) (int, error) {
	if !res.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, res)
	}

	s.mu.Lock()
	snapshot := make([]*Conflict, 0, len(s.open))
	for _, id := range s.open {
		snapshot = append(snapshot, s.items[id])
	}
	s.mu.Unlock()
	sortConflicts(snapshot)

	resolved := 0
	var errs []error
	for _, c := range snapshot {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, err := s.Resolve(ctx, c.ID, res, nil, resolvedBy, apply)
		switch {
		case err == nil:
			resolved++
		case errors.Is(err, ErrAlreadyResolved), errors.Is(err, ErrIrreconcilable):
		default:
			errs = append(errs, fmt.Errorf("conflict %s: %w", c.ID, err))
		}
	}
	return resolved, errors.Join(errs...)
}

func (s *Store) save(ctx context.Context, c *Conflict) error {
	if err := s.repo.Save(ctx, c); err != nil {
		return fmt.Errorf("save conflict: %w", err)
	}
	s.mu.Lock()
	s.items[c.ID] = c.Clone()
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(id string) (*Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// OpenFor открытый конфликт по сущности
func (s *Store) OpenFor(key entity.Key) (*Conflict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.open[key]
	if !ok {
		return nil, false
	}
	return s.items[id].Clone(), true
}

func (s *Store) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// List конфликты от новых к старым, открытые первыми
func (s *Store) List(p Page) ([]*Conflict, bool) {
	s.mu.Lock()
	all := make([]*Conflict, 0, len(s.items))
	for _, c := range s.items {
		if p.OnlyOpen && !c.Open() {
			continue
		}
		all = append(all, c)
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Open() != all[j].Open() {
			return all[i].Open()
		}
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	page, limit := p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return []*Conflict{}, false
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]*Conflict, 0, end-start)
	for _, c := range all[start:end] {
		out = append(out, c.Clone())
	}
	return out, end < len(all)
}

// Reset удаляет все конфликты устройства
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete conflicts: %w", err)
	}
	s.items = make(map[string]*Conflict)
	s.open = make(map[entity.Key]string)
	return nil
}

func inputOf(c *Conflict, merged map[string]any) Input {
	return Input{
		Local:           c.LocalVersion,
		Remote:          c.RemoteVersion,
		LocalFields:     c.LocalChanges,
		LocalDeleted:    c.LocalDeleted,
		RemoteFields:    c.RemoteChanged,
		LocalTimestamp:  c.LocalTimestamp,
		RemoteTimestamp: c.RemoteTimestamp,
		MergedData:      merged,
	}
}

func sortConflicts(cs []*Conflict) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
