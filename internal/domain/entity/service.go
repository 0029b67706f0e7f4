package entity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

// OpType тип операции, отправляемой устройством
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// PushRequest одна операция устройства
type PushRequest struct {
	OperationID   string         `json:"operation_id"`
	Type          OpType         `json:"type" enum:"create,update,delete"`
	EntityType    Type           `json:"entity_type" enum:"recipe,list,plan,profile"`
	EntityID      string         `json:"entity_id"`
	Seq           int64          `json:"seq"`
	Fields        map[string]any `json:"fields,omitempty"`
	BaseTimestamp time.Time      `json:"base_timestamp"`
	Force         bool           `json:"force,omitempty"`
}

// PushResult результат применения операции
type PushResult struct {
	Entity    *Entity `json:"entity,omitempty"`
	Duplicate bool    `json:"duplicate,omitempty"`
}

// StaleError возвращается, когда сервер изменил сущность после базовой версии операции
type StaleError struct {
	Current *Entity
}

func (e *StaleError) Error() string { return ErrStale.Error() }

func (e *StaleError) Unwrap() error { return ErrStale }

// DeviceGuard проверяет, что устройство не отозвано
type DeviceGuard interface {
	EnsureActive(ctx context.Context, accountID int, deviceID string) error
}

type Clock interface {
	Now() time.Time
}

type Servicer interface {
	Get(ctx context.Context, accountID int, key Key) (*Entity, error)
	List(ctx context.Context, accountID int) ([]*Entity, error)
	Changes(ctx context.Context, accountID int, cur Cursor, limit int) ([]*Entity, error)
	Push(ctx context.Context, accountID int, deviceID string, req PushRequest) (*PushResult, error)
	Now() time.Time
}

// Service каноническое хранилище сущностей на сервере
type Service struct {
	repo  Repository
	guard DeviceGuard
	clock Clock
	log   *slog.Logger
}

func NewService(repo Repository, guard DeviceGuard, clock Clock, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		guard: guard,
		clock: clock,
		log:   log.With("component", "entity_service"),
	}
}

// Now серверное время, по нему устройства оценивают расхождение часов
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

func (s *Service) Get(ctx context.Context, accountID int, key Key) (*Entity, error) {
	if !key.Type.Valid() {
		return nil, ErrInvalidType
	}
	return s.repo.Get(ctx, accountID, key)
}

func (s *Service) List(ctx context.Context, accountID int) ([]*Entity, error) {
	return s.repo.List(ctx, accountID)
}

func (s *Service) Changes(ctx context.Context, accountID int, cur Cursor, limit int) ([]*Entity, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	return s.repo.Changes(ctx, accountID, cur, limit)
}

// Push применяет операцию устройства. Сервер - точка сериализации конкурирующих записей:
// операция с устаревшей базой отклоняется с StaleError, если не задан Force.
func (s *Service) Push(ctx context.Context, accountID int, deviceID string, req PushRequest) (*PushResult, error) {
	if deviceID == "" {
		return nil, ErrDeviceMissing
	}
	if !req.EntityType.Valid() {
		return nil, ErrInvalidType
	}
	if req.EntityID == "" || req.Seq <= 0 {
		return nil, fmt.Errorf("%w: entity id and seq are required", ErrInvalidOp)
	}
	if err := s.guard.EnsureActive(ctx, accountID, deviceID); err != nil {
		return nil, err
	}

	key := Key{Type: req.EntityType, ID: req.EntityID}
	result := &PushResult{}

	err := s.repo.WithinEntity(ctx, accountID, key, func(tx Tx) error {
		current := tx.Current()

		if req.Seq <= tx.AppliedSeq(deviceID) {
			result.Duplicate = true
			result.Entity = current
			return nil
		}

		if !req.Force && current != nil && current.UpdatedAt.After(req.BaseTimestamp) {
			return &StaleError{Current: current}
		}

		next, err := s.apply(current, key, req)
		if err != nil {
			return err
		}
		if err := tx.Save(next, deviceID, req.Seq); err != nil {
			return fmt.Errorf("save entity: %w", err)
		}
		result.Entity = next
		return nil
	})
	if err != nil {
		var stale *StaleError
		if !errors.As(err, &stale) {
			s.log.Error("push failed", "account_id", accountID, "device_id", deviceID, "entity", key.String(), "error", err)
		}
		return nil, err
	}

	return result, nil
}

func (s *Service) apply(current *Entity, key Key, req PushRequest) (*Entity, error) {
	// хранилище держит метки с точностью до микросекунды
	now := s.clock.Now().Truncate(time.Microsecond)

	var next *Entity
	if current == nil {
		next = &Entity{Type: key.Type, ID: key.ID, Fields: map[string]any{}}
	} else {
		next = current.Clone()
	}

	switch req.Type {
	case OpCreate:
		if current != nil && !current.Deleted && !req.Force {
			return nil, fmt.Errorf("%w: entity %s already exists", ErrInvalidOp, key)
		}
		next.Deleted = false
		next.Fields = map[string]any{}
		next.FieldUpdatedAt = nil
		next.Patch(req.Fields, now)
	case OpUpdate:
		if current == nil {
			return nil, ErrNotFound
		}
		next.Deleted = false
		next.Patch(req.Fields, now)
	case OpDelete:
		if current == nil {
			return nil, ErrNotFound
		}
		next.Deleted = true
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOp, req.Type)
	}

	next.Version++
	next.UpdatedAt = now
	return next, nil
}
