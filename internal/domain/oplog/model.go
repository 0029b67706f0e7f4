package oplog

import (
	"time"

	"recipesync/internal/domain/entity"
)

// Type тип локальной мутации
type Type string

const (
	TypeCreate Type = "create"
	TypeUpdate Type = "update"
	TypeDelete Type = "delete"
)

// Status состояние операции в журнале
type Status string

const (
	StatusPending   Status = "pending"
	StatusSyncing   Status = "syncing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Payload изменённые поля сущности. nil-значение удаляет поле.
type Payload struct {
	Fields map[string]any `json:"fields,omitempty"`
}

// Operation локальная мутация, ожидающая отправки на сервер
type Operation struct {
	ID            string      `json:"id"`
	Type          Type        `json:"type" validate:"required,oneof=create update delete"`
	EntityType    entity.Type `json:"entity_type" validate:"required,oneof=recipe list plan profile"`
	EntityID      string      `json:"entity_id" validate:"required,max=128"`
	Seq           int64       `json:"seq"`
	Payload       Payload     `json:"payload"`
	BaseVersion   int64       `json:"base_version"`
	BaseTimestamp time.Time   `json:"base_timestamp"`
	// Force применяет операцию поверх серверной версии (результат разрешения конфликта)
	Force       bool      `json:"force,omitempty"`
	ConflictID  string    `json:"conflict_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Status      Status    `json:"status"`
	RetryCount  int       `json:"retry_count"`
	NextRetryAt time.Time `json:"next_retry_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	// Permanent операция не будет повторена автоматически
	Permanent bool `json:"permanent,omitempty"`
}

func (o *Operation) Key() entity.Key {
	return entity.Key{Type: o.EntityType, ID: o.EntityID}
}

func (o *Operation) clone() *Operation {
	c := *o
	if o.Payload.Fields != nil {
		c.Payload.Fields = make(map[string]any, len(o.Payload.Fields))
		for k, v := range o.Payload.Fields {
			c.Payload.Fields[k] = v
		}
	}
	return &c
}

// SyncError операция, исчерпавшая попытки и ожидающая ручного вмешательства
type SyncError struct {
	OperationID string      `json:"operation_id"`
	EntityType  entity.Type `json:"entity_type"`
	EntityID    string      `json:"entity_id"`
	Error       string      `json:"error"`
	RetryCount  int         `json:"retry_count"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Config параметры повторов и хранения
type Config struct {
	MaxRetryCount   int           `json:"max_retry_count"`
	BaseDelay       time.Duration `json:"base_delay"`
	MaxDelay        time.Duration `json:"max_delay"`
	RetainCompleted int           `json:"retain_completed"`
}

func DefaultConfig() Config {
	return Config{
		MaxRetryCount:   5,
		BaseDelay:       2 * time.Second,
		MaxDelay:        5 * time.Minute,
		RetainCompleted: 200,
	}
}

// Page параметры постраничной выборки
type Page struct {
	Page   int
	Limit  int
	Status Status
}
