package sync

import (
	"time"

	"recipesync/internal/domain/device"
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/oplog"
)

// State состояние координатора
type State string

const (
	StateIdle            State = "idle"
	StateSyncing         State = "syncing"
	StatePaused          State = "paused"
	StateConflictPending State = "conflict_pending"
)

// Status производная проекция состояния синхронизации. Изменяется только координатором.
type Status struct {
	State          State             `json:"state"`
	IsOnline       bool              `json:"is_online"`
	LastSyncTime   *time.Time        `json:"last_sync_time,omitempty"`
	SyncInProgress bool              `json:"sync_in_progress"`
	PendingChanges int               `json:"pending_changes"`
	ConflictsCount int               `json:"conflicts_count"`
	SyncErrors     []oplog.SyncError `json:"sync_errors"`
	Revoked        bool              `json:"revoked,omitempty"`
}

// TriggerKind источник запуска цикла
type TriggerKind string

const (
	TriggerManual     TriggerKind = "manual"
	TriggerTimer      TriggerKind = "timer"
	TriggerForeground TriggerKind = "foreground"
	TriggerEntity     TriggerKind = "entity"
	TriggerResolution TriggerKind = "resolution"
)

// Trigger запрос на цикл синхронизации
type Trigger struct {
	Kind  TriggerKind
	Force bool
	// Entities ограничивает цикл перечисленными сущностями
	Entities []entity.Key
}

// CycleResult итог одного цикла, публикуется подписчикам (планировщик резервных копий)
type CycleResult struct {
	ID         string        `json:"id"`
	Trigger    TriggerKind   `json:"trigger"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Pushed     int           `json:"pushed"`
	Duplicates int           `json:"duplicates"`
	Pulled     int           `json:"pulled"`
	Conflicts  int           `json:"conflicts"`
	Failed     int           `json:"failed"`
	Paused     bool          `json:"paused,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"-"`
}

// Clean цикл завершился без ошибок, новых конфликтов и неудачных операций
func (r CycleResult) Clean() bool {
	return r.Error == "" && !r.Paused && r.Conflicts == 0 && r.Failed == 0
}

// Config параметры координатора
type Config struct {
	BatchSize int
	PullLimit int
	// BreakerThreshold число подряд идущих серверных ошибок, после которых циклы откладываются
	BreakerThreshold uint32
	ServerBackoff    time.Duration
	Device           device.TouchRequest
}

func DefaultConfig() Config {
	return Config{
		BatchSize:        50,
		PullLimit:        500,
		BreakerThreshold: 1,
		ServerBackoff:    time.Minute,
	}
}
