package restore

import (
	"time"

	"recipesync/internal/domain/entity"
)

// Status состояние восстановления
type Status string

const (
	StatusPreparing Status = "preparing"
	StatusRestoring Status = "restoring"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Active восстановление еще выполняется
func (s Status) Active() bool {
	return s == StatusPreparing || s == StatusRestoring
}

// Policy как поступать с сущностью, которая отличается от живой версии
type Policy string

const (
	PolicySkip    Policy = "skip"
	PolicyReplace Policy = "replace"
	PolicyMerge   Policy = "merge"
	PolicyRename  Policy = "rename"
	PolicyAsk     Policy = "ask"
)

// Resolution исход расхождения. Пустое значение - решение за пользователем.
type Resolution string

const (
	ResolutionNone    Resolution = ""
	ResolutionSkip    Resolution = "skip"
	ResolutionReplace Resolution = "replace"
	ResolutionMerge   Resolution = "merge"
	ResolutionRename  Resolution = "rename"
)

// Conflict расхождение копии с живой версией сущности
type Conflict struct {
	EntityType   entity.Type    `json:"entity_type"`
	EntityID     string         `json:"entity_id"`
	ExistingItem *entity.Entity `json:"existing_item"`
	BackupItem   *entity.Entity `json:"backup_item"`
	Resolution   Resolution     `json:"resolution,omitempty"`
	// ConflictFields поля, которые не удалось слить автоматически
	ConflictFields []string `json:"conflict_fields,omitempty"`
	// RenamedTo новый ID копии при rename
	RenamedTo string `json:"renamed_to,omitempty"`
}

// Failure ошибка восстановления одной сущности
type Failure struct {
	EntityType entity.Type `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Error      string      `json:"error"`
}

// Restore сведения о восстановлении и его манифест
type Restore struct {
	ID                 string        `json:"id"`
	BackupID           string        `json:"backup_id"`
	Status             Status        `json:"status"`
	ConflictResolution Policy        `json:"conflict_resolution"`
	RestoreImages      bool          `json:"restore_images"`
	Progress           float64       `json:"progress"`
	Total              int           `json:"total"`
	Processed          int           `json:"processed"`
	ItemsRestored      entity.Counts `json:"items_restored"`
	Unchanged          int           `json:"unchanged"`
	Conflicts          []Conflict    `json:"conflicts"`
	Failures           []Failure     `json:"failures,omitempty"`
	StartedAt          time.Time     `json:"started_at"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	Error              string        `json:"error,omitempty"`
}

func (r *Restore) Clone() *Restore {
	c := *r
	c.Conflicts = append([]Conflict(nil), r.Conflicts...)
	c.Failures = append([]Failure(nil), r.Failures...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Request параметры восстановления
type Request struct {
	BackupID           string `json:"backup_id" validate:"required" minLength:"1"`
	ConflictResolution Policy `json:"conflict_resolution" validate:"required,oneof=skip replace merge rename ask" enum:"skip,replace,merge,rename,ask"`
	RestoreImages      bool   `json:"restore_images"`
}
