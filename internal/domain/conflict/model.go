package conflict

import (
	"time"

	"recipesync/internal/domain/entity"
)

// Policy правило разрешения конфликта
type Policy string

const (
	PolicyLocal  Policy = "local"
	PolicyRemote Policy = "remote"
	PolicyNewest Policy = "newest"
	PolicyAsk    Policy = "ask"
	// PolicyMerge только по решению пользователя для уже созданного конфликта
	PolicyMerge Policy = "merge"
)

func (p Policy) Valid() bool {
	switch p {
	case PolicyLocal, PolicyRemote, PolicyNewest, PolicyAsk, PolicyMerge:
		return true
	}
	return false
}

// Resolution чья версия в итоге принята
type Resolution string

const (
	ResolutionLocal  Resolution = "local"
	ResolutionRemote Resolution = "remote"
	ResolutionMerge  Resolution = "merge"
)

func (r Resolution) Valid() bool {
	switch r {
	case ResolutionLocal, ResolutionRemote, ResolutionMerge:
		return true
	}
	return false
}

// Conflict расхождение локальной и серверной версий одной сущности
type Conflict struct {
	ID         string      `json:"id"`
	EntityType entity.Type `json:"entity_type"`
	EntityID   string      `json:"entity_id"`

	LocalVersion  *entity.Entity `json:"local_version"`
	RemoteVersion *entity.Entity `json:"remote_version"`
	// LocalChanges локальный патч, который не удалось применить
	LocalChanges map[string]any `json:"local_changes,omitempty"`
	LocalDeleted bool           `json:"local_deleted,omitempty"`
	// RemoteChanged поля, измененные на сервере после базы локальной правки
	RemoteChanged []string `json:"remote_changed,omitempty"`

	LocalTimestamp  time.Time `json:"local_timestamp"`
	RemoteTimestamp time.Time `json:"remote_timestamp"`
	ConflictFields  []string  `json:"conflict_fields"`

	Resolution Resolution `json:"resolution,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (c *Conflict) Key() entity.Key {
	return entity.Key{Type: c.EntityType, ID: c.EntityID}
}

// Open конфликт еще не разрешен
func (c *Conflict) Open() bool {
	return c.ResolvedAt == nil
}

func (c *Conflict) Clone() *Conflict {
	if c == nil {
		return nil
	}
	cp := *c
	cp.LocalVersion = c.LocalVersion.Clone()
	cp.RemoteVersion = c.RemoteVersion.Clone()
	if c.LocalChanges != nil {
		cp.LocalChanges = make(map[string]any, len(c.LocalChanges))
		for k, v := range c.LocalChanges {
			cp.LocalChanges[k] = v
		}
	}
	cp.RemoteChanged = append([]string(nil), c.RemoteChanged...)
	cp.ConflictFields = append([]string(nil), c.ConflictFields...)
	if c.ResolvedAt != nil {
		at := *c.ResolvedAt
		cp.ResolvedAt = &at
	}
	return &cp
}

// Page параметры постраничной выборки
type Page struct {
	Page     int
	Limit    int
	OnlyOpen bool
}
