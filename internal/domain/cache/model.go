package cache

import (
	"sort"
	"time"

	"recipesync/internal/domain/entity"
)

// State сохраняемое содержимое кэша
type State struct {
	Entities []*entity.Entity
	// Applied наибольший Seq локальной операции, подтвержденной сервером, по сущностям
	Applied map[entity.Key]int64
	// Cursor метка времени сервера, с которой запрашиваются следующие изменения
	Cursor   time.Time
	SyncedAt time.Time
}

// Snapshot неизменяемый снимок кэша. Читатели всегда видят либо предыдущий
// полный снимок, либо новый.
type Snapshot struct {
	entities map[entity.Key]*entity.Entity
	applied  map[entity.Key]int64
	cursor   time.Time
	syncedAt time.Time
}

func newSnapshot(st State) *Snapshot {
	s := &Snapshot{
		entities: make(map[entity.Key]*entity.Entity, len(st.Entities)),
		applied:  make(map[entity.Key]int64, len(st.Applied)),
		cursor:   st.Cursor,
		syncedAt: st.SyncedAt,
	}
	for _, e := range st.Entities {
		s.entities[e.Key()] = e.Clone()
	}
	for k, v := range st.Applied {
		s.applied[k] = v
	}
	return s
}

// Get копия сущности из снимка
func (s *Snapshot) Get(key entity.Key) (*entity.Entity, bool) {
	e, ok := s.entities[key]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Entities копии всех сущностей в стабильном порядке
func (s *Snapshot) Entities() []*entity.Entity {
	out := make([]*entity.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e.Clone())
	}
	sortEntities(out)
	return out
}

func (s *Snapshot) Len() int {
	return len(s.entities)
}

func (s *Snapshot) Counts() entity.Counts {
	var c entity.Counts
	for _, e := range s.entities {
		if !e.Deleted {
			c.Add(e.Type)
		}
	}
	return c
}

func (s *Snapshot) Applied(key entity.Key) int64 {
	return s.applied[key]
}

func (s *Snapshot) Cursor() time.Time {
	return s.cursor
}

func (s *Snapshot) SyncedAt() time.Time {
	return s.syncedAt
}

func (s *Snapshot) state() State {
	st := State{
		Entities: make([]*entity.Entity, 0, len(s.entities)),
		Applied:  make(map[entity.Key]int64, len(s.applied)),
		Cursor:   s.cursor,
		SyncedAt: s.syncedAt,
	}
	for _, e := range s.entities {
		st.Entities = append(st.Entities, e)
	}
	sortEntities(st.Entities)
	for k, v := range s.applied {
		st.Applied[k] = v
	}
	return st
}

func sortEntities(es []*entity.Entity) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Type != es[j].Type {
			return es[i].Type < es[j].Type
		}
		return es[i].ID < es[j].ID
	})
}
