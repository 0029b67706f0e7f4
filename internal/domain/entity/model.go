package entity

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Type тип синхронизируемой сущности
type Type string

const (
	TypeRecipe  Type = "recipe"
	TypeList    Type = "list"
	TypePlan    Type = "plan"
	TypeProfile Type = "profile"
)

// Types все поддерживаемые типы в порядке вывода
var Types = []Type{TypeRecipe, TypeList, TypePlan, TypeProfile}

// Valid проверяет, что тип сущности известен
func (t Type) Valid() bool {
	switch t {
	case TypeRecipe, TypeList, TypePlan, TypeProfile:
		return true
	}
	return false
}

// ImageFields поля с изображениями, которые отбрасываются при includeImages=false
var ImageFields = []string{"image", "images", "imageUrl"}

// Key однозначно идентифицирует сущность внутри аккаунта
type Key struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
}

func (k Key) String() string {
	return string(k.Type) + "/" + k.ID
}

// Less порядок ключей в потоке изменений при равных метках времени
func (k Key) Less(o Key) bool {
	if k.Type != o.Type {
		return k.Type < o.Type
	}
	return k.ID < o.ID
}

// Cursor позиция в потоке изменений, упорядоченном по (updatedAt, type, id).
// After - последняя полученная сущность с меткой Since; пустой After
// означает строго после Since.
type Cursor struct {
	Since time.Time
	After Key
}

// Precedes true, если e идет в потоке после курсора
func (c Cursor) Precedes(e *Entity) bool {
	switch {
	case e.UpdatedAt.After(c.Since):
		return true
	case !e.UpdatedAt.Equal(c.Since) || c.After == (Key{}):
		return false
	}
	return c.After.Less(e.Key())
}

// Next курсор сразу после e
func (c Cursor) Next(e *Entity) Cursor {
	return Cursor{Since: e.UpdatedAt, After: e.Key()}
}

// ParseKey разбирает ключ вида "recipe/r1"
func ParseKey(s string) (Key, error) {
	typ, id, ok := strings.Cut(s, "/")
	if !ok || id == "" {
		return Key{}, fmt.Errorf("%w: key %q", ErrInvalidOp, s)
	}
	k := Key{Type: Type(typ), ID: id}
	if !k.Type.Valid() {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	return k, nil
}

// Entity версия сущности. UpdatedAt и FieldUpdatedAt проставляет сервер.
type Entity struct {
	Type           Type                 `json:"type"`
	ID             string               `json:"id"`
	Fields         map[string]any       `json:"fields"`
	Version        int64                `json:"version"`
	UpdatedAt      time.Time            `json:"updated_at"`
	FieldUpdatedAt map[string]time.Time `json:"field_updated_at,omitempty"`
	Deleted        bool                 `json:"deleted,omitempty"`
}

func (e *Entity) Key() Key {
	return Key{Type: e.Type, ID: e.ID}
}

// Clone копирует сущность вместе с картами полей. Значения полей считаются неизменяемыми.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Fields = make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		c.Fields[k] = v
	}
	if e.FieldUpdatedAt != nil {
		c.FieldUpdatedAt = make(map[string]time.Time, len(e.FieldUpdatedAt))
		for k, v := range e.FieldUpdatedAt {
			c.FieldUpdatedAt[k] = v
		}
	}
	return &c
}

// Equal сравнивает содержимое двух версий без учета версий и меток времени
func (e *Entity) Equal(o *Entity) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Type != o.Type || e.ID != o.ID || e.Deleted != o.Deleted {
		return false
	}
	return len(DiffFields(e.Fields, o.Fields)) == 0
}

// TouchedSince возвращает поля, измененные на сервере строго после t
func (e *Entity) TouchedSince(t time.Time) []string {
	var fields []string
	for name, at := range e.FieldUpdatedAt {
		if at.After(t) {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

// Patch применяет изменения полей. nil удаляет поле.
func (e *Entity) Patch(fields map[string]any, at time.Time) {
	if e.Fields == nil {
		e.Fields = make(map[string]any, len(fields))
	}
	if e.FieldUpdatedAt == nil {
		e.FieldUpdatedAt = make(map[string]time.Time, len(fields))
	}
	for name, v := range fields {
		if v == nil {
			delete(e.Fields, name)
		} else {
			e.Fields[name] = v
		}
		e.FieldUpdatedAt[name] = at
	}
}

// DiffFields возвращает отсортированный список полей, значения которых отличаются
func DiffFields(a, b map[string]any) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var diff []string
	for name, av := range a {
		seen[name] = struct{}{}
		bv, ok := b[name]
		if !ok || !ValueEqual(av, bv) {
			diff = append(diff, name)
		}
	}
	for name := range b {
		if _, ok := seen[name]; !ok {
			diff = append(diff, name)
		}
	}
	sort.Strings(diff)
	return diff
}

// ValueEqual сравнивает значения полей по их JSON-представлению
func ValueEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// WithoutFields возвращает копию карты без указанных полей
func WithoutFields(fields map[string]any, names []string) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for _, name := range names {
		delete(out, name)
	}
	return out
}

// Counts количество сущностей по типам
type Counts struct {
	Recipes int `json:"recipes"`
	Lists   int `json:"lists"`
	Plans   int `json:"plans"`
	Profile int `json:"profile"`
}

// Add увеличивает счетчик для типа t
func (c *Counts) Add(t Type) {
	switch t {
	case TypeRecipe:
		c.Recipes++
	case TypeList:
		c.Lists++
	case TypePlan:
		c.Plans++
	case TypeProfile:
		c.Profile++
	}
}

func (c Counts) Total() int {
	return c.Recipes + c.Lists + c.Plans + c.Profile
}

// CountOf подсчитывает неудаленные сущности
func CountOf(entities []*Entity) Counts {
	var c Counts
	for _, e := range entities {
		if !e.Deleted {
			c.Add(e.Type)
		}
	}
	return c
}
