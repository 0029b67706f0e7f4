package entity

import "context"

// Tx доступ к одной сущности под блокировкой строки
type Tx interface {
	// Current текущая версия или nil, если сущности нет
	Current() *Entity
	// AppliedSeq последний применённый порядковый номер операции устройства
	AppliedSeq(deviceID string) int64
	Save(e *Entity, deviceID string, seq int64) error
}

// Repository хранилище канонических версий сущностей аккаунта
type Repository interface {
	Get(ctx context.Context, accountID int, key Key) (*Entity, error)
	List(ctx context.Context, accountID int) ([]*Entity, error)
	Changes(ctx context.Context, accountID int, cur Cursor, limit int) ([]*Entity, error)
	// WithinEntity сериализует запись в одну сущность
	WithinEntity(ctx context.Context, accountID int, key Key, fn func(tx Tx) error) error
}
