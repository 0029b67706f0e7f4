package oplog

import (
	"context"

	"recipesync/internal/domain/entity"
)

// Repository долговременное хранение журнала операций
type Repository interface {
	Save(ctx context.Context, op *Operation) error
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]*Operation, error)
	DeleteAll(ctx context.Context) error

	// Счетчики порядковых номеров переживают сброс журнала:
	// сервер помнит последний применённый номер устройства.
	SaveSequence(ctx context.Context, key entity.Key, seq int64) error
	LoadSequences(ctx context.Context) (map[entity.Key]int64, error)
}
