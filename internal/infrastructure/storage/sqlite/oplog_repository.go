package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/oplog"
)

// OplogRepository журнал операций в SQLite
type OplogRepository struct {
	s *Storage
}

func NewOplogRepository(s *Storage) *OplogRepository {
	return &OplogRepository{s: s}
}

func (r *OplogRepository) Save(ctx context.Context, op *oplog.Operation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal operation: %w", err)
	}
	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO operations (id, entity_type, entity_id, seq, status, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status, data = excluded.data`,
		op.ID, op.EntityType, op.EntityID, op.Seq, op.Status, string(data))
	if err != nil {
		return fmt.Errorf("save operation %s: %w", op.ID, err)
	}
	return nil
}

func (r *OplogRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.s.db.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete operation %s: %w", id, err)
	}
	return nil
}

func (r *OplogRepository) LoadAll(ctx context.Context) ([]*oplog.Operation, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT data FROM operations ORDER BY entity_type, entity_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("select operations: %w", err)
	}
	return scanJSON[oplog.Operation](rows)
}

func (r *OplogRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.s.db.ExecContext(ctx, `DELETE FROM operations`); err != nil {
		return fmt.Errorf("delete operations: %w", err)
	}
	return nil
}

func (r *OplogRepository) SaveSequence(ctx context.Context, key entity.Key, seq int64) error {
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO operation_sequences (entity_type, entity_id, seq) VALUES (?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET seq = MAX(seq, excluded.seq)`,
		key.Type, key.ID, seq)
	if err != nil {
		return fmt.Errorf("save sequence %s: %w", key, err)
	}
	return nil
}

func (r *OplogRepository) LoadSequences(ctx context.Context) (map[entity.Key]int64, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT entity_type, entity_id, seq FROM operation_sequences`)
	if err != nil {
		return nil, fmt.Errorf("select sequences: %w", err)
	}
	defer rows.Close()

	out := make(map[entity.Key]int64)
	for rows.Next() {
		var (
			key entity.Key
			seq int64
		)
		if err := rows.Scan(&key.Type, &key.ID, &seq); err != nil {
			return nil, fmt.Errorf("scan sequence: %w", err)
		}
		out[key] = seq
	}
	return out, rows.Err()
}

// scanJSON декодирует колонку data каждой строки
func scanJSON[T any](rows *sql.Rows) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		v := new(T)
		if err := json.Unmarshal([]byte(data), v); err != nil {
			return nil, fmt.Errorf("unmarshal row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// getJSON декодирует колонку data одной строки; notFound, если строки нет
func getJSON[T any](row *sql.Row, notFound error) (*T, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, notFound
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}
	v := new(T)
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return nil, fmt.Errorf("unmarshal row: %w", err)
	}
	return v, nil
}
