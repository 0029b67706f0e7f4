package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"recipesync/internal/domain/cache"
	"recipesync/internal/domain/entity"
)

// CacheRepository офлайн-кэш. ReplaceAll переписывает все таблицы кэша в одной транзакции.
type CacheRepository struct {
	s *Storage
}

func NewCacheRepository(s *Storage) *CacheRepository {
	return &CacheRepository{s: s}
}

func (r *CacheRepository) Load(ctx context.Context) (cache.State, error) {
	var st cache.State

	rows, err := r.s.db.QueryContext(ctx, `SELECT data FROM cache_entities ORDER BY type, id`)
	if err != nil {
		return st, fmt.Errorf("select cache entities: %w", err)
	}
	if st.Entities, err = scanJSON[entity.Entity](rows); err != nil {
		return st, err
	}

	rows, err = r.s.db.QueryContext(ctx, `SELECT type, id, seq FROM cache_applied`)
	if err != nil {
		return st, fmt.Errorf("select cache applied: %w", err)
	}
	defer rows.Close()
	st.Applied = make(map[entity.Key]int64)
	for rows.Next() {
		var (
			key entity.Key
			seq int64
		)
		if err := rows.Scan(&key.Type, &key.ID, &seq); err != nil {
			return st, fmt.Errorf("scan cache applied: %w", err)
		}
		st.Applied[key] = seq
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("iterate cache applied: %w", err)
	}

	var cursor, synced sql.NullTime
	err = r.s.db.QueryRowContext(ctx, `SELECT cursor, synced_at FROM cache_meta WHERE id = 1`).Scan(&cursor, &synced)
	if err != nil && err != sql.ErrNoRows {
		return st, fmt.Errorf("select cache meta: %w", err)
	}
	st.Cursor = utc(cursor)
	st.SyncedAt = utc(synced)
	return st, nil
}

func (r *CacheRepository) ReplaceAll(ctx context.Context, st cache.State) error {
	return r.s.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{`DELETE FROM cache_entities`, `DELETE FROM cache_applied`} {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
		}

		insert, err := tx.PrepareContext(ctx, `INSERT INTO cache_entities (type, id, data) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer insert.Close()
		for _, e := range st.Entities {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal entity %s: %w", e.Key(), err)
			}
			if _, err := insert.ExecContext(ctx, e.Type, e.ID, string(data)); err != nil {
				return fmt.Errorf("insert entity %s: %w", e.Key(), err)
			}
		}

		for key, seq := range st.Applied {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cache_applied (type, id, seq) VALUES (?, ?, ?)`, key.Type, key.ID, seq); err != nil {
				return fmt.Errorf("insert applied %s: %w", key, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cache_meta (id, cursor, synced_at) VALUES (1, ?, ?)
			ON CONFLICT (id) DO UPDATE SET cursor = excluded.cursor, synced_at = excluded.synced_at`,
			nullTime(st.Cursor), nullTime(st.SyncedAt))
		if err != nil {
			return fmt.Errorf("save cache meta: %w", err)
		}
		return nil
	})
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

func utc(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}
