package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"recipesync/internal/domain/entity"
)

const entityColumns = `type, id, fields, field_updated_at, version, updated_at, deleted`

// EntityRepository канонические версии сущностей. Запись в одну сущность
// сериализуется транзакционной advisory-блокировкой, поэтому первая
// вставка тоже защищена.
type EntityRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewEntityRepository(db *Storage, log *slog.Logger) *EntityRepository {
	return &EntityRepository{
		db:  db,
		log: log.With("component", "entity_repository"),
	}
}

func (r *EntityRepository) Get(ctx context.Context, accountID int, key entity.Key) (*entity.Entity, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE account_id = $1 AND type = $2 AND id = $3`,
		accountID, key.Type, key.ID)
	e, err := scanEntity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select entity %s: %w", key, err)
	}
	return e, nil
}

func (r *EntityRepository) List(ctx context.Context, accountID int) ([]*entity.Entity, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE account_id = $1 ORDER BY type, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("select entities: %w", err)
	}
	return collectEntities(rows)
}

func (r *EntityRepository) Changes(ctx context.Context, accountID int, cur entity.Cursor, limit int) ([]*entity.Entity, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE account_id = $1
		   AND (updated_at > $2
		        OR (updated_at = $2 AND $3::text <> ''
		            AND (type COLLATE "C", id COLLATE "C") > ($3::text, $4::text)))
		 ORDER BY updated_at, type COLLATE "C", id COLLATE "C"
		 LIMIT $5`,
		accountID, cur.Since, string(cur.After.Type), cur.After.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("select changes: %w", err)
	}
	return collectEntities(rows)
}

func (r *EntityRepository) WithinEntity(ctx context.Context, accountID int, key entity.Key, fn func(tx entity.Tx) error) error {
	tx, err := r.db.Pool().BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(ctx); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
			r.log.Warn("rollback", "entity", key.String(), "error", rerr)
		}
	}()

	lockKey := fmt.Sprintf("%d/%s", accountID, key)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return fmt.Errorf("lock entity: %w", err)
	}

	ptx := &pgEntityTx{ctx: ctx, tx: tx, accountID: accountID, key: key}
	row := tx.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE account_id = $1 AND type = $2 AND id = $3`,
		accountID, key.Type, key.ID)
	ptx.current, err = scanEntity(row)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("select entity %s: %w", key, err)
	}

	if err := fn(ptx); err != nil {
		return err
	}
	if ptx.err != nil {
		return ptx.err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgEntityTx struct {
	ctx       context.Context
	tx        pgx.Tx
	accountID int
	key       entity.Key
	current   *entity.Entity
	// err первая ошибка чтения, которую нельзя вернуть из AppliedSeq
	err error
}

func (t *pgEntityTx) Current() *entity.Entity {
	return t.current.Clone()
}

func (t *pgEntityTx) AppliedSeq(deviceID string) int64 {
	var seq int64
	err := t.tx.QueryRow(t.ctx,
		`SELECT seq FROM entity_applied_seqs
		 WHERE account_id = $1 AND type = $2 AND id = $3 AND device_id = $4`,
		t.accountID, t.key.Type, t.key.ID, deviceID).Scan(&seq)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) && t.err == nil {
		t.err = fmt.Errorf("select applied seq: %w", err)
	}
	return seq
}

func (t *pgEntityTx) Save(e *entity.Entity, deviceID string, seq int64) error {
	if t.err != nil {
		return t.err
	}
	fields, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	touched, err := json.Marshal(e.FieldUpdatedAt)
	if err != nil {
		return fmt.Errorf("marshal field timestamps: %w", err)
	}

	_, err = t.tx.Exec(t.ctx,
		`INSERT INTO entities (account_id, `+entityColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (account_id, type, id) DO UPDATE SET
			fields = EXCLUDED.fields,
			field_updated_at = EXCLUDED.field_updated_at,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted`,
		t.accountID, e.Type, e.ID, fields, touched, e.Version, e.UpdatedAt, e.Deleted)
	if err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}

	_, err = t.tx.Exec(t.ctx,
		`INSERT INTO entity_applied_seqs (account_id, type, id, device_id, seq)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (account_id, type, id, device_id) DO UPDATE SET
			seq = GREATEST(entity_applied_seqs.seq, EXCLUDED.seq)`,
		t.accountID, e.Type, e.ID, deviceID, seq)
	if err != nil {
		return fmt.Errorf("upsert applied seq: %w", err)
	}
	t.current = e.Clone()
	return nil
}

func scanEntity(row pgx.Row) (*entity.Entity, error) {
	var (
		e       entity.Entity
		fields  []byte
		touched []byte
	)
	if err := row.Scan(&e.Type, &e.ID, &fields, &touched, &e.Version, &e.UpdatedAt, &e.Deleted); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &e.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	if err := json.Unmarshal(touched, &e.FieldUpdatedAt); err != nil {
		return nil, fmt.Errorf("unmarshal field timestamps: %w", err)
	}
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

func collectEntities(rows pgx.Rows) ([]*entity.Entity, error) {
	defer rows.Close()
	var out []*entity.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return out, nil
}
