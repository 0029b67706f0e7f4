package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"recipesync/internal/domain/backup"
)

// BackupRepository метаданные резервных копий. Ключ артефакта в JSON не попадает
// и хранится отдельной колонкой.
type BackupRepository struct {
	s *Storage
}

func NewBackupRepository(s *Storage) *BackupRepository {
	return &BackupRepository{s: s}
}

func (r *BackupRepository) Save(ctx context.Context, b *backup.Backup) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}
	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO backups (id, type, status, artifact, created_at, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			artifact = excluded.artifact,
			data = excluded.data`,
		b.ID, b.Type, b.Status, b.Artifact, b.CreatedAt, string(data))
	if err != nil {
		return fmt.Errorf("save backup %s: %w", b.ID, err)
	}
	return nil
}

func (r *BackupRepository) Get(ctx context.Context, id string) (*backup.Backup, error) {
	var artifact, data string
	err := r.s.db.QueryRowContext(ctx, `SELECT artifact, data FROM backups WHERE id = ?`, id).Scan(&artifact, &data)
	if err == sql.ErrNoRows {
		return nil, backup.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select backup %s: %w", id, err)
	}
	return decodeBackup(artifact, data)
}

func (r *BackupRepository) List(ctx context.Context) ([]*backup.Backup, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT artifact, data FROM backups ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("select backups: %w", err)
	}
	defer rows.Close()

	var out []*backup.Backup
	for rows.Next() {
		var artifact, data string
		if err := rows.Scan(&artifact, &data); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		b, err := decodeBackup(artifact, data)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BackupRepository) Delete(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete backup %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return backup.ErrNotFound
	}
	return nil
}

func decodeBackup(artifact, data string) (*backup.Backup, error) {
	var b backup.Backup
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, fmt.Errorf("unmarshal backup: %w", err)
	}
	b.Artifact = artifact
	return &b, nil
}
