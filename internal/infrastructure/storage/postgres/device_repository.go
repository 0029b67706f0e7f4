package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"recipesync/internal/domain/device"
)

type DeviceRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewDeviceRepository(db *Storage, log *slog.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:  db,
		log: log.With("component", "device_repository"),
	}
}

const deviceColumns = `account_id, id, name, type, platform, version, last_seen, created_at`

func (r *DeviceRepository) Get(ctx context.Context, accountID int, deviceID string) (*device.DeviceInfo, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE account_id = $1 AND id = $2`, accountID, deviceID)
	d, err := scanDevice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, device.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select device: %w", err)
	}
	return d, nil
}

func (r *DeviceRepository) Upsert(ctx context.Context, d *device.DeviceInfo) error {
	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO devices (`+deviceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (account_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			platform = EXCLUDED.platform,
			version = EXCLUDED.version,
			last_seen = EXCLUDED.last_seen`,
		d.AccountID, d.ID, d.Name, d.Type, d.Platform, d.Version, d.LastSeen, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

func (r *DeviceRepository) List(ctx context.Context, accountID int) ([]*device.DeviceInfo, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE account_id = $1 ORDER BY last_seen DESC, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("select devices: %w", err)
	}
	defer rows.Close()

	var out []*device.DeviceInfo
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Revoke удаляет устройство и запоминает отзыв в одной транзакции
func (r *DeviceRepository) Revoke(ctx context.Context, accountID int, deviceID string, at time.Time) error {
	return pgx.BeginFunc(ctx, r.db.Pool(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM devices WHERE account_id = $1 AND id = $2`, accountID, deviceID)
		if err != nil {
			return fmt.Errorf("delete device: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return device.ErrDeviceNotFound
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO revoked_devices (account_id, device_id, revoked_at) VALUES ($1, $2, $3)
			 ON CONFLICT (account_id, device_id) DO NOTHING`,
			accountID, deviceID, at)
		if err != nil {
			return fmt.Errorf("insert revoked device: %w", err)
		}
		return nil
	})
}

func (r *DeviceRepository) IsRevoked(ctx context.Context, accountID int, deviceID string) (bool, error) {
	var revoked bool
	err := r.db.Pool().QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_devices WHERE account_id = $1 AND device_id = $2)`,
		accountID, deviceID).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("select revoked: %w", err)
	}
	return revoked, nil
}

func scanDevice(row pgx.Row) (*device.DeviceInfo, error) {
	var d device.DeviceInfo
	if err := row.Scan(&d.AccountID, &d.ID, &d.Name, &d.Type, &d.Platform, &d.Version, &d.LastSeen, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.LastSeen = d.LastSeen.UTC()
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}
