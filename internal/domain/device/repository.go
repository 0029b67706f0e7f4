package device

import (
	"context"
	"time"
)

// Repository интерфейс для работы с устройствами
type Repository interface {
	Get(ctx context.Context, accountID int, deviceID string) (*DeviceInfo, error)
	Upsert(ctx context.Context, device *DeviceInfo) error
	List(ctx context.Context, accountID int) ([]*DeviceInfo, error)
	// Revoke удаляет устройство и заносит его в список отозванных
	Revoke(ctx context.Context, accountID int, deviceID string, at time.Time) error
	IsRevoked(ctx context.Context, accountID int, deviceID string) (bool, error)
}
