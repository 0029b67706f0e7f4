package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

type Clock interface {
	Now() time.Time
}

// Servicer интерфейс реестра устройств
type Servicer interface {
	Touch(ctx context.Context, accountID int, deviceID string, req TouchRequest) (*DeviceInfo, error)
	List(ctx context.Context, accountID int, currentID string) ([]*DeviceInfo, error)
	Rename(ctx context.Context, accountID int, deviceID, name string) (*DeviceInfo, error)
	Revoke(ctx context.Context, accountID int, deviceID string) error
	EnsureActive(ctx context.Context, accountID int, deviceID string) error
}

// Service реестр устройств: регистрация при первой синхронизации,
// обновление lastSeen в каждом цикле, явный отзыв.
type Service struct {
	repo  Repository
	clock Clock
	log   *slog.Logger
}

func NewService(repo Repository, clock Clock, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		clock: clock,
		log:   log.With("component", "device_service"),
	}
}

// Touch регистрирует устройство при первом обращении и обновляет lastSeen
func (s *Service) Touch(ctx context.Context, accountID int, deviceID string, req TouchRequest) (*DeviceInfo, error) {
	if deviceID == "" {
		return nil, ErrInvalidDevice
	}
	if err := s.EnsureActive(ctx, accountID, deviceID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	existing, err := s.repo.Get(ctx, accountID, deviceID)
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		d := &DeviceInfo{
			ID:        deviceID,
			AccountID: accountID,
			Name:      req.Name,
			Type:      req.Type,
			Platform:  req.Platform,
			Version:   req.Version,
			LastSeen:  now,
			CreatedAt: now,
		}
		if err := s.repo.Upsert(ctx, d); err != nil {
			return nil, fmt.Errorf("register device: %w", err)
		}
		s.log.Info("device registered", "account_id", accountID, "device_id", deviceID)
		d.IsCurrentDevice = true
		return d, nil
	case err != nil:
		return nil, fmt.Errorf("get device: %w", err)
	}

	existing.LastSeen = now
	if req.Version != "" {
		existing.Version = req.Version
	}
	if req.Platform != "" {
		existing.Platform = req.Platform
	}
	if err := s.repo.Upsert(ctx, existing); err != nil {
		return nil, fmt.Errorf("update device: %w", err)
	}
	existing.IsCurrentDevice = true
	return existing, nil
}

func (s *Service) List(ctx context.Context, accountID int, currentID string) ([]*DeviceInfo, error) {
	devices, err := s.repo.List(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	for _, d := range devices {
		d.IsCurrentDevice = d.ID == currentID
	}
	return devices, nil
}

func (s *Service) Rename(ctx context.Context, accountID int, deviceID, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidDevice)
	}
	d, err := s.repo.Get(ctx, accountID, deviceID)
	if err != nil {
		return nil, err
	}
	d.Name = name
	if err := s.repo.Upsert(ctx, d); err != nil {
		return nil, fmt.Errorf("rename device: %w", err)
	}
	return d, nil
}

// Revoke удаляет устройство. Все последующие запросы этого устройства отклоняются,
// поэтому его несинхронизированные операции на сервер уже не попадут.
func (s *Service) Revoke(ctx context.Context, accountID int, deviceID string) error {
	if _, err := s.repo.Get(ctx, accountID, deviceID); err != nil {
		return err
	}
	if err := s.repo.Revoke(ctx, accountID, deviceID, s.clock.Now()); err != nil {
		return fmt.Errorf("failed to revoke device: %w", err)
	}
	s.log.Info("device revoked", "account_id", accountID, "device_id", deviceID)
	return nil
}

func (s *Service) EnsureActive(ctx context.Context, accountID int, deviceID string) error {
	revoked, err := s.repo.IsRevoked(ctx, accountID, deviceID)
	if err != nil {
		return fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return ErrDeviceRevoked
	}
	return nil
}
