package sync

import (
	"context"
	"time"

	"recipesync/internal/domain/device"
	"recipesync/internal/domain/entity"
)

// Gateway сервер аккаунта с точки зрения устройства
type Gateway interface {
	// Ping проверяет связь и возвращает время сервера
	Ping(ctx context.Context) (time.Time, error)
	// Touch регистрирует устройство или обновляет lastSeen
	Touch(ctx context.Context, req device.TouchRequest) (*device.DeviceInfo, error)
	// Fetch текущая версия сущности; entity.ErrNotFound, если ее нет
	Fetch(ctx context.Context, key entity.Key) (*entity.Entity, error)
	// Push применяет операцию; *entity.StaleError, если сервер ушел вперед
	Push(ctx context.Context, req entity.PushRequest) (*entity.PushResult, error)
	// Changes сущности, идущие в потоке изменений после курсора
	Changes(ctx context.Context, cur entity.Cursor, limit int) ([]*entity.Entity, error)
	// Snapshot все сущности аккаунта
	Snapshot(ctx context.Context) ([]*entity.Entity, error)
}

// NetworkProbe сообщает тип подключения
type NetworkProbe interface {
	// Unmetered подключение без ограничений трафика (Wi-Fi, Ethernet)
	Unmetered(ctx context.Context) bool
}

// AlwaysUnmetered для платформ без сведений о типе сети
type AlwaysUnmetered struct{}

func (AlwaysUnmetered) Unmetered(context.Context) bool { return true }

// SkewObserver принимает оценку расхождения часов с сервером
type SkewObserver interface {
	Observe(server, sentAt time.Time, rtt time.Duration)
}
