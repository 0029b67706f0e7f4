package backup

import (
	"time"

	"recipesync/internal/domain/entity"
)

// Type источник резервной копии
type Type string

const (
	TypeManual    Type = "manual"
	TypeAutomatic Type = "automatic"
)

// Status состояние резервной копии
type Status string

const (
	StatusCreating  Status = "creating"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusExpired артефакт удален политикой хранения, метаданные остаются
	StatusExpired Status = "expired"
)

// Compression алгоритм сжатия артефакта
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionGzip   Compression = "gzip"
	CompressionSnappy Compression = "snappy"
)

// Backup сведения о резервной копии
type Backup struct {
	ID            string        `json:"id"`
	Type          Type          `json:"type"`
	Status        Status        `json:"status"`
	Size          int64         `json:"size"`
	ItemsCount    entity.Counts `json:"items_count"`
	Compression   Compression   `json:"compression"`
	IncludeImages bool          `json:"include_images"`
	Encrypted     bool          `json:"encrypted"`
	Checksum      string        `json:"checksum,omitempty"`
	// Artifact ключ артефакта в хранилище
	Artifact    string     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Available артефакт можно скачать или восстановить
func (b *Backup) Available() bool {
	return b.Status == StatusCompleted
}

func (b *Backup) Clone() *Backup {
	c := *b
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		c.CompletedAt = &t
	}
	if b.ExpiresAt != nil {
		t := *b.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// CreateRequest параметры новой резервной копии
type CreateRequest struct {
	Type          Type        `json:"type" validate:"required,oneof=manual automatic"`
	IncludeImages bool        `json:"include_images"`
	Compression   Compression `json:"compression" validate:"omitempty,oneof=none gzip snappy"`
}

// Artifact содержимое резервной копии: снимок сущностей на момент создания
type Artifact struct {
	Format        int              `json:"format"`
	BackupID      string           `json:"backup_id"`
	CreatedAt     time.Time        `json:"created_at"`
	IncludeImages bool             `json:"include_images"`
	Counts        entity.Counts    `json:"counts"`
	Entities      []*entity.Entity `json:"entities"`
}

const artifactFormat = 1

// Config параметры менеджера
type Config struct {
	// AutomaticTTL срок жизни автоматических копий; 0 - без срока
	AutomaticTTL time.Duration
	// URLTTL срок действия подписанной ссылки на скачивание
	URLTTL time.Duration
	// DownloadRoute шаблон ссылки для хранилищ без прямого доступа
	DownloadRoute string
	// Recipient публичный ключ age; пустой - без шифрования
	Recipient string
	// Identity приватный ключ age для чтения зашифрованных копий
	Identity string
	// SweepInterval период проверки expiresAt планировщиком
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		AutomaticTTL:  30 * 24 * time.Hour,
		URLTTL:        15 * time.Minute,
		DownloadRoute: "/api/v1/backups/%s/download",
		SweepInterval: time.Hour,
	}
}

// Page параметры постраничной выборки
type Page struct {
	Page  int
	Limit int
}
