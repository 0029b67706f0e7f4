// Package vault хранилища артефактов резервных копий: локальный каталог и S3.
package vault

import (
	"context"
	"fmt"

	"recipesync/internal/domain/backup"
)

const (
	KindFile   = "file"
	KindS3     = "s3"
	KindMemory = "memory"
)

type Config struct {
	Kind string
	// Dir каталог для KindFile
	Dir string
	S3  S3Config
}

// New создает хранилище по конфигурации
func New(ctx context.Context, cfg Config) (backup.Vault, error) {
	switch cfg.Kind {
	case KindFile, "":
		return NewFileVault(cfg.Dir)
	case KindS3:
		return NewS3Vault(ctx, cfg.S3)
	case KindMemory:
		return backup.NewMemoryVault(), nil
	}
	return nil, fmt.Errorf("unknown vault kind %q", cfg.Kind)
}
