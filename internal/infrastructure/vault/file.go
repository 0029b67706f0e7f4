package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"recipesync/internal/domain/backup"
)

// FileVault артефакты в локальном каталоге. Ссылок на скачивание не выдает,
// артефакт отдает API агента.
type FileVault struct {
	baseDir string
}

func NewFileVault(dir string) (*FileVault, error) {
	if dir == "" {
		return nil, errors.New("vault directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve vault directory: %w", err)
	}
	return &FileVault{baseDir: filepath.Clean(abs)}, nil
}

// path не дает ключу выйти за пределы каталога
func (v *FileVault) path(key string) (string, error) {
	resolved := filepath.Clean(filepath.Join(v.baseDir, filepath.Clean(key)))
	if !strings.HasPrefix(resolved, v.baseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return resolved, nil
}

// Put пишет во временный файл и переименовывает, чтобы читатель не увидел половину артефакта
func (v *FileVault) Put(_ context.Context, key string, data []byte) error {
	path, err := v.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

func (v *FileVault) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := v.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, backup.ErrArtifactAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}

func (v *FileVault) Delete(_ context.Context, key string) error {
	path, err := v.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

func (v *FileVault) URL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}
