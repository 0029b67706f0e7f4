// Package crypto ключевой материал устройства: age-ключ резервных копий и
// постоянный идентификатор устройства. Файлы лежат в каталоге конфигурации
// с правами 0600.
package crypto

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"recipesync/internal/utils/clock"
)

const keyPermissions = 0o600

var ErrEmptyKeyFile = errors.New("key file is empty")

// LoadOrCreateIdentity читает age-ключ из path или создает новый
func LoadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	id, err := ReadIdentity(path)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	id, err = age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# public key: %s\n", id.Recipient())
	fmt.Fprintln(&buf, id.String())
	if err := writeFile(path, buf.Bytes()); err != nil {
		return nil, err
	}
	return id, nil
}

// ReadIdentity читает первый ключ из файла в формате age-keygen
func ReadIdentity(path string) (*age.X25519Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identity: %w", err)
	}
	defer f.Close()

	ids, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse identity %s: %w", path, err)
	}
	for _, id := range ids {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, fmt.Errorf("%s: no X25519 identity", path)
}

// DeviceID возвращает постоянный идентификатор устройства, создавая его при первом запуске
func DeviceID(path string, ids clock.IDGenerator) (string, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		sc := bufio.NewScanner(bytes.NewReader(data))
		if sc.Scan() {
			if id := strings.TrimSpace(sc.Text()); id != "" {
				return id, nil
			}
		}
		return "", fmt.Errorf("%s: %w", path, ErrEmptyKeyFile)
	case errors.Is(err, os.ErrNotExist):
		id := ids.New()
		if err := writeFile(path, []byte(id+"\n")); err != nil {
			return "", err
		}
		return id, nil
	default:
		return "", fmt.Errorf("read device id: %w", err)
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	// O_EXCL: параллельный первый запуск не перезапишет чужой ключ
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, keyPermissions)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
