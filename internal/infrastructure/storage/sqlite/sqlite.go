// Package sqlite локальное хранилище агента: журнал операций, конфликты,
// офлайн-кэш, настройки и метаданные резервных копий.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"recipesync/internal/infrastructure/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dsnParams = "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"

type Storage struct {
	db  *sql.DB
	log *slog.Logger
}

// Open открывает базу по пути path и применяет вшитые миграции
func Open(ctx context.Context, path string, log *slog.Logger) (*Storage, error) {
	mg := migration.NewMigration("migrations", "sqlite3://"+path+dsnParams, migration.EmbeddedEngine(migrationsFS))
	if err := mg.Up(); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	db, err := sql.Open("sqlite3", path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// один писатель: SQLite сериализует запись, лишние соединения дают SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Storage{db: db, log: log.With("component", "sqlite")}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) DB() *sql.DB {
	return s.db
}

// inTx выполняет fn в транзакции
func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			s.log.Warn("rollback", "error", rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
