package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// ============================================================
// SQLite helpers
// ============================================================

// Open открывает sqlite по указанному пути, создавая каталог при необходимости.
// Драйвер регистрируется импортом github.com/ncruces/go-sqlite3/driver в main.
func Open(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Migrate применяет SQL-файл миграции целиком. Миграции должны быть идемпотентными.
func Migrate(ctx context.Context, db *sql.DB, migrationsPath string) error {
	data, err := os.ReadFile(filepath.Clean(migrationsPath))
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}
