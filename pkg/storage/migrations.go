package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationsLogPrefix = "storage:migrations"

// Migration is one schema file. Name is the file name without extension.
type Migration struct {
	Name string
	SQL  string
}

// LoadMigrations reads every *.sql file in dir in lexical order.
// An existing directory with no SQL files yields an empty slice.
func LoadMigrations(dir string) ([]Migration, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%s - migration dir %s: %w", migrationsLogPrefix, dir, err)
	}
	// Glob sorts its matches.
	paths, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("%s - bad migration dir %s: %w", migrationsLogPrefix, dir, err)
	}

	migrations := make([]Migration, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to stat %s: %w", migrationsLogPrefix, path, err)
		}
		if info.IsDir() {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, path, err)
		}
		migrations = append(migrations, Migration{
			Name: strings.TrimSuffix(filepath.Base(path), ".sql"),
			SQL:  string(data),
		})
	}
	slog.Info(fmt.Sprintf("%s - Loaded %d migrations from %s", migrationsLogPrefix, len(migrations), dir))
	return migrations, nil
}

// RunMigrations applies each migration in its own transaction and stops at
// the first failure. The shipped schema is idempotent, so reruns are safe.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	for _, m := range migrations {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, m.SQL)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s - migration %s failed: %w", migrationsLogPrefix, m.Name, err)
		}
		slog.Debug(fmt.Sprintf("%s - Applied %s", migrationsLogPrefix, m.Name))
	}
	slog.Info(fmt.Sprintf("%s - %d migrations applied", migrationsLogPrefix, len(migrations)))
	return nil
}
