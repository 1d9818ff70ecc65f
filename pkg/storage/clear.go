package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "storage:clear"

// ClearStorage truncates the key/value and account tables. Schema is preserved.
// The client's sender seed lives in beacon_kv, so clearing rotates the dApp identity.
func ClearStorage(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing storage tables", clearLogPrefix))

	_, err := pool.Exec(ctx, `TRUNCATE TABLE beacon_accounts, beacon_kv`)
	if err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Storage cleared", clearLogPrefix))
	return nil
}
