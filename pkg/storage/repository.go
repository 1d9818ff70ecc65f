package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/beacon-dapp/pkg/beacon"
)

const repoLogPrefix = "storage:repository"

// Repository is the Postgres-backed Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// =========================================================================
// KEY/VALUE
// =========================================================================

func (r *Repository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM beacon_kv WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s - Get %s failed: %w", repoLogPrefix, key, err)
	}
	return value, true, nil
}

func (r *Repository) Set(ctx context.Context, key, value string) error {
	slog.Debug(fmt.Sprintf("%s - Set key=%s", repoLogPrefix, key))

	_, err := r.pool.Exec(ctx,
		`INSERT INTO beacon_kv (key, value, modified)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = $2, modified = $3`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s - Set %s failed: %w", repoLogPrefix, key, err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM beacon_kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("%s - Delete %s failed: %w", repoLogPrefix, key, err)
	}
	return nil
}

// =========================================================================
// ACCOUNTS
// =========================================================================

// GetAccount finds an account by identifier.
func (r *Repository) GetAccount(ctx context.Context, accountIdentifier string) (*beacon.AccountInfo, error) {
	slog.Debug(fmt.Sprintf("%s - GetAccount id=%s", repoLogPrefix, accountIdentifier))

	row := r.pool.QueryRow(ctx,
		`SELECT object FROM beacon_accounts WHERE account_identifier = $1 LIMIT 1`, accountIdentifier)

	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - GetAccount failed: %w", repoLogPrefix, err)
	}
	return acc, nil
}

// AddAccount inserts or replaces the account with the same identifier.
func (r *Repository) AddAccount(ctx context.Context, account *beacon.AccountInfo) error {
	slog.Info(fmt.Sprintf("%s - AddAccount id=%s address=%s", repoLogPrefix, account.AccountIdentifier, account.Address))

	object, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("%s - failed to encode account: %w", repoLogPrefix, err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO beacon_accounts (account_identifier, address, network_type, object, connected_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (account_identifier) DO UPDATE SET
		   address = $2,
		   network_type = $3,
		   object = $4,
		   connected_at = $5`,
		account.AccountIdentifier, account.Address, string(account.Network.Type), object, account.ConnectedAt.UTC())
	if err != nil {
		return fmt.Errorf("%s - AddAccount failed: %w", repoLogPrefix, err)
	}
	return nil
}

func (r *Repository) RemoveAccount(ctx context.Context, accountIdentifier string) error {
	slog.Info(fmt.Sprintf("%s - RemoveAccount id=%s", repoLogPrefix, accountIdentifier))

	if _, err := r.pool.Exec(ctx,
		`DELETE FROM beacon_accounts WHERE account_identifier = $1`, accountIdentifier); err != nil {
		return fmt.Errorf("%s - RemoveAccount failed: %w", repoLogPrefix, err)
	}
	return nil
}

// ListAccounts returns accounts ordered by connection time, oldest first.
func (r *Repository) ListAccounts(ctx context.Context) ([]*beacon.AccountInfo, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT object FROM beacon_accounts ORDER BY connected_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("%s - ListAccounts failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []*beacon.AccountInfo
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s - ListAccounts scan failed: %w", repoLogPrefix, err)
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - ListAccounts rows failed: %w", repoLogPrefix, err)
	}
	return out, nil
}

func scanAccount(row pgx.Row) (*beacon.AccountInfo, error) {
	var object []byte
	if err := row.Scan(&object); err != nil {
		return nil, err
	}
	var acc beacon.AccountInfo
	if err := json.Unmarshal(object, &acc); err != nil {
		return nil, fmt.Errorf("corrupt account object: %w", err)
	}
	return &acc, nil
}
