// Package storage persists the dApp's key/value settings and granted accounts.
package storage

import (
	"context"

	"github.com/morezero/beacon-dapp/pkg/beacon"
)

// Well-known keys.
const (
	KeyActiveAccount = "beacon:active-account"
	KeySecretSeed    = "beacon:sdk-secret-seed"
)

// KVStore is an opaque string key/value store.
type KVStore interface {
	// Get returns ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// AccountStore keeps every account the dApp has been granted permissions for.
// GetAccount returns nil, nil when the identifier is unknown.
type AccountStore interface {
	GetAccount(ctx context.Context, accountIdentifier string) (*beacon.AccountInfo, error)
	AddAccount(ctx context.Context, account *beacon.AccountInfo) error
	RemoveAccount(ctx context.Context, accountIdentifier string) error
	ListAccounts(ctx context.Context) ([]*beacon.AccountInfo, error)
}

// Store is implemented by both the in-memory and the Postgres backends.
type Store interface {
	KVStore
	AccountStore
}
