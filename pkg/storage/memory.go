package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/morezero/beacon-dapp/pkg/beacon"
)

// Memory is a process-local Store. It is the default when no database is configured.
type Memory struct {
	mu       sync.RWMutex
	values   map[string]string
	accounts map[string]*beacon.AccountInfo
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		values:   make(map[string]string),
		accounts: make(map[string]*beacon.AccountInfo),
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) GetAccount(_ context.Context, accountIdentifier string) (*beacon.AccountInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[accountIdentifier].Clone(), nil
}

// AddAccount inserts or replaces the account with the same identifier.
func (m *Memory) AddAccount(_ context.Context, account *beacon.AccountInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.AccountIdentifier] = account.Clone()
	return nil
}

func (m *Memory) RemoveAccount(_ context.Context, accountIdentifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, accountIdentifier)
	return nil
}

// ListAccounts returns accounts ordered by connection time, oldest first.
func (m *Memory) ListAccounts(_ context.Context) ([]*beacon.AccountInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*beacon.AccountInfo, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out, nil
}
