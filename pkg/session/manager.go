// Package session owns the single active account and its persistence.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/beacon-dapp/pkg/beacon"
	"github.com/morezero/beacon-dapp/pkg/events"
	"github.com/morezero/beacon-dapp/pkg/storage"
)

const logPrefix = "session:manager"

// Manager holds at most one active account. All access goes through Active
// and SetActive; the stored value is never handed out directly.
type Manager struct {
	store     storage.Store
	publisher events.EventPublisher

	mu     sync.RWMutex
	active *beacon.AccountInfo
}

// NewManager creates a Manager. A nil publisher drops events.
func NewManager(store storage.Store, publisher events.EventPublisher) *Manager {
	if publisher == nil {
		publisher = &events.NoOpPublisher{}
	}
	return &Manager{store: store, publisher: publisher}
}

// Active returns a copy of the active account, or nil.
func (m *Manager) Active() *beacon.AccountInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.Clone()
}

// SetActive replaces the active account, persists its identifier and
// publishes ACTIVE_ACCOUNT_SET. A nil account is ignored; an account with no
// scopes is refused.
func (m *Manager) SetActive(ctx context.Context, account *beacon.AccountInfo) error {
	if account == nil {
		return nil
	}
	if len(account.Scopes) == 0 {
		return beacon.NewError(beacon.CodeInvalidInput, "account %s has no granted scopes", account.AccountIdentifier)
	}

	m.install(account)

	var persistErr error
	if err := m.store.Set(ctx, storage.KeyActiveAccount, account.AccountIdentifier); err != nil {
		slog.Error(fmt.Sprintf("%s - Failed to persist active account %s: %v", logPrefix, account.AccountIdentifier, err))
		persistErr = fmt.Errorf("%s - failed to persist active account: %w", logPrefix, err)
	}

	m.announce(ctx, account)
	return persistErr
}

// Restore reinstalls the persisted active account. Every failure is logged
// and swallowed. A session set while restoring is left in place.
func (m *Manager) Restore(ctx context.Context) {
	id, ok, err := m.store.Get(ctx, storage.KeyActiveAccount)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - Could not read persisted active account: %v", logPrefix, err))
		return
	}
	if !ok || id == "" {
		slog.Debug(fmt.Sprintf("%s - No persisted active account", logPrefix))
		return
	}

	account, err := m.store.GetAccount(ctx, id)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - Could not load account %s: %v", logPrefix, id, err))
		return
	}
	if account == nil {
		slog.Warn(fmt.Sprintf("%s - Persisted active account %s no longer exists", logPrefix, id))
		return
	}
	if len(account.Scopes) == 0 {
		slog.Warn(fmt.Sprintf("%s - Persisted account %s has no scopes, not restoring", logPrefix, id))
		return
	}

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		slog.Debug(fmt.Sprintf("%s - Active account already set, skipping restore of %s", logPrefix, id))
		return
	}
	m.active = account.Clone()
	m.mu.Unlock()

	slog.Info(fmt.Sprintf("%s - Restored active account %s (%s)", logPrefix, account.Address, id))
	m.announce(ctx, account)
}

// Start runs Restore in the background. The returned channel is closed when
// it has finished.
func (m *Manager) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Restore(ctx)
	}()
	return done
}

func (m *Manager) install(account *beacon.AccountInfo) {
	m.mu.Lock()
	m.active = account.Clone()
	m.mu.Unlock()
}

func (m *Manager) announce(ctx context.Context, account *beacon.AccountInfo) {
	if err := m.publisher.Publish(ctx, events.New(events.ActiveAccountSet, account.Clone())); err != nil {
		slog.Warn(fmt.Sprintf("%s - Failed to publish %s: %v", logPrefix, events.ActiveAccountSet, err))
	}
}
