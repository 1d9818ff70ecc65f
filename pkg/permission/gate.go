// Package permission decides whether the active account may issue a request kind.
package permission

import "github.com/morezero/beacon-dapp/pkg/beacon"

// AccountSource provides the currently active account, or nil.
type AccountSource interface {
	Active() *beacon.AccountInfo
}

// Gate checks request kinds against the active account's scopes.
type Gate struct {
	accounts AccountSource
}

// NewGate creates a Gate reading from accounts.
func NewGate(accounts AccountSource) *Gate {
	return &Gate{accounts: accounts}
}

// Check returns nil when kind may be sent, NO_ACTIVE_ACCOUNT when no session
// exists, and UNAUTHORIZED when the session lacks a required scope.
func (g *Gate) Check(kind beacon.MessageType) error {
	if !kind.IsRequest() {
		return beacon.NewError(beacon.CodeUnauthorized, "%s is not a request kind", kind)
	}
	if kind == beacon.PermissionRequest {
		return nil
	}
	required, known := beacon.RequiredScopes(kind)
	if !known {
		return beacon.NewError(beacon.CodeUnauthorized, "no scope rule for %s", kind)
	}

	var active *beacon.AccountInfo
	if g.accounts != nil {
		active = g.accounts.Active()
	}
	if active == nil {
		return beacon.NewError(beacon.CodeNoActiveAccount, "no active account for %s", kind)
	}
	if !active.HasScopes(required) {
		return beacon.NewError(beacon.CodeUnauthorized, "account %s lacks scopes %v for %s", active.Address, required, kind)
	}
	return nil
}

// IsAuthorized reports whether Check(kind) passes.
func (g *Gate) IsAuthorized(kind beacon.MessageType) bool {
	return g.Check(kind) == nil
}
