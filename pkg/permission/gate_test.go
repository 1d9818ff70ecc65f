package permission

import (
	"errors"
	"testing"

	"github.com/morezero/beacon-dapp/pkg/beacon"
)

type staticAccount struct {
	account *beacon.AccountInfo
}

func (s staticAccount) Active() *beacon.AccountInfo { return s.account }

func TestGate_Check(t *testing.T) {
	signOnly := &beacon.AccountInfo{Address: "tz1sign", Scopes: []beacon.PermissionScope{beacon.ScopeSign}}
	full := &beacon.AccountInfo{Address: "tz1full", Scopes: beacon.DefaultScopes}

	tests := []struct {
		name    string
		account *beacon.AccountInfo
		kind    beacon.MessageType
		want    error
	}{
		{"permission without account", nil, beacon.PermissionRequest, nil},
		{"sign without account", nil, beacon.SignPayloadRequest, beacon.ErrNoActiveAccount},
		{"operation without account", nil, beacon.OperationRequest, beacon.ErrNoActiveAccount},
		{"broadcast without account", nil, beacon.BroadcastRequest, beacon.ErrNoActiveAccount},
		{"sign with sign scope", signOnly, beacon.SignPayloadRequest, nil},
		{"operation with sign scope only", signOnly, beacon.OperationRequest, beacon.ErrUnauthorized},
		{"broadcast with any account", signOnly, beacon.BroadcastRequest, nil},
		{"operation with default scopes", full, beacon.OperationRequest, nil},
		{"response kind is never allowed", full, beacon.SignPayloadResponse, beacon.ErrUnauthorized},
		{"acknowledge without account", nil, beacon.Acknowledge, beacon.ErrUnauthorized},
		{"unknown kind without account", nil, beacon.MessageType("pair_request"), beacon.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(staticAccount{tt.account})
			err := g.Check(tt.kind)
			if tt.want == nil {
				if err != nil {
					t.Errorf("permission:gate_test - Check(%s) = %v, want nil", tt.kind, err)
				}
				if !g.IsAuthorized(tt.kind) {
					t.Errorf("permission:gate_test - IsAuthorized(%s) = false", tt.kind)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("permission:gate_test - Check(%s) = %v, want %v", tt.kind, err, tt.want)
			}
			if g.IsAuthorized(tt.kind) {
				t.Errorf("permission:gate_test - IsAuthorized(%s) = true", tt.kind)
			}
		})
	}
}

func TestGate_NilSource(t *testing.T) {
	g := NewGate(nil)
	if err := g.Check(beacon.SignPayloadRequest); !errors.Is(err, beacon.ErrNoActiveAccount) {
		t.Errorf("permission:gate_test - err = %v, want NO_ACTIVE_ACCOUNT", err)
	}
}
