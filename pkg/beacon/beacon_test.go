package beacon

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

const beaconTestPrefix = "beacon:beacon_test"

func TestEnvelope_MarshalJSON_FlattensRequest(t *testing.T) {
	env := Envelope{
		ID:       "req-1",
		Version:  ProtocolVersion,
		SenderID: "sender-1",
		Request: SignPayloadRequestBody{
			SigningType:   SigningTypeRaw,
			Payload:       "05010000",
			SourceAddress: "tz1abc",
		},
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("%s - marshal failed: %v", beaconTestPrefix, err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("%s - unmarshal failed: %v", beaconTestPrefix, err)
	}

	want := map[string]string{
		"id":            "req-1",
		"version":       "2",
		"senderId":      "sender-1",
		"type":          "sign_payload_request",
		"payload":       "05010000",
		"signingType":   "raw",
		"sourceAddress": "tz1abc",
	}
	for k, v := range want {
		if decoded[k] != v {
			t.Errorf("%s - %s = %v, want %q", beaconTestPrefix, k, decoded[k], v)
		}
	}
}

func TestEnvelope_MarshalJSON_IdentityFieldsWin(t *testing.T) {
	env := Envelope{ID: "req-2", Version: "2", SenderID: "s", Request: BroadcastRequestBody{
		Network:           DefaultNetwork(),
		SignedTransaction: "deadbeef",
	}}
	data, err := json.Marshal(&env)
	if err != nil {
		t.Fatalf("%s - marshal failed: %v", beaconTestPrefix, err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("%s - unmarshal failed: %v", beaconTestPrefix, err)
	}
	if msg.Type != BroadcastRequest {
		t.Errorf("%s - Type = %q, want %q", beaconTestPrefix, msg.Type, BroadcastRequest)
	}
	if msg.Network == nil || msg.Network.Type != NetworkMainnet {
		t.Errorf("%s - Network = %v, want mainnet", beaconTestPrefix, msg.Network)
	}
}

func TestMessage_IsError(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
		want bool
	}{
		{"nil", nil, false},
		{"success", &Message{Type: SignPayloadResponse, Signature: "edsig"}, false},
		{"error type field", &Message{Type: SignPayloadResponse, ErrorType: AbortedError}, true},
		{"error message type", &Message{Type: ErrorResponse}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsError(); got != tt.want {
				t.Errorf("%s - IsError() = %v, want %v", beaconTestPrefix, got, tt.want)
			}
		})
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := NewError(CodeRateLimited, "too many requests for %s", "sign_payload_request")
	wrapped := fmt.Errorf("outer: %w", err)

	if !errors.Is(wrapped, ErrRateLimited) {
		t.Errorf("%s - expected errors.Is to match ErrRateLimited", beaconTestPrefix)
	}
	if errors.Is(wrapped, ErrUnauthorized) {
		t.Errorf("%s - did not expect match with ErrUnauthorized", beaconTestPrefix)
	}

	var be *Error
	if !errors.As(wrapped, &be) {
		t.Fatalf("%s - expected errors.As to find *Error", beaconTestPrefix)
	}
	if be.Code != CodeRateLimited {
		t.Errorf("%s - Code = %q, want %q", beaconTestPrefix, be.Code, CodeRateLimited)
	}
}

func TestWrapError_Unwrap(t *testing.T) {
	cause := errors.New("broken pipe")
	err := WrapError(CodeTransportFailure, cause, "send failed")
	if !errors.Is(err, cause) {
		t.Errorf("%s - expected cause to be reachable", beaconTestPrefix)
	}
	if err.Error() != "TRANSPORT_FAILURE: send failed: broken pipe" {
		t.Errorf("%s - Error() = %q", beaconTestPrefix, err.Error())
	}
}

func TestNewRemoteError(t *testing.T) {
	err := NewRemoteError(&Message{ID: "req-9", ErrorType: NotGrantedError})
	if err.ErrorType != NotGrantedError {
		t.Errorf("%s - ErrorType = %q, want %q", beaconTestPrefix, err.ErrorType, NotGrantedError)
	}
	if !errors.Is(err, ErrRemote) {
		t.Errorf("%s - expected REMOTE_ERROR code", beaconTestPrefix)
	}

	unknown := NewRemoteError(&Message{ID: "req-10", Type: ErrorResponse})
	if unknown.ErrorType != UnknownError {
		t.Errorf("%s - ErrorType = %q, want %q", beaconTestPrefix, unknown.ErrorType, UnknownError)
	}
}

func TestRequiredScopes(t *testing.T) {
	tests := []struct {
		kind   MessageType
		want   []PermissionScope
		wantOK bool
	}{
		{PermissionRequest, nil, true},
		{SignPayloadRequest, []PermissionScope{ScopeSign}, true},
		{OperationRequest, []PermissionScope{ScopeOperationRequest}, true},
		{BroadcastRequest, nil, true},
		{PermissionResponse, nil, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, ok := RequiredScopes(tt.kind)
			if ok != tt.wantOK {
				t.Fatalf("%s - ok = %v, want %v", beaconTestPrefix, ok, tt.wantOK)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("%s - scopes = %v, want %v", beaconTestPrefix, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("%s - scopes[%d] = %q, want %q", beaconTestPrefix, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAccountInfo_HasScopes(t *testing.T) {
	acc := &AccountInfo{Scopes: []PermissionScope{ScopeSign, ScopeOperationRequest}}
	if !acc.HasScopes([]PermissionScope{ScopeSign}) {
		t.Errorf("%s - expected sign to be granted", beaconTestPrefix)
	}
	if !acc.HasScopes(nil) {
		t.Errorf("%s - empty requirement should always pass", beaconTestPrefix)
	}
	if acc.HasScopes([]PermissionScope{ScopeThreshold}) {
		t.Errorf("%s - threshold was not granted", beaconTestPrefix)
	}
	var none *AccountInfo
	if none.HasScopes(nil) {
		t.Errorf("%s - nil account has no scopes", beaconTestPrefix)
	}
}

func TestAccountInfo_CloneIsDeep(t *testing.T) {
	acc := &AccountInfo{Scopes: []PermissionScope{ScopeSign}, Threshold: &Threshold{Amount: "10"}}
	cp := acc.Clone()
	cp.Scopes[0] = ScopeThreshold
	cp.Threshold.Amount = "99"
	if acc.Scopes[0] != ScopeSign || acc.Threshold.Amount != "10" {
		t.Errorf("%s - Clone shares state with the original", beaconTestPrefix)
	}
}

func TestNetwork_OrDefault(t *testing.T) {
	var n *Network
	if n.OrDefault().Type != NetworkMainnet {
		t.Errorf("%s - nil network should default to mainnet", beaconTestPrefix)
	}
	custom := &Network{Type: NetworkCustom, Name: "local", RPCURL: "http://localhost:8732"}
	if got := custom.OrDefault(); got != *custom {
		t.Errorf("%s - OrDefault() = %v, want %v", beaconTestPrefix, got, *custom)
	}
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"2", false},
		{"3", false},
		{"2.1.0", false},
		{"1", false},
		{"4", true},
		{"0.9.0", true},
		{"not-a-version", true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := CheckVersion(tt.version)
			if (err != nil) != tt.wantErr {
				t.Errorf("%s - CheckVersion(%q) err = %v, wantErr %v", beaconTestPrefix, tt.version, err, tt.wantErr)
			}
		})
	}
}

func TestMessageType_IsRequest(t *testing.T) {
	tests := []struct {
		kind MessageType
		want bool
	}{
		{PermissionRequest, true},
		{SignPayloadRequest, true},
		{OperationRequest, true},
		{BroadcastRequest, true},
		{PermissionResponse, false},
		{Acknowledge, false},
		{Disconnect, false},
		{ErrorResponse, false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.IsRequest(); got != tt.want {
				t.Errorf("%s - IsRequest(%q) = %v, want %v", beaconTestPrefix, tt.kind, got, tt.want)
			}
		})
	}
}
