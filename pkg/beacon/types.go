// Package beacon defines the message, account and error types shared by the
// dApp-side request/response engine.
package beacon

import "time"

// ProtocolVersion is the version stamped on every outbound envelope.
const ProtocolVersion = "2"

// MessageType identifies the kind of a Beacon message.
type MessageType string

const (
	PermissionRequest   MessageType = "permission_request"
	SignPayloadRequest  MessageType = "sign_payload_request"
	OperationRequest    MessageType = "operation_request"
	BroadcastRequest    MessageType = "broadcast_request"
	PermissionResponse  MessageType = "permission_response"
	SignPayloadResponse MessageType = "sign_payload_response"
	OperationResponse   MessageType = "operation_response"
	BroadcastResponse   MessageType = "broadcast_response"
	Acknowledge         MessageType = "acknowledge"
	Disconnect          MessageType = "disconnect"
	ErrorResponse       MessageType = "error"
)

// IsRequest reports whether t is one of the four outbound request kinds.
func (t MessageType) IsRequest() bool {
	switch t {
	case PermissionRequest, SignPayloadRequest, OperationRequest, BroadcastRequest:
		return true
	}
	return false
}

// ErrorType is the error kind carried by a wallet error message.
type ErrorType string

const (
	BroadcastError            ErrorType = "BROADCAST_ERROR"
	NetworkNotSupported       ErrorType = "NETWORK_NOT_SUPPORTED"
	NoAddressError            ErrorType = "NO_ADDRESS_ERROR"
	NoPrivateKeyFoundError    ErrorType = "NO_PRIVATE_KEY_FOUND_ERROR"
	NotGrantedError           ErrorType = "NOT_GRANTED_ERROR"
	ParametersInvalidError    ErrorType = "PARAMETERS_INVALID_ERROR"
	TooManyOperations         ErrorType = "TOO_MANY_OPERATIONS"
	TransactionInvalidError   ErrorType = "TRANSACTION_INVALID_ERROR"
	SignatureTypeNotSupported ErrorType = "SIGNATURE_TYPE_NOT_SUPPORTED"
	AbortedError              ErrorType = "ABORTED_ERROR"
	UnknownError              ErrorType = "UNKNOWN_ERROR"
)

// PermissionScope is a capability a wallet can grant to the dApp.
type PermissionScope string

const (
	ScopeSign             PermissionScope = "sign"
	ScopeOperationRequest PermissionScope = "operation_request"
	ScopeThreshold        PermissionScope = "threshold"
)

// DefaultScopes are requested when a permission request names none.
var DefaultScopes = []PermissionScope{ScopeOperationRequest, ScopeSign}

// SigningType selects how the wallet treats a sign payload.
type SigningType string

const (
	SigningTypeRaw       SigningType = "raw"
	SigningTypeOperation SigningType = "operation"
	SigningTypeMicheline SigningType = "micheline"
)

// NetworkType names a Tezos network.
type NetworkType string

const (
	NetworkMainnet     NetworkType = "mainnet"
	NetworkCarthagenet NetworkType = "carthagenet"
	NetworkDelphinet   NetworkType = "delphinet"
	NetworkCustom      NetworkType = "custom"
)

// Network describes the chain a request targets. Name and RPCURL are only
// meaningful for custom networks.
type Network struct {
	Type   NetworkType `json:"type"`
	Name   string      `json:"name,omitempty"`
	RPCURL string      `json:"rpcUrl,omitempty"`
}

// DefaultNetwork is used whenever the caller does not pick one.
func DefaultNetwork() Network {
	return Network{Type: NetworkMainnet}
}

// OrDefault returns n, or the default network when n has no type.
func (n *Network) OrDefault() Network {
	if n == nil || n.Type == "" {
		return DefaultNetwork()
	}
	return *n
}

// Origin is the kind of channel a message arrived on.
type Origin string

const (
	OriginExtension     Origin = "extension"
	OriginP2P           Origin = "p2p"
	OriginWalletConnect Origin = "walletconnect"
)

// ConnectionContext describes where an inbound message came from.
type ConnectionContext struct {
	Origin Origin `json:"origin"`
	ID     string `json:"id"`
}

// Threshold limits the amount a wallet may sign without prompting.
type Threshold struct {
	Amount    string `json:"amount"`
	Timeframe string `json:"timeframe"`
}

// AccountOrigin is the persisted form of the connection an account was granted on.
type AccountOrigin struct {
	Type Origin `json:"type"`
	ID   string `json:"id"`
}

// AccountInfo is a wallet account the dApp holds permissions for.
type AccountInfo struct {
	AccountIdentifier string            `json:"accountIdentifier"`
	SenderID          string            `json:"senderId"`
	Origin            AccountOrigin     `json:"origin"`
	Address           string            `json:"address"`
	PublicKey         string            `json:"publicKey"`
	Network           Network           `json:"network"`
	Scopes            []PermissionScope `json:"scopes"`
	Threshold         *Threshold        `json:"threshold,omitempty"`
	ConnectedAt       time.Time         `json:"connectedAt"`
}

// HasScopes reports whether every scope in required was granted to the account.
func (a *AccountInfo) HasScopes(required []PermissionScope) bool {
	if a == nil {
		return false
	}
	granted := make(map[PermissionScope]struct{}, len(a.Scopes))
	for _, s := range a.Scopes {
		granted[s] = struct{}{}
	}
	for _, s := range required {
		if _, ok := granted[s]; !ok {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (a *AccountInfo) Clone() *AccountInfo {
	if a == nil {
		return nil
	}
	out := *a
	out.Scopes = append([]PermissionScope(nil), a.Scopes...)
	if a.Threshold != nil {
		th := *a.Threshold
		out.Threshold = &th
	}
	return &out
}

// AppMetadata identifies the dApp to the wallet on permission requests.
type AppMetadata struct {
	SenderID string `json:"senderId"`
	Name     string `json:"name"`
	Icon     string `json:"icon,omitempty"`
}
