package beacon

import (
	"encoding/json"
	"fmt"
)

const messagesLogPrefix = "beacon:messages"

// Request is the kind-specific part of an outbound message. The identity
// fields (id, version, senderId, type) are added by the orchestrator.
type Request interface {
	MessageType() MessageType
}

// PermissionRequestBody asks the wallet for a set of scopes on a network.
type PermissionRequestBody struct {
	AppMetadata AppMetadata       `json:"appMetadata"`
	Network     Network           `json:"network"`
	Scopes      []PermissionScope `json:"scopes"`
}

func (PermissionRequestBody) MessageType() MessageType { return PermissionRequest }

// SignPayloadRequestBody asks the wallet to sign an arbitrary payload.
type SignPayloadRequestBody struct {
	SigningType   SigningType `json:"signingType"`
	Payload       string      `json:"payload"`
	SourceAddress string      `json:"sourceAddress"`
}

func (SignPayloadRequestBody) MessageType() MessageType { return SignPayloadRequest }

// OperationRequestBody asks the wallet to forge, sign and inject operations.
type OperationRequestBody struct {
	Network          Network           `json:"network"`
	OperationDetails []json.RawMessage `json:"operationDetails"`
	SourceAddress    string            `json:"sourceAddress"`
}

func (OperationRequestBody) MessageType() MessageType { return OperationRequest }

// BroadcastRequestBody asks the wallet to inject an already signed transaction.
type BroadcastRequestBody struct {
	Network           Network `json:"network"`
	SignedTransaction string  `json:"signedTransaction"`
}

func (BroadcastRequestBody) MessageType() MessageType { return BroadcastRequest }

// Envelope is a complete outbound message.
type Envelope struct {
	ID       string
	Version  string
	SenderID string
	Request  Request
}

// Type returns the message type of the wrapped request.
func (e Envelope) Type() MessageType {
	if e.Request == nil {
		return ""
	}
	return e.Request.MessageType()
}

// MarshalJSON flattens the request fields next to the identity fields.
func (e Envelope) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if e.Request != nil {
		body, err := json.Marshal(e.Request)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to encode %s body: %w", messagesLogPrefix, e.Type(), err)
		}
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("%s - %s body is not an object: %w", messagesLogPrefix, e.Type(), err)
		}
	}
	for k, v := range map[string]string{
		"id":       e.ID,
		"version":  e.Version,
		"senderId": e.SenderID,
		"type":     string(e.Type()),
	} {
		raw, _ := json.Marshal(v)
		fields[k] = raw
	}
	return json.Marshal(fields)
}

// Message is a decoded inbound message. It is a flat union of every response
// kind; which fields are set depends on Type.
type Message struct {
	ID       string      `json:"id"`
	Version  string      `json:"version"`
	SenderID string      `json:"senderId"`
	Type     MessageType `json:"type"`

	// error
	ErrorType ErrorType `json:"errorType,omitempty"`

	// permission_response
	PublicKey string            `json:"publicKey,omitempty"`
	Network   *Network          `json:"network,omitempty"`
	Scopes    []PermissionScope `json:"scopes,omitempty"`
	Threshold *Threshold        `json:"threshold,omitempty"`

	// sign_payload_response
	Signature   string      `json:"signature,omitempty"`
	SigningType SigningType `json:"signingType,omitempty"`

	// operation_response, broadcast_response
	TransactionHash string `json:"transactionHash,omitempty"`
}

// IsError reports whether the message carries an error kind.
func (m *Message) IsError() bool {
	return m != nil && (m.ErrorType != "" || m.Type == ErrorResponse)
}
