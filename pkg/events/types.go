// Package events defines the lifecycle events announced by the request engine
// and the publishers that deliver them.
package events

import (
	"errors"
	"time"

	"github.com/morezero/beacon-dapp/pkg/beacon"
)

// Type names an event.
type Type string

const (
	LocalRateLimitReached Type = "LOCAL_RATE_LIMIT_REACHED"
	NoPermissions         Type = "NO_PERMISSIONS"
	ActiveAccountSet      Type = "ACTIVE_ACCOUNT_SET"
	AcknowledgeReceived   Type = "ACKNOWLEDGE_RECEIVED"

	PermissionRequestSent    Type = "PERMISSION_REQUEST_SENT"
	PermissionRequestSuccess Type = "PERMISSION_REQUEST_SUCCESS"
	PermissionRequestError   Type = "PERMISSION_REQUEST_ERROR"
	SignRequestSent          Type = "SIGN_REQUEST_SENT"
	SignRequestSuccess       Type = "SIGN_REQUEST_SUCCESS"
	SignRequestError         Type = "SIGN_REQUEST_ERROR"
	OperationRequestSent     Type = "OPERATION_REQUEST_SENT"
	OperationRequestSuccess  Type = "OPERATION_REQUEST_SUCCESS"
	OperationRequestError    Type = "OPERATION_REQUEST_ERROR"
	BroadcastRequestSent     Type = "BROADCAST_REQUEST_SENT"
	BroadcastRequestSuccess  Type = "BROADCAST_REQUEST_SUCCESS"
	BroadcastRequestError    Type = "BROADCAST_REQUEST_ERROR"
)

// KindEvents groups the sent/success/error events of one request kind.
type KindEvents struct {
	Sent    Type
	Success Type
	Error   Type
}

var kindEvents = map[beacon.MessageType]KindEvents{
	beacon.PermissionRequest:  {PermissionRequestSent, PermissionRequestSuccess, PermissionRequestError},
	beacon.SignPayloadRequest: {SignRequestSent, SignRequestSuccess, SignRequestError},
	beacon.OperationRequest:   {OperationRequestSent, OperationRequestSuccess, OperationRequestError},
	beacon.BroadcastRequest:   {BroadcastRequestSent, BroadcastRequestSuccess, BroadcastRequestError},
}

// ForKind returns the event names for a request kind.
func ForKind(kind beacon.MessageType) (KindEvents, bool) {
	ev, ok := kindEvents[kind]
	return ev, ok
}

// Event is one published occurrence.
type Event struct {
	Type      Type        `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// New stamps an event with the current time.
func New(t Type, data interface{}) *Event {
	return &Event{Type: t, Data: data, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}
}

// RequestPayload accompanies rate-limit, no-permission and sent events.
type RequestPayload struct {
	Kind beacon.MessageType `json:"kind"`
}

// SuccessPayload accompanies <KIND>_SUCCESS events.
type SuccessPayload struct {
	Output  interface{}              `json:"output"`
	Context beacon.ConnectionContext `json:"connectionContext"`
}

// ErrorPayload accompanies <KIND>_ERROR events.
type ErrorPayload struct {
	Code      beacon.Code      `json:"code,omitempty"`
	ErrorType beacon.ErrorType `json:"errorType,omitempty"`
	Message   string           `json:"message"`
	Err       error            `json:"-"`
}

// NewErrorPayload flattens err for subscribers; Err keeps the original.
func NewErrorPayload(err error) *ErrorPayload {
	p := &ErrorPayload{Message: err.Error(), Err: err}
	var be *beacon.Error
	if errors.As(err, &be) {
		p.Code = be.Code
		p.ErrorType = be.ErrorType
	}
	return p
}

// AcknowledgePayload accompanies ACKNOWLEDGE_RECEIVED.
type AcknowledgePayload struct {
	ID      string                   `json:"id"`
	Context beacon.ConnectionContext `json:"connectionContext"`
}
