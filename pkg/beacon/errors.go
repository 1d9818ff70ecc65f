package beacon

import "fmt"

// Code classifies failures surfaced to callers.
type Code string

const (
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeNoActiveAccount  Code = "NO_ACTIVE_ACCOUNT"
	CodeIdentityNotReady Code = "IDENTITY_NOT_READY"
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodeRemoteError      Code = "REMOTE_ERROR"
	CodeTransportFailure Code = "TRANSPORT_FAILURE"
	CodeDuplicateID      Code = "DUPLICATE_ID"
	CodeCanceled         Code = "CANCELED"
)

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrRateLimited      = &Error{Code: CodeRateLimited}
	ErrUnauthorized     = &Error{Code: CodeUnauthorized}
	ErrNoActiveAccount  = &Error{Code: CodeNoActiveAccount}
	ErrIdentityNotReady = &Error{Code: CodeIdentityNotReady}
	ErrInvalidInput     = &Error{Code: CodeInvalidInput}
	ErrRemote           = &Error{Code: CodeRemoteError}
	ErrTransportFailure = &Error{Code: CodeTransportFailure}
	ErrDuplicateID      = &Error{Code: CodeDuplicateID}
	ErrCanceled         = &Error{Code: CodeCanceled}
)

// Error is a structured failure from the request engine.
type Error struct {
	Code    Code
	Message string
	// ErrorType is set for CodeRemoteError.
	ErrorType ErrorType
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates an Error with a formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error around a cause.
func WrapError(code Code, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NewRemoteError converts a wallet error message into an Error.
func NewRemoteError(msg *Message) *Error {
	errType := msg.ErrorType
	if errType == "" {
		errType = UnknownError
	}
	return &Error{
		Code:      CodeRemoteError,
		Message:   fmt.Sprintf("wallet answered %s with %s", msg.ID, errType),
		ErrorType: errType,
	}
}
