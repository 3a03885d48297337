package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can react without inspecting error text.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindPayloadCreation    Kind = "payload_creation"
	KindNotAuthenticated   Kind = "not_authenticated"
	KindNetworkUnavailable Kind = "network_unavailable"
	KindAuthExpired        Kind = "auth_expired"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindServer             Kind = "server"
	KindUnexpectedStatus   Kind = "unexpected_status"
	KindEmptyResponse      Kind = "empty_response"
	KindResponseShape      Kind = "response_shape"
	KindConfig             Kind = "config"
	KindStorage            Kind = "storage"
	KindUnknown            Kind = "unknown"
)

// Action is the user-facing reaction a presentation layer should offer.
type Action string

const (
	ActionNone     Action = "none"
	ActionRelogin  Action = "relogin"
	ActionRetry    Action = "retry"
	ActionFixInput Action = "fix_input"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Status is the HTTP status that produced the error, zero when none was received.
	Status int
	Cause  error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, msg, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap attaches a kind to err. An err that already carries a kind is returned
// as-is so the original classification survives re-wrapping.
func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// WithStatus builds an error produced by an HTTP response.
func WithStatus(kind Kind, op string, status int, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Status:  status,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of the first typed error in the chain.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// StatusOf returns the HTTP status recorded on the chain, or zero.
func StatusOf(err error) int {
	var target *Error
	if errors.As(err, &target) {
		return target.Status
	}
	return 0
}

// ActionFor maps an error to the reaction the user should be offered.
func ActionFor(err error) Action {
	if err == nil {
		return ActionNone
	}
	switch KindOf(err) {
	case KindNotAuthenticated, KindAuthExpired, KindForbidden:
		return ActionRelogin
	case KindNetworkUnavailable, KindServer, KindUnexpectedStatus,
		KindEmptyResponse, KindResponseShape, KindNotFound:
		return ActionRetry
	case KindInvalidInput, KindPayloadCreation:
		return ActionFixInput
	default:
		return ActionNone
	}
}
