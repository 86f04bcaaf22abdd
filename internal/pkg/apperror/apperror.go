// Package apperror defines the closed error taxonomy of the billing engine.
// Every error carries a short user-facing message plus technical detail that
// is logged but never returned to clients.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindInvalidTransition   Kind = "invalid_transition"
	KindGateway             Kind = "gateway_error"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindRetentionExpired    Kind = "retention_expired"
	KindNotFound            Kind = "not_found"
)

// GatewayKind classifies a normalized gateway failure. No caller above the
// adapter ever inspects a vendor-specific error type.
type GatewayKind string

const (
	GatewayCardDeclined      GatewayKind = "card_declined"
	GatewayInsufficientFunds GatewayKind = "insufficient_funds"
	GatewayExpiredCard       GatewayKind = "expired_card"
	GatewayRateLimited       GatewayKind = "rate_limited"
	GatewayInvalidRequest    GatewayKind = "invalid_request"
	GatewayAuthFailed        GatewayKind = "authentication_failed"
	GatewayNetworkError      GatewayKind = "network_error"
	GatewayUnknown           GatewayKind = "unknown"
)

// Retryable reports whether the adapter may retry this class of failure.
// Card-decline-class errors need user action and are never retried blindly.
func (k GatewayKind) Retryable() bool {
	return k == GatewayRateLimited || k == GatewayNetworkError
}

type Error struct {
	Kind        Kind
	GatewayKind GatewayKind // set only when Kind == KindGateway
	UserMessage string
	Detail      string
	Err         error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.UserMessage)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(userMsg string) *Error {
	return &Error{Kind: KindValidation, UserMessage: userMsg, Detail: userMsg}
}

func InvalidTransition(userMsg, detail string) *Error {
	return &Error{Kind: KindInvalidTransition, UserMessage: userMsg, Detail: detail}
}

func Gateway(kind GatewayKind, userMsg, detail string, err error) *Error {
	return &Error{Kind: KindGateway, GatewayKind: kind, UserMessage: userMsg, Detail: detail, Err: err}
}

func ConcurrencyConflict(detail string) *Error {
	return &Error{
		Kind:        KindConcurrencyConflict,
		UserMessage: "Another billing operation is in progress, please retry",
		Detail:      detail,
	}
}

func RetentionExpired(userMsg string) *Error {
	return &Error{Kind: KindRetentionExpired, UserMessage: userMsg, Detail: userMsg}
}

func NotFound(what string) *Error {
	return &Error{
		Kind:        KindNotFound,
		UserMessage: fmt.Sprintf("%s not found", what),
		Detail:      fmt.Sprintf("%s not found", what),
	}
}

// As extracts an *Error from any error chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
