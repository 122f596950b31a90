package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a checkout-path failure. Every error surfaced from the
// orchestration carries exactly one kind so the HTTP boundary can map it to
// a user-visible message without string matching.
type Kind string

const (
	// KindNetwork is a transport failure: the request never reached
	// the backend.
	KindNetwork Kind = "network"
	// KindAPI is a non-2xx backend response.
	KindAPI Kind = "api"
	// KindFormat is an HTML response where JSON was expected; treated as
	// "endpoint not found" misconfiguration, never retried silently.
	KindFormat Kind = "format"
	// KindConfiguration is a refused-before-network misconfiguration, the
	// only class that is non-retryable without developer intervention.
	KindConfiguration Kind = "configuration"
	// KindValidation is a field-level input failure; no network call made.
	KindValidation Kind = "validation"
	// KindProvider is a payment-provider failure, always recoverable.
	KindProvider Kind = "provider"
)

// Error is the single error type threaded through the orchestration.
type Error struct {
	Kind   Kind
	Msg    string
	Status int    // HTTP status for KindAPI
	Body   string // response body for KindAPI
	Field  string // offending field for KindValidation
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Network wraps a transport failure.
func Network(msg string, err error) *Error {
	return &Error{Kind: KindNetwork, Msg: msg, Err: err}
}

// API wraps a non-2xx response.
func API(status int, body string) *Error {
	return &Error{
		Kind:   KindAPI,
		Msg:    fmt.Sprintf("request failed with status %d", status),
		Status: status,
		Body:   body,
	}
}

// Format wraps an HTML-instead-of-JSON response.
func Format(url string) *Error {
	return &Error{Kind: KindFormat, Msg: fmt.Sprintf("endpoint not found: %s", url)}
}

// Configuration wraps a refused-locally misconfiguration.
func Configuration(msg string) *Error {
	return &Error{Kind: KindConfiguration, Msg: msg}
}

// Validation wraps a field-level input failure.
func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Field: field}
}

// Provider wraps a payment-provider failure.
func Provider(msg string, err error) *Error {
	return &Error{Kind: KindProvider, Msg: msg, Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// UserMessage maps an error to the message shown to the shopper.
func UserMessage(err error) string {
	var ae *Error
	if !errors.As(err, &ae) {
		return "Something went wrong. Please try again later."
	}

	switch ae.Kind {
	case KindNetwork:
		return "Unable to reach the payment service. If you use an ad blocker or privacy extension, try disabling it and retry."
	case KindAPI:
		return "The payment service returned an error. Please try again later."
	case KindFormat, KindConfiguration:
		return "Checkout is misconfigured. Please contact support."
	case KindValidation:
		return ae.Msg
	case KindProvider:
		return ae.Msg
	default:
		return "Something went wrong. Please try again later."
	}
}
