package provider

import (
	"context"

	"checkout-service/internal/models"
)

// ConfirmRequest carries everything the provider needs to confirm one
// payment attempt.
type ConfirmRequest struct {
	ClientSecret   string
	BillingDetails models.BillingDetails
	ReturnURL      string
	// AllowInPage requests in-page completion when the payment method
	// permits it; methods that require an off-page step use ReturnURL.
	AllowInPage bool
}

// ConfirmResult is the outcome of a confirmation attempt.
type ConfirmResult struct {
	Status      string // succeeded|requires_redirect
	RedirectURL string
	ProviderRef string
}

// Confirmation statuses
const (
	StatusSucceeded        = "succeeded"
	StatusRequiresRedirect = "requires_redirect"
)

// Provider drives the external payment SDK: element collection validation
// and final confirmation. Implementations are injected so tests can
// substitute fakes and multiple independent instances can coexist.
type Provider interface {
	Name() string

	// ValidateElements validates the collected payment elements before
	// confirmation. A validation failure aborts the attempt with the
	// payment intent untouched.
	ValidateElements(ctx context.Context, clientSecret string) error

	// ConfirmPayment submits the confirmation. Provider-side failures
	// (declined card, SDK validation) are recoverable and surfaced to
	// the shopper.
	ConfirmPayment(ctx context.Context, req ConfirmRequest) (ConfirmResult, error)
}
