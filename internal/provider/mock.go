package provider

import (
	"context"
	"fmt"
	"math/rand"

	"checkout-service/internal/apperr"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockProvider is a stand-in SDK for development and tests. It declines a
// configurable fraction of confirmations to exercise the recoverable-error
// path.
type MockProvider struct {
	logger      *zap.Logger
	successRate float64 // 0.0 - 1.0
}

// NewMockProvider creates a mock provider with the given success rate.
func NewMockProvider(successRate float64) *MockProvider {
	return &MockProvider{
		logger:      util.GetLogger(),
		successRate: successRate,
	}
}

// Name returns the provider name.
func (m *MockProvider) Name() string { return "mock" }

// ValidateElements accepts any non-empty client secret.
func (m *MockProvider) ValidateElements(_ context.Context, clientSecret string) error {
	if clientSecret == "" {
		return apperr.Provider("payment form is not ready", nil)
	}
	return nil
}

// ConfirmPayment succeeds or declines per the configured rate.
func (m *MockProvider) ConfirmPayment(_ context.Context, req ConfirmRequest) (ConfirmResult, error) {
	if req.ClientSecret == "" {
		return ConfirmResult{}, apperr.Provider("missing client secret", nil)
	}

	if rand.Float64() >= m.successRate {
		m.logger.Warn("Mock provider declined payment",
			zap.String("client_secret", req.ClientSecret))
		return ConfirmResult{}, apperr.Provider("Your card was declined.", nil)
	}

	result := ConfirmResult{
		Status:      StatusSucceeded,
		ProviderRef: fmt.Sprintf("TXN-%s", uuid.New().String()[:8]),
	}
	if !req.AllowInPage {
		result.Status = StatusRequiresRedirect
		result.RedirectURL = req.ReturnURL
	}
	return result, nil
}
