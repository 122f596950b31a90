package checkout

import (
	"context"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
	"checkout-service/internal/provider"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// Flow drives the provider through element validation and confirmation for
// one checkout attempt.
type Flow struct {
	provider  provider.Provider
	returnURL string
	logger    *zap.Logger
}

// NewFlow creates a confirmation flow. returnURL is where redirect-based
// payment methods land after the off-page step.
func NewFlow(p provider.Provider, returnURL string) *Flow {
	return &Flow{
		provider:  p,
		returnURL: returnURL,
		logger:    util.GetLogger(),
	}
}

// ConfirmResult is the outcome passed to the caller's success path.
type ConfirmResult struct {
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url,omitempty"`
	ProviderRef string `json:"provider_ref,omitempty"`
}

// Confirm runs the confirmation steps against the engine's current state.
// Every provider-side failure is recoverable: the cart and payment intent
// are left untouched so the shopper can retry.
func (f *Flow) Confirm(ctx context.Context, e *Engine) (*ConfirmResult, error) {
	intent := e.Intent()
	if intent == nil || intent.ClientSecret == "" {
		return nil, apperr.Provider("payment form is not ready", nil)
	}

	if !e.AddressComplete() {
		return nil, apperr.Validation("address", "Please complete your shipping address")
	}

	phone := e.Phone()
	if e.SelectedOption() == models.ShippingTierExpress && !ValidPhone(phone) {
		return nil, apperr.Validation("phone_number",
			"A valid phone number (at least 10 digits) is required for express shipping")
	}

	util.ConfirmAttemptsTotal.Inc()

	if err := f.provider.ValidateElements(ctx, intent.ClientSecret); err != nil {
		f.logger.Info("Provider element validation failed",
			zap.String("intent_id", intent.PaymentIntentID),
			zap.Error(err))
		util.ConfirmFailedTotal.Inc()
		return nil, apperr.Provider(apperr.UserMessage(err), err)
	}

	addr := e.Address()
	if phone == "" {
		phone = models.PlaceholderPhone
	}
	billing := models.BillingDetails{
		Name:    addr.Name,
		Email:   models.PlaceholderEmail, // email is deliberately not collected
		Phone:   phone,
		Address: addr,
	}

	result, err := f.provider.ConfirmPayment(ctx, provider.ConfirmRequest{
		ClientSecret:   intent.ClientSecret,
		BillingDetails: billing,
		ReturnURL:      f.returnURL,
		AllowInPage:    true,
	})
	if err != nil {
		f.logger.Warn("Payment confirmation failed",
			zap.String("intent_id", intent.PaymentIntentID),
			zap.Error(err))
		util.ConfirmFailedTotal.Inc()
		return nil, apperr.Provider(apperr.UserMessage(err), err)
	}

	util.ConfirmSucceededTotal.Inc()
	return &ConfirmResult{
		Status:      result.Status,
		RedirectURL: result.RedirectURL,
		ProviderRef: result.ProviderRef,
	}, nil
}
