package checkout

import (
	"context"
	"sync"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// State of one checkout attempt's shipping recalculation.
type State string

const (
	StateNoAddress      State = "NO_ADDRESS"
	StateAddressEntered State = "ADDRESS_ENTERED"
	StateCalculating    State = "CALCULATING"
	StateQuoted         State = "QUOTED"
)

// QuoteClient is the slice of the backend client the engine needs.
type QuoteClient interface {
	UpdatePaymentIntent(ctx context.Context, intentID string, address models.Address, items []models.CartItem, shippingOption, phoneNumber string) (*models.ShippingQuote, error)
}

// Engine recalculates shipping for one checkout attempt. A recalculation
// fires when the address becomes complete, when a partial address satisfies
// the relaxed international rule, or when the shipping tier changes after a
// previously complete address. Failures restore the prior state and are
// never fatal to checkout.
type Engine struct {
	client QuoteClient
	logger *zap.Logger

	mu              sync.Mutex
	state           State
	intent          *models.PaymentIntentRef
	address         models.Address
	addressComplete bool
	selectedOption  string
	phone           string
	quote           *models.ShippingQuote

	// generation makes the quote race deterministic: each trigger bumps
	// it, and a response is applied only while its generation is still
	// current (last trigger wins).
	generation uint64
}

// NewEngine creates an engine for one checkout attempt.
func NewEngine(client QuoteClient, intent *models.PaymentIntentRef) *Engine {
	return &Engine{
		client:         client,
		logger:         util.GetLogger(),
		state:          StateNoAddress,
		intent:         intent,
		selectedOption: models.ShippingTierStandard,
	}
}

// State returns the current recalculation state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Intent returns the payment intent this attempt runs against.
func (e *Engine) Intent() *models.PaymentIntentRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.intent
}

// Quote returns the last applied quote, nil before the first one resolves.
func (e *Engine) Quote() *models.ShippingQuote {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quote
}

// SelectedOption returns the currently selected shipping tier.
func (e *Engine) SelectedOption() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedOption
}

// Phone returns the entered phone number.
func (e *Engine) Phone() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phone
}

// AddressComplete reports whether the address step has reported complete.
func (e *Engine) AddressComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addressComplete
}

// Address returns the current address.
func (e *Engine) Address() models.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.address
}

// shouldQuote decides whether an address change triggers a recalculation.
// A complete address always does. A partial one still does when it names a
// country and city and either carries a postal code or is outside the
// domestic country, so international addresses without postal codes are
// not stranded.
func shouldQuote(addr models.Address, complete bool) bool {
	if complete {
		return true
	}
	if addr.Country == "" || addr.City == "" {
		return false
	}
	return addr.PostalCode != "" || addr.Country != models.DomesticCountry
}

// SetAddress records an address change and recalculates when the trigger
// rule is met. Recalculation failures are logged and leave the prior quote
// in place; they never block submission.
func (e *Engine) SetAddress(ctx context.Context, items []models.CartItem, addr models.Address, complete bool) (*models.ShippingQuote, error) {
	e.mu.Lock()
	e.address = addr
	if complete {
		e.addressComplete = true
	}

	if !shouldQuote(addr, complete) {
		if e.state == StateNoAddress {
			e.state = StateAddressEntered
		}
		e.mu.Unlock()
		return e.Quote(), nil
	}

	phone := ""
	if e.selectedOption == models.ShippingTierExpress {
		phone = e.phone
	}
	option := e.selectedOption
	e.mu.Unlock()

	return e.recalculate(ctx, items, addr, option, phone)
}

// SelectOption records a shipping-tier change. The express tier requires a
// phone with at least ten digits before any request is sent; an invalid one
// keeps the engine in its current state and surfaces a field error. A
// recalculation only fires once an address was previously complete.
func (e *Engine) SelectOption(ctx context.Context, items []models.CartItem, optionID, phone string) (*models.ShippingQuote, error) {
	if optionID == models.ShippingTierExpress && !ValidPhone(phone) {
		return nil, apperr.Validation("phone_number",
			"A valid phone number (at least 10 digits) is required for express shipping")
	}

	e.mu.Lock()
	e.selectedOption = optionID
	e.phone = phone
	if !e.addressComplete {
		e.mu.Unlock()
		return e.Quote(), nil
	}
	addr := e.address
	e.mu.Unlock()

	sentPhone := ""
	if optionID == models.ShippingTierExpress {
		sentPhone = phone
	}
	return e.recalculate(ctx, items, addr, optionID, sentPhone)
}

// recalculate runs one Calculating transition. The response is applied only
// if no newer trigger fired while it was in flight.
func (e *Engine) recalculate(ctx context.Context, items []models.CartItem, addr models.Address, option, phone string) (*models.ShippingQuote, error) {
	e.mu.Lock()
	prior := e.state
	// A recalculation only fires once an address is recorded, so a failed
	// first quote falls back to ADDRESS_ENTERED, never NO_ADDRESS.
	if prior == StateCalculating || prior == StateNoAddress {
		prior = StateAddressEntered
	}
	e.state = StateCalculating
	e.generation++
	gen := e.generation
	intentID := ""
	if e.intent != nil {
		intentID = e.intent.PaymentIntentID
	}
	e.mu.Unlock()

	quote, err := e.client.UpdatePaymentIntent(ctx, intentID, addr, items, option, phone)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		// A newer trigger superseded this request; its response decides.
		return e.quote, nil
	}

	if err != nil {
		e.logger.Warn("Shipping recalculation failed",
			zap.String("intent_id", intentID),
			zap.String("option", option),
			zap.Error(err))
		e.state = prior
		util.ShippingRecalcFailedTotal.Inc()
		return e.quote, err
	}

	e.state = StateQuoted
	if quote.Options != nil {
		e.quote = quote
	} else {
		merged := &models.ShippingQuote{CostCents: quote.CostCents}
		if e.quote != nil {
			merged.Options = e.quote.Options
		}
		e.quote = merged
	}
	util.ShippingRecalcTotal.Inc()
	return e.quote, nil
}
