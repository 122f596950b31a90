package models

import (
	"time"

	"checkout-service/internal/money"
)

// Product represents a catalog product
type Product struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	PriceCents int64     `db:"price_cents" json:"price_cents"`
	Currency   string    `db:"currency" json:"currency"`
	Image      string    `db:"image" json:"image"`
	Sizes      string    `db:"sizes" json:"sizes"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CartItem is one line of a cart. Lines are identified by (ID, Size);
// two lines with the same product ID but different sizes stay distinct.
type CartItem struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	UnitPrice money.Money `json:"unit_price"`
	Image     string      `json:"image"`
	Quantity  int         `json:"quantity"`
	Size      string      `json:"size,omitempty"`
}

// LineTotal returns unit price times quantity.
func (ci CartItem) LineTotal() money.Money {
	return ci.UnitPrice.Mul(ci.Quantity)
}

// Address is a shipping/billing address as collected at checkout
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

// DomesticCountry is the default country for which a postal code is
// required before a shipping quote can be requested.
const DomesticCountry = "US"

// ShippingOption is one selectable shipping tier
type ShippingOption struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	RateCents       int64  `json:"rate_cents"`
	MinDeliveryDays int    `json:"min_delivery_days,omitempty"`
	MaxDeliveryDays int    `json:"max_delivery_days,omitempty"`
}

// ShippingQuote is the transient result of one recalculation. It is
// recomputed on every address or tier change and never cached across
// addresses.
type ShippingQuote struct {
	CostCents int64            `json:"cost_cents"`
	Options   []ShippingOption `json:"options,omitempty"`
}

// Shipping tiers
const (
	ShippingTierStandard = "standard"
	ShippingTierExpress  = "express"
)

// PaymentIntentRef identifies one checkout attempt against the provider.
// It has no independent persistence: it is discarded on success, error,
// or any cart mutation.
type PaymentIntentRef struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// BillingDetails is what the provider receives at confirmation time
type BillingDetails struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Address Address `json:"address"`
}

// PlaceholderEmail is sent to the provider in place of a collected email;
// the system deliberately does not collect one.
const PlaceholderEmail = "customer@example.com"

// PlaceholderPhone is sent when no phone was entered.
const PlaceholderPhone = "+1234567890"

// Order represents a completed order record
type Order struct {
	ID            int64     `db:"id" json:"id"`
	SessionMarker string    `db:"session_marker" json:"session_marker"`
	AmountCents   int64     `db:"amount_cents" json:"amount_cents"`
	Currency      string    `db:"currency" json:"currency"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusCompleted = "COMPLETED"
	OrderStatusFailed    = "FAILED"
)

// ProcessedMarker records a completed-order marker that already triggered
// a cart clear, for exactly-once semantics
type ProcessedMarker struct {
	Marker      string    `db:"marker"`
	ProcessedAt time.Time `db:"processed_at"`
}
