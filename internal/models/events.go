package models

import "time"

// Event types
const (
	EventTypeCheckoutStarted  = "CHECKOUT_STARTED"
	EventTypeShippingQuoted   = "SHIPPING_QUOTED"
	EventTypePaymentSucceeded = "PAYMENT_SUCCEEDED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
	EventTypeOrderCompleted   = "ORDER_COMPLETED"
	EventTypeCartCleared      = "CART_CLEARED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutStartedEvent published when a payment intent is created for a cart
type CheckoutStartedEvent struct {
	BaseEvent
	SessionID       string         `json:"session_id"`
	PaymentIntentID string         `json:"payment_intent_id"`
	AmountCents     int64          `json:"amount_cents"`
	Items           []CartItemData `json:"items"`
}

// ShippingQuotedEvent published when a shipping recalculation resolves
type ShippingQuotedEvent struct {
	BaseEvent
	SessionID       string `json:"session_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	ShippingOption  string `json:"shipping_option"`
	CostCents       int64  `json:"cost_cents"`
	Country         string `json:"country"`
}

// PaymentSucceededEvent published when the provider confirms a payment
type PaymentSucceededEvent struct {
	BaseEvent
	SessionID       string `json:"session_id"`
	SessionMarker   string `json:"session_marker"`
	PaymentIntentID string `json:"payment_intent_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
}

// PaymentFailedEvent published when confirmation fails at the provider
type PaymentFailedEvent struct {
	BaseEvent
	SessionID       string `json:"session_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	Reason          string `json:"reason"`
}

// OrderCompletedEvent published once a completed order is recorded
type OrderCompletedEvent struct {
	BaseEvent
	SessionID     string `json:"session_id"`
	SessionMarker string `json:"session_marker"`
	OrderID       int64  `json:"order_id"`
	AmountCents   int64  `json:"amount_cents"`
}

// CartClearedEvent published when a session cart is emptied
type CartClearedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// CartItemData represents item data in events
type CartItemData struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitCents int64  `json:"unit_cents"`
}
