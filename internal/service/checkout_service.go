package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"checkout-service/internal/apiclient"
	"checkout-service/internal/apperr"
	"checkout-service/internal/broker"
	"checkout-service/internal/checkout"
	"checkout-service/internal/models"
	"checkout-service/internal/provider"
	"checkout-service/internal/recovery"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BackendClient is the slice of the payment backend client the
// orchestration needs.
type BackendClient interface {
	CreatePaymentIntent(ctx context.Context, items []models.CartItem) (*models.PaymentIntentRef, error)
	UpdatePaymentIntent(ctx context.Context, intentID string, address models.Address, items []models.CartItem, shippingOption, phoneNumber string) (*models.ShippingQuote, error)
	CreateCheckoutSession(ctx context.Context, items []models.CartItem, mode string) (*apiclient.CheckoutSession, error)
}

// OrderRecorder persists completed orders.
type OrderRecorder interface {
	CreateOrder(ctx context.Context, order *models.Order) error
}

// CheckoutService drives one checkout attempt per session: intent
// creation, shipping recalculation, confirmation, and completion. An
// attempt is discarded on success or on any cart mutation; recoverable
// provider failures keep it alive for a retry.
type CheckoutService struct {
	client         BackendClient
	cartService    *CartService
	flow           *checkout.Flow
	eventPublisher *broker.EventPublisher
	orders         OrderRecorder
	watcher        *recovery.CompletionWatcher
	mode           string
	logger         *zap.Logger

	mu       sync.Mutex
	attempts map[string]*checkout.Engine
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	client BackendClient,
	cartService *CartService,
	paymentProvider provider.Provider,
	eventPublisher *broker.EventPublisher,
	orders OrderRecorder,
	markers recovery.MarkerStore,
	returnURL string,
	mode string,
) *CheckoutService {
	s := &CheckoutService{
		client:         client,
		cartService:    cartService,
		flow:           checkout.NewFlow(paymentProvider, returnURL),
		eventPublisher: eventPublisher,
		orders:         orders,
		mode:           mode,
		logger:         util.GetLogger(),
		attempts:       make(map[string]*checkout.Engine),
	}
	s.watcher = recovery.NewCompletionWatcher(markers, func(ctx context.Context, sessionID, marker string) error {
		return cartService.Clear(ctx, sessionID, "order_completed")
	})
	cartService.SetMutationHook(s.Invalidate)
	return s
}

// Watcher exposes the completion watcher for the success-route handler
// and workers.
func (s *CheckoutService) Watcher() *recovery.CompletionWatcher {
	return s.watcher
}

// BeginResponse is returned when a checkout attempt starts.
type BeginResponse struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
	AmountCents     int64  `json:"amount_cents"`
}

// Begin creates a payment intent for the session's cart and opens a new
// attempt, replacing any previous one.
func (s *CheckoutService) Begin(ctx context.Context, sessionID string) (*BeginResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Begin")
	defer span.End()

	items, err := s.cartService.Items(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.Validation("cart", "Your cart is empty")
	}

	ref, err := s.client.CreatePaymentIntent(ctx, items)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("intent_creation").Inc()
		return nil, err
	}

	engine := checkout.NewEngine(s.client, ref)
	s.mu.Lock()
	s.attempts[sessionID] = engine
	s.mu.Unlock()

	util.CheckoutsStartedTotal.Inc()
	s.logger.Info("Checkout started",
		zap.String("session_id", sessionID),
		zap.String("intent_id", ref.PaymentIntentID))

	var amount int64
	for _, it := range items {
		amount += it.LineTotal().Cents
	}

	s.publishStarted(ctx, sessionID, ref.PaymentIntentID, amount, items)

	return &BeginResponse{
		ClientSecret:    ref.ClientSecret,
		PaymentIntentID: ref.PaymentIntentID,
		AmountCents:     amount,
	}, nil
}

// attempt returns the session's open attempt.
func (s *CheckoutService) attempt(sessionID string) (*checkout.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	engine, ok := s.attempts[sessionID]
	if !ok {
		return nil, apperr.Validation("session", "No checkout in progress; start checkout first")
	}
	return engine, nil
}

// Invalidate discards the session's attempt. Called on every cart
// mutation: the intent no longer matches the cart, so the next checkout
// creates a fresh one.
func (s *CheckoutService) Invalidate(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, sessionID)
}

// QuoteResponse reports the recalculation outcome to the caller.
type QuoteResponse struct {
	State          checkout.State        `json:"state"`
	Quote          *models.ShippingQuote `json:"quote,omitempty"`
	SelectedOption string                `json:"selected_option"`
}

// SetAddress feeds an address change into the attempt's shipping engine.
// Recalculation failures are swallowed to a log line: the caller gets the
// last quote and may still submit payment.
func (s *CheckoutService) SetAddress(ctx context.Context, sessionID string, addr models.Address, complete bool) (*QuoteResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.SetAddress")
	defer span.End()

	engine, err := s.attempt(sessionID)
	if err != nil {
		return nil, err
	}

	items, err := s.cartService.Items(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	quote, err := engine.SetAddress(ctx, items, addr, complete)
	util.ShippingRecalcLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		// Non-fatal: logged by the engine, submission stays possible.
		return s.quoteResponse(engine, quote), nil
	}

	if quote != nil {
		s.publishQuoted(ctx, sessionID, engine, quote, addr.Country)
	}
	return s.quoteResponse(engine, quote), nil
}

// SelectShipping feeds a tier change into the attempt's shipping engine.
// A validation failure (express without a usable phone) surfaces to the
// caller; recalculation failures are swallowed like address changes.
func (s *CheckoutService) SelectShipping(ctx context.Context, sessionID, optionID, phone string) (*QuoteResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.SelectShipping")
	defer span.End()

	engine, err := s.attempt(sessionID)
	if err != nil {
		return nil, err
	}

	items, err := s.cartService.Items(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	quote, err := engine.SelectOption(ctx, items, optionID, phone)
	if err != nil {
		if apperr.IsKind(err, apperr.KindValidation) {
			return nil, err
		}
		return s.quoteResponse(engine, quote), nil
	}

	if quote != nil {
		s.publishQuoted(ctx, sessionID, engine, quote, engine.Address().Country)
	}
	return s.quoteResponse(engine, quote), nil
}

func (s *CheckoutService) quoteResponse(engine *checkout.Engine, quote *models.ShippingQuote) *QuoteResponse {
	if quote == nil {
		quote = engine.Quote()
	}
	return &QuoteResponse{
		State:          engine.State(),
		Quote:          quote,
		SelectedOption: engine.SelectedOption(),
	}
}

// Confirm runs the confirmation flow. On success the order is recorded,
// completion events are published, and the cart is cleared exactly once
// via the marker watcher. Provider failures leave the attempt and cart
// untouched for a retry.
func (s *CheckoutService) Confirm(ctx context.Context, sessionID string) (*checkout.ConfirmResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Confirm")
	defer span.End()

	engine, err := s.attempt(sessionID)
	if err != nil {
		return nil, err
	}

	result, err := s.flow.Confirm(ctx, engine)
	if err != nil {
		if apperr.IsKind(err, apperr.KindProvider) {
			s.publishFailed(ctx, sessionID, engine, err)
		}
		return nil, err
	}

	intent := engine.Intent()
	marker := intent.PaymentIntentID

	view, err := s.cartService.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	amount := view.TotalPrice.Cents
	if q := engine.Quote(); q != nil {
		amount += q.CostCents
	}

	order := &models.Order{
		SessionMarker: marker,
		AmountCents:   amount,
		Currency:      view.TotalPrice.Currency,
		Status:        models.OrderStatusCompleted,
	}
	if s.orders != nil {
		if err := s.orders.CreateOrder(ctx, order); err != nil {
			s.logger.Error("Failed to record completed order",
				zap.String("marker", marker),
				zap.Error(err))
		} else {
			util.OrdersCompletedTotal.Inc()
		}
	}

	s.publishSucceeded(ctx, sessionID, marker, intent.PaymentIntentID, amount, view.TotalPrice.Currency)
	s.publishCompleted(ctx, sessionID, marker, order.ID, amount)

	// Clearing through the watcher keeps success-route re-observation of
	// the same marker from clearing a newly filled cart later.
	target := fmt.Sprintf("%s?%s=%s", recovery.SuccessPath, recovery.MarkerParam, marker)
	if _, err := s.watcher.Observe(ctx, sessionID, target); err != nil {
		s.logger.Error("Failed to clear cart after completion",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}

	s.Invalidate(sessionID)
	return result, nil
}

// LegacySession creates a hosted checkout session on the legacy endpoint.
func (s *CheckoutService) LegacySession(ctx context.Context, sessionID string) (*apiclient.CheckoutSession, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.LegacySession")
	defer span.End()

	items, err := s.cartService.Items(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.Validation("cart", "Your cart is empty")
	}

	return s.client.CreateCheckoutSession(ctx, items, s.mode)
}

func (s *CheckoutService) publishStarted(ctx context.Context, sessionID, intentID string, amount int64, items []models.CartItem) {
	if s.eventPublisher == nil {
		return
	}
	data := make([]models.CartItemData, 0, len(items))
	for _, it := range items {
		data = append(data, models.CartItemData{
			ProductID: it.ID,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitCents: it.UnitPrice.Cents,
		})
	}
	event := &models.CheckoutStartedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeCheckoutStarted),
		SessionID:       sessionID,
		PaymentIntentID: intentID,
		AmountCents:     amount,
		Items:           data,
	}
	if err := s.eventPublisher.PublishCheckoutStarted(ctx, event); err != nil {
		s.logger.Error("Failed to publish CheckoutStarted event", zap.Error(err))
	}
}

func (s *CheckoutService) publishQuoted(ctx context.Context, sessionID string, engine *checkout.Engine, quote *models.ShippingQuote, country string) {
	if s.eventPublisher == nil {
		return
	}
	intentID := ""
	if ref := engine.Intent(); ref != nil {
		intentID = ref.PaymentIntentID
	}
	event := &models.ShippingQuotedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeShippingQuoted),
		SessionID:       sessionID,
		PaymentIntentID: intentID,
		ShippingOption:  engine.SelectedOption(),
		CostCents:       quote.CostCents,
		Country:         country,
	}
	if err := s.eventPublisher.PublishShippingQuoted(ctx, event); err != nil {
		s.logger.Error("Failed to publish ShippingQuoted event", zap.Error(err))
	}
}

func (s *CheckoutService) publishSucceeded(ctx context.Context, sessionID, marker, intentID string, amount int64, currency string) {
	if s.eventPublisher == nil {
		return
	}
	event := &models.PaymentSucceededEvent{
		BaseEvent:       newBaseEvent(models.EventTypePaymentSucceeded),
		SessionID:       sessionID,
		SessionMarker:   marker,
		PaymentIntentID: intentID,
		AmountCents:     amount,
		Currency:        currency,
	}
	if err := s.eventPublisher.PublishPaymentSucceeded(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentSucceeded event", zap.Error(err))
	}
}

func (s *CheckoutService) publishFailed(ctx context.Context, sessionID string, engine *checkout.Engine, cause error) {
	if s.eventPublisher == nil {
		return
	}
	intentID := ""
	if ref := engine.Intent(); ref != nil {
		intentID = ref.PaymentIntentID
	}
	event := &models.PaymentFailedEvent{
		BaseEvent:       newBaseEvent(models.EventTypePaymentFailed),
		SessionID:       sessionID,
		PaymentIntentID: intentID,
		Reason:          cause.Error(),
	}
	if err := s.eventPublisher.PublishPaymentFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}
}

func (s *CheckoutService) publishCompleted(ctx context.Context, sessionID, marker string, orderID, amount int64) {
	if s.eventPublisher == nil {
		return
	}
	event := &models.OrderCompletedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderCompleted),
		SessionID:     sessionID,
		SessionMarker: marker,
		OrderID:       orderID,
		AmountCents:   amount,
	}
	if err := s.eventPublisher.PublishOrderCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
