package service

import (
	"context"
	"sync"
	"testing"

	"checkout-service/internal/apiclient"
	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
	"checkout-service/internal/provider"
	"checkout-service/internal/recovery"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu          sync.Mutex
	intents     int
	updates     int
	updateErr   error
	quote       *models.ShippingQuote
	lastOption  string
	lastPhone   string
	sessionResp *apiclient.CheckoutSession
}

func (f *fakeBackend) CreatePaymentIntent(_ context.Context, _ []models.CartItem) (*models.PaymentIntentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents++
	return apiclient.RefFromClientSecret("pi_test_secret_abc"), nil
}

func (f *fakeBackend) UpdatePaymentIntent(_ context.Context, _ string, _ models.Address, _ []models.CartItem, option, phone string) (*models.ShippingQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	f.lastOption = option
	f.lastPhone = phone
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.quote != nil {
		return f.quote, nil
	}
	return &models.ShippingQuote{CostCents: 599}, nil
}

func (f *fakeBackend) CreateCheckoutSession(_ context.Context, _ []models.CartItem, mode string) (*apiclient.CheckoutSession, error) {
	if f.sessionResp != nil {
		return f.sessionResp, nil
	}
	return &apiclient.CheckoutSession{ID: "cs_" + mode}, nil
}

type stubOrders struct {
	mu     sync.Mutex
	orders []*models.Order
}

func (s *stubOrders) CreateOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order.ID = int64(len(s.orders) + 1)
	s.orders = append(s.orders, order)
	return nil
}

func newTestCheckout(t *testing.T, backend *fakeBackend, p provider.Provider) (*CheckoutService, *CartService, *stubOrders) {
	t.Helper()
	cartSvc := newTestCartService()
	orders := &stubOrders{}
	svc := NewCheckoutService(backend, cartSvc, p,
		nil, orders, recovery.NewMemoryMarkerStore(),
		"https://shop.example/checkout/success", "test")
	return svc, cartSvc, orders
}

func completeAddress() models.Address {
	return models.Address{
		Name: "Jordan", Line1: "1 Main St", City: "Portland",
		State: "OR", PostalCode: "97201", Country: "US",
	}
}

func TestBeginRequiresNonEmptyCart(t *testing.T) {
	svc, _, _ := newTestCheckout(t, &fakeBackend{}, provider.NewMockProvider(1.0))

	_, err := svc.Begin(context.Background(), "sess")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestBeginCreatesIntent(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	svc, cartSvc, _ := newTestCheckout(t, backend, provider.NewMockProvider(1.0))

	_, err := cartSvc.AddItem(ctx, "sess", 1, "M")
	require.NoError(t, err)

	resp, err := svc.Begin(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, "pi_test", resp.PaymentIntentID)
	assert.Equal(t, int64(2000), resp.AmountCents)
	assert.Equal(t, 1, backend.intents)
}

func TestCartMutationInvalidatesAttempt(t *testing.T) {
	ctx := context.Background()
	svc, cartSvc, _ := newTestCheckout(t, &fakeBackend{}, provider.NewMockProvider(1.0))

	_, err := cartSvc.AddItem(ctx, "sess", 1, "M")
	require.NoError(t, err)
	_, err = svc.Begin(ctx, "sess")
	require.NoError(t, err)

	// Mutating the cart discards the intent; the attempt must be restarted.
	_, err = cartSvc.AddItem(ctx, "sess", 2, "L")
	require.NoError(t, err)

	_, err = svc.SetAddress(ctx, "sess", completeAddress(), true)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSetAddressQuotes(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	svc, cartSvc, _ := newTestCheckout(t, backend, provider.NewMockProvider(1.0))

	_, err := cartSvc.AddItem(ctx, "sess", 1, "M")
	require.NoError(t, err)
	_, err = svc.Begin(ctx, "sess")
	require.NoError(t, err)

	resp, err := svc.SetAddress(ctx, "sess", completeAddress(), true)
	require.NoError(t, err)
	require.NotNil(t, resp.Quote)
	assert.Equal(t, int64(599), resp.Quote.CostCents)
}

func TestShippingFailureDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{updateErr: assert.AnError}
	svc, cartSvc, _ := newTestCheckout(t, backend, provider.NewMockProvider(1.0))

	_, err := cartSvc.AddItem(ctx, "sess", 1, "M")
	require.NoError(t, err)
	_, err = svc.Begin(ctx, "sess")
	require.NoError(t, err)

	// The recalculation fails but the call succeeds with no quote; the
	// shopper can still confirm.
	resp, err := svc.SetAddress(ctx, "sess", completeAddress(), true)
	require.NoError(t, err)
	assert.Nil(t, resp.Quote)

	result, err := svc.Confirm(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, provider.StatusSucceeded, result.Status)
}

func TestExpressWithoutPhoneSurfacesValidation(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	svc, cartSvc, _ := newTestCheckout(t, backend, provider.NewMockProvider(1.0))

	_, err := cartSvc.AddItem(ctx, "sess", 1, "M")
	require.NoError(t, err)
	_, err = svc.Begin(ctx, "sess")
	require.NoError(t, err)
	_, err = svc.SetAddress(ctx, "sess", completeAddress(), true)
	require.NoError(t, err)

	updatesBefore := backend.updates
	_, err = svc.SelectShipping(ctx, "sess", models.ShippingTierExpress, "555-123")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Equal(t, updatesBefore, backend.updates, "no backend call on invalid phone")

	resp, err := svc.SelectShipping(ctx, "sess", models.ShippingTierExpress, "(555) 123-4567")
	require.NoError(t, err)
	require.NotNil(t, resp.Quote)
	assert.Equal(t, "(555) 123-4567", backend.lastPhone)
}

func TestConfirmCompletesAndClearsCart(t *testing.T) {
	ctx := context.Background()
	svc, cartSvc, orders := newTestCheckout(t, &fakeBackend{}, provider.NewMockProvider(1.0))

	_, err := cartSvc.AddItem(ctx, "sess", 1, "M")
	require.NoError(t, err)
	_, err = cartSvc.AddItem(ctx, "sess", 1, "M")
	require.NoError(t, err)
	_, err = svc.Begin(ctx, "sess")
	require.NoError(t, err)
	_, err = svc.SetAddress(ctx, "sess", completeAddress(), true)
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, provider.StatusSucceeded, result.Status)

	view, err := cartSvc.GetCart(ctx, "sess")
	require.NoError(t, err)
	assert.Empty(t, view.Items, "cart cleared after completion")

	require.Len(t, orders.orders, 1)
	assert.Equal(t, "pi_test", orders.orders[0].SessionMarker)
	assert.Equal(t, int64(2000*2+599), orders.orders[0].AmountCents)

	// The attempt is gone; a second confirm needs a fresh checkout.
	_, err = svc.Confirm(ctx, "sess")
	require.Error(t, err)
}

func TestConfirmDeclineKeepsAttempt(t *testing.T) {
	ctx := context.Background()
	svc, cartSvc, orders := newTestCheckout(t, &fakeBackend{}, provider.NewMockProvider(0.0))

	_, err := cartSvc.AddItem(ctx, "sess", 1, "M")
	require.NoError(t, err)
	_, err = svc.Begin(ctx, "sess")
	require.NoError(t, err)
	_, err = svc.SetAddress(ctx, "sess", completeAddress(), true)
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, "sess")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindProvider))

	// Cart and attempt survive for a retry.
	view, err := cartSvc.GetCart(ctx, "sess")
	require.NoError(t, err)
	assert.NotEmpty(t, view.Items)
	assert.Empty(t, orders.orders)

	_, err = svc.SetAddress(ctx, "sess", completeAddress(), true)
	assert.NoError(t, err, "attempt still open")
}

func TestLegacySession(t *testing.T) {
	ctx := context.Background()
	svc, cartSvc, _ := newTestCheckout(t, &fakeBackend{}, provider.NewMockProvider(1.0))

	_, err := svc.LegacySession(ctx, "sess")
	require.Error(t, err, "empty cart refused")

	_, err = cartSvc.AddItem(ctx, "sess", 1, "M")
	require.NoError(t, err)

	session, err := svc.LegacySession(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, "cs_test", session.ID)
}
