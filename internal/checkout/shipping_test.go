package checkout

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
	"checkout-service/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuoteClient struct {
	mu      sync.Mutex
	calls   int
	lastReq struct {
		option string
		phone  string
	}
	quote   *models.ShippingQuote
	err     error
	blockCh chan struct{} // when set, each call waits until the channel closes
}

func (f *fakeQuoteClient) UpdatePaymentIntent(_ context.Context, _ string, _ models.Address, _ []models.CartItem, option, phone string) (*models.ShippingQuote, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq.option = option
	f.lastReq.phone = phone
	block := f.blockCh
	quote, err := f.quote, f.err
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return quote, err
}

func (f *fakeQuoteClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func items() []models.CartItem {
	return []models.CartItem{
		{ID: 1, Name: "Pride Tee", UnitPrice: money.MustParse("$20"), Quantity: 1, Size: "M"},
	}
}

func intent() *models.PaymentIntentRef {
	return &models.PaymentIntentRef{ClientSecret: "pi_1_secret_x", PaymentIntentID: "pi_1"}
}

func TestShouldQuote(t *testing.T) {
	cases := []struct {
		name     string
		addr     models.Address
		complete bool
		want     bool
	}{
		{"complete address", models.Address{Country: "US"}, true, true},
		{"domestic with postal", models.Address{Country: "US", City: "Portland", PostalCode: "97201"}, false, true},
		{"domestic without postal", models.Address{Country: "US", City: "Portland"}, false, false},
		{"international without postal", models.Address{Country: "IE", City: "Dublin"}, false, true},
		{"missing city", models.Address{Country: "IE"}, false, false},
		{"missing country", models.Address{City: "Dublin"}, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, shouldQuote(tc.addr, tc.complete))
		})
	}
}

func TestSetAddressCompleteTriggersQuote(t *testing.T) {
	client := &fakeQuoteClient{quote: &models.ShippingQuote{CostCents: 599}}
	e := NewEngine(client, intent())

	quote, err := e.SetAddress(context.Background(), items(),
		models.Address{Country: "US", City: "Portland", PostalCode: "97201"}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(599), quote.CostCents)
	assert.Equal(t, StateQuoted, e.State())
	assert.Equal(t, 1, client.callCount())
}

func TestSetAddressPartialNoTrigger(t *testing.T) {
	client := &fakeQuoteClient{}
	e := NewEngine(client, intent())

	quote, err := e.SetAddress(context.Background(), items(),
		models.Address{Country: "US", City: "Portland"}, false)
	require.NoError(t, err)
	assert.Nil(t, quote)
	assert.Equal(t, StateAddressEntered, e.State())
	assert.Equal(t, 0, client.callCount())
}

func TestSetAddressInternationalWithoutPostalTriggers(t *testing.T) {
	client := &fakeQuoteClient{quote: &models.ShippingQuote{CostCents: 1299}}
	e := NewEngine(client, intent())

	quote, err := e.SetAddress(context.Background(), items(),
		models.Address{Country: "IE", City: "Dublin"}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1299), quote.CostCents)
	assert.Equal(t, 1, client.callCount())
}

func TestRecalcFailureRestoresPriorStateAndKeepsQuote(t *testing.T) {
	client := &fakeQuoteClient{quote: &models.ShippingQuote{CostCents: 599}}
	e := NewEngine(client, intent())

	addr := models.Address{Country: "US", City: "Portland", PostalCode: "97201"}
	_, err := e.SetAddress(context.Background(), items(), addr, true)
	require.NoError(t, err)
	require.Equal(t, StateQuoted, e.State())

	client.mu.Lock()
	client.err = errors.New("backend down")
	client.mu.Unlock()

	quote, err := e.SetAddress(context.Background(), items(), addr, true)
	assert.Error(t, err)
	assert.Equal(t, StateQuoted, e.State(), "failure returns to the prior state")
	require.NotNil(t, quote)
	assert.Equal(t, int64(599), quote.CostCents, "stale quote survives the failure")
}

func TestFirstRecalcFailureFallsBackToAddressEntered(t *testing.T) {
	client := &fakeQuoteClient{err: errors.New("backend down")}
	e := NewEngine(client, intent())

	_, err := e.SetAddress(context.Background(), items(),
		models.Address{Country: "US", City: "Portland", PostalCode: "97201"}, true)
	require.Error(t, err)
	assert.Equal(t, StateAddressEntered, e.State(), "an address is recorded even though the quote failed")
	assert.Nil(t, e.Quote())
}

func TestSelectExpressInvalidPhone(t *testing.T) {
	client := &fakeQuoteClient{}
	e := NewEngine(client, intent())

	_, err := e.SelectOption(context.Background(), items(), models.ShippingTierExpress, "555-123")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Equal(t, 0, client.callCount(), "no request may be sent")
}

func TestSelectExpressValidPhone(t *testing.T) {
	client := &fakeQuoteClient{quote: &models.ShippingQuote{CostCents: 1499}}
	e := NewEngine(client, intent())

	_, err := e.SetAddress(context.Background(), items(),
		models.Address{Country: "US", City: "Portland", PostalCode: "97201"}, true)
	require.NoError(t, err)

	quote, err := e.SelectOption(context.Background(), items(), models.ShippingTierExpress, "(555) 123-4567")
	require.NoError(t, err)
	assert.Equal(t, int64(1499), quote.CostCents)
	assert.Equal(t, models.ShippingTierExpress, client.lastReq.option)
	assert.Equal(t, "(555) 123-4567", client.lastReq.phone)
}

func TestSelectOptionBeforeCompleteAddressDoesNotQuote(t *testing.T) {
	client := &fakeQuoteClient{}
	e := NewEngine(client, intent())

	quote, err := e.SelectOption(context.Background(), items(), models.ShippingTierStandard, "")
	require.NoError(t, err)
	assert.Nil(t, quote)
	assert.Equal(t, 0, client.callCount())
	assert.Equal(t, models.ShippingTierStandard, e.SelectedOption())
}

func TestLastTriggerWins(t *testing.T) {
	client := &fakeQuoteClient{quote: &models.ShippingQuote{CostCents: 100}}
	block := make(chan struct{})
	client.blockCh = block
	e := NewEngine(client, intent())

	addr := models.Address{Country: "US", City: "Portland", PostalCode: "97201"}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = e.SetAddress(context.Background(), items(), addr, true)
	}()

	// Wait for the first request to be in flight, then fire a newer one.
	for client.callCount() == 0 {
		runtime.Gosched()
	}
	client.mu.Lock()
	client.blockCh = nil
	client.quote = &models.ShippingQuote{CostCents: 200}
	client.mu.Unlock()

	quote, err := e.SetAddress(context.Background(), items(), addr, true)
	require.NoError(t, err)
	assert.Equal(t, int64(200), quote.CostCents)

	// Release the stale in-flight request; its response must be discarded.
	close(block)
	wg.Wait()
	assert.Equal(t, int64(200), e.Quote().CostCents)
	assert.Equal(t, StateQuoted, e.State())
}

func TestValidPhone(t *testing.T) {
	assert.False(t, ValidPhone("555-123"))
	assert.True(t, ValidPhone("(555) 123-4567"))
	assert.True(t, ValidPhone("+1 555 123 4567"))
	assert.False(t, ValidPhone(""))
}
