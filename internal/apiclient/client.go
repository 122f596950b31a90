package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// ProviderAPIHost is the payment provider's direct API host. Requests must
// never be sent there: a base URL resolving to it means the configuration
// would leak intent identifiers to the wrong origin.
const ProviderAPIHost = "api.stripe.com"

// Client talks to the external Payment Backend. It owns nothing beyond the
// resolved base URL and the HTTP client it was constructed with.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a payment backend client. The base URL is resolved once
// by config and treated as immutable for the process lifetime.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     util.GetLogger(),
	}
}

// BaseURL returns the resolved backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LineItem is the normalized wire form of a cart line. Price travels as the
// display string the storefront encodes; the numeric amount is carried
// alongside so the backend does not re-parse it.
type LineItem struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Size     string  `json:"size,omitempty"`
}

// NormalizeItems converts cart lines to wire line items.
func NormalizeItems(items []models.CartItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, LineItem{
			ID:       it.ID,
			Name:     it.Name,
			Price:    float64(it.UnitPrice.Cents) / 100.0,
			Quantity: it.Quantity,
			Size:     it.Size,
		})
	}
	return out
}

type createPaymentIntentRequest struct {
	Items []LineItem `json:"items"`
}

type createPaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// CreatePaymentIntent posts the cart and returns a payment intent reference
// derived from the returned client secret.
func (c *Client) CreatePaymentIntent(ctx context.Context, items []models.CartItem) (*models.PaymentIntentRef, error) {
	var resp createPaymentIntentResponse
	err := c.post(ctx, "/api/create-payment-intent", createPaymentIntentRequest{Items: NormalizeItems(items)}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ClientSecret == "" {
		return nil, apperr.API(http.StatusOK, "missing clientSecret in response")
	}
	return RefFromClientSecret(resp.ClientSecret), nil
}

// clientSecretSeparator splits a client secret from the intent identifier.
const clientSecretSeparator = "_secret_"

// RefFromClientSecret derives the intent ID by truncating the client secret
// at the separator token.
func RefFromClientSecret(clientSecret string) *models.PaymentIntentRef {
	id := clientSecret
	if idx := strings.Index(clientSecret, clientSecretSeparator); idx >= 0 {
		id = clientSecret[:idx]
	}
	return &models.PaymentIntentRef{
		ClientSecret:    clientSecret,
		PaymentIntentID: id,
	}
}

type updatePaymentIntentRequest struct {
	PaymentIntentID string         `json:"paymentIntentId"`
	Address         models.Address `json:"address"`
	Items           []LineItem     `json:"items"`
	ShippingOption  string         `json:"shippingOption"`
	PhoneNumber     string         `json:"phoneNumber,omitempty"`
}

type updatePaymentIntentResponse struct {
	ShippingCost    float64              `json:"shippingCost"`
	ShippingOptions []wireShippingOption `json:"shippingOptions,omitempty"`
}

type wireShippingOption struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Rate            float64 `json:"rate"`
	MinDeliveryDays int     `json:"minDeliveryDays,omitempty"`
	MaxDeliveryDays int     `json:"maxDeliveryDays,omitempty"`
}

func (w wireShippingOption) toModel() models.ShippingOption {
	return models.ShippingOption{
		ID:              w.ID,
		Name:            w.Name,
		RateCents:       int64(w.Rate*100 + 0.5),
		MinDeliveryDays: w.MinDeliveryDays,
		MaxDeliveryDays: w.MaxDeliveryDays,
	}
}

// UpdatePaymentIntent posts address, cart and selected shipping tier and
// returns the recalculated shipping cost plus, when the backend includes
// them, the full option list. Phone is only sent for the express tier.
func (c *Client) UpdatePaymentIntent(ctx context.Context, intentID string, address models.Address, items []models.CartItem, shippingOption, phoneNumber string) (*models.ShippingQuote, error) {
	req := updatePaymentIntentRequest{
		PaymentIntentID: intentID,
		Address:         address,
		Items:           NormalizeItems(items),
		ShippingOption:  shippingOption,
		PhoneNumber:     phoneNumber,
	}

	var resp updatePaymentIntentResponse
	if err := c.post(ctx, "/api/update-payment-intent", req, &resp); err != nil {
		return nil, err
	}

	quote := &models.ShippingQuote{
		CostCents: int64(resp.ShippingCost*100 + 0.5),
	}
	for _, opt := range resp.ShippingOptions {
		quote.Options = append(quote.Options, opt.toModel())
	}
	return quote, nil
}

type shippingOptionsRequest struct {
	Address models.Address `json:"address"`
	Items   []LineItem     `json:"items"`
}

type shippingOptionsResponse struct {
	Options []wireShippingOption `json:"options"`
}

// GetShippingOptions returns the available shipping tiers for an address
// without mutating the payment intent.
func (c *Client) GetShippingOptions(ctx context.Context, address models.Address, items []models.CartItem) ([]models.ShippingOption, error) {
	var resp shippingOptionsResponse
	err := c.post(ctx, "/api/shipping-options", shippingOptionsRequest{
		Address: address,
		Items:   NormalizeItems(items),
	}, &resp)
	if err != nil {
		return nil, err
	}

	options := make([]models.ShippingOption, 0, len(resp.Options))
	for _, opt := range resp.Options {
		options = append(options, opt.toModel())
	}
	return options, nil
}

type createCheckoutSessionRequest struct {
	Items []LineItem `json:"items"`
	Mode  string     `json:"mode"`
}

// CheckoutSession is the legacy hosted-session response.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// CreateCheckoutSession calls the legacy hosted-checkout endpoint.
func (c *Client) CreateCheckoutSession(ctx context.Context, items []models.CartItem, mode string) (*CheckoutSession, error) {
	var resp CheckoutSession
	err := c.post(ctx, "/api/create-checkout-session", createCheckoutSessionRequest{
		Items: NormalizeItems(items),
		Mode:  mode,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// post issues one JSON POST against the backend. The provider-host guard
// runs before any network I/O.
func (c *Client) post(ctx context.Context, endpoint string, body, out interface{}) error {
	if err := c.checkEndpoint(); err != nil {
		return err
	}

	fullURL := c.baseURL + endpoint

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Backend request failed",
			zap.String("url", fullURL),
			zap.Error(err))
		return apperr.Network(fmt.Sprintf("request to %s failed", fullURL), err)
	}
	defer resp.Body.Close()

	// An HTML body where JSON was expected means the endpoint does not
	// exist (static host serving an error page). Surface it as
	// misconfiguration, never the raw HTML.
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		c.logger.Error("Backend returned HTML instead of JSON",
			zap.String("url", fullURL),
			zap.String("content_type", contentType))
		return apperr.Format(fullURL)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Network("failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Backend request rejected",
			zap.String("url", fullURL),
			zap.Int("status", resp.StatusCode))
		return apperr.API(resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return apperr.Network("failed to decode response", err)
		}
	}
	return nil
}

// checkEndpoint refuses to talk to the payment provider's direct API host.
func (c *Client) checkEndpoint() error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return apperr.Configuration(fmt.Sprintf("invalid backend base URL %q", c.baseURL))
	}
	if strings.EqualFold(u.Hostname(), ProviderAPIHost) {
		return apperr.Configuration(
			fmt.Sprintf("backend base URL points at the payment provider API host %s; refusing to send", ProviderAPIHost))
	}
	return nil
}
