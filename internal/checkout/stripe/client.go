package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumeven/funnel/internal/checkout/domain"
	"github.com/lumeven/funnel/internal/config"
)

const defaultBaseURL = "https://api.stripe.com"

// Client is a thin wrapper over the Stripe HTTP API for hosted checkout.
type Client struct {
	apiKey     string
	priceID    string
	successURL string
	cancelURL  string
	baseURL    string
	client     *http.Client
}

func NewClient(cfg config.StripeConfig) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		priceID:    strings.TrimSpace(cfg.PriceID),
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		baseURL:    defaultBaseURL,
		client:     &http.Client{Timeout: 12 * time.Second},
	}
}

type checkoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
	Created       int64  `json:"created"`
	ExpiresAt     int64  `json:"expires_at"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession opens a hosted Checkout Session. When a price id is
// configured it wins over inline price data.
func (c *Client) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	if c.successURL == "" || c.cancelURL == "" {
		return nil, domain.ErrInvalidConfig
	}

	values := url.Values{}
	values.Set("mode", "payment")
	values.Set("success_url", c.successURL)
	values.Set("cancel_url", c.cancelURL)
	values.Set("line_items[0][quantity]", "1")
	if c.priceID != "" {
		values.Set("line_items[0][price]", c.priceID)
	} else {
		values.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
		values.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.Amount, 10))
		values.Set("line_items[0][price_data][product_data][name]", "Inscrição")
	}
	if req.Email != "" {
		values.Set("customer_email", req.Email)
	}
	for key, value := range req.Metadata {
		values.Set("metadata["+key+"]", value)
	}
	if req.BatchID != "" {
		// Mirrored onto the payment intent so payment_intent.succeeded
		// deliveries carry the batch even when the session event is missed.
		values.Set("metadata[batch_id]", req.BatchID)
		values.Set("payment_intent_data[metadata][batch_id]", req.BatchID)
	}

	var session checkoutSession
	if err := c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", values, uuid.NewString(), &session); err != nil {
		return nil, err
	}

	return &domain.Session{
		ID:         session.ID,
		Provider:   "stripe",
		URL:        session.URL,
		Amount:     session.AmountTotal,
		Currency:   strings.ToUpper(session.Currency),
		SuccessURL: c.successURL,
		CancelURL:  c.cancelURL,
		Metadata:   req.Metadata,
		CreatedAt:  time.Unix(session.Created, 0).UTC(),
		ExpiresAt:  time.Unix(session.ExpiresAt, 0).UTC(),
	}, nil
}

// ResolvePaymentIntent maps a checkout session id to its payment intent id.
func (c *Client) ResolvePaymentIntent(ctx context.Context, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", domain.ErrPaymentNotFound
	}

	var session checkoutSession
	if err := c.doRequest(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, "", &session); err != nil {
		return "", err
	}
	return session.PaymentIntent, nil
}

func (c *Client) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
	out any,
) error {
	if c.apiKey == "" {
		return domain.ErrInvalidConfig
	}

	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &domain.ProviderError{
			Provider: "stripe",
			Status:   resp.StatusCode,
			Message:  apiErr.Error.Message,
		}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
