package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Session is one provider-hosted payment page instance. Immutable once
// created; expires per provider policy.
type Session struct {
	ID         string            `json:"session_id"`
	Provider   string            `json:"provider"`
	URL        string            `json:"url"`
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	SuccessURL string            `json:"-"`
	CancelURL  string            `json:"-"`
	Metadata   map[string]string `json:"-"`
	CreatedAt  time.Time         `json:"created_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// SessionRequest carries the buyer input for hosted checkout creation.
// A zero Amount selects the active batch price; an empty Provider selects
// the default builder.
type SessionRequest struct {
	Provider string
	Email    string
	Amount   int64
	Currency string
	BatchID  string
	Metadata map[string]string
}

const (
	MethodCard = "card"
	MethodPix  = "pix"
)

// PaymentRequest carries the buyer input for direct payment processing.
type PaymentRequest struct {
	Method   string
	Amount   int64
	Currency string
	Token    string
	BatchID  string
	Payer    Payer
}

type Payer struct {
	Name     string
	Email    string
	Phone    string
	Document string
}

// PaymentResult is the provider outcome of a direct payment. QR fields are
// set for bank-transfer style payments only.
type PaymentResult struct {
	PaymentID    string     `json:"payment_id"`
	Status       string     `json:"status"`
	StatusDetail string     `json:"status_detail,omitempty"`
	QRCode       string     `json:"qr_code,omitempty"`
	QRCodeText   string     `json:"qr_code_text,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// StatusResult is the provider view of a payment's current state.
type StatusResult struct {
	Status        string `json:"status"`
	StatusDetail  string `json:"status_detail"`
	PaymentTypeID string `json:"payment_type_id"`
}

var (
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidMethod   = errors.New("invalid_method")
	ErrMissingToken    = errors.New("missing_card_token")
	ErrMissingPayer    = errors.New("missing_payer_data")
	ErrInvalidConfig   = errors.New("invalid_config")
	ErrUnknownProvider = errors.New("unknown_provider")
	ErrNoActiveBatch   = errors.New("no_active_batch")
	ErrPaymentNotFound = errors.New("payment_not_found")
)

// ProviderError wraps a remote payment API failure, keeping the provider's
// own message when one was extractable.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: request failed with status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// SessionBuilder creates a hosted checkout session with a provider.
type SessionBuilder interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// PaymentProcessor submits a direct payment (card token or PIX).
type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
}

// StatusClient is a read-through proxy to the provider status API.
type StatusClient interface {
	PaymentStatus(ctx context.Context, paymentID string) (*StatusResult, error)
}

// PaymentDetails is the fuller provider view fetched when a notification
// carries only the payment id.
type PaymentDetails struct {
	PaymentID    string
	Status       string
	StatusDetail string
	Amount       int64
	Currency     string
	PayerEmail   string
	PayerName    string
	BatchID      string
}

// PaymentFetcher retrieves the full payment from the provider.
type PaymentFetcher interface {
	PaymentDetails(ctx context.Context, paymentID string) (*PaymentDetails, error)
}
