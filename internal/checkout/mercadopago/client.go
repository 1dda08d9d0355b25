package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumeven/funnel/internal/checkout/domain"
	"github.com/lumeven/funnel/internal/config"
)

const defaultBaseURL = "https://api.mercadopago.com"

// Client is a thin wrapper over the Mercado Pago HTTP API: checkout
// preferences, direct payments (card token and PIX) and status lookup.
type Client struct {
	accessToken     string
	notificationURL string
	baseURL         string
	client          *http.Client
}

func NewClient(cfg config.MercadoPagoConfig) *Client {
	return &Client{
		accessToken:     strings.TrimSpace(cfg.AccessToken),
		notificationURL: cfg.NotificationURL,
		baseURL:         defaultBaseURL,
		client:          &http.Client{Timeout: 12 * time.Second},
	}
}

type preferenceRequest struct {
	Items             []preferenceItem `json:"items"`
	Payer             *preferencePayer `json:"payer,omitempty"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	ExternalReference string           `json:"external_reference,omitempty"`
	DateOfExpiration  string           `json:"date_of_expiration,omitempty"`
}

type preferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	CurrencyID string  `json:"currency_id"`
	UnitPrice  float64 `json:"unit_price"`
}

type preferencePayer struct {
	Email string `json:"email,omitempty"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	DateCreated      string `json:"date_created"`
	DateOfExpiration string `json:"date_of_expiration"`
}

type paymentRequest struct {
	TransactionAmount float64       `json:"transaction_amount"`
	Token             string        `json:"token,omitempty"`
	Installments      int           `json:"installments,omitempty"`
	PaymentMethodID   string        `json:"payment_method_id,omitempty"`
	Description       string        `json:"description,omitempty"`
	Payer             paymentPayer  `json:"payer"`
	Metadata          paymentLabels `json:"metadata,omitempty"`
}

type paymentPayer struct {
	Email          string          `json:"email"`
	FirstName      string          `json:"first_name,omitempty"`
	Identification *identification `json:"identification,omitempty"`
}

type identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type paymentLabels map[string]string

type paymentResponse struct {
	ID                 json.Number    `json:"id"`
	Status             string         `json:"status"`
	StatusDetail       string         `json:"status_detail"`
	PaymentTypeID      string         `json:"payment_type_id"`
	TransactionAmount  float64        `json:"transaction_amount"`
	CurrencyID         string         `json:"currency_id"`
	Metadata           paymentLabels  `json:"metadata"`
	Payer              *responsePayer `json:"payer"`
	DateOfExpiration   string         `json:"date_of_expiration"`
	PointOfInteraction *struct {
		TransactionData *struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

type responsePayer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// CreateSession opens a checkout preference; the returned URL is the
// provider-hosted init point.
func (c *Client) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	expires := time.Now().UTC().Add(24 * time.Hour)
	body := preferenceRequest{
		Items: []preferenceItem{{
			Title:      "Inscrição",
			Quantity:   1,
			CurrencyID: strings.ToUpper(req.Currency),
			UnitPrice:  float64(req.Amount) / 100,
		}},
		NotificationURL:   c.notificationURL,
		ExternalReference: req.BatchID,
		DateOfExpiration:  expires.Format("2006-01-02T15:04:05.000-07:00"),
	}
	if req.Email != "" {
		body.Payer = &preferencePayer{Email: req.Email}
	}

	var pref preferenceResponse
	if err := c.doRequest(ctx, http.MethodPost, "/checkout/preferences", body, "", &pref); err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:        pref.ID,
		Provider:  "mercadopago",
		URL:       pref.InitPoint,
		Amount:    req.Amount,
		Currency:  strings.ToUpper(req.Currency),
		Metadata:  req.Metadata,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expires,
	}
	if parsed, err := time.Parse("2006-01-02T15:04:05.000-07:00", pref.DateOfExpiration); err == nil {
		session.ExpiresAt = parsed.UTC()
	}
	return session, nil
}

// ProcessPayment submits a direct payment. PIX responses carry the QR code
// pair; card responses resolve synchronously to a status.
func (c *Client) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	body := paymentRequest{
		TransactionAmount: float64(req.Amount) / 100,
		Description:       "Inscrição",
		Payer: paymentPayer{
			Email:     req.Payer.Email,
			FirstName: req.Payer.Name,
		},
		Metadata: paymentLabels{"batch_id": req.BatchID},
	}
	if req.Payer.Document != "" {
		body.Payer.Identification = &identification{Type: "CPF", Number: req.Payer.Document}
	}

	switch req.Method {
	case domain.MethodPix:
		body.PaymentMethodID = "pix"
	case domain.MethodCard:
		body.Token = req.Token
		body.Installments = 1
	default:
		return nil, domain.ErrInvalidMethod
	}

	var payment paymentResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/payments", body, uuid.NewString(), &payment); err != nil {
		return nil, err
	}

	result := &domain.PaymentResult{
		PaymentID:    payment.ID.String(),
		Status:       payment.Status,
		StatusDetail: payment.StatusDetail,
	}
	if payment.PointOfInteraction != nil && payment.PointOfInteraction.TransactionData != nil {
		result.QRCode = payment.PointOfInteraction.TransactionData.QRCodeBase64
		result.QRCodeText = payment.PointOfInteraction.TransactionData.QRCode
	}
	if parsed, err := time.Parse("2006-01-02T15:04:05.000-07:00", payment.DateOfExpiration); err == nil {
		expires := parsed.UTC()
		result.ExpiresAt = &expires
	}
	return result, nil
}

// PaymentStatus fetches the current provider status for a payment id.
func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (*domain.StatusResult, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, domain.ErrPaymentNotFound
	}

	var payment paymentResponse
	err := c.doRequest(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, "", &payment)
	if err != nil {
		var provErr *domain.ProviderError
		if errors.As(err, &provErr) && provErr.Status == http.StatusNotFound {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}

	return &domain.StatusResult{
		Status:        payment.Status,
		StatusDetail:  payment.StatusDetail,
		PaymentTypeID: payment.PaymentTypeID,
	}, nil
}

// PaymentDetails fetches the full payment for notification handling, since
// Mercado Pago webhooks deliver only the payment id.
func (c *Client) PaymentDetails(ctx context.Context, paymentID string) (*domain.PaymentDetails, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, domain.ErrPaymentNotFound
	}

	var payment paymentResponse
	err := c.doRequest(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, "", &payment)
	if err != nil {
		var provErr *domain.ProviderError
		if errors.As(err, &provErr) && provErr.Status == http.StatusNotFound {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}

	details := &domain.PaymentDetails{
		PaymentID:    payment.ID.String(),
		Status:       payment.Status,
		StatusDetail: payment.StatusDetail,
		Amount:       int64(payment.TransactionAmount*100 + 0.5),
		Currency:     strings.ToUpper(payment.CurrencyID),
		BatchID:      payment.Metadata["batch_id"],
	}
	if payment.Payer != nil {
		details.PayerEmail = payment.Payer.Email
		details.PayerName = payment.Payer.FirstName
	}
	return details, nil
}

func (c *Client) doRequest(
	ctx context.Context,
	method string,
	path string,
	body any,
	idempotencyKey string,
	out any,
) error {
	if c.accessToken == "" {
		return domain.ErrInvalidConfig
	}

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		message := apiErr.Message
		if message == "" {
			message = apiErr.Error
		}
		return &domain.ProviderError{
			Provider: "mercadopago",
			Status:   resp.StatusCode,
			Message:  message,
		}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
