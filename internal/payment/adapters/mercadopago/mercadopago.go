package mercadopago

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lumeven/funnel/internal/payment/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "mercadopago"
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	secret, ok := cfg.Config["webhook_secret"].(string)
	if !ok {
		return nil, domain.ErrInvalidConfig
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, domain.ErrInvalidConfig
	}

	return &Adapter{webhookSecret: secret}, nil
}

type Adapter struct {
	webhookSecret string
}

// Verify checks the x-signature header against the signed manifest
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("x-signature"))
	requestID := strings.TrimSpace(headers.Get("x-request-id"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	ts, signature, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	dataID := extractDataID(payload)
	if dataID == "" {
		return domain.ErrInvalidSignature
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", strings.ToLower(dataID), requestID, ts)
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.Event, error) {
	var notification mpNotification
	if err := json.Unmarshal(payload, &notification); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	paymentID := notification.Data.ID.String()
	if paymentID == "" || paymentID == "0" {
		return nil, domain.ErrInvalidEvent
	}

	action := strings.TrimSpace(notification.Action)
	topic := strings.TrimSpace(notification.Type)
	if topic != "payment" && !strings.HasPrefix(action, "payment.") {
		return nil, domain.ErrEventIgnored
	}

	eventID := notification.ID.String()
	if eventID == "" || eventID == "0" {
		// Some notification modes omit the envelope id.
		eventID = action + ":" + paymentID
	}

	occurredAt := time.Now().UTC()
	if parsed, err := time.Parse(time.RFC3339, notification.DateCreated); err == nil {
		occurredAt = parsed.UTC()
	}

	// Notification payloads carry only the payment id; the handler fetches
	// the payment from the status API before acting on it.
	return &domain.Event{
		Provider:        "mercadopago",
		ProviderEventID: eventID,
		PaymentID:       paymentID,
		Type:            domain.EventTypePaymentUpdated,
		OccurredAt:      occurredAt,
		RawPayload:      payload,
	}, nil
}

type mpNotification struct {
	ID          json.Number `json:"id"`
	Action      string      `json:"action"`
	Type        string      `json:"type"`
	DateCreated string      `json:"date_created"`
	Data        mpData      `json:"data"`
}

type mpData struct {
	ID json.Number `json:"id"`
}

func parseSignatureHeader(header string) (string, string, error) {
	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		switch strings.TrimSpace(keyValue[0]) {
		case "ts":
			ts = strings.TrimSpace(keyValue[1])
		case "v1":
			v1 = strings.TrimSpace(keyValue[1])
		}
	}
	if ts == "" || v1 == "" {
		return "", "", errors.New("invalid_signature")
	}
	return ts, v1, nil
}

func extractDataID(payload []byte) string {
	var notification mpNotification
	if err := json.Unmarshal(payload, &notification); err != nil {
		return ""
	}
	id := notification.Data.ID.String()
	if id == "" {
		return ""
	}
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return id
	}
	return strings.TrimSpace(id)
}
