package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/lumeven/funnel/internal/payment/domain"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed","data":{"object":{}}}`)
	timestamp := time.Now().Unix()

	header := buildSignatureHeader(secret, payload, timestamp)
	reqHeader := http.Header{}
	reqHeader.Set("Stripe-Signature", header)

	adapter := &Adapter{webhookSecret: secret}
	if err := adapter.Verify(context.Background(), payload, reqHeader); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	reqHeader.Set("Stripe-Signature", buildSignatureHeader("wrong", payload, timestamp))
	if err := adapter.Verify(context.Background(), payload, reqHeader); err == nil {
		t.Fatalf("expected invalid signature error")
	}

	reqHeader.Del("Stripe-Signature")
	if err := adapter.Verify(context.Background(), payload, reqHeader); err == nil {
		t.Fatalf("expected error for missing header")
	}
}

func TestParseCheckoutSessionCompleted(t *testing.T) {
	created := time.Now().UTC().Unix()
	payload := []byte(fmt.Sprintf(`{
		"id":"evt_cs",
		"type":"checkout.session.completed",
		"created":%d,
		"data":{"object":{
			"id":"cs_test123",
			"payment_intent":"pi_1",
			"amount_total":49700,
			"currency":"brl",
			"created":%d,
			"customer_email":"maria@example.com",
			"customer_details":{"name":"Maria Silva","phone":"+5511999990000"},
			"metadata":{"batch_id":"turma-1"}
		}}
	}`, created, created))

	adapter := &Adapter{webhookSecret: "whsec_test"}
	event, err := adapter.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if event.Type != domain.EventTypeCheckoutCompleted {
		t.Fatalf("expected checkout completed, got %s", event.Type)
	}
	if event.PaymentID != "pi_1" {
		t.Fatalf("expected payment intent id, got %s", event.PaymentID)
	}
	if event.SessionID != "cs_test123" {
		t.Fatalf("expected session id, got %s", event.SessionID)
	}
	if event.Amount != 49700 {
		t.Fatalf("expected amount 49700, got %d", event.Amount)
	}
	if event.Currency != "BRL" {
		t.Fatalf("expected BRL, got %s", event.Currency)
	}
	if event.PayerName != "Maria Silva" {
		t.Fatalf("expected payer name, got %q", event.PayerName)
	}
	if event.BatchID != "turma-1" {
		t.Fatalf("expected batch id, got %q", event.BatchID)
	}
}

func TestParsePaymentIntentEvents(t *testing.T) {
	created := time.Now().UTC().Unix()

	tests := []struct {
		name     string
		typ      string
		wantType string
	}{
		{name: "succeeded", typ: "payment_intent.succeeded", wantType: domain.EventTypePaymentSucceeded},
		{name: "failed", typ: "payment_intent.payment_failed", wantType: domain.EventTypePaymentFailed},
	}

	adapter := &Adapter{webhookSecret: "whsec_test"}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := []byte(fmt.Sprintf(`{
				"id":"evt_pi",
				"type":"%s",
				"created":%d,
				"data":{"object":{
					"id":"pi_9",
					"amount":2500,
					"amount_received":2500,
					"currency":"brl",
					"created":%d
				}}
			}`, tc.typ, created, created))

			event, err := adapter.Parse(context.Background(), payload)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if event.Type != tc.wantType {
				t.Fatalf("expected %s, got %s", tc.wantType, event.Type)
			}
			if event.PaymentID != "pi_9" {
				t.Fatalf("expected pi_9, got %s", event.PaymentID)
			}
		})
	}
}

func TestParseIgnoresUnknownEventTypes(t *testing.T) {
	adapter := &Adapter{webhookSecret: "whsec_test"}
	payload := []byte(`{"id":"evt_x","type":"customer.created","data":{"object":{}}}`)

	_, err := adapter.Parse(context.Background(), payload)
	if err != domain.ErrEventIgnored {
		t.Fatalf("expected event ignored, got %v", err)
	}
}

func TestParseRejectsMalformedPayload(t *testing.T) {
	adapter := &Adapter{webhookSecret: "whsec_test"}

	if _, err := adapter.Parse(context.Background(), []byte(`not json`)); err != domain.ErrInvalidPayload {
		t.Fatalf("expected invalid payload, got %v", err)
	}
	if _, err := adapter.Parse(context.Background(), []byte(`{"type":"checkout.session.completed"}`)); err != domain.ErrInvalidEvent {
		t.Fatalf("expected invalid event, got %v", err)
	}
}

func TestFactoryRequiresSecret(t *testing.T) {
	factory := NewFactory()
	if _, err := factory.NewAdapter(domain.AdapterConfig{Config: map[string]any{}}); err != domain.ErrInvalidConfig {
		t.Fatalf("expected invalid config, got %v", err)
	}
	if _, err := factory.NewAdapter(domain.AdapterConfig{Config: map[string]any{"webhook_secret": "  "}}); err != domain.ErrInvalidConfig {
		t.Fatalf("expected invalid config for blank secret, got %v", err)
	}
}

func buildSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signed := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signed))
	signature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, signature)
}
