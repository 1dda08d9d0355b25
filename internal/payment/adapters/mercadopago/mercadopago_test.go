package mercadopago

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	"github.com/lumeven/funnel/internal/payment/domain"
)

func TestVerifySignature(t *testing.T) {
	secret := "mp_secret"
	payload := []byte(`{"id":101,"action":"payment.updated","type":"payment","data":{"id":12345}}`)
	requestID := "req-abc"
	ts := "1700000000"

	headers := http.Header{}
	headers.Set("x-request-id", requestID)
	headers.Set("x-signature", buildSignatureHeader(secret, "12345", requestID, ts))

	adapter := &Adapter{webhookSecret: secret}
	if err := adapter.Verify(context.Background(), payload, headers); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	headers.Set("x-signature", buildSignatureHeader("wrong", "12345", requestID, ts))
	if err := adapter.Verify(context.Background(), payload, headers); err == nil {
		t.Fatalf("expected invalid signature error")
	}

	headers.Del("x-signature")
	if err := adapter.Verify(context.Background(), payload, headers); err == nil {
		t.Fatalf("expected error for missing header")
	}
}

func TestParsePaymentNotification(t *testing.T) {
	payload := []byte(`{
		"id": 202,
		"action": "payment.updated",
		"type": "payment",
		"date_created": "2026-02-10T12:00:00Z",
		"data": {"id": 987654}
	}`)

	adapter := &Adapter{webhookSecret: "mp_secret"}
	event, err := adapter.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if event.Type != domain.EventTypePaymentUpdated {
		t.Fatalf("expected payment updated, got %s", event.Type)
	}
	if event.PaymentID != "987654" {
		t.Fatalf("expected payment id 987654, got %s", event.PaymentID)
	}
	if event.ProviderEventID != "202" {
		t.Fatalf("expected event id 202, got %s", event.ProviderEventID)
	}
	if event.OccurredAt.Year() != 2026 {
		t.Fatalf("expected date_created to be used, got %s", event.OccurredAt)
	}
}

func TestParseFallsBackToActionForEventID(t *testing.T) {
	payload := []byte(`{"action":"payment.created","type":"payment","data":{"id":42}}`)

	adapter := &Adapter{webhookSecret: "mp_secret"}
	event, err := adapter.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.ProviderEventID != "payment.created:42" {
		t.Fatalf("expected synthesized event id, got %s", event.ProviderEventID)
	}
}

func TestParseIgnoresNonPaymentTopics(t *testing.T) {
	payload := []byte(`{"id":7,"action":"subscription.updated","type":"subscription","data":{"id":555}}`)

	adapter := &Adapter{webhookSecret: "mp_secret"}
	if _, err := adapter.Parse(context.Background(), payload); err != domain.ErrEventIgnored {
		t.Fatalf("expected event ignored, got %v", err)
	}
}

func TestParseRejectsMissingDataID(t *testing.T) {
	adapter := &Adapter{webhookSecret: "mp_secret"}
	if _, err := adapter.Parse(context.Background(), []byte(`{"type":"payment","data":{}}`)); err != domain.ErrInvalidEvent {
		t.Fatalf("expected invalid event, got %v", err)
	}
	if _, err := adapter.Parse(context.Background(), []byte(`garbage`)); err != domain.ErrInvalidPayload {
		t.Fatalf("expected invalid payload, got %v", err)
	}
}

func buildSignatureHeader(secret, dataID, requestID, ts string) string {
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(manifest))
	return fmt.Sprintf("ts=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
