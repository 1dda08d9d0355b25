package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/lumeven/funnel/internal/clock"
	"github.com/lumeven/funnel/internal/config"
	"github.com/lumeven/funnel/internal/payment/adapters"
	"github.com/lumeven/funnel/internal/payment/adapters/stripe"
	"github.com/lumeven/funnel/internal/payment/domain"
)

const testWebhookSecret = "whsec_test"

type fakeRepo struct {
	events    map[string]*domain.EventRecord
	processed map[snowflake.ID]time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		events:    map[string]*domain.EventRecord{},
		processed: map[snowflake.ID]time.Time{},
	}
}

func (r *fakeRepo) key(provider, providerEventID string) string {
	return provider + "/" + providerEventID
}

func (r *fakeRepo) FindEvent(ctx context.Context, provider string, providerEventID string) (*domain.EventRecord, error) {
	event, ok := r.events[r.key(provider, providerEventID)]
	if !ok {
		return nil, nil
	}
	return event, nil
}

func (r *fakeRepo) InsertEvent(ctx context.Context, event *domain.EventRecord) (bool, error) {
	key := r.key(event.Provider, event.ProviderEventID)
	if _, ok := r.events[key]; ok {
		return false, nil
	}
	r.events[key] = event
	return true, nil
}

func (r *fakeRepo) MarkProcessed(ctx context.Context, id snowflake.ID, processedAt time.Time) error {
	r.processed[id] = processedAt
	for _, event := range r.events {
		if event.ID == id {
			at := processedAt
			event.ProcessedAt = &at
		}
	}
	return nil
}

func newTestService(t *testing.T, repo domain.Repository) *Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	cfg := config.Config{}
	cfg.Stripe.WebhookSecret = testWebhookSecret
	registry := adapters.NewRegistry(cfg, stripe.NewFactory())

	return NewService(Params{
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Now().UTC()),
		Adapters: registry,
		Repo:     repo,
	})
}

func signedStripePayload(eventID, eventType string) ([]byte, http.Header) {
	payload := []byte(fmt.Sprintf(`{
		"id": "%s",
		"type": "%s",
		"created": 1700000000,
		"data": {"object": {
			"id": "cs_abc",
			"payment_intent": "pi_abc",
			"amount_total": 49700,
			"currency": "brl",
			"customer_email": "joana@example.com",
			"metadata": {"batch_id": "turma-1"}
		}}
	}`, eventID, eventType))

	timestamp := time.Now().Unix()
	signed := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	_, _ = mac.Write([]byte(signed))

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil))))
	return payload, headers
}

func TestIngestWebhookDispatchesHandler(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)

	var handled *domain.Event
	service.Register(domain.EventTypeCheckoutCompleted, func(ctx context.Context, event *domain.Event) error {
		handled = event
		return nil
	})

	payload, headers := signedStripePayload("evt_1", "checkout.session.completed")
	if err := service.IngestWebhook(context.Background(), "stripe", payload, headers); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if handled == nil {
		t.Fatalf("expected handler to run")
	}
	if handled.PaymentID != "pi_abc" {
		t.Fatalf("expected pi_abc, got %s", handled.PaymentID)
	}
	if len(repo.processed) != 1 {
		t.Fatalf("expected event marked processed, got %d", len(repo.processed))
	}
}

func TestIngestWebhookRejectsBadSignature(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)

	handled := false
	service.Register(domain.EventTypeCheckoutCompleted, func(ctx context.Context, event *domain.Event) error {
		handled = true
		return nil
	})

	payload, _ := signedStripePayload("evt_1", "checkout.session.completed")
	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=1700000000,v1=deadbeef")

	err := service.IngestWebhook(context.Background(), "stripe", payload, headers)
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
	if handled {
		t.Fatalf("handler must not run for unverified payloads")
	}
	if len(repo.events) != 0 {
		t.Fatalf("unverified events must not be stored")
	}
}

func TestIngestWebhookUnregisteredTypeIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)

	payload, headers := signedStripePayload("evt_2", "payment_intent.succeeded")
	if err := service.IngestWebhook(context.Background(), "stripe", payload, headers); err != nil {
		t.Fatalf("expected nil for unregistered event type, got %v", err)
	}

	// The event is still recorded for dedupe even without a handler.
	if len(repo.events) != 1 {
		t.Fatalf("expected event stored, got %d", len(repo.events))
	}
}

func TestIngestWebhookDuplicateDelivery(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)

	calls := 0
	service.Register(domain.EventTypeCheckoutCompleted, func(ctx context.Context, event *domain.Event) error {
		calls++
		return nil
	})

	payload, headers := signedStripePayload("evt_dup", "checkout.session.completed")
	if err := service.IngestWebhook(context.Background(), "stripe", payload, headers); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	err := service.IngestWebhook(context.Background(), "stripe", payload, headers)
	if !errors.Is(err, domain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler must run exactly once, ran %d times", calls)
	}
}

func TestIngestWebhookHandlerFailure(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)

	service.Register(domain.EventTypeCheckoutCompleted, func(ctx context.Context, event *domain.Event) error {
		return errors.New("ledger unavailable")
	})

	payload, headers := signedStripePayload("evt_fail", "checkout.session.completed")
	err := service.IngestWebhook(context.Background(), "stripe", payload, headers)
	if !errors.Is(err, domain.ErrHandlerFailed) {
		t.Fatalf("expected handler failed, got %v", err)
	}
	if len(repo.processed) != 0 {
		t.Fatalf("failed events must not be marked processed")
	}
}

func TestIngestWebhookRedeliveryRetriesFailedHandler(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)

	calls := 0
	service.Register(domain.EventTypeCheckoutCompleted, func(ctx context.Context, event *domain.Event) error {
		calls++
		if calls == 1 {
			return errors.New("ledger unavailable")
		}
		return nil
	})

	payload, headers := signedStripePayload("evt_retry", "checkout.session.completed")
	err := service.IngestWebhook(context.Background(), "stripe", payload, headers)
	if !errors.Is(err, domain.ErrHandlerFailed) {
		t.Fatalf("expected handler failed, got %v", err)
	}

	// The provider redelivers after the 5xx; the stored but unprocessed
	// event must dispatch again instead of short-circuiting on the dedupe.
	if err := service.IngestWebhook(context.Background(), "stripe", payload, headers); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if calls != 2 {
		t.Fatalf("handler must run again on redelivery, ran %d times", calls)
	}
	if len(repo.processed) != 1 {
		t.Fatalf("expected event marked processed after retry, got %d", len(repo.processed))
	}

	err = service.IngestWebhook(context.Background(), "stripe", payload, headers)
	if !errors.Is(err, domain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected already processed after success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("processed events must not dispatch again, ran %d times", calls)
	}
}

func TestIngestWebhookUnknownProvider(t *testing.T) {
	service := newTestService(t, newFakeRepo())

	err := service.IngestWebhook(context.Background(), "paypal", []byte(`{}`), http.Header{})
	if !errors.Is(err, domain.ErrProviderNotFound) {
		t.Fatalf("expected provider not found, got %v", err)
	}

	err = service.IngestWebhook(context.Background(), "", []byte(`{}`), http.Header{})
	if !errors.Is(err, domain.ErrInvalidProvider) {
		t.Fatalf("expected invalid provider, got %v", err)
	}
}

func TestIngestWebhookInvalidJSON(t *testing.T) {
	service := newTestService(t, newFakeRepo())

	err := service.IngestWebhook(context.Background(), "stripe", []byte(`{broken`), http.Header{})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
}
