package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the persisted trace of one delivered webhook event.
// Provider + provider event id is unique so redelivered events are detected.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:idx_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:idx_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	PaymentID       string         `json:"payment_id" gorm:"type:text"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypeCheckoutCompleted = "checkout_completed"
	EventTypePaymentSucceeded  = "payment_succeeded"
	EventTypePaymentFailed     = "payment_failed"
	EventTypePaymentUpdated    = "payment_updated"
)

// Event is the canonical payment event parsed by adapters.
type Event struct {
	Provider        string
	ProviderEventID string
	PaymentID       string
	SessionID       string
	Type            string
	Amount          int64
	Currency        string
	PayerName       string
	PayerEmail      string
	PayerPhone      string
	BatchID         string
	OccurredAt      time.Time
	RawPayload      []byte
}

var (
	ErrInvalidProvider       = errors.New("invalid_provider")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidConfig         = errors.New("invalid_config")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrHandlerFailed         = errors.New("handler_failed")
)

// AdapterConfig carries provider credentials into an adapter factory.
type AdapterConfig struct {
	Provider string
	Config   map[string]any
}

// PaymentAdapter verifies and normalizes provider webhook deliveries.
// Verify must run against the raw body before any business parsing.
type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*Event, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}

// Handler consumes one verified event. Handlers must tolerate duplicate
// delivery of the same provider event id.
type Handler func(ctx context.Context, event *Event) error

// Service ingests provider webhook deliveries.
type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
	Register(eventType string, handler Handler)
}

// Repository persists the event dedupe trail.
type Repository interface {
	FindEvent(ctx context.Context, provider string, providerEventID string) (*EventRecord, error)
	InsertEvent(ctx context.Context, event *EventRecord) (bool, error)
	MarkProcessed(ctx context.Context, id snowflake.ID, processedAt time.Time) error
}
