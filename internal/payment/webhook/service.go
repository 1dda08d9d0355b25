package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/lumeven/funnel/internal/clock"
	"github.com/lumeven/funnel/internal/payment/adapters"
	"github.com/lumeven/funnel/internal/payment/domain"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Adapters *adapters.Registry
	Repo     domain.Repository
}

// Service verifies inbound provider notifications and dispatches them to
// registered handlers. Events that verify but have no handler are a no-op.
type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	adapters *adapters.Registry
	repo     domain.Repository

	mu       sync.RWMutex
	handlers map[string]domain.Handler
}

func NewService(p Params) *Service {
	return &Service{
		log:      p.Log.Named("payment.webhook"),
		genID:    p.GenID,
		clock:    p.Clock,
		adapters: p.Adapters,
		repo:     p.Repo,
		handlers: map[string]domain.Handler{},
	}
}

func (s *Service) Register(eventType string, handler domain.Handler) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" || handler == nil {
		return
	}
	s.mu.Lock()
	s.handlers[eventType] = handler
	s.mu.Unlock()
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return domain.ErrInvalidProvider
	}
	if s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return domain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return domain.ErrInvalidPayload
	}

	adapter, err := s.adapters.NewAdapter(provider)
	if err != nil {
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("provider", provider))
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			return nil
		}
		return err
	}
	event.Provider = provider
	if event.RawPayload == nil {
		event.RawPayload = payload
	}

	record := &domain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		PaymentID:       event.PaymentID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      s.clock.Now(),
	}
	inserted, err := s.repo.InsertEvent(ctx, record)
	if err != nil {
		return err
	}
	if !inserted {
		// At-least-once delivery; a redelivery is idempotent only once the
		// first delivery's handler has actually finished.
		stored, err := s.repo.FindEvent(ctx, provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return domain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			s.log.Info("duplicate webhook delivery skipped",
				zap.String("provider", provider),
				zap.String("event_id", event.ProviderEventID),
			)
			return domain.ErrEventAlreadyProcessed
		}
		record = stored
	}

	handler := s.handler(event.Type)
	if handler == nil {
		s.log.Info("no handler registered for event type",
			zap.String("provider", provider),
			zap.String("event_type", event.Type),
		)
		return nil
	}

	if err := handler(ctx, event); err != nil {
		s.log.Error("webhook handler failed",
			zap.String("provider", provider),
			zap.String("event_type", event.Type),
			zap.String("payment_id", event.PaymentID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", domain.ErrHandlerFailed, err)
	}

	return s.repo.MarkProcessed(ctx, record.ID, s.clock.Now())
}

func (s *Service) handler(eventType string) domain.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers[eventType]
}
