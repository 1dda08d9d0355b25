package service

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lumeven/funnel/internal/checkout/domain"
	"github.com/lumeven/funnel/internal/config"
)

// BatchSource exposes the active sales batch; satisfied by slots.Counter.
type BatchSource interface {
	Active(ctx context.Context) (config.BatchConfig, int64, error)
}

const defaultSessionProvider = "stripe"

type Params struct {
	fx.In

	Log       *zap.Logger
	Cfg       config.Config
	Slots     BatchSource
	Builders  map[string]domain.SessionBuilder
	Processor domain.PaymentProcessor
	Status    domain.StatusClient
}

// Service validates buyer input and drives the provider clients. All
// validation happens before any network call; provider failures surface
// synchronously with no retry.
type Service struct {
	log       *zap.Logger
	cfg       config.Config
	slots     BatchSource
	builders  map[string]domain.SessionBuilder
	processor domain.PaymentProcessor
	status    domain.StatusClient
}

func NewService(p Params) *Service {
	return &Service{
		log:       p.Log.Named("checkout"),
		cfg:       p.Cfg,
		slots:     p.Slots,
		builders:  p.Builders,
		processor: p.Processor,
		status:    p.Status,
	}
}

// CreateSession builds a hosted checkout session. A request without an
// amount takes the active batch's price.
func (s *Service) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = defaultSessionProvider
	}
	builder, ok := s.builders[provider]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}

	if req.Amount < 0 {
		return nil, domain.ErrInvalidAmount
	}

	if req.Amount == 0 {
		batch, _, err := s.slots.Active(ctx)
		if err != nil {
			return nil, domain.ErrNoActiveBatch
		}
		req.Amount = batch.Price
		req.Currency = batch.Currency
		req.BatchID = batch.ID
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if req.Currency == "" {
		req.Currency = "BRL"
	}

	session, err := builder.CreateSession(ctx, req)
	if err != nil {
		return nil, err
	}

	s.log.Info("checkout session created",
		zap.String("provider", provider),
		zap.String("session_id", session.ID),
		zap.Int64("amount", session.Amount),
		zap.String("batch_id", req.BatchID),
	)
	return session, nil
}

// ProcessPayment submits a direct payment after validating the request.
func (s *Service) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if req.Method != domain.MethodCard && req.Method != domain.MethodPix {
		return nil, domain.ErrInvalidMethod
	}

	if req.Amount < 0 {
		return nil, domain.ErrInvalidAmount
	}
	if req.Amount == 0 {
		batch, _, err := s.slots.Active(ctx)
		if err != nil {
			return nil, domain.ErrNoActiveBatch
		}
		req.Amount = batch.Price
		req.Currency = batch.Currency
		req.BatchID = batch.ID
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	if !strings.Contains(req.Payer.Email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	if strings.TrimSpace(req.Payer.Name) == "" {
		return nil, domain.ErrMissingPayer
	}
	if req.Method == domain.MethodCard && strings.TrimSpace(req.Token) == "" {
		return nil, domain.ErrMissingToken
	}

	result, err := s.processor.ProcessPayment(ctx, req)
	if err != nil {
		return nil, err
	}

	s.log.Info("payment processed",
		zap.String("payment_id", result.PaymentID),
		zap.String("method", req.Method),
		zap.String("status", result.Status),
	)
	return result, nil
}

// PaymentStatus proxies the provider status lookup.
func (s *Service) PaymentStatus(ctx context.Context, paymentID string) (*domain.StatusResult, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, domain.ErrPaymentNotFound
	}
	return s.status.PaymentStatus(ctx, paymentID)
}
