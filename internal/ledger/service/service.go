package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/lumeven/funnel/internal/clock"
	"github.com/lumeven/funnel/internal/config"
	"github.com/lumeven/funnel/internal/ledger/domain"
	"github.com/lumeven/funnel/pkg/db"
)

const (
	minAge = 18
	maxAge = 100
)

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Cfg      config.Config
	Resolver domain.SessionResolver `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	splits   []config.SplitConfig
	resolver domain.SessionResolver
}

func NewService(p Params) *Service {
	return &Service{
		log:      p.Log.Named("ledger"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		splits:   p.Cfg.Splits,
		resolver: p.Resolver,
	}
}

// NewOrder describes one confirmed sale to be recorded.
type NewOrder struct {
	Name       string
	Email      string
	Phone      string
	TotalPrice int64
	PaymentID  string
	Batch      string
}

// RecordOrder inserts the order row and reports whether a new row was
// written. Recording the same payment id twice is a no-op so redelivered
// webhooks stay harmless.
func (s *Service) RecordOrder(ctx context.Context, in NewOrder) (bool, error) {
	paymentID := strings.TrimSpace(in.PaymentID)
	if paymentID == "" {
		return false, domain.ErrNotFound
	}

	existing, err := s.repo.FindByColumn(ctx, "payment_id", paymentID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		s.log.Info("order already recorded", zap.String("payment_id", paymentID))
		return false, nil
	}

	splits, err := s.computeSplits(in.TotalPrice)
	if err != nil {
		return false, err
	}

	order := &domain.Order{
		ID:         s.genID.Generate(),
		Timestamp:  s.clock.Now(),
		Name:       strings.TrimSpace(in.Name),
		Email:      strings.TrimSpace(in.Email),
		Phone:      strings.TrimSpace(in.Phone),
		Birthdate:  domain.BirthdatePlaceholder,
		TotalPrice: in.TotalPrice,
		Splits:     splits,
		PaymentID:  paymentID,
		Batch:      strings.TrimSpace(in.Batch),
	}

	if err := s.repo.Add(ctx, order); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the check-before-write race to a concurrent delivery.
			s.log.Info("order already recorded", zap.String("payment_id", paymentID))
			return false, nil
		}
		return false, err
	}

	s.log.Info("order recorded",
		zap.String("payment_id", paymentID),
		zap.Int64("total_price", in.TotalPrice),
	)
	return true, nil
}

// OrderForThankYou resolves session-style ids to payment ids before lookup.
func (s *Service) OrderForThankYou(ctx context.Context, id string) (*domain.ThankYouData, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrNotFound
	}

	if strings.HasPrefix(id, "cs_") && s.resolver != nil {
		resolved, err := s.resolver.ResolvePaymentIntent(ctx, id)
		if err != nil {
			return nil, err
		}
		if resolved != "" {
			id = resolved
		}
	}

	order, err := s.repo.FindByColumn(ctx, "payment_id", id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}

	return &domain.ThankYouData{
		Name:         order.Name,
		Email:        order.Email,
		Phone:        order.Phone,
		Price:        order.TotalPrice,
		HasBirthdate: order.Birthdate != domain.BirthdatePlaceholder && order.Birthdate != "",
	}, nil
}

// CompleteRegistration sets the birthdate exactly once. A second attempt for
// a payment id that already carries a real birthdate is rejected.
func (s *Service) CompleteRegistration(ctx context.Context, paymentID string, birthdate string) error {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return domain.ErrNotFound
	}

	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(birthdate))
	if err != nil {
		return domain.ErrInvalidBirthdate
	}
	age := yearsBetween(parsed, s.clock.Now())
	if age < minAge || age > maxAge {
		return domain.ErrAgeOutOfRange
	}

	order, err := s.repo.FindByColumn(ctx, "payment_id", paymentID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrNotFound
	}
	if order.Birthdate != domain.BirthdatePlaceholder && order.Birthdate != "" {
		return domain.ErrAlreadyCompleted
	}

	return s.repo.UpdateByColumn(ctx, "payment_id", paymentID, map[string]any{
		"birthdate": parsed.Format("2006-01-02"),
	})
}

func (s *Service) computeSplits(total int64) (datatypes.JSON, error) {
	if len(s.splits) == 0 || total <= 0 {
		return datatypes.JSON([]byte("{}")), nil
	}

	amounts := make(map[string]int64, len(s.splits))
	var allocated int64
	for _, split := range s.splits {
		share := total * int64(split.Percent) / 100
		amounts[split.Party] = share
		allocated += share
	}
	// Rounding remainder goes to the first configured party.
	if remainder := total - allocated; remainder != 0 {
		amounts[s.splits[0].Party] += remainder
	}

	raw, err := json.Marshal(amounts)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func yearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	anniversary := from.AddDate(years, 0, 0)
	if anniversary.After(to) {
		years--
	}
	return years
}
