package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lumeven/funnel/internal/ledger/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	// In-memory sqlite exists per connection.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&domain.Order{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Provide(db)
}

func newOrder(t *testing.T, paymentID string) *domain.Order {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	return &domain.Order{
		ID:         node.Generate(),
		Timestamp:  time.Now().UTC(),
		Name:       "Joana Lima",
		Email:      "joana@example.com",
		Phone:      "+5511988887777",
		Birthdate:  domain.BirthdatePlaceholder,
		TotalPrice: 49700,
		PaymentID:  paymentID,
		Batch:      "turma-1",
	}
}

func TestAddAndFindByColumn(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Add(ctx, newOrder(t, "pi_1")); err != nil {
		t.Fatalf("add: %v", err)
	}

	order, err := repo.FindByColumn(ctx, "payment_id", "pi_1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if order == nil {
		t.Fatalf("expected order")
	}
	if order.Name != "Joana Lima" {
		t.Fatalf("expected name, got %q", order.Name)
	}

	order, err = repo.FindByColumn(ctx, "email", "joana@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if order == nil || order.PaymentID != "pi_1" {
		t.Fatalf("expected lookup by email to hit the same row")
	}
}

func TestFindByColumnMiss(t *testing.T) {
	repo := newTestRepo(t)

	order, err := repo.FindByColumn(context.Background(), "payment_id", "pi_missing")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if order != nil {
		t.Fatalf("expected nil for a miss, got %+v", order)
	}
}

func TestFindByColumnRejectsUnknownColumn(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.FindByColumn(context.Background(), "password", "x")
	if !errors.Is(err, domain.ErrInvalidColumn) {
		t.Fatalf("expected invalid column, got %v", err)
	}
}

func TestAddDuplicatePaymentID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Add(ctx, newOrder(t, "pi_dup")); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := repo.Add(ctx, newOrder(t, "pi_dup")); err == nil {
		t.Fatalf("expected unique violation for duplicate payment id")
	}
}

func TestUpdateByColumn(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Add(ctx, newOrder(t, "pi_up")); err != nil {
		t.Fatalf("add: %v", err)
	}

	err := repo.UpdateByColumn(ctx, "payment_id", "pi_up", map[string]any{
		"birthdate": "1990-06-01",
		"phone":     "+5511999998888",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	order, err := repo.FindByColumn(ctx, "payment_id", "pi_up")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if order.Birthdate != "1990-06-01" {
		t.Fatalf("birthdate not updated, got %q", order.Birthdate)
	}
	if order.Phone != "+5511999998888" {
		t.Fatalf("phone not updated, got %q", order.Phone)
	}
}

func TestUpdateByColumnRejectsUnknownColumns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.UpdateByColumn(ctx, "password", "x", map[string]any{"birthdate": "1990-06-01"})
	if !errors.Is(err, domain.ErrInvalidColumn) {
		t.Fatalf("expected invalid lookup column, got %v", err)
	}

	err = repo.UpdateByColumn(ctx, "payment_id", "pi_x", map[string]any{"total_price": 1})
	if !errors.Is(err, domain.ErrInvalidColumn) {
		t.Fatalf("expected invalid update column, got %v", err)
	}
}
