package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lumeven/funnel/internal/payment/domain"
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
	if err := db.AutoMigrate(&domain.EventRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Provide(db)
}

func newEventRecord(t *testing.T, providerEventID string) *domain.EventRecord {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	return &domain.EventRecord{
		ID:              node.Generate(),
		Provider:        "stripe",
		ProviderEventID: providerEventID,
		EventType:       domain.EventTypeCheckoutCompleted,
		PaymentID:       "pi_1",
		Payload:         datatypes.JSON([]byte(`{"id":"evt"}`)),
		ReceivedAt:      time.Now().UTC(),
	}
}

func TestInsertEvent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inserted, err := repo.InsertEvent(ctx, newEventRecord(t, "evt_1"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted {
		t.Fatalf("expected first insert to succeed")
	}

	event, err := repo.FindEvent(ctx, "stripe", "evt_1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if event == nil {
		t.Fatalf("expected stored event")
	}
	if event.EventType != domain.EventTypeCheckoutCompleted {
		t.Fatalf("expected event type, got %q", event.EventType)
	}
	if event.ProcessedAt != nil {
		t.Fatalf("new events must not be marked processed")
	}
}

func TestInsertEventDuplicateIsIgnored(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.InsertEvent(ctx, newEventRecord(t, "evt_dup")); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	inserted, err := repo.InsertEvent(ctx, newEventRecord(t, "evt_dup"))
	if err != nil {
		t.Fatalf("second insert must not error: %v", err)
	}
	if inserted {
		t.Fatalf("duplicate provider event id must not insert")
	}
}

func TestFindEventMiss(t *testing.T) {
	repo := newTestRepo(t)

	event, err := repo.FindEvent(context.Background(), "stripe", "evt_missing")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if event != nil {
		t.Fatalf("expected nil for a miss, got %+v", event)
	}
}

func TestMarkProcessed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	record := newEventRecord(t, "evt_done")
	if _, err := repo.InsertEvent(ctx, record); err != nil {
		t.Fatalf("insert: %v", err)
	}

	processedAt := time.Now().UTC()
	if err := repo.MarkProcessed(ctx, record.ID, processedAt); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	event, err := repo.FindEvent(ctx, "stripe", "evt_done")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if event.ProcessedAt == nil {
		t.Fatalf("expected processed_at set")
	}
}
