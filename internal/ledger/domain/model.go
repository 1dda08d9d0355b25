package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BirthdatePlaceholder marks an order whose registration is not completed yet.
const BirthdatePlaceholder = "-"

// Order is one confirmed sale, the durable record the funnel is built around.
// PaymentID is the unique business key and the only supported lookup key.
type Order struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey"`
	Timestamp  time.Time      `json:"timestamp" gorm:"not null"`
	Name       string         `json:"name" gorm:"type:text;not null"`
	Email      string         `json:"email" gorm:"type:text;not null"`
	Phone      string         `json:"phone" gorm:"type:text"`
	Birthdate  string         `json:"birthdate" gorm:"type:text;not null;default:'-'"`
	TotalPrice int64          `json:"total_price" gorm:"not null"`
	Splits     datatypes.JSON `json:"splits"`
	PaymentID  string         `json:"payment_id" gorm:"type:text;not null;uniqueIndex"`
	Batch      string         `json:"batch" gorm:"type:text"`
}

func (Order) TableName() string { return "orders" }

var (
	ErrNotFound         = errors.New("order_not_found")
	ErrAlreadyCompleted = errors.New("registration_already_completed")
	ErrInvalidColumn    = errors.New("invalid_column")
	ErrInvalidBirthdate = errors.New("invalid_birthdate")
	ErrAgeOutOfRange    = errors.New("age_out_of_range")
)

// Repository is a row-oriented adapter: find and update address rows by a
// whitelisted column value. Lookups are unindexed except for payment_id;
// acceptable at funnel volume (hundreds to low thousands of rows).
type Repository interface {
	FindByColumn(ctx context.Context, column string, value string) (*Order, error)
	UpdateByColumn(ctx context.Context, column string, value string, updates map[string]any) error
	Add(ctx context.Context, order *Order) error
}

// SessionResolver maps a provider checkout session id to its payment id.
type SessionResolver interface {
	ResolvePaymentIntent(ctx context.Context, sessionID string) (string, error)
}

// ThankYouData is the subset of an order exposed to the thank-you page.
type ThankYouData struct {
	Name         string `json:"nome"`
	Email        string `json:"email"`
	Phone        string `json:"telefone"`
	Price        int64  `json:"preco"`
	HasBirthdate bool   `json:"hasNascimento"`
}
