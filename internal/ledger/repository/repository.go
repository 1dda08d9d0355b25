package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/lumeven/funnel/internal/ledger/domain"
)

// lookupColumns are the columns FindByColumn and UpdateByColumn accept.
// Only payment_id is indexed; the rest scan.
var lookupColumns = map[string]bool{
	"payment_id": true,
	"email":      true,
	"batch":      true,
}

var updateColumns = map[string]bool{
	"birthdate": true,
	"name":      true,
	"phone":     true,
}

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) FindByColumn(ctx context.Context, column string, value string) (*domain.Order, error) {
	if !lookupColumns[column] {
		return nil, domain.ErrInvalidColumn
	}

	var item domain.Order
	err := r.db.WithContext(ctx).Raw(
		fmt.Sprintf(
			`SELECT id, timestamp, name, email, phone, birthdate,
				total_price, splits, payment_id, batch
			 FROM orders
			 WHERE %s = ?
			 LIMIT 1`,
			column,
		),
		value,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateByColumn(ctx context.Context, column string, value string, updates map[string]any) error {
	if !lookupColumns[column] {
		return domain.ErrInvalidColumn
	}
	if len(updates) == 0 {
		return nil
	}

	assignments := make([]string, 0, len(updates))
	args := make([]any, 0, len(updates)+1)
	keys := make([]string, 0, len(updates))
	for key := range updates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !updateColumns[key] {
			return domain.ErrInvalidColumn
		}
		assignments = append(assignments, key+" = ?")
		args = append(args, updates[key])
	}
	args = append(args, value)

	return r.db.WithContext(ctx).Exec(
		fmt.Sprintf(
			`UPDATE orders SET %s WHERE %s = ?`,
			strings.Join(assignments, ", "),
			column,
		),
		args...,
	).Error
}

func (r *repo) Add(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, timestamp, name, email, phone, birthdate,
			total_price, splits, payment_id, batch
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.Timestamp,
		order.Name,
		order.Email,
		order.Phone,
		order.Birthdate,
		order.TotalPrice,
		order.Splits,
		order.PaymentID,
		order.Batch,
	).Error
}
