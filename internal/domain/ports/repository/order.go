package repository

import (
	"context"
	"time"

	"telegram-digital-store/internal/domain/model"
)

// OrderFilter narrows order listings; zero values mean "any".
type OrderFilter struct {
	UserID string
	Status model.OrderStatus
	Offset int
	Limit  int
}

type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	// Update reads the order (locked when tx is a transaction), applies fn and
	// persists the result. fn returning an error aborts the write.
	Update(ctx context.Context, tx Tx, id string, fn func(o *model.Order) error) (*model.Order, error)
	List(ctx context.Context, tx Tx, f OrderFilter) ([]*model.Order, error)
	// ListOverdue returns installment orders with status paid, a next payment
	// date before now and an outstanding amount.
	ListOverdue(ctx context.Context, tx Tx, now time.Time) ([]*model.Order, error)
}
