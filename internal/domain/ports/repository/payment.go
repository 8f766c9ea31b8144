package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain/model"
)

type PaymentFilter struct {
	OrderID string
	Offset  int
	Limit   int
}

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByProviderID(ctx context.Context, tx Tx, providerPaymentID string) (*model.Payment, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus, paymentMethod *string) error
	List(ctx context.Context, tx Tx, f PaymentFilter) ([]*model.Payment, error)
	// AddRefunded adds amount to the refunded total of a payment. It fails
	// with ErrInvalidArgument when the total would exceed the payment amount.
	AddRefunded(ctx context.Context, tx Tx, id string, amount decimal.Decimal) error
	// CountByOrder counts payments of an order whose status is one of statuses.
	CountByOrder(ctx context.Context, tx Tx, orderID string, statuses ...model.PaymentStatus) (int, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
