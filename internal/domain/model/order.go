package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain"
)

type PaymentType string

const (
	PaymentTypeFull        PaymentType = "full"
	PaymentTypeInstallment PaymentType = "installment"
)

func (t PaymentType) Valid() bool {
	return t == PaymentTypeFull || t == PaymentTypeInstallment
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// DefaultInstallmentDueOffset is the fixed (not calendar aware) offset of the
// first installment due date.
const DefaultInstallmentDueOffset = 30 * 24 * time.Hour

// Order snapshots the product amount at creation. PaidAmount only grows
// until a refund.
type Order struct {
	ID                string
	UserID            string
	ProductID         string
	PaymentType       PaymentType
	Status            OrderStatus
	TotalAmount       decimal.Decimal
	PaidAmount        decimal.Decimal
	InstallmentMonths *int
	NextPaymentDate   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (o *Order) IsZero() bool { return o == nil || o.ID == "" }

// NewOrder prices an order from product. For installments the month count is
// taken from the request, falling back to the product default.
func NewOrder(userID string, product *Product, paymentType PaymentType, installmentMonths *int, now time.Time, dueOffset time.Duration) (*Order, error) {
	if userID == "" || !paymentType.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if product.IsZero() || !product.Active {
		return nil, domain.ErrProductInactive
	}
	if dueOffset <= 0 {
		dueOffset = DefaultInstallmentDueOffset
	}

	o := &Order{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProductID:   product.ID,
		PaymentType: paymentType,
		Status:      OrderStatusPending,
		TotalAmount: product.Price,
		PaidAmount:  decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if paymentType == PaymentTypeInstallment {
		if !product.OffersInstallments() {
			return nil, domain.ErrInstallmentNotOffered
		}
		months := installmentMonths
		if months == nil {
			months = product.InstallmentMonths
		}
		if months == nil || *months < 1 {
			return nil, domain.ErrInvalidArgument
		}
		m := *months
		due := now.Add(dueOffset)
		o.TotalAmount = *product.InstallmentPrice
		o.InstallmentMonths = &m
		o.NextPaymentDate = &due
	}
	return o, nil
}

// Remaining is the amount still owed, never negative.
func (o *Order) Remaining() decimal.Decimal {
	r := o.TotalAmount.Sub(o.PaidAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func (o *Order) months() int64 {
	if o.InstallmentMonths == nil || *o.InstallmentMonths < 1 {
		return 1
	}
	return int64(*o.InstallmentMonths)
}

// NextSlice computes the amount and installment number of the next payment.
// priorSlices is the number of succeeded payments of the order.
// Regular slices are total/months truncated to cents; the last slice absorbs
// the rounding remainder. No slice ever exceeds what is still owed.
func (o *Order) NextSlice(priorSlices int) (decimal.Decimal, *int, error) {
	if o.Status != OrderStatusPending && o.Status != OrderStatusPaid {
		return decimal.Zero, nil, domain.ErrIllegalTransition
	}
	remaining := o.Remaining()
	if !remaining.IsPositive() {
		return decimal.Zero, nil, domain.ErrOrderSettled
	}
	if o.PaymentType == PaymentTypeFull {
		return remaining, nil, nil
	}

	months := o.months()
	number := priorSlices + 1
	base := o.TotalAmount.Div(decimal.NewFromInt(months)).Truncate(2)
	amount := base
	if int64(number) >= months {
		amount = o.TotalAmount.Sub(base.Mul(decimal.NewFromInt(months - 1)))
	}
	if int64(number) > months || amount.GreaterThan(remaining) {
		amount = remaining
	}
	return amount, &number, nil
}

// ApplySucceededPayment accumulates a captured slice. It reports whether the
// order became paid with this slice.
func (o *Order) ApplySucceededPayment(amount decimal.Decimal, now time.Time) bool {
	o.PaidAmount = o.PaidAmount.Add(amount)
	o.UpdatedAt = now
	if o.Status == OrderStatusPending && o.PaidAmount.GreaterThanOrEqual(o.TotalAmount) {
		o.Status = OrderStatusPaid
		return true
	}
	return false
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusRefunded, OrderStatusCancelled},
	OrderStatusCancelled: {OrderStatusPending},
	OrderStatusRefunded:  {},
}

// TransitionTo applies a manual (admin) status change.
func (o *Order) TransitionTo(next OrderStatus, now time.Time) error {
	if !next.Valid() {
		return domain.ErrInvalidArgument
	}
	if o.Status == next {
		return nil
	}
	for _, allowed := range orderTransitions[o.Status] {
		if allowed == next {
			o.Status = next
			o.UpdatedAt = now
			return nil
		}
	}
	return domain.ErrIllegalTransition
}

// IsOverdue is the sweep selection predicate. Only orders that already reached
// paid while still owing money are tracked; never-paid orders are not.
func (o *Order) IsOverdue(now time.Time) bool {
	return o.PaymentType == PaymentTypeInstallment &&
		o.Status == OrderStatusPaid &&
		o.NextPaymentDate != nil && o.NextPaymentDate.Before(now) &&
		o.PaidAmount.LessThan(o.TotalAmount)
}

// DaysOverdue is floor(now - next_payment_date) in whole days.
func (o *Order) DaysOverdue(now time.Time) int {
	if o.NextPaymentDate == nil || !o.NextPaymentDate.Before(now) {
		return 0
	}
	return int(now.Sub(*o.NextPaymentDate) / (24 * time.Hour))
}

// OutstandingSliceAmount spreads the remaining amount over the slices that
// have not succeeded yet.
func (o *Order) OutstandingSliceAmount(succeededSlices int) decimal.Decimal {
	left := o.months() - int64(succeededSlices)
	if left < 1 {
		left = 1
	}
	return o.Remaining().Div(decimal.NewFromInt(left)).Round(2)
}
