package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"             // created at provider, awaiting the customer
	PaymentStatusWaitingForCapture PaymentStatus = "waiting_for_capture" // authorized, not captured yet
	PaymentStatusSucceeded         PaymentStatus = "succeeded"           // captured; counted into the order
	PaymentStatusCancelled         PaymentStatus = "cancelled"           // declined, expired or cancelled
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusWaitingForCapture, PaymentStatusSucceeded, PaymentStatusCancelled:
		return true
	}
	return false
}

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusCancelled
}

// CanTransitionTo reports whether a provider-reported status may replace s.
// Terminal statuses never change.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if !next.Valid() || s == next || s.Terminal() {
		return false
	}
	if s == PaymentStatusWaitingForCapture && next == PaymentStatusPending {
		return false
	}
	return true
}

// Payment is one provider-side charge: a single full payment or one
// installment slice of an order.
type Payment struct {
	ID                string
	OrderID           string
	Provider          string
	ProviderPaymentID string
	Amount            decimal.Decimal
	Currency          string
	Status            PaymentStatus
	PaymentMethod     *string
	ConfirmationURL   *string
	IsInstallment     bool
	InstallmentNumber *int
	// RefundedAmount sums the refunds issued against the payment so far.
	RefundedAmount decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (p *Payment) IsZero() bool { return p == nil || p.ID == "" }

// Refundable is what is left to refund.
func (p *Payment) Refundable() decimal.Decimal {
	if p.Status != PaymentStatusSucceeded {
		return decimal.Zero
	}
	return p.Amount.Sub(p.RefundedAmount)
}

// Open reports whether the payment still awaits a final provider answer.
func (p *Payment) Open() bool { return !p.Status.Terminal() }

func NewPayment(orderID, provider, providerPaymentID string, amount decimal.Decimal, currency string, installmentNumber *int) (*Payment, error) {
	if orderID == "" || providerPaymentID == "" || !amount.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Payment{
		ID:                uuid.NewString(),
		OrderID:           orderID,
		Provider:          provider,
		ProviderPaymentID: providerPaymentID,
		Amount:            amount,
		Currency:          currency,
		Status:            PaymentStatusPending,
		IsInstallment:     installmentNumber != nil,
		InstallmentNumber: installmentNumber,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Refund is the provider's answer to a refund request.
type Refund struct {
	ID                string
	ProviderPaymentID string
	Status            string
	Amount            decimal.Decimal
	CreatedAt         time.Time
}
