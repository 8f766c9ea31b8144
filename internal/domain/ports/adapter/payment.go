package adapter

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain/model"
)

// CreatePaymentRequest is the provider-agnostic payment intent.
type CreatePaymentRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	ReturnURL   string
	Metadata    map[string]string
	// SourceToken is a client-side card token, required by providers that
	// charge synchronously instead of redirecting.
	SourceToken string
	// Reference names one payment attempt of an order. Retries of the same
	// attempt share it; a new attempt after a cancellation gets a new one.
	Reference string
}

// RefundRequest is one refund against a captured payment.
type RefundRequest struct {
	ProviderPaymentID string
	Amount            decimal.Decimal
	// Reference tells refunds of equal amounts apart, e.g. the amount
	// already refunded before this one.
	Reference string
}

// ProviderPayment is the provider's view of a payment.
type ProviderPayment struct {
	ID              string
	Status          model.PaymentStatus
	PaymentMethod   string
	ConfirmationURL string
	Amount          decimal.Decimal
}

// PaymentGateway is the hex port for payment providers. Implementations fail
// with *domain.GatewayError on non-2xx answers and never retry.
type PaymentGateway interface {
	Name() string

	CreatePayment(ctx context.Context, req CreatePaymentRequest) (ProviderPayment, error)
	GetPayment(ctx context.Context, providerPaymentID string) (ProviderPayment, error)
	// CapturePayment captures an authorized payment; a nil amount captures in full.
	CapturePayment(ctx context.Context, providerPaymentID string, amount *decimal.Decimal) (ProviderPayment, error)
	CancelPayment(ctx context.Context, providerPaymentID string) (ProviderPayment, error)
	CreateRefund(ctx context.Context, req RefundRequest) (model.Refund, error)

	// VerifyWebhookSignature checks the raw body against the signature header.
	// It returns false on any failure and never panics.
	VerifyWebhookSignature(body []byte, headers http.Header) bool
}
