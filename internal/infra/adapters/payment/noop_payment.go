package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

const noopSignatureHeader = "X-Noop-Signature"

// NoopPaymentGateway is a simple in-memory gateway for development and tests.
// Payments stay pending until SetStatus moves them.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	secret   []byte
	payments map[string]*adapter.ProviderPayment
	byKey    map[string]string // idempotency key -> payment id
}

func NewNoopPaymentGateway(webhookSecret string) *NoopPaymentGateway {
	return &NoopPaymentGateway{
		secret:   []byte(webhookSecret),
		payments: make(map[string]*adapter.ProviderPayment),
		byKey:    make(map[string]string),
	}
}

func (g *NoopPaymentGateway) Name() string { return ProviderNoop }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopPaymentGateway) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (adapter.ProviderPayment, error) {
	if !req.Amount.IsPositive() {
		return adapter.ProviderPayment{}, domain.ErrInvalidArgument
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	key := createKey(req)
	if id, ok := g.byKey[key]; ok {
		return *g.payments[id], nil
	}
	id := g.next()
	p := &adapter.ProviderPayment{
		ID:              id,
		Status:          model.PaymentStatusPending,
		ConfirmationURL: "https://example.test/pay/" + id,
		Amount:          req.Amount,
	}
	g.payments[id] = p
	g.byKey[key] = id
	return *p, nil
}

func (g *NoopPaymentGateway) GetPayment(ctx context.Context, providerPaymentID string) (adapter.ProviderPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[providerPaymentID]
	if !ok {
		return adapter.ProviderPayment{}, &domain.GatewayError{Provider: ProviderNoop, Op: "get_payment", StatusCode: http.StatusNotFound, Body: `{"error":"not found"}`}
	}
	return *p, nil
}

func (g *NoopPaymentGateway) CapturePayment(ctx context.Context, providerPaymentID string, amount *decimal.Decimal) (adapter.ProviderPayment, error) {
	return g.move(providerPaymentID, "capture_payment", model.PaymentStatusSucceeded)
}

func (g *NoopPaymentGateway) CancelPayment(ctx context.Context, providerPaymentID string) (adapter.ProviderPayment, error) {
	return g.move(providerPaymentID, "cancel_payment", model.PaymentStatusCancelled)
}

func (g *NoopPaymentGateway) move(id, op string, to model.PaymentStatus) (adapter.ProviderPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[id]
	if !ok {
		return adapter.ProviderPayment{}, &domain.GatewayError{Provider: ProviderNoop, Op: op, StatusCode: http.StatusNotFound, Body: `{"error":"not found"}`}
	}
	if p.Status.Terminal() && p.Status != to {
		return adapter.ProviderPayment{}, &domain.GatewayError{Provider: ProviderNoop, Op: op, StatusCode: http.StatusConflict, Body: `{"error":"payment is final"}`}
	}
	p.Status = to
	return *p, nil
}

func (g *NoopPaymentGateway) CreateRefund(ctx context.Context, req adapter.RefundRequest) (model.Refund, error) {
	if !req.Amount.IsPositive() {
		return model.Refund{}, domain.ErrInvalidArgument
	}
	return model.Refund{
		ID:                "refund-" + refundKey(req)[:8],
		ProviderPaymentID: req.ProviderPaymentID,
		Status:            "succeeded",
		Amount:            req.Amount,
		CreatedAt:         time.Now(),
	}, nil
}

// SetStatus simulates a provider-side status change, e.g. the customer paying.
func (g *NoopPaymentGateway) SetStatus(providerPaymentID string, status model.PaymentStatus, method string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[providerPaymentID]
	if !ok {
		return false
	}
	p.Status = status
	p.PaymentMethod = method
	return true
}

// Sign returns the signature header value the gateway accepts for body.
func (g *NoopPaymentGateway) Sign(body []byte) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *NoopPaymentGateway) VerifyWebhookSignature(body []byte, headers http.Header) bool {
	if len(g.secret) == 0 {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(headers.Get(noopSignatureHeader)))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(body)
	return equalSignature(mac.Sum(nil), got)
}
