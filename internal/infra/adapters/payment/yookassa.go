package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/config"
	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*YooKassaGateway)(nil)

const (
	yooKassaDefaultBaseURL  = "https://api.yookassa.ru/v3"
	yooKassaSignatureHeader = "X-YooKassa-Signature"
)

// YooKassaGateway talks to the YooKassa v3 REST API: Basic auth with
// shop_id:secret_key, redirect confirmation and one-step capture.
type YooKassaGateway struct {
	http          *httpClient
	currency      string
	webhookSecret []byte
}

func NewYooKassaGateway(cfg config.YooKassaConfig, currency string, hc *http.Client, logger *zerolog.Logger) (*YooKassaGateway, error) {
	if cfg.ShopID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: yookassa shop_id and secret_key are required", domain.ErrInvalidArgument)
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: yookassa webhook_secret is required", domain.ErrInvalidArgument)
	}
	base := cfg.BaseURL
	if base == "" {
		base = yooKassaDefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("%w: yookassa base_url: %v", domain.ErrInvalidArgument, err)
	}
	shopID, secret := cfg.ShopID, cfg.SecretKey
	return &YooKassaGateway{
		http: &httpClient{
			provider: ProviderYooKassa,
			baseURL:  base,
			client:   hc,
			log:      logger.With().Str("component", "yookassa").Logger(),
			decorate: func(req *http.Request) { req.SetBasicAuth(shopID, secret) },
		},
		currency:      strings.ToUpper(currency),
		webhookSecret: []byte(cfg.WebhookSecret),
	}, nil
}

func (g *YooKassaGateway) Name() string { return ProviderYooKassa }

type ykAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ykPayment struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"`
	Amount       ykAmount `json:"amount"`
	Confirmation *struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation,omitempty"`
	PaymentMethod *struct {
		Type string `json:"type"`
	} `json:"payment_method,omitempty"`
}

func (p ykPayment) toProvider() adapter.ProviderPayment {
	out := adapter.ProviderPayment{ID: p.ID, Status: mapYooKassaStatus(p.Status)}
	out.Amount, _ = decimal.NewFromString(p.Amount.Value)
	if p.Confirmation != nil {
		out.ConfirmationURL = p.Confirmation.ConfirmationURL
	}
	if p.PaymentMethod != nil {
		out.PaymentMethod = p.PaymentMethod.Type
	}
	return out
}

func mapYooKassaStatus(s string) model.PaymentStatus {
	switch s {
	case "succeeded":
		return model.PaymentStatusSucceeded
	case "waiting_for_capture":
		return model.PaymentStatusWaitingForCapture
	case "canceled", "cancelled":
		return model.PaymentStatusCancelled
	default:
		return model.PaymentStatusPending
	}
}

func (g *YooKassaGateway) amount(v decimal.Decimal, currency string) ykAmount {
	if currency == "" {
		currency = g.currency
	}
	return ykAmount{Value: v.StringFixed(2), Currency: strings.ToUpper(currency)}
}

func (g *YooKassaGateway) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (adapter.ProviderPayment, error) {
	if !req.Amount.IsPositive() {
		return adapter.ProviderPayment{}, domain.ErrInvalidArgument
	}
	amt := g.amount(req.Amount, req.Currency)
	body := map[string]any{
		"amount":       amt,
		"capture":      true,
		"description":  truncate(req.Description, 128),
		"confirmation": map[string]string{"type": "redirect", "return_url": req.ReturnURL},
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	key := createKey(req)

	var out ykPayment
	if err := g.http.do(ctx, "create_payment", http.MethodPost, "/payments", body, &out,
		map[string]string{"Idempotence-Key": key}); err != nil {
		return adapter.ProviderPayment{}, err
	}
	return out.toProvider(), nil
}

func (g *YooKassaGateway) GetPayment(ctx context.Context, providerPaymentID string) (adapter.ProviderPayment, error) {
	var out ykPayment
	if err := g.http.do(ctx, "get_payment", http.MethodGet, "/payments/"+url.PathEscape(providerPaymentID), nil, &out, nil); err != nil {
		return adapter.ProviderPayment{}, err
	}
	return out.toProvider(), nil
}

func (g *YooKassaGateway) CapturePayment(ctx context.Context, providerPaymentID string, amount *decimal.Decimal) (adapter.ProviderPayment, error) {
	body := map[string]any{}
	keyAmount := "full"
	if amount != nil {
		amt := g.amount(*amount, "")
		body["amount"] = amt
		keyAmount = amt.Value
	}
	var out ykPayment
	err := g.http.do(ctx, "capture_payment", http.MethodPost, "/payments/"+url.PathEscape(providerPaymentID)+"/capture", body, &out,
		map[string]string{"Idempotence-Key": IdempotencyKey("capture", providerPaymentID, keyAmount)})
	if err != nil {
		return adapter.ProviderPayment{}, err
	}
	return out.toProvider(), nil
}

func (g *YooKassaGateway) CancelPayment(ctx context.Context, providerPaymentID string) (adapter.ProviderPayment, error) {
	var out ykPayment
	err := g.http.do(ctx, "cancel_payment", http.MethodPost, "/payments/"+url.PathEscape(providerPaymentID)+"/cancel", map[string]any{}, &out,
		map[string]string{"Idempotence-Key": IdempotencyKey("cancel", providerPaymentID)})
	if err != nil {
		return adapter.ProviderPayment{}, err
	}
	return out.toProvider(), nil
}

func (g *YooKassaGateway) CreateRefund(ctx context.Context, req adapter.RefundRequest) (model.Refund, error) {
	if !req.Amount.IsPositive() {
		return model.Refund{}, domain.ErrInvalidArgument
	}
	amt := g.amount(req.Amount, "")
	body := map[string]any{"payment_id": req.ProviderPaymentID, "amount": amt}
	var out struct {
		ID        string   `json:"id"`
		PaymentID string   `json:"payment_id"`
		Status    string   `json:"status"`
		Amount    ykAmount `json:"amount"`
		CreatedAt string   `json:"created_at"`
	}
	err := g.http.do(ctx, "create_refund", http.MethodPost, "/refunds", body, &out,
		map[string]string{"Idempotence-Key": refundKey(req)})
	if err != nil {
		return model.Refund{}, err
	}
	r := model.Refund{ID: out.ID, ProviderPaymentID: out.PaymentID, Status: out.Status, CreatedAt: time.Now()}
	r.Amount, _ = decimal.NewFromString(out.Amount.Value)
	if t, err := time.Parse(time.RFC3339, out.CreatedAt); err == nil {
		r.CreatedAt = t
	}
	return r, nil
}

// VerifyWebhookSignature expects the hex HMAC-SHA256 of the raw body.
func (g *YooKassaGateway) VerifyWebhookSignature(body []byte, headers http.Header) bool {
	got, err := hex.DecodeString(strings.TrimSpace(headers.Get(yooKassaSignatureHeader)))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, g.webhookSecret)
	mac.Write(body)
	return equalSignature(mac.Sum(nil), got)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
