package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
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

var _ adapter.PaymentGateway = (*SquareGateway)(nil)

const (
	squareDefaultBaseURL  = "https://connect.squareup.com/v2"
	squareAPIVersion      = "2023-01-10"
	squareSignatureHeader = "X-Square-HmacSha256-Signature"
)

// SquareGateway charges a client-side card token synchronously through the
// Square Payments API using a Bearer access token.
type SquareGateway struct {
	http            *httpClient
	currency        string
	locationID      string
	signatureKey    []byte
	notificationURL string
}

func NewSquareGateway(cfg config.SquareConfig, currency string, hc *http.Client, logger *zerolog.Logger) (*SquareGateway, error) {
	if cfg.AccessToken == "" || cfg.LocationID == "" {
		return nil, fmt.Errorf("%w: square access_token and location_id are required", domain.ErrInvalidArgument)
	}
	if cfg.SignatureKey == "" || cfg.NotificationURL == "" {
		return nil, fmt.Errorf("%w: square signature_key and notification_url are required", domain.ErrInvalidArgument)
	}
	base := cfg.BaseURL
	if base == "" {
		base = squareDefaultBaseURL
	}
	token := cfg.AccessToken
	return &SquareGateway{
		http: &httpClient{
			provider: ProviderSquare,
			baseURL:  base,
			client:   hc,
			log:      logger.With().Str("component", "square").Logger(),
			decorate: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+token)
				req.Header.Set("Square-Version", squareAPIVersion)
			},
		},
		currency:        strings.ToUpper(currency),
		locationID:      cfg.LocationID,
		signatureKey:    []byte(cfg.SignatureKey),
		notificationURL: cfg.NotificationURL,
	}, nil
}

func (g *SquareGateway) Name() string { return ProviderSquare }

type sqMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type sqPayment struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	AmountMoney sqMoney `json:"amount_money"`
	SourceType  string  `json:"source_type"`
	ReceiptURL  string  `json:"receipt_url"`
}

type sqPaymentEnvelope struct {
	Payment sqPayment `json:"payment"`
}

func (p sqPayment) toProvider() adapter.ProviderPayment {
	return adapter.ProviderPayment{
		ID:              p.ID,
		Status:          mapSquareStatus(p.Status),
		PaymentMethod:   strings.ToLower(p.SourceType),
		ConfirmationURL: p.ReceiptURL,
		Amount:          fromMinor(p.AmountMoney.Amount),
	}
}

func mapSquareStatus(s string) model.PaymentStatus {
	switch strings.ToUpper(s) {
	case "COMPLETED":
		return model.PaymentStatusSucceeded
	case "APPROVED":
		return model.PaymentStatusWaitingForCapture
	case "CANCELED", "FAILED":
		return model.PaymentStatusCancelled
	default:
		return model.PaymentStatusPending
	}
}

func toMinor(v decimal.Decimal) int64 { return v.Shift(2).Round(0).IntPart() }

func fromMinor(v int64) decimal.Decimal { return decimal.New(v, -2) }

func (g *SquareGateway) money(v decimal.Decimal, currency string) sqMoney {
	if currency == "" {
		currency = g.currency
	}
	return sqMoney{Amount: toMinor(v), Currency: strings.ToUpper(currency)}
}

func (g *SquareGateway) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (adapter.ProviderPayment, error) {
	if !req.Amount.IsPositive() {
		return adapter.ProviderPayment{}, domain.ErrInvalidArgument
	}
	if req.SourceToken == "" {
		return adapter.ProviderPayment{}, fmt.Errorf("%w: square requires a card source token", domain.ErrInvalidArgument)
	}
	money := g.money(req.Amount, req.Currency)
	body := map[string]any{
		"source_id":       req.SourceToken,
		"idempotency_key": createKey(req),
		"amount_money":    money,
		"autocomplete":    true,
		"location_id":     g.locationID,
		"note":            truncate(req.Description, 500),
	}
	if id := req.Metadata["order_id"]; id != "" {
		body["reference_id"] = truncate(id, 40)
	}
	var out sqPaymentEnvelope
	if err := g.http.do(ctx, "create_payment", http.MethodPost, "/payments", body, &out, nil); err != nil {
		return adapter.ProviderPayment{}, err
	}
	return out.Payment.toProvider(), nil
}

func (g *SquareGateway) GetPayment(ctx context.Context, providerPaymentID string) (adapter.ProviderPayment, error) {
	var out sqPaymentEnvelope
	if err := g.http.do(ctx, "get_payment", http.MethodGet, "/payments/"+url.PathEscape(providerPaymentID), nil, &out, nil); err != nil {
		return adapter.ProviderPayment{}, err
	}
	return out.Payment.toProvider(), nil
}

// CapturePayment completes an approved payment. Square completes the
// authorized amount; a differing amount is rejected.
func (g *SquareGateway) CapturePayment(ctx context.Context, providerPaymentID string, amount *decimal.Decimal) (adapter.ProviderPayment, error) {
	if amount != nil {
		current, err := g.GetPayment(ctx, providerPaymentID)
		if err != nil {
			return adapter.ProviderPayment{}, err
		}
		if !current.Amount.Equal(*amount) {
			return adapter.ProviderPayment{}, fmt.Errorf("%w: square cannot capture a partial amount", domain.ErrInvalidArgument)
		}
	}
	var out sqPaymentEnvelope
	if err := g.http.do(ctx, "capture_payment", http.MethodPost, "/payments/"+url.PathEscape(providerPaymentID)+"/complete", map[string]any{}, &out, nil); err != nil {
		return adapter.ProviderPayment{}, err
	}
	return out.Payment.toProvider(), nil
}

func (g *SquareGateway) CancelPayment(ctx context.Context, providerPaymentID string) (adapter.ProviderPayment, error) {
	var out sqPaymentEnvelope
	if err := g.http.do(ctx, "cancel_payment", http.MethodPost, "/payments/"+url.PathEscape(providerPaymentID)+"/cancel", map[string]any{}, &out, nil); err != nil {
		return adapter.ProviderPayment{}, err
	}
	return out.Payment.toProvider(), nil
}

func (g *SquareGateway) CreateRefund(ctx context.Context, req adapter.RefundRequest) (model.Refund, error) {
	if !req.Amount.IsPositive() {
		return model.Refund{}, domain.ErrInvalidArgument
	}
	body := map[string]any{
		"idempotency_key": refundKey(req),
		"payment_id":      req.ProviderPaymentID,
		"amount_money":    g.money(req.Amount, ""),
	}
	var out struct {
		Refund struct {
			ID          string  `json:"id"`
			PaymentID   string  `json:"payment_id"`
			Status      string  `json:"status"`
			AmountMoney sqMoney `json:"amount_money"`
			CreatedAt   string  `json:"created_at"`
		} `json:"refund"`
	}
	if err := g.http.do(ctx, "create_refund", http.MethodPost, "/refunds", body, &out, nil); err != nil {
		return model.Refund{}, err
	}
	r := model.Refund{
		ID:                out.Refund.ID,
		ProviderPaymentID: out.Refund.PaymentID,
		Status:            strings.ToLower(out.Refund.Status),
		Amount:            fromMinor(out.Refund.AmountMoney.Amount),
		CreatedAt:         time.Now(),
	}
	if t, err := time.Parse(time.RFC3339, out.Refund.CreatedAt); err == nil {
		r.CreatedAt = t
	}
	return r, nil
}

// VerifyWebhookSignature checks base64(HMAC-SHA256(notification_url + body)).
func (g *SquareGateway) VerifyWebhookSignature(body []byte, headers http.Header) bool {
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(headers.Get(squareSignatureHeader)))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, g.signatureKey)
	mac.Write([]byte(g.notificationURL))
	mac.Write(body)
	return equalSignature(mac.Sum(nil), got)
}
