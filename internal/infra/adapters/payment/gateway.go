package payment

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-digital-store/internal/config"
	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/ports/adapter"
)

const (
	ProviderYooKassa = "yookassa"
	ProviderSquare   = "square"
	ProviderNoop     = "noop"
)

// NewGateway selects the provider implementation once at startup. An unknown
// provider or missing credentials fail here, not on first use.
func NewGateway(cfg config.PaymentConfig, logger *zerolog.Logger) (adapter.PaymentGateway, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := &http.Client{Timeout: timeout}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderYooKassa:
		return NewYooKassaGateway(cfg.YooKassa, cfg.Currency, hc, logger)
	case ProviderSquare:
		return NewSquareGateway(cfg.Square, cfg.Currency, hc, logger)
	case ProviderNoop:
		return NewNoopPaymentGateway(cfg.Noop.WebhookSecret), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, cfg.Provider)
	}
}
