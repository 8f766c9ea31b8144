package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-digital-store/internal/domain/ports/adapter"
)

var _ adapter.AdminNotifier = (*NoopNotifier)(nil)

// NoopNotifier logs alerts instead of sending them. Used when no bot token is
// configured (local development).
type NoopNotifier struct {
	log zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{log: logger.With().Str("component", "noop_notifier").Logger()}
}

func (n *NoopNotifier) SendAdminAlert(ctx context.Context, text string) bool {
	n.log.Info().Str("text", text).Msg("admin alert")
	return true
}
