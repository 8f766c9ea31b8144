package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"telegram-digital-store/internal/domain/ports/adapter"
	"telegram-digital-store/internal/infra/worker"
)

var _ adapter.AdminNotifier = (*AsyncNotifier)(nil)

const asyncSendTimeout = 10 * time.Second

// AsyncNotifier hands alerts to a worker pool so callers (webhook handlers in
// particular) never wait on Telegram. It reports whether the alert was queued.
type AsyncNotifier struct {
	inner adapter.AdminNotifier
	pool  *worker.Pool
	log   zerolog.Logger
}

func NewAsyncNotifier(inner adapter.AdminNotifier, pool *worker.Pool, logger *zerolog.Logger) *AsyncNotifier {
	return &AsyncNotifier{
		inner: inner,
		pool:  pool,
		log:   logger.With().Str("component", "async_notifier").Logger(),
	}
}

func (n *AsyncNotifier) SendAdminAlert(_ context.Context, text string) bool {
	err := n.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, asyncSendTimeout)
		defer cancel()
		if !n.inner.SendAdminAlert(ctx, text) {
			return errors.New("admin alert not delivered")
		}
		return nil
	})
	if err != nil {
		n.log.Warn().Err(err).Msg("admin alert dropped")
		return false
	}
	return true
}
