package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-digital-store/internal/usecase"
)

// PaymentReconciler periodically polls payments that stayed pending longer
// than staleAfter. This covers lost webhooks and customers who never came
// back through the return URL.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old an open payment must be to poll it
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	compLog := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, interval: interval, staleAfter: staleAfter, batch: 200, log: &compLog}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	err := runEvery(ctx, w.interval, w.tick)
	w.log.Info().Msg("Stopping payment reconciler")
	return err
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	n, err := w.uc.ReconcileStale(ctx, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("stale payment scan failed")
		return
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("stale payments reconciled")
	}
}
