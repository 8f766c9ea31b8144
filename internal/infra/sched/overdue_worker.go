package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-digital-store/internal/infra/metrics"
	red "telegram-digital-store/internal/infra/redis"
	"telegram-digital-store/internal/usecase"
)

const overdueLockPrefix = "lock:sched:overdue"

// OverdueSweepWorker runs the overdue sweep once at start and then on every
// tick. Each interval-aligned window has its own Redis lock, held until it
// expires, so one replica sweeps per window whatever the tickers' phase.
type OverdueSweepWorker struct {
	interval time.Duration
	lockTTL  time.Duration
	uc       usecase.OverdueUseCase
	locker   red.Locker
	now      func() time.Time
	log      *zerolog.Logger
}

func NewOverdueSweepWorker(interval, lockTTL time.Duration, uc usecase.OverdueUseCase, locker red.Locker, logger *zerolog.Logger) *OverdueSweepWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if lockTTL < interval {
		lockTTL = interval
	}
	if locker == nil {
		locker = red.NoopLocker{}
	}
	compLog := logger.With().Str("component", "OverdueSweepWorker").Logger()
	return &OverdueSweepWorker{
		interval: interval,
		lockTTL:  lockTTL,
		uc:       uc,
		locker:   locker,
		now:      time.Now,
		log:      &compLog,
	}
}

func (w *OverdueSweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting overdue sweep worker")
	err := runEvery(ctx, w.interval, w.tick)
	w.log.Info().Msg("Stopping overdue sweep worker")
	return err
}

// windowKey names the lock of the sweep window that contains now.
func (w *OverdueSweepWorker) windowKey(now time.Time) string {
	return fmt.Sprintf("%s:%d", overdueLockPrefix, now.Truncate(w.interval).Unix())
}

func (w *OverdueSweepWorker) tick(ctx context.Context) {
	now := w.now()
	key := w.windowKey(now)
	token, err := w.locker.TryLock(ctx, key, w.lockTTL)
	switch {
	case errors.Is(err, red.ErrLockHeld):
		metrics.IncSweepRun("skipped")
		w.log.Debug().Str("window", key).Msg("overdue window already swept")
		return
	case err != nil:
		// Sweep unlocked; replicas may each remind in this window.
		metrics.IncSweepRun("lock_error")
		w.log.Warn().Err(err).Msg("overdue sweep lock unavailable, sweeping without it")
		token = ""
	}

	rep, err := w.sweep(ctx, now)
	if err != nil {
		// Free the window for the next tick of any replica.
		w.release(key, token)
		metrics.IncSweepRun("error")
		w.log.Error().Err(err).Msg("overdue sweep failed")
		return
	}
	metrics.IncSweepRun("ok")
	if rep.Found > 0 {
		w.log.Info().Int("found", rep.Found).Int("failed", rep.Failed).Msg("overdue orders reminded")
	}
}

func (w *OverdueSweepWorker) release(key, token string) {
	if token == "" {
		return
	}
	uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.locker.Unlock(uctx, key, token); err != nil {
		w.log.Warn().Err(err).Msg("release overdue sweep lock")
	}
}

func (w *OverdueSweepWorker) sweep(ctx context.Context, now time.Time) (rep usecase.SweepReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("overdue sweep panic: %v", r)
		}
	}()
	return w.uc.Sweep(ctx, now)
}

// runEvery calls fn immediately and then every interval until ctx ends.
func runEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}
