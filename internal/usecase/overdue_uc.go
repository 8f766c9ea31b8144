// File: internal/usecase/overdue_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/adapter"
	"telegram-digital-store/internal/domain/ports/repository"
	"telegram-digital-store/internal/infra/metrics"
)

// Compile-time check
var _ OverdueUseCase = (*overdueUC)(nil)

// SweepReport summarises one overdue sweep.
type SweepReport struct {
	Found     int
	Recorded  int
	Delivered int
	Failed    int
}

type OverdueUseCase interface {
	// Sweep reminds the admins about every overdue installment order. A
	// failure on one order never stops the others; only a failed listing is
	// returned as an error.
	Sweep(ctx context.Context, now time.Time) (SweepReport, error)
}

type OverdueConfig struct {
	Currency        string
	PerOrderTimeout time.Duration
}

type overdueUC struct {
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	products repository.ProductRepository
	users    repository.UserRepository
	alerts   *alerter
	cfg      OverdueConfig
	log      *zerolog.Logger
}

func NewOverdueUseCase(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	notes repository.AdminNotificationRepository,
	notifier adapter.AdminNotifier,
	cfg OverdueConfig,
	logger *zerolog.Logger,
) *overdueUC {
	if cfg.PerOrderTimeout <= 0 {
		cfg.PerOrderTimeout = 30 * time.Second
	}
	l := logger.With().Str("component", "overdue_uc").Logger()
	return &overdueUC{
		orders:   orders,
		payments: payments,
		products: products,
		users:    users,
		alerts:   &alerter{notes: notes, notifier: notifier, log: &l},
		cfg:      cfg,
		log:      &l,
	}
}

func (u *overdueUC) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	var rep SweepReport
	overdue, err := u.orders.ListOverdue(ctx, repository.NoTX, now)
	if err != nil {
		u.log.Error().Err(err).Msg("list overdue orders")
		return rep, err
	}
	rep.Found = len(overdue)
	metrics.SetOverdueOrders(len(overdue))

	for _, o := range overdue {
		if ctx.Err() != nil {
			break
		}
		res, err := u.remind(ctx, o, now)
		if res.Recorded {
			rep.Recorded++
		}
		if res.Delivered {
			rep.Delivered++
			metrics.IncOverdueNotification("delivered")
		} else {
			metrics.IncOverdueNotification("undelivered")
		}
		if err != nil || !res.Recorded {
			rep.Failed++
			u.log.Error().Err(err).Str("order_id", o.ID).Msg("overdue reminder failed")
		}
	}

	u.log.Info().
		Int("found", rep.Found).
		Int("recorded", rep.Recorded).
		Int("delivered", rep.Delivered).
		Int("failed", rep.Failed).
		Msg("overdue sweep finished")
	return rep, nil
}

func (u *overdueUC) remind(ctx context.Context, o *model.Order, now time.Time) (res alertResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while reminding order %s: %v", o.ID, r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, u.cfg.PerOrderTimeout)
	defer cancel()

	succeeded, err := u.payments.CountByOrder(ctx, repository.NoTX, o.ID, model.PaymentStatusSucceeded)
	if err != nil {
		return res, err
	}
	due := o.OutstandingSliceAmount(succeeded)
	days := o.DaysOverdue(now)

	product, err := u.products.FindByID(ctx, repository.NoTX, o.ProductID)
	if err != nil {
		u.log.Warn().Err(err).Str("order_id", o.ID).Msg("load product for reminder")
	}
	customer, err := u.users.FindByID(ctx, repository.NoTX, o.UserID)
	if err != nil {
		u.log.Warn().Err(err).Str("order_id", o.ID).Msg("load customer for reminder")
	}

	n := model.NewAdminNotification(model.NotificationOverduePayment,
		fmt.Sprintf("Overdue Payment - Order #%s", o.ID),
		fmt.Sprintf("Payment for %s is %d days overdue", productName(product), days),
		map[string]any{
			"order_id":     o.ID,
			"user_id":      o.UserID,
			"days_overdue": days,
			"amount":       due.StringFixed(2),
		})
	return u.alerts.emit(ctx, n, installmentReminderMessage(o, product, customer, due, u.cfg.Currency, days)), nil
}
