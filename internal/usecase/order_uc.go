// File: internal/usecase/order_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/adapter"
	"telegram-digital-store/internal/domain/ports/repository"
	"telegram-digital-store/internal/infra/metrics"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

type CreateOrderInput struct {
	ProductID         string
	PaymentType       model.PaymentType
	InstallmentMonths *int
}

type OrderUseCase interface {
	// CreateOrder prices a new pending order from the product. No provider
	// call is made here; paying is a separate step.
	CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (*model.Order, error)
	// GetForUser hides orders of other customers behind ErrNotFound.
	GetForUser(ctx context.Context, userID, orderID string) (*model.Order, error)
	ListForUser(ctx context.Context, userID string, offset, limit int) ([]*model.Order, error)

	Get(ctx context.Context, id string) (*model.Order, error)
	List(ctx context.Context, f repository.OrderFilter) ([]*model.Order, error)
	// UpdateStatus is the admin override, validated by the order state machine.
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*model.Order, error)
}

type OrderConfig struct {
	Currency  string
	DueOffset time.Duration
}

type orderUC struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	users    repository.UserRepository
	tx       repository.TransactionManager
	alerts   *alerter
	cfg      OrderConfig
	log      *zerolog.Logger
}

func NewOrderUseCase(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	notes repository.AdminNotificationRepository,
	notifier adapter.AdminNotifier,
	tx repository.TransactionManager,
	cfg OrderConfig,
	logger *zerolog.Logger,
) *orderUC {
	if cfg.DueOffset <= 0 {
		cfg.DueOffset = model.DefaultInstallmentDueOffset
	}
	l := logger.With().Str("component", "order_uc").Logger()
	return &orderUC{
		orders:   orders,
		products: products,
		users:    users,
		tx:       tx,
		alerts:   &alerter{notes: notes, notifier: notifier, log: &l},
		cfg:      cfg,
		log:      &l,
	}
}

func (u *orderUC) CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (*model.Order, error) {
	product, err := u.products.FindByID(ctx, repository.NoTX, in.ProductID)
	if err != nil {
		return nil, err
	}
	o, err := model.NewOrder(userID, product, in.PaymentType, in.InstallmentMonths, time.Now(), u.cfg.DueOffset)
	if err != nil {
		return nil, err
	}
	if err := u.orders.Save(ctx, repository.NoTX, o); err != nil {
		return nil, err
	}
	metrics.IncOrderCreated(string(o.PaymentType))
	u.log.Info().
		Str("order_id", o.ID).
		Str("user_id", userID).
		Str("product_id", product.ID).
		Str("payment_type", string(o.PaymentType)).
		Str("total", o.TotalAmount.StringFixed(2)).
		Msg("order created")

	customer, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		u.log.Warn().Err(err).Str("user_id", userID).Msg("load customer for alert")
	}
	n := model.NewAdminNotification(model.NotificationNewOrder,
		fmt.Sprintf("New Order - %s", product.Name),
		fmt.Sprintf("%s ordered %s for %s", customer.DisplayName(), product.Name, money(o.TotalAmount, u.cfg.Currency)),
		map[string]any{
			"order_id":     o.ID,
			"user_id":      userID,
			"product_id":   product.ID,
			"payment_type": string(o.PaymentType),
			"amount":       o.TotalAmount.StringFixed(2),
		})
	u.alerts.emit(ctx, n, newOrderMessage(o, product, customer, u.cfg.Currency))
	return o, nil
}

func (u *orderUC) GetForUser(ctx context.Context, userID, orderID string) (*model.Order, error) {
	o, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (u *orderUC) ListForUser(ctx context.Context, userID string, offset, limit int) ([]*model.Order, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.orders.List(ctx, repository.NoTX, repository.OrderFilter{UserID: userID, Offset: offset, Limit: limit})
}

func (u *orderUC) Get(ctx context.Context, id string) (*model.Order, error) {
	return u.orders.FindByID(ctx, repository.NoTX, id)
}

func (u *orderUC) List(ctx context.Context, f repository.OrderFilter) ([]*model.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	return u.orders.List(ctx, repository.NoTX, f)
}

func (u *orderUC) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	var (
		out  *model.Order
		prev model.OrderStatus
	)
	err := u.tx.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		o, err := u.orders.Update(ctx, tx, id, func(o *model.Order) error {
			prev = o.Status
			return o.TransitionTo(status, time.Now())
		})
		out = o
		return err
	})
	if err != nil {
		return nil, err
	}
	if prev != out.Status {
		metrics.IncOrderTransition(string(out.Status), "admin")
		u.log.Info().Str("order_id", id).Str("from", string(prev)).Str("to", string(out.Status)).Msg("order status changed by admin")
	}
	return out, nil
}

func (u *orderUC) ListOverdue(ctx context.Context, now time.Time) ([]*model.Order, error) {
	return u.orders.ListOverdue(ctx, repository.NoTX, now)
}
