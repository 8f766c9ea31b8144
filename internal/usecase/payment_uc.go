// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/adapter"
	"telegram-digital-store/internal/domain/ports/repository"
	"telegram-digital-store/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// WebhookEvent is the provider notification after signature verification.
type WebhookEvent struct {
	Event             string
	ProviderPaymentID string
	Status            string
	PaymentMethod     string
}

type PaymentUseCase interface {
	// RequestPaymentSlice returns the amount and installment number of the
	// next payment of the order. Full orders have no installment number.
	RequestPaymentSlice(ctx context.Context, orderID string) (decimal.Decimal, *int, error)
	// CreatePayment opens the next slice at the provider. An order has at
	// most one open payment; asking again returns it.
	CreatePayment(ctx context.Context, userID, orderID, returnURL, sourceToken string) (*model.Payment, error)
	// PollPaymentStatus asks the provider for the live status and reconciles
	// through the same path as webhooks.
	PollPaymentStatus(ctx context.Context, paymentID string) (model.PaymentStatus, error)
	// HandleWebhook verifies the raw body before parsing it.
	HandleWebhook(ctx context.Context, body []byte, headers http.Header) error
	// ReconcileWebhookEvent applies a verified event. Unknown payments and
	// replays are no-ops.
	ReconcileWebhookEvent(ctx context.Context, ev WebhookEvent) error
	// ReconcileStale polls open payments created before olderThan and
	// returns how many changed.
	ReconcileStale(ctx context.Context, olderThan time.Time, limit int) (int, error)

	Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (model.Refund, error)
	Get(ctx context.Context, id string) (*model.Payment, error)
	GetForUser(ctx context.Context, userID, paymentID string) (*model.Payment, error)
	List(ctx context.Context, f repository.PaymentFilter) ([]*model.Payment, error)
}

type PaymentConfig struct {
	Currency         string
	DefaultReturnURL string
	// PollTimeout bounds every provider status query.
	PollTimeout time.Duration
}

type paymentUC struct {
	payments repository.PaymentRepository
	orders   repository.OrderRepository
	products repository.ProductRepository
	users    repository.UserRepository
	gateway  adapter.PaymentGateway
	tx       repository.TransactionManager
	alerts   *alerter
	cfg      PaymentConfig
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	orders repository.OrderRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	notes repository.AdminNotificationRepository,
	gateway adapter.PaymentGateway,
	notifier adapter.AdminNotifier,
	tx repository.TransactionManager,
	cfg PaymentConfig,
	logger *zerolog.Logger,
) *paymentUC {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 15 * time.Second
	}
	l := logger.With().Str("component", "payment_uc").Logger()
	return &paymentUC{
		payments: payments,
		orders:   orders,
		products: products,
		users:    users,
		gateway:  gateway,
		tx:       tx,
		alerts:   &alerter{notes: notes, notifier: notifier, log: &l},
		cfg:      cfg,
		log:      &l,
	}
}

// paymentTally is what the recorded payments of one order say about its
// next slice.
type paymentTally struct {
	succeeded int
	cancelled int
	open      *model.Payment
}

func tallyPayments(ps []*model.Payment) paymentTally {
	var t paymentTally
	for _, p := range ps {
		switch {
		case p.Status == model.PaymentStatusSucceeded:
			t.succeeded++
		case p.Status == model.PaymentStatusCancelled:
			t.cancelled++
		case t.open == nil:
			t.open = p
		}
	}
	return t
}

func (u *paymentUC) orderPayments(ctx context.Context, tx repository.Tx, orderID string) (paymentTally, error) {
	ps, err := u.payments.List(ctx, tx, repository.PaymentFilter{OrderID: orderID, Limit: 500})
	if err != nil {
		return paymentTally{}, err
	}
	return tallyPayments(ps), nil
}

// RequestPaymentSlice follows the same rule as CreatePayment: an open payment
// is the next slice, otherwise only succeeded payments count as prior.
func (u *paymentUC) RequestPaymentSlice(ctx context.Context, orderID string) (decimal.Decimal, *int, error) {
	o, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	tally, err := u.orderPayments(ctx, repository.NoTX, o.ID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if tally.open != nil {
		return tally.open.Amount, tally.open.InstallmentNumber, nil
	}
	return o.NextSlice(tally.succeeded)
}

// CreatePayment holds the order row for the whole check-create-save sequence,
// so concurrent calls for one order open a single payment.
func (u *paymentUC) CreatePayment(ctx context.Context, userID, orderID, returnURL, sourceToken string) (*model.Payment, error) {
	var (
		p       *model.Payment
		pp      adapter.ProviderPayment
		created bool
	)
	err := u.tx.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		p, created = nil, false

		o, err := u.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return domain.ErrNotFound
		}
		tally, err := u.orderPayments(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		if tally.open != nil {
			u.log.Debug().Str("payment_id", tally.open.ID).Str("order_id", o.ID).Msg("reusing open payment")
			p = tally.open
			return nil
		}

		amount, number, err := o.NextSlice(tally.succeeded)
		if err != nil {
			return err
		}
		product, err := u.products.FindByID(ctx, repository.NoTX, o.ProductID)
		if err != nil {
			return err
		}
		if returnURL == "" && u.cfg.DefaultReturnURL != "" {
			returnURL = u.cfg.DefaultReturnURL + "?order_id=" + url.QueryEscape(o.ID)
		}

		slice := 0
		meta := map[string]string{"order_id": o.ID, "user_id": userID, "attempt": strconv.Itoa(tally.cancelled)}
		desc := fmt.Sprintf("Order %s: %s", o.ID, product.Name)
		if number != nil {
			slice = *number
			meta["installment_number"] = strconv.Itoa(*number)
			desc = fmt.Sprintf("%s (installment %d of %d)", desc, *number, *o.InstallmentMonths)
		}

		pp, err = u.gateway.CreatePayment(ctx, adapter.CreatePaymentRequest{
			Amount:      amount,
			Currency:    u.cfg.Currency,
			Description: desc,
			ReturnURL:   returnURL,
			Metadata:    meta,
			SourceToken: sourceToken,
			Reference:   fmt.Sprintf("%s/%d/%d", o.ID, slice, tally.cancelled),
		})
		if err != nil {
			u.log.Error().Err(err).Str("order_id", o.ID).Msg("provider create payment failed")
			return err
		}

		p, err = model.NewPayment(o.ID, u.gateway.Name(), pp.ID, amount, u.cfg.Currency, number)
		if err != nil {
			return err
		}
		if pp.ConfirmationURL != "" {
			confirm := pp.ConfirmationURL
			p.ConfirmationURL = &confirm
		}
		if err := u.payments.Save(ctx, tx, p); err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return u.resolveDuplicatePayment(ctx, orderID, pp.ID)
	}
	if err != nil {
		return nil, err
	}
	if !created {
		return p, nil
	}

	metrics.IncPayment(string(model.PaymentStatusPending))
	u.log.Info().
		Str("payment_id", p.ID).
		Str("order_id", p.OrderID).
		Str("provider_payment_id", pp.ID).
		Str("amount", p.Amount.StringFixed(2)).
		Msg("payment created")

	// Providers that charge synchronously answer with a final status.
	if pp.Status != "" && pp.Status != model.PaymentStatusPending {
		if _, err := u.applyProviderStatus(ctx, pp.ID, pp.Status, pp.PaymentMethod, "create"); err != nil {
			return nil, err
		}
		return u.payments.FindByID(ctx, repository.NoTX, p.ID)
	}
	return p, nil
}

// resolveDuplicatePayment handles a save that lost to an existing row: either
// the provider handed back a payment that is already stored, or another
// payment of the order is open. Only a payment that can still be paid is
// returned.
func (u *paymentUC) resolveDuplicatePayment(ctx context.Context, orderID, providerPaymentID string) (*model.Payment, error) {
	if providerPaymentID != "" {
		p, err := u.payments.FindByProviderID(ctx, repository.NoTX, providerPaymentID)
		switch {
		case err == nil && p.Open():
			return p, nil
		case err == nil:
			u.log.Error().Str("payment_id", p.ID).Str("status", string(p.Status)).Msg("provider returned a finished payment for a new attempt")
			return nil, &domain.GatewayError{
				Provider: u.gateway.Name(),
				Op:       "create_payment",
				Err:      fmt.Errorf("provider returned %s payment %s", p.Status, p.ProviderPaymentID),
			}
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}
	tally, err := u.orderPayments(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if tally.open == nil {
		return nil, fmt.Errorf("%w: payment of order %s was saved concurrently", domain.ErrAlreadyExists, orderID)
	}
	return tally.open, nil
}

func (u *paymentUC) PollPaymentStatus(ctx context.Context, paymentID string) (model.PaymentStatus, error) {
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return "", err
	}
	if p.Status.Terminal() {
		return p.Status, nil
	}

	cctx, cancel := context.WithTimeout(ctx, u.cfg.PollTimeout)
	defer cancel()
	pp, err := u.gateway.GetPayment(cctx, p.ProviderPaymentID)
	if err != nil {
		return p.Status, err
	}
	if pp.Status == p.Status || !pp.Status.Valid() {
		return p.Status, nil
	}

	applied, err := u.applyProviderStatus(ctx, p.ProviderPaymentID, pp.Status, pp.PaymentMethod, "poll")
	if err != nil {
		return p.Status, err
	}
	if applied {
		return pp.Status, nil
	}
	cur, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return p.Status, err
	}
	return cur.Status, nil
}

type webhookPayload struct {
	Event  string `json:"event"`
	Object struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PaymentMethod *struct {
			Type string `json:"type"`
		} `json:"payment_method"`
	} `json:"object"`
}

func (u *paymentUC) HandleWebhook(ctx context.Context, body []byte, headers http.Header) error {
	if !u.gateway.VerifyWebhookSignature(body, headers) {
		metrics.IncWebhookEvent("unknown", "invalid_signature")
		u.log.Warn().Int("body_len", len(body)).Msg("webhook signature rejected")
		return domain.ErrInvalidSignature
	}
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.IncWebhookEvent("unknown", "malformed")
		return fmt.Errorf("%w: malformed webhook body", domain.ErrInvalidArgument)
	}
	ev := WebhookEvent{
		Event:             payload.Event,
		ProviderPaymentID: payload.Object.ID,
		Status:            payload.Object.Status,
	}
	if payload.Object.PaymentMethod != nil {
		ev.PaymentMethod = payload.Object.PaymentMethod.Type
	}
	return u.ReconcileWebhookEvent(ctx, ev)
}

func (u *paymentUC) ReconcileWebhookEvent(ctx context.Context, ev WebhookEvent) error {
	log := u.log.With().Str("event", ev.Event).Str("provider_payment_id", ev.ProviderPaymentID).Logger()
	if ev.ProviderPaymentID == "" {
		metrics.IncWebhookEvent(ev.Event, "malformed")
		return fmt.Errorf("%w: webhook object id is empty", domain.ErrInvalidArgument)
	}
	status := normalizeProviderStatus(ev.Event, ev.Status)
	if status == "" {
		metrics.IncWebhookEvent(ev.Event, "ignored")
		log.Debug().Str("status", ev.Status).Msg("webhook event ignored")
		return nil
	}

	applied, err := u.applyProviderStatus(ctx, ev.ProviderPaymentID, status, ev.PaymentMethod, "webhook")
	switch {
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncWebhookEvent(ev.Event, "unknown_payment")
		log.Warn().Msg("webhook for unknown payment")
		return nil
	case err != nil:
		metrics.IncWebhookEvent(ev.Event, "error")
		log.Error().Err(err).Msg("webhook reconciliation failed")
		return err
	case applied:
		metrics.IncWebhookEvent(ev.Event, "applied")
	default:
		metrics.IncWebhookEvent(ev.Event, "duplicate")
		log.Debug().Msg("webhook replay ignored")
	}
	return nil
}

// normalizeProviderStatus maps event names and provider status words of all
// supported providers onto local payment statuses. "" means not a payment
// state change.
func normalizeProviderStatus(event, status string) model.PaymentStatus {
	switch strings.ToLower(event) {
	case "payment.succeeded":
		return model.PaymentStatusSucceeded
	case "payment.canceled", "payment.cancelled":
		return model.PaymentStatusCancelled
	case "payment.waiting_for_capture":
		return model.PaymentStatusWaitingForCapture
	case "refund.succeeded":
		return ""
	}
	switch strings.ToLower(status) {
	case "succeeded", "completed":
		return model.PaymentStatusSucceeded
	case "canceled", "cancelled", "failed":
		return model.PaymentStatusCancelled
	case "waiting_for_capture", "approved":
		return model.PaymentStatusWaitingForCapture
	case "pending":
		return model.PaymentStatusPending
	}
	return ""
}

// applyProviderStatus is the single reconciliation routine behind webhooks,
// polling and synchronous captures. The payment row and, on success, the
// order row are locked for the whole read-modify-write, so concurrent slices
// of one order never lose a paid_amount update. It reports whether anything
// changed; replays and regressions are no-ops.
func (u *paymentUC) applyProviderStatus(ctx context.Context, providerPaymentID string, status model.PaymentStatus, method, source string) (bool, error) {
	var (
		applied    bool
		becamePaid bool
		pay        *model.Payment
		order      *model.Order
	)
	err := u.tx.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		applied, becamePaid, pay, order = false, false, nil, nil

		p, err := u.payments.FindByProviderID(ctx, tx, providerPaymentID)
		if err != nil {
			return err
		}
		if !p.Status.CanTransitionTo(status) {
			return nil
		}
		var pm *string
		if method != "" {
			pm = &method
		}
		if err := u.payments.UpdateStatus(ctx, tx, p.ID, status, pm); err != nil {
			return err
		}
		p.Status = status
		if pm != nil {
			p.PaymentMethod = pm
		}
		p.UpdatedAt = time.Now()
		applied, pay = true, p

		if status != model.PaymentStatusSucceeded {
			return nil
		}
		o, err := u.orders.Update(ctx, tx, p.OrderID, func(o *model.Order) error {
			if p.Amount.GreaterThan(o.Remaining()) {
				// The money is captured either way; record it and flag it.
				u.log.Error().
					Str("payment_id", p.ID).
					Str("order_id", o.ID).
					Str("amount", p.Amount.StringFixed(2)).
					Str("remaining", o.Remaining().StringFixed(2)).
					Msg("captured payment exceeds the outstanding amount")
			}
			becamePaid = o.ApplySucceededPayment(p.Amount, time.Now())
			return nil
		})
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil || !applied {
		return false, err
	}

	metrics.IncPayment(string(status))
	u.log.Info().
		Str("payment_id", pay.ID).
		Str("order_id", pay.OrderID).
		Str("status", string(status)).
		Str("source", source).
		Msg("payment status reconciled")

	if order != nil {
		metrics.AddPaymentRevenue(pay.Currency, pay.Amount)
		if becamePaid {
			metrics.IncOrderTransition(string(model.OrderStatusPaid), source)
		}
		u.notifyPaymentSuccess(ctx, pay, order, becamePaid)
	}
	return true, nil
}

func (u *paymentUC) notifyPaymentSuccess(ctx context.Context, pay *model.Payment, o *model.Order, becamePaid bool) {
	product, err := u.products.FindByID(ctx, repository.NoTX, o.ProductID)
	if err != nil {
		u.log.Warn().Err(err).Str("order_id", o.ID).Msg("load product for alert")
	}
	customer, err := u.users.FindByID(ctx, repository.NoTX, o.UserID)
	if err != nil {
		u.log.Warn().Err(err).Str("order_id", o.ID).Msg("load customer for alert")
	}
	meta := map[string]any{
		"order_id":   o.ID,
		"payment_id": pay.ID,
		"amount":     pay.Amount.StringFixed(2),
		"fully_paid": becamePaid,
	}
	if pay.InstallmentNumber != nil {
		meta["installment_number"] = *pay.InstallmentNumber
	}
	n := model.NewAdminNotification(model.NotificationPaymentSuccess,
		fmt.Sprintf("Payment Received - Order #%s", o.ID),
		fmt.Sprintf("%s paid %s for %s", customer.DisplayName(), money(pay.Amount, pay.Currency), productName(product)),
		meta)
	u.alerts.emit(ctx, n, paymentSuccessMessage(pay, o, product, customer, becamePaid))
}

func (u *paymentUC) ReconcileStale(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	stale, err := u.payments.ListPendingOlderThan(ctx, repository.NoTX, olderThan, limit)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, p := range stale {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		st, err := u.PollPaymentStatus(ctx, p.ID)
		switch {
		case err != nil:
			metrics.IncReconcileCheck("error")
			u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("stale payment poll failed")
		case st != p.Status:
			changed++
			metrics.IncReconcileCheck("updated")
		default:
			metrics.IncReconcileCheck("unchanged")
		}
	}
	return changed, nil
}

// Refund holds the payment row while the provider is asked, so the refunded
// total never exceeds what was captured. An omitted amount refunds the rest.
func (u *paymentUC) Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (model.Refund, error) {
	var (
		p        *model.Payment
		order    *model.Order
		refund   model.Refund
		refunded bool
		issued   bool
	)
	err := u.tx.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		refunded, issued = false, false

		var err error
		p, err = u.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != model.PaymentStatusSucceeded {
			return fmt.Errorf("%w: only succeeded payments can be refunded", domain.ErrInvalidArgument)
		}
		left := p.Refundable()
		amt := left
		if amount != nil {
			amt = *amount
		}
		if !amt.IsPositive() || amt.GreaterThan(left) {
			return fmt.Errorf("%w: refund amount must be within the %s not yet refunded", domain.ErrInvalidArgument, left.StringFixed(2))
		}

		refund, err = u.gateway.CreateRefund(ctx, adapter.RefundRequest{
			ProviderPaymentID: p.ProviderPaymentID,
			Amount:            amt,
			Reference:         p.RefundedAmount.StringFixed(2),
		})
		if err != nil {
			u.log.Error().Err(err).Str("payment_id", p.ID).Msg("provider refund failed")
			return err
		}
		issued = true
		if refund.Amount.IsZero() {
			refund.Amount = amt
		}
		if err := u.payments.AddRefunded(ctx, tx, p.ID, amt); err != nil {
			return err
		}
		p.RefundedAmount = p.RefundedAmount.Add(amt)

		total, err := u.orderRefunded(ctx, tx, p)
		if err != nil {
			return err
		}
		order, err = u.orders.Update(ctx, tx, p.OrderID, func(o *model.Order) error {
			if o.Status == model.OrderStatusPaid && total.GreaterThanOrEqual(o.PaidAmount) {
				refunded = true
				return o.TransitionTo(model.OrderStatusRefunded, time.Now())
			}
			return nil
		})
		return err
	})
	if err != nil {
		if issued {
			// The money already moved at the provider.
			u.log.Error().Err(err).Str("payment_id", paymentID).Str("refund_id", refund.ID).Msg("refund issued but bookkeeping failed")
			return refund, err
		}
		return model.Refund{}, err
	}
	if refunded {
		metrics.IncOrderTransition(string(model.OrderStatusRefunded), "refund")
	}
	u.log.Info().
		Str("payment_id", p.ID).
		Str("refund_id", refund.ID).
		Str("amount", refund.Amount.StringFixed(2)).
		Str("refunded_total", p.RefundedAmount.StringFixed(2)).
		Msg("refund created")

	n := model.NewAdminNotification(model.NotificationRefund,
		fmt.Sprintf("Refund - Order #%s", order.ID),
		fmt.Sprintf("Refunded %s of payment %s", money(refund.Amount, p.Currency), p.ID),
		map[string]any{
			"order_id":   order.ID,
			"payment_id": p.ID,
			"refund_id":  refund.ID,
			"amount":     refund.Amount.StringFixed(2),
		})
	u.alerts.emit(ctx, n, refundMessage(p, order, refund))
	return refund, nil
}

// orderRefunded sums the refunds across all payments of p's order, with p
// taken as given.
func (u *paymentUC) orderRefunded(ctx context.Context, tx repository.Tx, p *model.Payment) (decimal.Decimal, error) {
	ps, err := u.payments.List(ctx, tx, repository.PaymentFilter{OrderID: p.OrderID, Limit: 500})
	if err != nil {
		return decimal.Zero, err
	}
	total := p.RefundedAmount
	for _, other := range ps {
		if other.ID != p.ID {
			total = total.Add(other.RefundedAmount)
		}
	}
	return total, nil
}

func (u *paymentUC) Get(ctx context.Context, id string) (*model.Payment, error) {
	return u.payments.FindByID(ctx, repository.NoTX, id)
}

func (u *paymentUC) GetForUser(ctx context.Context, userID, paymentID string) (*model.Payment, error) {
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	o, err := u.orders.FindByID(ctx, repository.NoTX, p.OrderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (u *paymentUC) List(ctx context.Context, f repository.PaymentFilter) ([]*model.Payment, error) {
	return u.payments.List(ctx, repository.NoTX, f)
}
