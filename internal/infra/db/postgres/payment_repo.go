package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, order_id, provider, provider_payment_id, amount, currency, status, payment_method, confirmation_url, is_installment, installment_number, refunded_amount, created_at, updated_at`

func (r *PaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  status=$7, payment_method=$8, confirmation_url=$9, updated_at=$14;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.OrderID, p.Provider, p.ProviderPaymentID, p.Amount, p.Currency,
		string(p.Status), p.PaymentMethod, p.ConfirmationURL, p.IsInstallment,
		p.InstallmentNumber, p.RefundedAmount, p.CreatedAt, p.UpdatedAt,
	)
	return mapErr("save payment", err)
}

func (r *PaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1` + lockClause(tx) + `;`
	return r.findOne(ctx, tx, q, id)
}

func (r *PaymentRepo) FindByProviderID(ctx context.Context, tx repository.Tx, providerPaymentID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_payment_id=$1` + lockClause(tx) + `;`
	return r.findOne(ctx, tx, q, providerPaymentID)
}

func (r *PaymentRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg interface{}) (*model.Payment, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		return nil, mapErr("find payment", err)
	}
	return p, nil
}

// UpdateStatus keeps the stored payment method when paymentMethod is nil.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paymentMethod *string) error {
	const q = `
UPDATE payments
   SET status=$2, payment_method=COALESCE($3, payment_method), updated_at=$4
 WHERE id=$1;`
	ct, err := execSQL(ctx, r.pool, tx, q, id, string(status), paymentMethod, time.Now())
	if err != nil {
		return mapErr("update payment status", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PaymentRepo) AddRefunded(ctx context.Context, tx repository.Tx, id string, amount decimal.Decimal) error {
	const q = `
UPDATE payments
   SET refunded_amount=refunded_amount + $2, updated_at=$3
 WHERE id=$1 AND refunded_amount + $2 <= amount;`
	ct, err := execSQL(ctx, r.pool, tx, q, id, amount, time.Now())
	if err != nil {
		return mapErr("add refunded amount", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: refund exceeds the payment amount", domain.ErrInvalidArgument)
	}
	return nil
}

func (r *PaymentRepo) List(ctx context.Context, tx repository.Tx, f repository.PaymentFilter) ([]*model.Payment, error) {
	offset, limit := normalizePage(f.Offset, f.Limit)
	var (
		q    = `SELECT ` + paymentColumns + ` FROM payments`
		args []interface{}
	)
	if f.OrderID != "" {
		args = append(args, f.OrderID)
		q += ` WHERE order_id=$1`
	}
	args = append(args, limit, offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d;`, len(args)-1, len(args))

	return r.queryPayments(ctx, tx, "list payments", q, args...)
}

func (r *PaymentRepo) CountByOrder(ctx context.Context, tx repository.Tx, orderID string, statuses ...model.PaymentStatus) (int, error) {
	ss := make([]string, 0, len(statuses))
	for _, s := range statuses {
		ss = append(ss, string(s))
	}
	q := `SELECT COUNT(*) FROM payments WHERE order_id=$1`
	args := []interface{}{orderID}
	if len(ss) > 0 {
		q += ` AND status = ANY($2)`
		args = append(args, ss)
	}
	row, err := pickRow(ctx, r.pool, tx, q+`;`, args...)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapErr("count payments", err)
	}
	return n, nil
}

func (r *PaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	_, limit = normalizePage(0, limit)
	const q = `
SELECT ` + paymentColumns + `
  FROM payments
 WHERE status IN ('pending', 'waiting_for_capture')
   AND created_at < $1
 ORDER BY created_at
 LIMIT $2;`
	return r.queryPayments(ctx, tx, "list stale payments", q, olderThan, limit)
}

func (r *PaymentRepo) queryPayments(ctx context.Context, tx repository.Tx, op, q string, args ...interface{}) ([]*model.Payment, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		out = append(out, p)
	}
	return out, mapErr(op, rows.Err())
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p      model.Payment
		status string
	)
	if err := row.Scan(&p.ID, &p.OrderID, &p.Provider, &p.ProviderPaymentID, &p.Amount,
		&p.Currency, &status, &p.PaymentMethod, &p.ConfirmationURL, &p.IsInstallment,
		&p.InstallmentNumber, &p.RefundedAmount, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	return &p, nil
}
