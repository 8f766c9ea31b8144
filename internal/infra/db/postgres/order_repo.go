package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*OrderRepo)(nil)

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `id, user_id, product_id, payment_type, status, total_amount, paid_amount, installment_months, next_payment_date, created_at, updated_at`

func (r *OrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (` + orderColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  status=$5, total_amount=$6, paid_amount=$7, installment_months=$8,
  next_payment_date=$9, updated_at=$11;`

	_, err := execSQL(ctx, r.pool, tx, q,
		o.ID, o.UserID, o.ProductID, string(o.PaymentType), string(o.Status),
		o.TotalAmount, o.PaidAmount, o.InstallmentMonths, o.NextPaymentDate,
		o.CreatedAt, o.UpdatedAt,
	)
	return mapErr("save order", err)
}

func (r *OrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1` + lockClause(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	o, err := scanOrder(row)
	if err != nil {
		return nil, mapErr("find order", err)
	}
	return o, nil
}

// Update must run inside a transaction to be safe against concurrent
// writers; FindByID then holds the row lock until commit.
func (r *OrderRepo) Update(ctx context.Context, tx repository.Tx, id string, fn func(o *model.Order) error) (*model.Order, error) {
	o, err := r.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(o); err != nil {
		return nil, err
	}
	const q = `
UPDATE orders
   SET status=$2, total_amount=$3, paid_amount=$4, installment_months=$5,
       next_payment_date=$6, updated_at=$7
 WHERE id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, o.ID, string(o.Status), o.TotalAmount, o.PaidAmount,
		o.InstallmentMonths, o.NextPaymentDate, o.UpdatedAt); err != nil {
		return nil, mapErr("update order", err)
	}
	return o, nil
}

func (r *OrderRepo) List(ctx context.Context, tx repository.Tx, f repository.OrderFilter) ([]*model.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	offset, limit := normalizePage(f.Offset, f.Limit)
	args = append(args, limit, offset)

	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d;`, len(args)-1, len(args))

	return r.queryOrders(ctx, tx, "list orders", q, args...)
}

func (r *OrderRepo) ListOverdue(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Order, error) {
	const q = `
SELECT ` + orderColumns + `
  FROM orders
 WHERE payment_type = 'installment'
   AND status = 'paid'
   AND next_payment_date IS NOT NULL
   AND next_payment_date < $1
   AND paid_amount < total_amount
 ORDER BY next_payment_date, id;`
	return r.queryOrders(ctx, tx, "list overdue orders", q, now)
}

func (r *OrderRepo) queryOrders(ctx context.Context, tx repository.Tx, op, q string, args ...interface{}) ([]*model.Order, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		out = append(out, o)
	}
	return out, mapErr(op, rows.Err())
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o           model.Order
		paymentType string
		status      string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &paymentType, &status,
		&o.TotalAmount, &o.PaidAmount, &o.InstallmentMonths, &o.NextPaymentDate,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.PaymentType = model.PaymentType(paymentType)
	o.Status = model.OrderStatus(status)
	return &o, nil
}
