package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
)

var (
	_ repository.ClickRepository = (*ClickRepo)(nil)
	_ repository.StatsRepository = (*StatsRepo)(nil)
)

type ClickRepo struct {
	pool *pgxpool.Pool
}

func NewClickRepo(pool *pgxpool.Pool) *ClickRepo {
	return &ClickRepo{pool: pool}
}

// Anonymous clicks store NULL user/product references.
func (r *ClickRepo) Save(ctx context.Context, tx repository.Tx, c *model.Click) error {
	const q = `
INSERT INTO clicks (id, user_id, product_id, page, action, metadata, ip_address, user_agent, created_at)
VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4, $5, $6, NULLIF($7,''), NULLIF($8,''), $9);`

	meta := c.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q, c.ID, c.UserID, c.ProductID, c.Page, c.Action,
		string(raw), c.IPAddress, c.UserAgent, c.CreatedAt)
	return mapErr("save click", err)
}

func (r *ClickRepo) List(ctx context.Context, tx repository.Tx, f repository.ClickFilter) ([]*model.Click, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.ProductID != "" {
		args = append(args, f.ProductID)
		where = append(where, fmt.Sprintf("product_id=$%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		where = append(where, fmt.Sprintf("action=$%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	offset, limit := normalizePage(f.Offset, f.Limit)
	args = append(args, limit, offset)

	q := `SELECT id, COALESCE(user_id,''), COALESCE(product_id,''), page, action, metadata::text,
       COALESCE(ip_address,''), COALESCE(user_agent,''), created_at
  FROM clicks`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d;`, len(args)-1, len(args))

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr("list clicks", err)
	}
	defer rows.Close()

	var out []*model.Click
	for rows.Next() {
		var (
			c   model.Click
			raw string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.ProductID, &c.Page, &c.Action, &raw,
			&c.IPAddress, &c.UserAgent, &c.CreatedAt); err != nil {
			return nil, mapErr("scan click", err)
		}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &c.Metadata); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		out = append(out, &c)
	}
	return out, mapErr("list clicks", rows.Err())
}

type StatsRepo struct {
	pool *pgxpool.Pool
}

func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

// Totals counts anonymous visitors by distinct IP and known ones by user.
func (r *StatsRepo) Totals(ctx context.Context, tx repository.Tx) (model.StoreTotals, error) {
	const q = `
SELECT
  (SELECT COUNT(*) FROM orders),
  (SELECT COALESCE(SUM(paid_amount), 0) FROM orders),
  (SELECT COUNT(*) FROM clicks),
  (SELECT COUNT(DISTINCT user_id) FROM clicks)
    + (SELECT COUNT(DISTINCT ip_address) FROM clicks WHERE user_id IS NULL),
  (SELECT COUNT(*) FROM clicks WHERE action = $1);`

	var t model.StoreTotals
	row, err := pickRow(ctx, r.pool, tx, q, model.ActionPageView)
	if err != nil {
		return t, err
	}
	if err := row.Scan(&t.Orders, &t.Revenue, &t.Clicks, &t.UniqueVisitors, &t.PageViews); err != nil {
		return model.StoreTotals{}, mapErr("store totals", err)
	}
	return t, nil
}

func (r *StatsRepo) TopProducts(ctx context.Context, tx repository.Tx, limit int) ([]model.ProductSales, error) {
	const q = `
SELECT p.id, p.name, COUNT(o.id), COALESCE(SUM(o.paid_amount), 0)
  FROM products p
  JOIN orders o ON o.product_id = p.id
 GROUP BY p.id, p.name
 ORDER BY COUNT(o.id) DESC, p.name
 LIMIT $1;`

	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, mapErr("top products", err)
	}
	defer rows.Close()

	var out []model.ProductSales
	for rows.Next() {
		var s model.ProductSales
		if err := rows.Scan(&s.ProductID, &s.Name, &s.OrderCount, &s.Revenue); err != nil {
			return nil, mapErr("scan top product", err)
		}
		out = append(out, s)
	}
	return out, mapErr("top products", rows.Err())
}
