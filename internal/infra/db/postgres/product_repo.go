package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

const productColumns = `id, name, description, product_type, price, installment_price, installment_months, features, is_active, created_at, updated_at`

func (r *ProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	const q = `
INSERT INTO products (` + productColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  name=$2, description=$3, product_type=$4, price=$5, installment_price=$6,
  installment_months=$7, features=$8, is_active=$9, updated_at=$11;`

	features := p.Features
	if features == nil {
		features = []string{}
	}
	var instPrice decimal.NullDecimal
	if p.InstallmentPrice != nil {
		instPrice = decimal.NewNullDecimal(*p.InstallmentPrice)
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Name, p.Description, string(p.Type), p.Price, instPrice,
		p.InstallmentMonths, features, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	return mapErr("save product", err)
}

func (r *ProductRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id=$1` + lockClause(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p, err := scanProduct(row)
	if err != nil {
		return nil, mapErr("find product", err)
	}
	return p, nil
}

func (r *ProductRepo) List(ctx context.Context, tx repository.Tx, activeOnly bool) ([]*model.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		q += ` WHERE is_active = TRUE`
	}
	q += ` ORDER BY created_at, id;`

	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr("list products", err)
	}
	defer rows.Close()

	var out []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapErr("scan product", err)
		}
		out = append(out, p)
	}
	return out, mapErr("list products", rows.Err())
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		p         model.Product
		typ       string
		instPrice decimal.NullDecimal
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &typ, &p.Price, &instPrice,
		&p.InstallmentMonths, &p.Features, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Type = model.ProductType(typ)
	if instPrice.Valid {
		v := instPrice.Decimal
		p.InstallmentPrice = &v
	}
	return &p, nil
}
