package repository

import (
	"context"
	"time"

	"telegram-digital-store/internal/domain/model"
)

type ClickFilter struct {
	ProductID string
	Action    string
	Since     time.Time
	Offset    int
	Limit     int
}

type ClickRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Click) error
	List(ctx context.Context, tx Tx, f ClickFilter) ([]*model.Click, error)
}

// StatsRepository aggregates across orders and clicks for the dashboard.
type StatsRepository interface {
	Totals(ctx context.Context, tx Tx) (model.StoreTotals, error)
	// TopProducts ranks products by order count.
	TopProducts(ctx context.Context, tx Tx, limit int) ([]model.ProductSales, error)
}
