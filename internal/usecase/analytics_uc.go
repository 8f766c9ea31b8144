package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
)

// Compile-time check
var _ AnalyticsUseCase = (*analyticsUC)(nil)

const (
	dashboardTopProducts  = 5
	dashboardRecentOrders = 10
)

type ClickInput struct {
	UserID    string
	ProductID string
	Page      string
	Action    string
	Metadata  map[string]any
	IPAddress string
	UserAgent string
}

type AnalyticsUseCase interface {
	TrackClick(ctx context.Context, in ClickInput) (*model.Click, error)
	Clicks(ctx context.Context, f repository.ClickFilter) ([]*model.Click, error)
	Dashboard(ctx context.Context) (*model.Dashboard, error)
}

type analyticsUC struct {
	clicks   repository.ClickRepository
	stats    repository.StatsRepository
	orders   repository.OrderRepository
	products repository.ProductRepository

	log *zerolog.Logger
}

func NewAnalyticsUseCase(clicks repository.ClickRepository, stats repository.StatsRepository, orders repository.OrderRepository,
	products repository.ProductRepository, logger *zerolog.Logger) *analyticsUC {
	l := logger.With().Str("component", "analytics_uc").Logger()
	return &analyticsUC{clicks: clicks, stats: stats, orders: orders, products: products, log: &l}
}

func (a *analyticsUC) TrackClick(ctx context.Context, in ClickInput) (*model.Click, error) {
	if in.ProductID != "" {
		if _, err := a.products.FindByID(ctx, repository.NoTX, in.ProductID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown product", domain.ErrInvalidArgument)
			}
			return nil, err
		}
	}
	c, err := model.NewClick(in.UserID, in.ProductID, in.Page, in.Action, in.Metadata, in.IPAddress, in.UserAgent)
	if err != nil {
		return nil, err
	}
	if err := a.clicks.Save(ctx, repository.NoTX, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *analyticsUC) Clicks(ctx context.Context, f repository.ClickFilter) ([]*model.Click, error) {
	return a.clicks.List(ctx, repository.NoTX, f)
}

func (a *analyticsUC) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	totals, err := a.stats.Totals(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	top, err := a.stats.TopProducts(ctx, repository.NoTX, dashboardTopProducts)
	if err != nil {
		return nil, err
	}
	recent, err := a.orders.List(ctx, repository.NoTX, repository.OrderFilter{Limit: dashboardRecentOrders})
	if err != nil {
		return nil, err
	}
	return &model.Dashboard{StoreTotals: totals, TopProducts: top, RecentOrders: recent}, nil
}
