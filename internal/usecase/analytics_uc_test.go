//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
	"telegram-digital-store/internal/usecase"
)

func TestAnalyticsUseCase_TrackClick(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	course := s.seedCourse()
	clicks := &MockClickRepo{}
	uc := usecase.NewAnalyticsUseCase(clicks, &MockStatsRepo{}, s.orders, s.products, newTestLogger())

	t.Run("anonymous page view", func(t *testing.T) {
		c, err := uc.TrackClick(ctx, usecase.ClickInput{Page: "catalog", Action: model.ActionPageView, IPAddress: "10.0.0.1"})
		if err != nil {
			t.Fatalf("TrackClick: %v", err)
		}
		if c.UserID != "" || c.ID == "" {
			t.Errorf("unexpected click %+v", c)
		}
	})

	t.Run("product click keeps metadata", func(t *testing.T) {
		_, err := uc.TrackClick(ctx, usecase.ClickInput{
			UserID: "user-1", ProductID: course.ID, Page: "product", Action: "buy_click",
			Metadata: map[string]any{"payment_type": "installment"},
		})
		if err != nil {
			t.Fatalf("TrackClick: %v", err)
		}
		got, _ := uc.Clicks(ctx, repository.ClickFilter{ProductID: course.ID})
		if len(got) != 1 || got[0].Metadata["payment_type"] != "installment" {
			t.Errorf("unexpected clicks %+v", got)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := uc.TrackClick(ctx, usecase.ClickInput{ProductID: "nope", Page: "product", Action: "view"})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("blank action", func(t *testing.T) {
		_, err := uc.TrackClick(ctx, usecase.ClickInput{Page: "catalog", Action: "  "})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestAnalyticsUseCase_Dashboard(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	course := s.seedCourse()
	user := s.seedUser()
	for i := 0; i < 12; i++ {
		o, err := model.NewOrder(user.ID, course, model.PaymentTypeFull, nil, time.Now().Add(time.Duration(-i)*time.Hour), 0)
		if err != nil {
			t.Fatal(err)
		}
		_ = s.orders.Save(ctx, nil, o)
	}
	stats := &MockStatsRepo{
		StoreTotals: model.StoreTotals{Orders: 12, Revenue: dec("3000"), Clicks: 48, UniqueVisitors: 20, PageViews: 30},
		Top:         []model.ProductSales{{ProductID: course.ID, Name: course.Name, OrderCount: 12, Revenue: dec("3000")}},
	}
	uc := usecase.NewAnalyticsUseCase(&MockClickRepo{}, stats, s.orders, s.products, newTestLogger())

	d, err := uc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.ConversionRate() != 25 {
		t.Errorf("expected 25%% conversion, got %v", d.ConversionRate())
	}
	if len(d.TopProducts) != 1 || stats.Limits[0] != 5 {
		t.Errorf("unexpected top products %+v (limit %v)", d.TopProducts, stats.Limits)
	}
	if len(d.RecentOrders) == 0 || !d.RecentOrders[0].CreatedAt.After(d.RecentOrders[1].CreatedAt) {
		t.Errorf("expected newest orders first")
	}

	stats.Err = errors.New("db down")
	if _, err := uc.Dashboard(ctx); err == nil {
		t.Error("expected error to propagate")
	}
}
