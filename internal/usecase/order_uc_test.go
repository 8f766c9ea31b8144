//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
	"telegram-digital-store/internal/usecase"
)

func TestOrderUseCase_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("full order snapshots the product price", func(t *testing.T) {
		// --- Arrange ---
		s := newStore()
		s.seedCourse()
		user := s.seedUser()
		uc := newOrderUC(s)

		// --- Act ---
		o, err := uc.CreateOrder(ctx, user.ID, usecase.CreateOrderInput{ProductID: "prod-course", PaymentType: model.PaymentTypeFull})

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !o.TotalAmount.Equal(dec("1000.00")) || !o.PaidAmount.IsZero() {
			t.Errorf("expected 1000.00 total and nothing paid, got %s/%s", o.TotalAmount, o.PaidAmount)
		}
		if o.Status != model.OrderStatusPending || o.NextPaymentDate != nil || o.InstallmentMonths != nil {
			t.Errorf("unexpected order %+v", o)
		}
		if len(s.gateway.Created) != 0 {
			t.Error("creating an order must not call the provider")
		}
		if _, err := s.orders.FindByID(ctx, nil, o.ID); err != nil {
			t.Errorf("expected the order to be stored: %v", err)
		}
	})

	t.Run("installment order uses the installment price and a 30 day due date", func(t *testing.T) {
		// --- Arrange ---
		s := newStore()
		s.seedCourse()
		user := s.seedUser()
		uc := newOrderUC(s)
		before := time.Now()

		// --- Act ---
		o, err := uc.CreateOrder(ctx, user.ID, usecase.CreateOrderInput{ProductID: "prod-course", PaymentType: model.PaymentTypeInstallment})

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !o.TotalAmount.Equal(dec("1200.00")) {
			t.Errorf("expected 1200.00, got %s", o.TotalAmount)
		}
		if o.InstallmentMonths == nil || *o.InstallmentMonths != 3 {
			t.Errorf("expected 3 months, got %v", o.InstallmentMonths)
		}
		lo, hi := before.Add(30*24*time.Hour), time.Now().Add(30*24*time.Hour)
		if o.NextPaymentDate == nil || o.NextPaymentDate.Before(lo) || o.NextPaymentDate.After(hi) {
			t.Errorf("expected next payment date about 30 days ahead, got %v", o.NextPaymentDate)
		}
	})

	t.Run("installments on a product without installment price are an invalid request", func(t *testing.T) {
		// --- Arrange ---
		s := newStore()
		p, _ := model.NewProduct("prod-bot", "Helper Bot", model.ProductTypeBot, dec("50.00"), nil, nil)
		_ = s.products.Save(ctx, nil, p)
		user := s.seedUser()

		// --- Act ---
		_, err := newOrderUC(s).CreateOrder(ctx, user.ID, usecase.CreateOrderInput{ProductID: "prod-bot", PaymentType: model.PaymentTypeInstallment})

		// --- Assert ---
		if !errors.Is(err, domain.ErrInstallmentNotOffered) {
			t.Fatalf("expected ErrInstallmentNotOffered, got %v", err)
		}
		if domain.KindOf(err) != domain.KindInvalidRequest {
			t.Errorf("expected invalid_request, got %s", domain.KindOf(err))
		}
	})

	t.Run("inactive or unknown products are not found", func(t *testing.T) {
		s := newStore()
		p := s.seedCourse()
		p.Active = false
		_ = s.products.Save(ctx, nil, p)
		user := s.seedUser()
		uc := newOrderUC(s)

		for _, id := range []string{"prod-course", "prod-missing"} {
			_, err := uc.CreateOrder(ctx, user.ID, usecase.CreateOrderInput{ProductID: id, PaymentType: model.PaymentTypeFull})
			if domain.KindOf(err) != domain.KindNotFound {
				t.Errorf("%s: expected not_found, got %v", id, err)
			}
		}
	})

	t.Run("records a notification and alerts the admins", func(t *testing.T) {
		s := newStore()
		s.seedCourse()
		user := s.seedUser()

		o, err := newOrderUC(s).CreateOrder(ctx, user.ID, usecase.CreateOrderInput{ProductID: "prod-course", PaymentType: model.PaymentTypeFull})
		if err != nil {
			t.Fatal(err)
		}

		notes := s.notes.ByType(model.NotificationNewOrder)
		if len(notes) != 1 || notes[0].Metadata["order_id"] != o.ID {
			t.Fatalf("expected one new order notification for %s, got %+v", o.ID, notes)
		}
		if s.notifier.Count() != 1 || !strings.Contains(s.notifier.Sent[0], "Alice Doe") {
			t.Errorf("expected an alert naming the customer, got %v", s.notifier.Sent)
		}
	})

	t.Run("a failing alert does not fail the order", func(t *testing.T) {
		s := newStore()
		s.seedCourse()
		user := s.seedUser()
		s.notifier.SendFunc = func(ctx context.Context, text string) bool { return false }
		s.notes.SaveFunc = func(ctx context.Context, tx repository.Tx, n *model.AdminNotification) error {
			return errors.New("db down")
		}

		_, err := newOrderUC(s).CreateOrder(ctx, user.ID, usecase.CreateOrderInput{ProductID: "prod-course", PaymentType: model.PaymentTypeFull})

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
	})
}

func TestOrderUseCase_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*store, usecase.OrderUseCase, *model.Order) {
		s := newStore()
		s.seedCourse()
		user := s.seedUser()
		uc := newOrderUC(s)
		o, err := uc.CreateOrder(ctx, user.ID, usecase.CreateOrderInput{ProductID: "prod-course", PaymentType: model.PaymentTypeFull})
		if err != nil {
			t.Fatal(err)
		}
		return s, uc, o
	}

	t.Run("pending order can be cancelled and reopened", func(t *testing.T) {
		s, uc, o := setup(t)

		got, err := uc.UpdateStatus(ctx, o.ID, model.OrderStatusCancelled)
		if err != nil || got.Status != model.OrderStatusCancelled {
			t.Fatalf("expected cancelled, got %v %v", got, err)
		}
		got, err = uc.UpdateStatus(ctx, o.ID, model.OrderStatusPending)
		if err != nil || got.Status != model.OrderStatusPending {
			t.Fatalf("expected pending, got %v %v", got, err)
		}
		stored, _ := s.orders.FindByID(ctx, nil, o.ID)
		if stored.Status != model.OrderStatusPending {
			t.Errorf("expected stored status pending, got %s", stored.Status)
		}
	})

	t.Run("refunding a pending order is illegal", func(t *testing.T) {
		s, uc, o := setup(t)

		_, err := uc.UpdateStatus(ctx, o.ID, model.OrderStatusRefunded)

		if !errors.Is(err, domain.ErrIllegalTransition) {
			t.Fatalf("expected ErrIllegalTransition, got %v", err)
		}
		stored, _ := s.orders.FindByID(ctx, nil, o.ID)
		if stored.Status != model.OrderStatusPending {
			t.Errorf("expected status unchanged, got %s", stored.Status)
		}
	})

	t.Run("unknown status is invalid", func(t *testing.T) {
		_, uc, o := setup(t)
		_, err := uc.UpdateStatus(ctx, o.ID, model.OrderStatus("shipped"))
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestOrderUseCase_Ownership(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	s.seedCourse()
	user := s.seedUser()
	uc := newOrderUC(s)
	o, _ := uc.CreateOrder(ctx, user.ID, usecase.CreateOrderInput{ProductID: "prod-course", PaymentType: model.PaymentTypeFull})

	if _, err := uc.GetForUser(ctx, user.ID, o.ID); err != nil {
		t.Errorf("owner should see the order: %v", err)
	}
	if _, err := uc.GetForUser(ctx, "intruder", o.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another customer, got %v", err)
	}
	mine, err := uc.ListForUser(ctx, user.ID, 0, 10)
	if err != nil || len(mine) != 1 {
		t.Errorf("expected one order, got %d (%v)", len(mine), err)
	}
	if _, err := uc.List(ctx, repository.OrderFilter{Status: "bogus"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for a bogus status filter, got %v", err)
	}
}
