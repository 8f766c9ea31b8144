//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
	"telegram-digital-store/internal/usecase"
)

func newOverdueUC(s *store) usecase.OverdueUseCase {
	return usecase.NewOverdueUseCase(s.orders, s.payments, s.products, s.users, s.notes, s.notifier,
		usecase.OverdueConfig{Currency: "RUB", PerOrderTimeout: time.Second}, newTestLogger())
}

// seedOrder stores an installment order of the reference course in the
// given state, due `due` relative to now.
func seedOrder(t *testing.T, s *store, id string, pt model.PaymentType, status model.OrderStatus, paid string, due time.Duration) *model.Order {
	t.Helper()
	now := time.Now()
	next := now.Add(due)
	o := &model.Order{
		ID:          id,
		UserID:      "user-1",
		ProductID:   "prod-course",
		PaymentType: pt,
		Status:      status,
		TotalAmount: dec("1200.00"),
		PaidAmount:  dec(paid),
		CreatedAt:   now.Add(-40 * 24 * time.Hour),
		UpdatedAt:   now,
	}
	if pt == model.PaymentTypeInstallment {
		o.InstallmentMonths = intPtr(3)
		o.NextPaymentDate = &next
	}
	if err := s.orders.Save(context.Background(), nil, o); err != nil {
		t.Fatal(err)
	}
	return o
}

func seedSucceededPayment(t *testing.T, s *store, orderID, providerID string, n int) {
	t.Helper()
	p, err := model.NewPayment(orderID, "mock", providerID, dec("400.00"), "RUB", intPtr(n))
	if err != nil {
		t.Fatal(err)
	}
	p.Status = model.PaymentStatusSucceeded
	if err := s.payments.Save(context.Background(), nil, p); err != nil {
		t.Fatal(err)
	}
}

func TestOverdueUseCase_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("reminds only paid installment orders past due with money owed", func(t *testing.T) {
		// --- Arrange ---
		s := newStore()
		s.seedCourse()
		s.seedUser()
		day := 24 * time.Hour
		seedOrder(t, s, "o-overdue", model.PaymentTypeInstallment, model.OrderStatusPaid, "400.00", -(5*day + time.Hour))
		seedSucceededPayment(t, s, "o-overdue", "prov-1", 1)
		seedOrder(t, s, "o-never-paid", model.PaymentTypeInstallment, model.OrderStatusPending, "0", -10*day)
		seedOrder(t, s, "o-not-due", model.PaymentTypeInstallment, model.OrderStatusPaid, "400.00", 2*day)
		seedOrder(t, s, "o-settled", model.PaymentTypeInstallment, model.OrderStatusPaid, "1200.00", -10*day)
		seedOrder(t, s, "o-full", model.PaymentTypeFull, model.OrderStatusPaid, "400.00", 0)

		// --- Act ---
		rep, err := newOverdueUC(s).Sweep(ctx, time.Now())

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if rep.Found != 1 || rep.Recorded != 1 || rep.Delivered != 1 || rep.Failed != 0 {
			t.Fatalf("unexpected report %+v", rep)
		}
		notes := s.notes.ByType(model.NotificationOverduePayment)
		if len(notes) != 1 {
			t.Fatalf("expected one overdue notification, got %d", len(notes))
		}
		n := notes[0]
		if n.Title != "Overdue Payment - Order #o-overdue" {
			t.Errorf("unexpected title %q", n.Title)
		}
		if n.Message != "Payment for Go Course is 5 days overdue" {
			t.Errorf("unexpected message %q", n.Message)
		}
		if n.Metadata["days_overdue"] != 5 || n.Metadata["amount"] != "400.00" {
			t.Errorf("unexpected metadata %v", n.Metadata)
		}
		alert := s.notifier.Sent[0]
		if !strings.Contains(alert, "Installment Payment Overdue") || !strings.Contains(alert, "400.00 RUB") {
			t.Errorf("unexpected alert %q", alert)
		}
	})

	t.Run("amount due follows the number of succeeded slices", func(t *testing.T) {
		// --- Arrange ---
		s := newStore()
		s.seedCourse()
		s.seedUser()
		seedOrder(t, s, "o-two-paid", model.PaymentTypeInstallment, model.OrderStatusPaid, "800.00", -time.Hour)
		seedSucceededPayment(t, s, "o-two-paid", "prov-1", 1)
		seedSucceededPayment(t, s, "o-two-paid", "prov-2", 2)

		// --- Act ---
		if _, err := newOverdueUC(s).Sweep(ctx, time.Now()); err != nil {
			t.Fatal(err)
		}

		// --- Assert ---
		notes := s.notes.ByType(model.NotificationOverduePayment)
		if len(notes) != 1 || notes[0].Metadata["amount"] != "400.00" {
			t.Fatalf("expected 400.00 due on the last slice, got %+v", notes)
		}
		if notes[0].Metadata["days_overdue"] != 0 {
			t.Errorf("expected 0 whole days overdue, got %v", notes[0].Metadata["days_overdue"])
		}
	})

	t.Run("one failing order does not stop the sweep", func(t *testing.T) {
		// --- Arrange ---
		s := newStore()
		s.seedCourse()
		s.seedUser()
		seedOrder(t, s, "o-a", model.PaymentTypeInstallment, model.OrderStatusPaid, "400.00", -48*time.Hour)
		seedOrder(t, s, "o-b", model.PaymentTypeInstallment, model.OrderStatusPaid, "400.00", -48*time.Hour)
		seedOrder(t, s, "o-c", model.PaymentTypeInstallment, model.OrderStatusPaid, "400.00", -48*time.Hour)
		s.payments.CountByOrderFunc = func(ctx context.Context, tx repository.Tx, orderID string, statuses ...model.PaymentStatus) (int, error) {
			if orderID == "o-a" {
				return 0, errors.New("connection reset")
			}
			return 1, nil
		}
		s.notifier.SendFunc = func(ctx context.Context, text string) bool {
			if strings.Contains(text, "o-b") {
				panic("telegram client exploded")
			}
			return true
		}

		// --- Act ---
		rep, err := newOverdueUC(s).Sweep(ctx, time.Now())

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if rep.Found != 3 || rep.Failed != 2 || rep.Delivered != 1 {
			t.Errorf("unexpected report %+v", rep)
		}
		var ids []string
		for _, n := range s.notes.ByType(model.NotificationOverduePayment) {
			ids = append(ids, n.Metadata["order_id"].(string))
		}
		if strings.Join(ids, ",") != "o-b,o-c" {
			t.Errorf("expected notifications for o-b and o-c, got %v", ids)
		}
	})

	t.Run("undelivered alert still records the notification", func(t *testing.T) {
		s := newStore()
		s.seedCourse()
		s.seedUser()
		seedOrder(t, s, "o-a", model.PaymentTypeInstallment, model.OrderStatusPaid, "400.00", -48*time.Hour)
		s.notifier.SendFunc = func(ctx context.Context, text string) bool { return false }

		rep, err := newOverdueUC(s).Sweep(ctx, time.Now())

		if err != nil {
			t.Fatal(err)
		}
		if rep.Recorded != 1 || rep.Delivered != 0 || rep.Failed != 0 {
			t.Errorf("unexpected report %+v", rep)
		}
	})

	t.Run("listing failure is returned", func(t *testing.T) {
		s := newStore()
		s.orders.ListOverdueFunc = func(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Order, error) {
			return nil, errors.New("db down")
		}

		_, err := newOverdueUC(s).Sweep(ctx, time.Now())

		if err == nil {
			t.Fatal("expected an error")
		}
	})
}
