//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/usecase"
)

func TestUserUseCase_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewMockUserRepo()
	uc := usecase.NewUserUseCase(repo, newTestLogger())

	first, err := uc.GetOrCreate(ctx, usecase.CustomerInfo{TelegramID: 7, Username: "bob", FirstName: "Bob"})
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	again, err := uc.GetOrCreate(ctx, usecase.CustomerInfo{TelegramID: 7, Username: "bob", FirstName: "Bob"})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != again.ID {
		t.Errorf("expected the same user, got %s and %s", first.ID, again.ID)
	}

	renamed, err := uc.GetOrCreate(ctx, usecase.CustomerInfo{TelegramID: 7, Username: "bobby", FirstName: "Bob"})
	if err != nil {
		t.Fatal(err)
	}
	if renamed.ID != first.ID || renamed.Username != "bobby" {
		t.Errorf("expected profile refresh on the same id, got %+v", renamed)
	}
	stored, _ := repo.FindByTelegramID(ctx, nil, 7)
	if stored.Username != "bobby" {
		t.Errorf("expected stored username bobby, got %q", stored.Username)
	}

	if _, err := uc.GetOrCreate(ctx, usecase.CustomerInfo{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for a missing telegram id, got %v", err)
	}
}

func TestProductUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("create validates input", func(t *testing.T) {
		uc := usecase.NewProductUseCase(NewMockProductRepo(), newTestLogger())
		ip := dec("0")

		_, err := uc.Create(ctx, usecase.ProductInput{Name: "Course", Type: model.ProductTypeCourse, Price: dec("10"), InstallmentPrice: &ip, InstallmentMonths: intPtr(2)})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for zero installment price, got %v", err)
		}
		_, err = uc.Create(ctx, usecase.ProductInput{Name: "Course", Type: "webinar", Price: dec("10")})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for unknown type, got %v", err)
		}
	})

	t.Run("deactivated products disappear from the storefront", func(t *testing.T) {
		// --- Arrange ---
		repo := NewMockProductRepo()
		uc := usecase.NewProductUseCase(repo, newTestLogger())
		p, err := uc.Create(ctx, usecase.ProductInput{Name: "Intensive", Type: model.ProductTypeIntensive, Price: dec("300"), Features: []string{"live"}})
		if err != nil {
			t.Fatal(err)
		}

		// --- Act ---
		if _, err := uc.SetActive(ctx, p.ID, false); err != nil {
			t.Fatal(err)
		}

		// --- Assert ---
		if _, err := uc.Get(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for an inactive product, got %v", err)
		}
		active, _ := uc.ListActive(ctx)
		all, _ := uc.ListAll(ctx)
		if len(active) != 0 || len(all) != 1 {
			t.Errorf("expected 0 active and 1 total, got %d and %d", len(active), len(all))
		}
	})

	t.Run("update keeps visibility and creation time", func(t *testing.T) {
		repo := NewMockProductRepo()
		uc := usecase.NewProductUseCase(repo, newTestLogger())
		p, _ := uc.Create(ctx, usecase.ProductInput{Name: "Bot", Type: model.ProductTypeBot, Price: dec("20")})
		_, _ = uc.SetActive(ctx, p.ID, false)

		upd, err := uc.Update(ctx, p.ID, usecase.ProductInput{Name: "Bot Pro", Type: model.ProductTypeBot, Price: dec("25"), Description: " smarter "})

		if err != nil {
			t.Fatal(err)
		}
		if upd.Active || !upd.CreatedAt.Equal(p.CreatedAt) || upd.Description != "smarter" || !upd.Price.Equal(dec("25")) {
			t.Errorf("unexpected update result %+v", upd)
		}
		if _, err := uc.Update(ctx, "missing", usecase.ProductInput{Name: "x", Type: model.ProductTypeBot, Price: dec("1")}); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestNotificationUseCase(t *testing.T) {
	ctx := context.Background()
	repo := NewMockNotificationRepo()
	uc := usecase.NewNotificationUseCase(repo, newTestLogger())
	a := model.NewAdminNotification(model.NotificationNewOrder, "a", "a", nil)
	b := model.NewAdminNotification(model.NotificationRefund, "b", "b", nil)
	_ = repo.Save(ctx, nil, a)
	_ = repo.Save(ctx, nil, b)

	if err := uc.MarkRead(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	unread, _ := uc.List(ctx, 0, 10, true)
	if len(unread) != 1 || unread[0].ID != b.ID {
		t.Errorf("expected only %s unread, got %+v", b.ID, unread)
	}
	all, _ := uc.List(ctx, 0, 10, false)
	if len(all) != 2 || all[0].ID != b.ID {
		t.Errorf("expected newest first, got %+v", all)
	}
	if err := uc.MarkRead(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
