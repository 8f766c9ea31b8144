package usecase

import (
	"context"

	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	List(ctx context.Context, offset, limit int, unreadOnly bool) ([]*model.AdminNotification, error)
	MarkRead(ctx context.Context, id string) error
}

type notificationUC struct {
	notes repository.AdminNotificationRepository
	log   *zerolog.Logger
}

func NewNotificationUseCase(notes repository.AdminNotificationRepository, logger *zerolog.Logger) *notificationUC {
	return &notificationUC{notes: notes, log: logger}
}

func (n *notificationUC) List(ctx context.Context, offset, limit int, unreadOnly bool) ([]*model.AdminNotification, error) {
	return n.notes.List(ctx, repository.NoTX, offset, limit, unreadOnly)
}

func (n *notificationUC) MarkRead(ctx context.Context, id string) error {
	return n.notes.MarkRead(ctx, repository.NoTX, id)
}
