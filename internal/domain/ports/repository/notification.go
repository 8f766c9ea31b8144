package repository

import (
	"context"

	"telegram-digital-store/internal/domain/model"
)

type AdminNotificationRepository interface {
	Save(ctx context.Context, tx Tx, n *model.AdminNotification) error
	List(ctx context.Context, tx Tx, offset, limit int, unreadOnly bool) ([]*model.AdminNotification, error)
	MarkRead(ctx context.Context, tx Tx, id string) error
}
