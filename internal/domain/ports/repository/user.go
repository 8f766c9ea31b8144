package repository

import (
	"context"

	"telegram-digital-store/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByTelegramID(ctx context.Context, tx Tx, tgID int64) (*model.User, error)
}
