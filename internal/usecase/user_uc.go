// File: internal/usecase/user_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// CustomerInfo is the identity carried by verified Telegram WebApp init data.
type CustomerInfo struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

type UserUseCase interface {
	// GetOrCreate upserts the customer by telegram id, refreshing the profile.
	GetOrCreate(ctx context.Context, info CustomerInfo) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, logger *zerolog.Logger) *userUC {
	l := logger.With().Str("component", "user_uc").Logger()
	return &userUC{users: users, log: &l}
}

func (u *userUC) GetOrCreate(ctx context.Context, info CustomerInfo) (*model.User, error) {
	existing, err := u.users.FindByTelegramID(ctx, repository.NoTX, info.TelegramID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err == nil && existing.Username == info.Username &&
		existing.FirstName == info.FirstName && existing.LastName == info.LastName {
		return existing, nil
	}

	usr, err := model.NewUser("", info.TelegramID, info.Username, info.FirstName, info.LastName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		usr.ID = existing.ID
		usr.CreatedAt = existing.CreatedAt
	}
	// Save upserts on telegram_id and writes back the stored id.
	if err := u.users.Save(ctx, repository.NoTX, usr); err != nil {
		return nil, err
	}
	if existing == nil {
		u.log.Info().Str("user_id", usr.ID).Int64("tg_id", usr.TelegramID).Msg("new customer")
	}
	return usr, nil
}

func (u *userUC) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.users.FindByID(ctx, repository.NoTX, id)
}
