package model

import (
	"strings"
	"time"

	"telegram-digital-store/internal/domain"

	"github.com/google/uuid"
)

// User is a Telegram mini-app customer.
type User struct {
	ID         string
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewUser(id string, tgID int64, username, firstName, lastName string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:         id,
		TelegramID: tgID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// DisplayName is what admin alerts show for the customer.
func (u *User) DisplayName() string {
	if u == nil {
		return "Unknown"
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	if u.Username != "" {
		return u.Username
	}
	return "Unknown"
}
