package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Save upserts by telegram_id. When the Telegram account already exists the
// stored id and created_at are written back into u, so concurrent first
// visits of the same account converge on one row.
func (r *UserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, telegram_id, username, first_name, last_name, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (telegram_id) DO UPDATE SET
  username=EXCLUDED.username, first_name=EXCLUDED.first_name,
  last_name=EXCLUDED.last_name, updated_at=EXCLUDED.updated_at
RETURNING id, created_at;`

	row, err := pickRow(ctx, r.pool, tx, q,
		u.ID, u.TelegramID, u.Username, u.FirstName, u.LastName, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return err
	}
	return mapErr("save user", row.Scan(&u.ID, &u.CreatedAt))
}

const userSelect = `
SELECT id, telegram_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''), created_at, updated_at
  FROM users`

func (r *UserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	return r.findOne(ctx, tx, userSelect+` WHERE id=$1;`, id)
}

func (r *UserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	return r.findOne(ctx, tx, userSelect+` WHERE telegram_id=$1;`, tgID)
}

func (r *UserRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg interface{}) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr("find user", err)
	}
	return &u, nil
}
