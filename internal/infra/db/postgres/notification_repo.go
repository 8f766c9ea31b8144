package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
)

var _ repository.AdminNotificationRepository = (*NotificationRepo)(nil)

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Save(ctx context.Context, tx repository.Tx, n *model.AdminNotification) error {
	const q = `
INSERT INTO admin_notifications (id, type, title, message, metadata, is_read, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET is_read=$6;`

	meta := n.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q, n.ID, string(n.Type), n.Title, n.Message, string(raw), n.IsRead, n.CreatedAt)
	return mapErr("save notification", err)
}

func (r *NotificationRepo) List(ctx context.Context, tx repository.Tx, offset, limit int, unreadOnly bool) ([]*model.AdminNotification, error) {
	offset, limit = normalizePage(offset, limit)
	q := `SELECT id, type, title, message, metadata::text, is_read, created_at FROM admin_notifications`
	if unreadOnly {
		q += ` WHERE is_read = FALSE`
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2;`

	rows, err := queryRows(ctx, r.pool, tx, q, limit, offset)
	if err != nil {
		return nil, mapErr("list notifications", err)
	}
	defer rows.Close()

	var out []*model.AdminNotification
	for rows.Next() {
		var (
			n   model.AdminNotification
			typ string
			raw string
		)
		if err := rows.Scan(&n.ID, &typ, &n.Title, &n.Message, &raw, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, mapErr("scan notification", err)
		}
		n.Type = model.NotificationType(typ)
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &n.Metadata); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		out = append(out, &n)
	}
	return out, mapErr("list notifications", rows.Err())
}

func (r *NotificationRepo) MarkRead(ctx context.Context, tx repository.Tx, id string) error {
	ct, err := execSQL(ctx, r.pool, tx, `UPDATE admin_notifications SET is_read = TRUE WHERE id=$1;`, id)
	if err != nil {
		return mapErr("mark notification read", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
