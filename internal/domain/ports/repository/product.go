package repository

import (
	"context"

	"telegram-digital-store/internal/domain/model"
)

type ProductRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Product) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Product, error)
	List(ctx context.Context, tx Tx, activeOnly bool) ([]*model.Product, error)
}
