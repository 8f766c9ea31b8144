// File: internal/usecase/product_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
)

// Compile-time check
var _ ProductUseCase = (*productUC)(nil)

// ProductInput is the admin editable part of a product.
type ProductInput struct {
	Name              string
	Description       string
	Type              model.ProductType
	Price             decimal.Decimal
	InstallmentPrice  *decimal.Decimal
	InstallmentMonths *int
	Features          []string
}

type ProductUseCase interface {
	ListActive(ctx context.Context) ([]*model.Product, error)
	ListAll(ctx context.Context) ([]*model.Product, error)
	// Get returns an active product; inactive ones are reported as not found.
	Get(ctx context.Context, id string) (*model.Product, error)
	// GetAny returns the product whatever its state (admin).
	GetAny(ctx context.Context, id string) (*model.Product, error)
	Create(ctx context.Context, in ProductInput) (*model.Product, error)
	// Update replaces the editable fields. Existing orders keep their snapshot.
	Update(ctx context.Context, id string, in ProductInput) (*model.Product, error)
	SetActive(ctx context.Context, id string, active bool) (*model.Product, error)
}

type productUC struct {
	products repository.ProductRepository
	log      *zerolog.Logger
}

func NewProductUseCase(products repository.ProductRepository, logger *zerolog.Logger) *productUC {
	l := logger.With().Str("component", "product_uc").Logger()
	return &productUC{products: products, log: &l}
}

func (u *productUC) ListActive(ctx context.Context) ([]*model.Product, error) {
	return u.products.List(ctx, repository.NoTX, true)
}

func (u *productUC) ListAll(ctx context.Context) ([]*model.Product, error) {
	return u.products.List(ctx, repository.NoTX, false)
}

func (u *productUC) Get(ctx context.Context, id string) (*model.Product, error) {
	p, err := u.products.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, domain.ErrProductInactive
	}
	return p, nil
}

func (u *productUC) GetAny(ctx context.Context, id string) (*model.Product, error) {
	return u.products.FindByID(ctx, repository.NoTX, id)
}

func (u *productUC) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	p, err := model.NewProduct("", in.Name, in.Type, in.Price, in.InstallmentPrice, in.InstallmentMonths)
	if err != nil {
		return nil, err
	}
	p.Description = strings.TrimSpace(in.Description)
	p.Features = in.Features
	if err := u.products.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	u.log.Info().Str("product_id", p.ID).Str("name", p.Name).Msg("product created")
	return p, nil
}

func (u *productUC) Update(ctx context.Context, id string, in ProductInput) (*model.Product, error) {
	cur, err := u.products.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	// Run the constructor for validation only.
	next, err := model.NewProduct(cur.ID, in.Name, in.Type, in.Price, in.InstallmentPrice, in.InstallmentMonths)
	if err != nil {
		return nil, err
	}
	next.Description = strings.TrimSpace(in.Description)
	next.Features = in.Features
	next.Active = cur.Active
	next.CreatedAt = cur.CreatedAt
	if err := u.products.Save(ctx, repository.NoTX, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (u *productUC) SetActive(ctx context.Context, id string, active bool) (*model.Product, error) {
	p, err := u.products.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if p.Active == active {
		return p, nil
	}
	p.Active = active
	p.UpdatedAt = time.Now()
	if err := u.products.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	u.log.Info().Str("product_id", p.ID).Bool("active", active).Msg("product visibility changed")
	return p, nil
}
