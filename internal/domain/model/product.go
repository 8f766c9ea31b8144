package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain"
)

type ProductType string

const (
	ProductTypeCourse    ProductType = "course"
	ProductTypeIntensive ProductType = "intensive"
	ProductTypeCommunity ProductType = "community"
	ProductTypeBot       ProductType = "bot"
)

// Product is a sellable digital item. Orders snapshot its price at creation,
// so later edits never touch existing orders.
type Product struct {
	ID                string
	Name              string
	Description       string
	Type              ProductType
	Price             decimal.Decimal
	InstallmentPrice  *decimal.Decimal
	InstallmentMonths *int
	Features          []string
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (p *Product) IsZero() bool { return p == nil || p.ID == "" }

// OffersInstallments reports whether the product can be bought in slices.
func (p *Product) OffersInstallments() bool {
	return p != nil && p.InstallmentPrice != nil && p.InstallmentPrice.IsPositive()
}

// NewProduct validates and constructs an active product.
func NewProduct(id, name string, typ ProductType, price decimal.Decimal, installmentPrice *decimal.Decimal, installmentMonths *int) (*Product, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if strings.TrimSpace(name) == "" || !price.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	switch typ {
	case ProductTypeCourse, ProductTypeIntensive, ProductTypeCommunity, ProductTypeBot:
	default:
		return nil, domain.ErrInvalidArgument
	}
	if installmentPrice != nil {
		if !installmentPrice.IsPositive() {
			return nil, domain.ErrInvalidArgument
		}
		if installmentMonths == nil || *installmentMonths < 1 {
			return nil, domain.ErrInvalidArgument
		}
	}
	now := time.Now()
	return &Product{
		ID:                id,
		Name:              strings.TrimSpace(name),
		Type:              typ,
		Price:             price,
		InstallmentPrice:  installmentPrice,
		InstallmentMonths: installmentMonths,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
