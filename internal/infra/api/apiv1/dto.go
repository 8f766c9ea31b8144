package apiv1

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain/model"
)

// Amounts travel as fixed two-decimal strings so clients never see float
// rounding.

type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Type              string    `json:"type"`
	Price             string    `json:"price"`
	InstallmentPrice  *string   `json:"installment_price,omitempty"`
	InstallmentMonths *int      `json:"installment_months,omitempty"`
	Features          []string  `json:"features"`
	Active            bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}

type Order struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	ProductID         string     `json:"product_id"`
	PaymentType       string     `json:"payment_type"`
	Status            string     `json:"status"`
	TotalAmount       string     `json:"total_amount"`
	PaidAmount        string     `json:"paid_amount"`
	RemainingAmount   string     `json:"remaining_amount"`
	InstallmentMonths *int       `json:"installment_months,omitempty"`
	NextPaymentDate   *time.Time `json:"next_payment_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type Payment struct {
	ID                string    `json:"id"`
	OrderID           string    `json:"order_id"`
	Provider          string    `json:"provider"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	Amount            string    `json:"amount"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	PaymentMethod     *string   `json:"payment_method,omitempty"`
	ConfirmationURL   *string   `json:"confirmation_url,omitempty"`
	IsInstallment     bool      `json:"is_installment"`
	InstallmentNumber *int      `json:"installment_number,omitempty"`
	RefundedAmount    string    `json:"refunded_amount"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Notification struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
}

type Refund struct {
	ID                string `json:"id"`
	ProviderPaymentID string `json:"provider_payment_id"`
	Status            string `json:"status"`
	Amount            string `json:"amount"`
}

type Click struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	ProductID string         `json:"product_id,omitempty"`
	Page      string         `json:"page"`
	Action    string         `json:"action"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type ProductSales struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	OrderCount int    `json:"order_count"`
	Revenue    string `json:"revenue"`
}

type Dashboard struct {
	TotalOrders    int            `json:"total_orders"`
	TotalRevenue   string         `json:"total_revenue"`
	TotalClicks    int            `json:"total_clicks"`
	UniqueVisitors int            `json:"unique_visitors"`
	TotalPageViews int            `json:"total_page_views"`
	ConversionRate float64        `json:"conversion_rate"`
	TopProducts    []ProductSales `json:"top_products"`
	RecentOrders   []Order        `json:"recent_orders"`
}

// ---- requests ----

type createOrderRequest struct {
	ProductID         string `json:"product_id" validate:"required"`
	PaymentType       string `json:"payment_type" validate:"required,oneof=full installment"`
	InstallmentMonths *int   `json:"installment_months" validate:"omitempty,min=1,max=36"`
}

type createPaymentRequest struct {
	OrderID     string `json:"order_id" validate:"required"`
	ReturnURL   string `json:"return_url" validate:"omitempty,url"`
	SourceToken string `json:"source_token"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid cancelled refunded"`
}

type refundRequest struct {
	Amount *string `json:"amount" validate:"omitempty,numeric"`
}

type productRequest struct {
	Name              string   `json:"name" validate:"required,max=200"`
	Description       string   `json:"description"`
	Type              string   `json:"type" validate:"required,oneof=course intensive community bot"`
	Price             string   `json:"price" validate:"required,numeric"`
	InstallmentPrice  *string  `json:"installment_price" validate:"omitempty,numeric"`
	InstallmentMonths *int     `json:"installment_months" validate:"omitempty,min=1,max=36"`
	Features          []string `json:"features"`
}

type clickRequest struct {
	ProductID string         `json:"product_id"`
	Page      string         `json:"page" validate:"required,max=100"`
	Action    string         `json:"action" validate:"required,max=100"`
	Metadata  map[string]any `json:"metadata"`
}

type setActiveRequest struct {
	Active *bool `json:"is_active" validate:"required"`
}

// ---- mappers ----

func amount(d decimal.Decimal) string { return d.StringFixed(2) }

func toProduct(p *model.Product) Product {
	out := Product{
		ID:                p.ID,
		Name:              p.Name,
		Description:       p.Description,
		Type:              string(p.Type),
		Price:             amount(p.Price),
		InstallmentMonths: p.InstallmentMonths,
		Features:          p.Features,
		Active:            p.Active,
		CreatedAt:         p.CreatedAt,
	}
	if p.InstallmentPrice != nil {
		s := amount(*p.InstallmentPrice)
		out.InstallmentPrice = &s
	}
	if out.Features == nil {
		out.Features = []string{}
	}
	return out
}

func toOrder(o *model.Order) Order {
	return Order{
		ID:                o.ID,
		UserID:            o.UserID,
		ProductID:         o.ProductID,
		PaymentType:       string(o.PaymentType),
		Status:            string(o.Status),
		TotalAmount:       amount(o.TotalAmount),
		PaidAmount:        amount(o.PaidAmount),
		RemainingAmount:   amount(o.Remaining()),
		InstallmentMonths: o.InstallmentMonths,
		NextPaymentDate:   o.NextPaymentDate,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func toPayment(p *model.Payment) Payment {
	return Payment{
		ID:                p.ID,
		OrderID:           p.OrderID,
		Provider:          p.Provider,
		ProviderPaymentID: p.ProviderPaymentID,
		Amount:            amount(p.Amount),
		Currency:          p.Currency,
		Status:            string(p.Status),
		PaymentMethod:     p.PaymentMethod,
		ConfirmationURL:   p.ConfirmationURL,
		IsInstallment:     p.IsInstallment,
		InstallmentNumber: p.InstallmentNumber,
		RefundedAmount:    amount(p.RefundedAmount),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func toNotification(n *model.AdminNotification) Notification {
	return Notification{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Metadata:  n.Metadata,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func toClick(c *model.Click) Click {
	return Click{
		ID:        c.ID,
		UserID:    c.UserID,
		ProductID: c.ProductID,
		Page:      c.Page,
		Action:    c.Action,
		Metadata:  c.Metadata,
		IPAddress: c.IPAddress,
		UserAgent: c.UserAgent,
		CreatedAt: c.CreatedAt,
	}
}

func toDashboard(d *model.Dashboard) Dashboard {
	return Dashboard{
		TotalOrders:    d.Orders,
		TotalRevenue:   amount(d.Revenue),
		TotalClicks:    d.Clicks,
		UniqueVisitors: d.UniqueVisitors,
		TotalPageViews: d.PageViews,
		ConversionRate: math.Round(d.ConversionRate()*100) / 100,
		TopProducts: mapSlice(d.TopProducts, func(s model.ProductSales) ProductSales {
			return ProductSales{ProductID: s.ProductID, Name: s.Name, OrderCount: s.OrderCount, Revenue: amount(s.Revenue)}
		}),
		RecentOrders: mapSlice(d.RecentOrders, toOrder),
	}
}

func mapSlice[T, U any](in []T, fn func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
