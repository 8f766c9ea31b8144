package model

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain"
)

// ActionPageView is the click action counted as a page view on the dashboard.
const ActionPageView = "page_view"

// Click is one tracked mini-app interaction. UserID is empty for visitors
// that did not present signed init data.
type Click struct {
	ID        string
	UserID    string
	ProductID string
	Page      string
	Action    string
	Metadata  map[string]any
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

func NewClick(userID, productID, page, action string, meta map[string]any, ip, userAgent string) (*Click, error) {
	page, action = strings.TrimSpace(page), strings.TrimSpace(action)
	if page == "" || action == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Click{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		UserID:    userID,
		ProductID: productID,
		Page:      page,
		Action:    action,
		Metadata:  meta,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: now,
	}, nil
}

// StoreTotals are the raw counters behind the admin dashboard.
type StoreTotals struct {
	Orders         int
	Revenue        decimal.Decimal
	Clicks         int
	UniqueVisitors int
	PageViews      int
}

// ConversionRate is orders per hundred clicks, zero without clicks.
func (t StoreTotals) ConversionRate() float64 {
	if t.Clicks == 0 {
		return 0
	}
	return float64(t.Orders) / float64(t.Clicks) * 100
}

type ProductSales struct {
	ProductID  string
	Name       string
	OrderCount int
	Revenue    decimal.Decimal
}

type Dashboard struct {
	StoreTotals
	TopProducts  []ProductSales
	RecentOrders []*Order
}
