//go:build !integration

package usecase_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/adapter"
	"telegram-digital-store/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(i int) *int { return &i }

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu       sync.Mutex
	seq      int
	Created  []adapter.CreatePaymentRequest
	Refunds  []adapter.RefundRequest
	Statuses map[string]adapter.ProviderPayment
	Secret   string

	CreatePaymentFunc func(ctx context.Context, req adapter.CreatePaymentRequest) (adapter.ProviderPayment, error)
	GetPaymentFunc    func(ctx context.Context, id string) (adapter.ProviderPayment, error)
	CreateRefundFunc  func(ctx context.Context, req adapter.RefundRequest) (model.Refund, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{Statuses: map[string]adapter.ProviderPayment{}, Secret: "whsec-test"}
}

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (adapter.ProviderPayment, error) {
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.Created = append(m.Created, req)
	pp := adapter.ProviderPayment{
		ID:              fmt.Sprintf("prov-%d", m.seq),
		Status:          model.PaymentStatusPending,
		ConfirmationURL: fmt.Sprintf("https://pay.example/confirm/%d", m.seq),
		Amount:          req.Amount,
	}
	m.Statuses[pp.ID] = pp
	return pp, nil
}

func (m *MockPaymentGateway) GetPayment(ctx context.Context, id string) (adapter.ProviderPayment, error) {
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pp, ok := m.Statuses[id]
	if !ok {
		return adapter.ProviderPayment{}, &domain.GatewayError{Provider: "mock", Op: "get", StatusCode: 404, Body: "not found"}
	}
	return pp, nil
}

// SetStatus changes what the provider reports for id.
func (m *MockPaymentGateway) SetStatus(id string, st model.PaymentStatus, method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pp := m.Statuses[id]
	pp.ID, pp.Status, pp.PaymentMethod = id, st, method
	m.Statuses[id] = pp
}

func (m *MockPaymentGateway) CapturePayment(ctx context.Context, id string, amount *decimal.Decimal) (adapter.ProviderPayment, error) {
	m.SetStatus(id, model.PaymentStatusSucceeded, "")
	return m.GetPayment(ctx, id)
}

func (m *MockPaymentGateway) CancelPayment(ctx context.Context, id string) (adapter.ProviderPayment, error) {
	m.SetStatus(id, model.PaymentStatusCancelled, "")
	return m.GetPayment(ctx, id)
}

func (m *MockPaymentGateway) CreateRefund(ctx context.Context, req adapter.RefundRequest) (model.Refund, error) {
	if m.CreateRefundFunc != nil {
		return m.CreateRefundFunc(ctx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Refunds = append(m.Refunds, req)
	return model.Refund{
		ID:                fmt.Sprintf("ref-%s-%d", req.ProviderPaymentID, len(m.Refunds)),
		ProviderPaymentID: req.ProviderPaymentID,
		Status:            "succeeded",
		Amount:            req.Amount,
		CreatedAt:         time.Now(),
	}, nil
}

func (m *MockPaymentGateway) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(m.Secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (m *MockPaymentGateway) VerifyWebhookSignature(body []byte, headers http.Header) bool {
	got, err := hex.DecodeString(headers.Get("X-Mock-Signature"))
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(m.Sign(body))
	return hmac.Equal(got, want)
}

// ---- Mock AdminNotifier ----

type MockNotifier struct {
	mu   sync.Mutex
	Sent []string

	SendFunc func(ctx context.Context, text string) bool
}

var _ adapter.AdminNotifier = (*MockNotifier)(nil)

func (m *MockNotifier) SendAdminAlert(ctx context.Context, text string) bool {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, text)
	return true
}

func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// =============================
// Repositories
// =============================

// ---- Mock ProductRepository ----

type MockProductRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Product

	SaveFunc     func(ctx context.Context, tx repository.Tx, p *model.Product) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Product, error)
}

var _ repository.ProductRepository = (*MockProductRepo)(nil)

func NewMockProductRepo() *MockProductRepo {
	return &MockProductRepo{byID: map[string]*model.Product{}}
}

func (r *MockProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MockProductRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockProductRepo) List(ctx context.Context, tx repository.Tx, activeOnly bool) ([]*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Product
	for _, p := range r.byID {
		if activeOnly && !p.Active {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	byID map[string]*model.User
	byTG map[int64]*model.User

	SaveFunc func(ctx context.Context, tx repository.Tx, u *model.User) error
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{byID: map[string]*model.User{}, byTG: map[int64]*model.User{}}
}

// Save mirrors the upsert on telegram_id: the stored id wins.
func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, u)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byTG[u.TelegramID]; ok {
		u.ID = prev.ID
		u.CreatedAt = prev.CreatedAt
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	r.byID[cp.ID] = &cp
	r.byTG[cp.TelegramID] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byTG[tgID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// ---- Mock OrderRepository ----

type MockOrderRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Order

	SaveFunc        func(ctx context.Context, tx repository.Tx, o *model.Order) error
	ListOverdueFunc func(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Order, error)
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{byID: map[string]*model.Order{}}
}

func (r *MockOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, o)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.byID[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// Update holds the repo mutex across read-modify-write, like a row lock.
func (r *MockOrderRepo) Update(ctx context.Context, tx repository.Tx, id string, fn func(o *model.Order) error) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	if err := fn(&cp); err != nil {
		return nil, err
	}
	stored := cp
	r.byID[id] = &stored
	return &cp, nil
}

func (r *MockOrderRepo) List(ctx context.Context, tx repository.Tx, f repository.OrderFilter) ([]*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Order
	for _, o := range r.byID {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MockOrderRepo) ListOverdue(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Order, error) {
	if r.ListOverdueFunc != nil {
		return r.ListOverdueFunc(ctx, tx, now)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Order
	for _, o := range r.byID {
		if o.IsOverdue(now) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu         sync.Mutex
	byID       map[string]*model.Payment
	byProvider map[string]string

	SaveFunc         func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	CountByOrderFunc func(ctx context.Context, tx repository.Tx, orderID string, statuses ...model.PaymentStatus) (int, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{byID: map[string]*model.Payment{}, byProvider: map[string]string{}}
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byProvider[p.ProviderPaymentID]; ok && id != p.ID {
		return domain.ErrAlreadyExists
	}
	cp := *p
	r.byID[cp.ID] = &cp
	r.byProvider[cp.ProviderPaymentID] = cp.ID
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindByProviderID(ctx context.Context, tx repository.Tx, providerPaymentID string) (*model.Payment, error) {
	r.mu.Lock()
	id, ok := r.byProvider[providerPaymentID]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.FindByID(ctx, tx, id)
}

func (r *MockPaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paymentMethod *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	if paymentMethod != nil {
		m := *paymentMethod
		p.PaymentMethod = &m
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (r *MockPaymentRepo) AddRefunded(ctx context.Context, tx repository.Tx, id string, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	total := p.RefundedAmount.Add(amount)
	if total.GreaterThan(p.Amount) {
		return domain.ErrInvalidArgument
	}
	p.RefundedAmount = total
	return nil
}

func (r *MockPaymentRepo) List(ctx context.Context, tx repository.Tx, f repository.PaymentFilter) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.byID {
		if f.OrderID != "" && p.OrderID != f.OrderID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MockPaymentRepo) CountByOrder(ctx context.Context, tx repository.Tx, orderID string, statuses ...model.PaymentStatus) (int, error) {
	if r.CountByOrderFunc != nil {
		return r.CountByOrderFunc(ctx, tx, orderID, statuses...)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.byID {
		if p.OrderID != orderID {
			continue
		}
		for _, s := range statuses {
			if p.Status == s {
				n++
				break
			}
		}
	}
	return n, nil
}

func (r *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.byID {
		if p.Status.Terminal() || !p.CreatedAt.Before(olderThan) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Mock AdminNotificationRepository ----

type MockNotificationRepo struct {
	mu    sync.Mutex
	items []*model.AdminNotification

	SaveFunc func(ctx context.Context, tx repository.Tx, n *model.AdminNotification) error
}

var _ repository.AdminNotificationRepository = (*MockNotificationRepo)(nil)

func NewMockNotificationRepo() *MockNotificationRepo { return &MockNotificationRepo{} }

func (r *MockNotificationRepo) Save(ctx context.Context, tx repository.Tx, n *model.AdminNotification) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.items = append(r.items, &cp)
	return nil
}

func (r *MockNotificationRepo) List(ctx context.Context, tx repository.Tx, offset, limit int, unreadOnly bool) ([]*model.AdminNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.AdminNotification
	for i := len(r.items) - 1; i >= 0; i-- {
		if unreadOnly && r.items[i].IsRead {
			continue
		}
		cp := *r.items[i]
		out = append(out, &cp)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockNotificationRepo) MarkRead(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID == id {
			n.IsRead = true
			return nil
		}
	}
	return domain.ErrNotFound
}

// ByType returns the recorded notifications of typ, oldest first.
func (r *MockNotificationRepo) ByType(typ model.NotificationType) []*model.AdminNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.AdminNotification
	for _, n := range r.items {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	mu         sync.Mutex
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx provides a way to control transaction behavior during tests.
// By default it runs fn with NoTX, one transaction at a time, which stands in
// for the row locks a real transaction takes.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

// ---- Mock Click / Stats repositories ----

type MockClickRepo struct {
	mu    sync.Mutex
	items []*model.Click
}

var _ repository.ClickRepository = (*MockClickRepo)(nil)

func (r *MockClickRepo) Save(ctx context.Context, tx repository.Tx, c *model.Click) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.items = append(r.items, &cp)
	return nil
}

func (r *MockClickRepo) List(ctx context.Context, tx repository.Tx, f repository.ClickFilter) ([]*model.Click, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Click
	for i := len(r.items) - 1; i >= 0; i-- {
		c := r.items[i]
		if f.ProductID != "" && c.ProductID != f.ProductID {
			continue
		}
		if f.Action != "" && c.Action != f.Action {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

type MockStatsRepo struct {
	StoreTotals model.StoreTotals
	Top         []model.ProductSales
	Err         error
	Limits      []int
}

var _ repository.StatsRepository = (*MockStatsRepo)(nil)

func (r *MockStatsRepo) Totals(ctx context.Context, tx repository.Tx) (model.StoreTotals, error) {
	return r.StoreTotals, r.Err
}

func (r *MockStatsRepo) TopProducts(ctx context.Context, tx repository.Tx, limit int) ([]model.ProductSales, error) {
	r.Limits = append(r.Limits, limit)
	return r.Top, r.Err
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
// It writes to io.Discard to prevent logs from cluttering test output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Fixture
// =============================

// store bundles the in-memory collaborators of the lifecycle engine.
type store struct {
	products *MockProductRepo
	users    *MockUserRepo
	orders   *MockOrderRepo
	payments *MockPaymentRepo
	notes    *MockNotificationRepo
	gateway  *MockPaymentGateway
	notifier *MockNotifier
	tx       *MockTxManager
}

func newStore() *store {
	return &store{
		products: NewMockProductRepo(),
		users:    NewMockUserRepo(),
		orders:   NewMockOrderRepo(),
		payments: NewMockPaymentRepo(),
		notes:    NewMockNotificationRepo(),
		gateway:  NewMockPaymentGateway(),
		notifier: &MockNotifier{},
		tx:       NewMockTxManager(),
	}
}

// seedCourse stores the reference product: 1000.00 full or 1200.00 over 3 months.
func (s *store) seedCourse() *model.Product {
	ip := dec("1200.00")
	p, err := model.NewProduct("prod-course", "Go Course", model.ProductTypeCourse, dec("1000.00"), &ip, intPtr(3))
	if err != nil {
		panic(err)
	}
	_ = s.products.Save(context.Background(), nil, p)
	return p
}

func (s *store) seedUser() *model.User {
	u, err := model.NewUser("user-1", 42, "alice", "Alice", "Doe")
	if err != nil {
		panic(err)
	}
	_ = s.users.Save(context.Background(), nil, u)
	return u
}
