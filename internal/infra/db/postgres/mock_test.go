//go:build !integration

package postgres

import (
	"context"
	"time"

	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
	red "telegram-digital-store/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerProductRepo mocks the database repository that the Product decorator wraps.
type mockInnerProductRepo struct {
	SaveFunc     func(ctx context.Context, tx repository.Tx, p *model.Product) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Product, error)
	ListFunc     func(ctx context.Context, tx repository.Tx, activeOnly bool) ([]*model.Product, error)
}

func (m *mockInnerProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	return m.SaveFunc(ctx, tx, p)
}
func (m *mockInnerProductRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerProductRepo) List(ctx context.Context, tx repository.Tx, activeOnly bool) ([]*model.Product, error) {
	return m.ListFunc(ctx, tx, activeOnly)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", red.Nil
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return nil }
