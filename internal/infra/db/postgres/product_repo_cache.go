package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
	"telegram-digital-store/internal/infra/metrics"
	red "telegram-digital-store/internal/infra/redis"
)

var _ repository.ProductRepository = (*productRepoCacheDecorator)(nil)

const (
	productKeyPrefix  = "product:"
	productListActive = "products:active"
	productListAll    = "products:all"
)

// productRepoCacheDecorator caches catalog reads in Redis. Reads inside a
// transaction always go to the database so row locks are honoured.
type productRepoCacheDecorator struct {
	inner repository.ProductRepository
	cache red.RedisClient
	ttl   time.Duration
	log   zerolog.Logger
}

func NewProductRepoCacheDecorator(inner repository.ProductRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.ProductRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &productRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger.With().Str("component", "product_cache").Logger(),
	}
}

func (d *productRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	if err := d.inner.Save(ctx, tx, p); err != nil {
		return err
	}
	if err := d.cache.Del(ctx, productKeyPrefix+p.ID, productListActive, productListAll); err != nil {
		d.log.Warn().Err(err).Str("product_id", p.ID).Msg("cache invalidation failed")
	}
	return nil
}

func (d *productRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	if _, inTx := tx.(pgx.Tx); inTx {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := productKeyPrefix + id
	var cached model.Product
	if d.get(ctx, "product", key, &cached) {
		return &cached, nil
	}

	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.set(ctx, key, p)
	return p, nil
}

func (d *productRepoCacheDecorator) List(ctx context.Context, tx repository.Tx, activeOnly bool) ([]*model.Product, error) {
	if _, inTx := tx.(pgx.Tx); inTx {
		return d.inner.List(ctx, tx, activeOnly)
	}
	key := productListAll
	if activeOnly {
		key = productListActive
	}
	var cached []*model.Product
	if d.get(ctx, "product_list", key, &cached) {
		return cached, nil
	}

	list, err := d.inner.List(ctx, tx, activeOnly)
	if err != nil {
		return nil, err
	}
	if len(list) > 0 {
		d.set(ctx, key, list)
	}
	return list, nil
}

func (d *productRepoCacheDecorator) get(ctx context.Context, cacheName, key string, dst any) bool {
	val, err := d.cache.Get(ctx, key)
	if err == nil && json.Unmarshal([]byte(val), dst) == nil {
		metrics.IncCacheRequest(cacheName, "hit")
		return true
	}
	if err != nil && !errors.Is(err, red.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	metrics.IncCacheRequest(cacheName, "miss")
	return false
}

func (d *productRepoCacheDecorator) set(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
