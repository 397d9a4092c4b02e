package redis

import (
	"context"
	"time"

	"github.com/dhet13/finnote/internal/marketdata/domain"
	"github.com/dhet13/finnote/pkg/cache"
)

const (
	quotePrefix = "marketdata:quote:"
	ratePrefix  = "marketdata:fx:"
)

// QuoteCache 基于 Redis 的行情/汇率缓存读模型
type QuoteCache struct {
	cache    *cache.RedisCache
	quoteTTL time.Duration
	rateTTL  time.Duration
}

// NewQuoteCache 创建行情缓存
func NewQuoteCache(c *cache.RedisCache, quoteTTL, rateTTL time.Duration) *QuoteCache {
	return &QuoteCache{
		cache:    c,
		quoteTTL: quoteTTL,
		rateTTL:  rateTTL,
	}
}

func (r *QuoteCache) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	var q domain.Quote
	ok, err := r.cache.GetJSON(ctx, quotePrefix+symbol, &q)
	if err != nil || !ok {
		return nil, err
	}
	return &q, nil
}

func (r *QuoteCache) SaveQuote(ctx context.Context, q *domain.Quote) error {
	if q == nil {
		return nil
	}
	return r.cache.SetJSON(ctx, quotePrefix+q.Symbol, q, r.quoteTTL)
}

func (r *QuoteCache) GetRate(ctx context.Context, from, to string) (*domain.FxRate, error) {
	var fx domain.FxRate
	ok, err := r.cache.GetJSON(ctx, ratePrefix+from+to, &fx)
	if err != nil || !ok {
		return nil, err
	}
	return &fx, nil
}

func (r *QuoteCache) SaveRate(ctx context.Context, fx *domain.FxRate) error {
	if fx == nil {
		return nil
	}
	return r.cache.SetJSON(ctx, ratePrefix+fx.Base+fx.Quote, fx, r.rateTTL)
}
