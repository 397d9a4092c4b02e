// Package application 行情应用服务：带缓存与兜底的价格查询、货币换算
package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	journaldomain "github.com/dhet13/finnote/internal/journal/domain"
	"github.com/dhet13/finnote/internal/marketdata/domain"
	"github.com/dhet13/finnote/pkg/logger"
	"github.com/dhet13/finnote/pkg/metrics"
)

// PriceResult 价格查询结果。Stale 表示价格来自兜底（最近收盘价），而非实时行情
type PriceResult struct {
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Stale    bool            `json:"stale"`
}

// PriceService 价格查询服务。
// 取价顺序：缓存 → 外部行情源 → 证券最近收盘价兜底；外部源失败绝不向读路径透传
type PriceService struct {
	cache       domain.QuoteCache
	provider    domain.QuoteProvider
	instruments journaldomain.InstrumentRepository
	metrics     *metrics.Metrics
}

// NewPriceService 创建价格查询服务
func NewPriceService(
	cache domain.QuoteCache,
	provider domain.QuoteProvider,
	instruments journaldomain.InstrumentRepository,
	m *metrics.Metrics,
) *PriceService {
	return &PriceService{
		cache:       cache,
		provider:    provider,
		instruments: instruments,
		metrics:     m,
	}
}

// GetPrice 查询证券现价，行情源不可用时回退到最近收盘价并标记 Stale
func (s *PriceService) GetPrice(ctx context.Context, ticker string) (*PriceResult, error) {
	if s.cache != nil {
		if q, err := s.cache.GetQuote(ctx, ticker); err == nil && q != nil {
			return &PriceResult{Price: q.Price, Currency: q.Currency, Stale: false}, nil
		}
	}

	q, err := s.provider.FetchQuote(ctx, ticker)
	if err == nil && q != nil {
		if s.cache != nil {
			if cacheErr := s.cache.SaveQuote(ctx, q); cacheErr != nil {
				logger.Warn(ctx, "Failed to cache quote", "ticker", ticker, "error", cacheErr)
			}
		}
		s.syncInstrument(ctx, ticker, q)
		return &PriceResult{Price: q.Price, Currency: q.Currency, Stale: false}, nil
	}

	logger.Warn(ctx, "Quote fetch failed, falling back to last close", "ticker", ticker, "error", err)
	if s.metrics != nil {
		s.metrics.QuoteFetchFailures.WithLabelValues("yahoo").Inc()
	}

	inst, instErr := s.instruments.Get(ctx, ticker)
	if instErr == nil && inst != nil && inst.LastClosePrice != nil {
		if s.metrics != nil {
			s.metrics.ValuationFallbacks.WithLabelValues("last_close").Inc()
		}
		return &PriceResult{Price: *inst.LastClosePrice, Currency: inst.QuoteCurrency(), Stale: true}, nil
	}

	return nil, fmt.Errorf("no price available for %s: %w", ticker, domain.ErrQuoteNotFound)
}

// syncInstrument 把行情源返回的计价货币回写到证券登记信息。
// 懒创建的证券只有代码和名称，货币在首次实时行情时补全；回写失败只记录不影响取价
func (s *PriceService) syncInstrument(ctx context.Context, ticker string, q *domain.Quote) {
	if q.Currency == "" {
		return
	}
	inst, err := s.instruments.Get(ctx, ticker)
	if err != nil || inst == nil {
		return
	}
	if !inst.Enrich("", "", q.Currency) {
		return
	}
	if err := s.instruments.Save(ctx, inst); err != nil {
		logger.Warn(ctx, "Failed to sync instrument currency",
			"ticker", ticker, "currency", q.Currency, "error", err)
	}
}

// RefreshLastClose 把实时行情回写为证券的最近收盘价（mark-to-market 任务调用）
func (s *PriceService) RefreshLastClose(ctx context.Context, ticker string, price decimal.Decimal) error {
	inst, err := s.instruments.Get(ctx, ticker)
	if err != nil || inst == nil {
		return err
	}
	inst.LastClosePrice = &price
	return s.instruments.Save(ctx, inst)
}
