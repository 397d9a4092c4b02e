package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dhet13/finnote/internal/marketdata/domain"
	"github.com/dhet13/finnote/pkg/logger"
	"github.com/dhet13/finnote/pkg/metrics"
)

// ErrNoFxRate 既无实时汇率也无兜底汇率
var ErrNoFxRate = errors.New("no fx rate available")

// Converter 货币换算器，把任意金额归一到报告货币（默认 KRW）。
// 同币种换算是恒等变换，不做汇率查询。
// 汇率顺序：缓存 → 外部汇率源 → 配置的静态兜底汇率（标记 Stale）。
// 所有聚合口径（总额、breakdown、时间序列）必须统一经由本换算器，
// 未换算与已换算金额混加是必须防住的正确性错误
type Converter struct {
	reporting string
	cache     domain.QuoteCache
	provider  domain.FxProvider
	fallback  map[string]decimal.Decimal
	metrics   *metrics.Metrics
}

// NewConverter 创建换算器，fallback 的键为货币代码，值为对报告货币的汇率
func NewConverter(
	reporting string,
	cache domain.QuoteCache,
	provider domain.FxProvider,
	fallback map[string]decimal.Decimal,
	m *metrics.Metrics,
) *Converter {
	return &Converter{
		reporting: reporting,
		cache:     cache,
		provider:  provider,
		fallback:  fallback,
		metrics:   m,
	}
}

// ReportingCurrency 报告货币代码
func (c *Converter) ReportingCurrency() string {
	return c.reporting
}

// Convert 把 (金额, 货币) 换算为报告货币金额。stale 表示使用了静态兜底汇率
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, bool, error) {
	if currency == "" || currency == c.reporting {
		return amount, false, nil
	}

	rate, stale, err := c.Rate(ctx, currency)
	if err != nil {
		return decimal.Zero, false, err
	}
	return amount.Mul(rate), stale, nil
}

// Rate 返回 1 单位 from 货币折合报告货币的汇率
func (c *Converter) Rate(ctx context.Context, from string) (decimal.Decimal, bool, error) {
	if from == c.reporting {
		return decimal.NewFromInt(1), false, nil
	}

	if c.cache != nil {
		if fx, err := c.cache.GetRate(ctx, from, c.reporting); err == nil && fx != nil {
			return fx.Rate, false, nil
		}
	}

	if c.provider != nil {
		fx, err := c.provider.FetchRate(ctx, from, c.reporting)
		if err == nil && fx != nil {
			if c.cache != nil {
				if cacheErr := c.cache.SaveRate(ctx, fx); cacheErr != nil {
					logger.Warn(ctx, "Failed to cache fx rate", "pair", from+c.reporting, "error", cacheErr)
				}
			}
			return fx.Rate, false, nil
		}
		logger.Warn(ctx, "FX fetch failed, falling back to static rate", "from", from, "error", err)
		if c.metrics != nil {
			c.metrics.QuoteFetchFailures.WithLabelValues("fx").Inc()
		}
	}

	if rate, ok := c.fallback[from]; ok {
		if c.metrics != nil {
			c.metrics.ValuationFallbacks.WithLabelValues("static_fx").Inc()
		}
		return rate, true, nil
	}

	return decimal.Zero, false, ErrNoFxRate
}

// WarmRate 预热汇率缓存（可选的启动步骤），失败仅记录
func (c *Converter) WarmRate(ctx context.Context, from string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, _, err := c.Rate(ctx, from); err != nil {
		logger.Warn(ctx, "FX warmup failed", "from", from, "error", err)
	}
}
