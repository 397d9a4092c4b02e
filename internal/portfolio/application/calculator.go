// Package application 组合估值应用服务：总览、分布与时间序列，纯读路径
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	assetdomain "github.com/dhet13/finnote/internal/asset/domain"
	mdapp "github.com/dhet13/finnote/internal/marketdata/application"
	"github.com/dhet13/finnote/pkg/logger"
	"github.com/dhet13/finnote/pkg/metrics"
)

// BreakdownDimension 分布维度
type BreakdownDimension string

const (
	BySector BreakdownDimension = "sector" // 股票按行业
	ByRegion BreakdownDimension = "region" // 不动产按地区
)

// Interval 时间序列粒度
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

var (
	ErrBadDimension = fmt.Errorf("breakdown dimension must be sector or region")
	ErrBadInterval  = fmt.Errorf("interval must be daily, weekly or monthly")
)

// PriceLookup 行情查询端口
type PriceLookup interface {
	GetPrice(ctx context.Context, ticker string) (*mdapp.PriceResult, error)
}

// CurrencyConverter 货币换算端口
type CurrencyConverter interface {
	ReportingCurrency() string
	Convert(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, bool, error)
}

// HoldingValuation 单个持仓的估值明细
type HoldingValuation struct {
	AssetKey       string           `json:"asset_key"`
	AssetType      string           `json:"asset_type"`
	AssetName      string           `json:"asset_name"`
	SectorOrRegion string           `json:"sector_or_region"`
	Quantity       decimal.Decimal  `json:"quantity"`
	AvgBuyPrice    *decimal.Decimal `json:"avg_buy_price"`
	Invested       decimal.Decimal  `json:"invested"`
	MarketPrice    decimal.Decimal  `json:"market_price"`
	MarketValue    decimal.Decimal  `json:"market_value"`
	Return         decimal.Decimal  `json:"return"`
	ReturnRate     decimal.Decimal  `json:"return_rate"`
	// PriceSource 市价来源：live / last_close / snapshot / cost
	PriceSource string `json:"price_source"`
	// Stale 市价或汇率来自兜底时为 true
	Stale bool `json:"stale"`
}

// Overview 组合总览。金额统一换算为报告货币
type Overview struct {
	Currency         string             `json:"currency"`
	TotalInvested    decimal.Decimal    `json:"total_invested"`
	TotalMarketValue decimal.Decimal    `json:"total_market_value"`
	TotalReturn      decimal.Decimal    `json:"total_return"`
	ReturnRate       decimal.Decimal    `json:"return_rate"`
	Stale            bool               `json:"stale"`
	Holdings         []HoldingValuation `json:"holdings"`
}

// BreakdownSlice 分布中的一个分组
type BreakdownSlice struct {
	Label       string          `json:"label"`
	Invested    decimal.Decimal `json:"invested"`
	MarketValue decimal.Decimal `json:"market_value"`
	Weight      decimal.Decimal `json:"weight"`
}

// Breakdown 按行业/地区的组合分布
type Breakdown struct {
	Dimension BreakdownDimension `json:"dimension"`
	Currency  string             `json:"currency"`
	Total     decimal.Decimal    `json:"total"`
	Slices    []BreakdownSlice   `json:"slices"`
}

// TimeseriesPoint 时间序列上的一个采样点
type TimeseriesPoint struct {
	Date        string          `json:"date"`
	Invested    decimal.Decimal `json:"invested"`
	MarketValue decimal.Decimal `json:"market_value"`
	Return      decimal.Decimal `json:"return"`
	ReturnRate  decimal.Decimal `json:"return_rate"`
	// DailyChange 与上一采样点相比的市值变化
	DailyChange decimal.Decimal `json:"daily_change"`
}

// Timeseries 组合估值时间序列，数据源为估值快照
type Timeseries struct {
	Interval Interval          `json:"interval"`
	Currency string            `json:"currency"`
	Points   []TimeseriesPoint `json:"points"`
}

// Calculator 组合估值计算器。只读：不触发任何聚合或快照写入，
// 行情不可用时按 最近快照价 → 平均成本 逐级降档，读路径永不因行情失败而报错
type Calculator struct {
	holdings  assetdomain.HoldingRepository
	snapshots assetdomain.SnapshotRepository
	prices    PriceLookup
	converter CurrencyConverter
	metrics   *metrics.Metrics
}

// NewCalculator 创建组合估值计算器
func NewCalculator(
	holdings assetdomain.HoldingRepository,
	snapshots assetdomain.SnapshotRepository,
	prices PriceLookup,
	converter CurrencyConverter,
	m *metrics.Metrics,
) *Calculator {
	return &Calculator{
		holdings:  holdings,
		snapshots: snapshots,
		prices:    prices,
		converter: converter,
		metrics:   m,
	}
}

// Overview 计算组合总览。assetType 为空时覆盖全部资产类别
func (c *Calculator) Overview(ctx context.Context, userID string, assetType assetdomain.AssetType) (*Overview, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ValuationDuration.Observe(time.Since(start).Seconds())
		}
	}()

	holdings, err := c.holdings.List(ctx, userID, assetType)
	if err != nil {
		return nil, err
	}

	overview := &Overview{
		Currency:         c.converter.ReportingCurrency(),
		TotalInvested:    decimal.Zero,
		TotalMarketValue: decimal.Zero,
		Holdings:         []HoldingValuation{},
	}

	for _, h := range holdings {
		if h.TotalQuantity.IsZero() && h.RealizedProfit.IsZero() {
			continue
		}

		v, err := c.value(ctx, h)
		if err != nil {
			return nil, err
		}
		overview.Holdings = append(overview.Holdings, *v)
		overview.TotalInvested = overview.TotalInvested.Add(v.Invested)
		overview.TotalMarketValue = overview.TotalMarketValue.Add(v.MarketValue)
		if v.Stale {
			overview.Stale = true
		}
	}

	overview.TotalReturn = overview.TotalMarketValue.Sub(overview.TotalInvested)
	// 投入为零时收益率为 0，不做除法
	if overview.TotalInvested.IsPositive() {
		overview.ReturnRate = overview.TotalReturn.
			Div(overview.TotalInvested).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return overview, nil
}

// Breakdown 计算按行业（股票）或按地区（不动产）的市值分布
func (c *Calculator) Breakdown(ctx context.Context, userID string, dim BreakdownDimension) (*Breakdown, error) {
	var assetType assetdomain.AssetType
	switch dim {
	case BySector:
		assetType = assetdomain.AssetStock
	case ByRegion:
		assetType = assetdomain.AssetRealEstate
	default:
		return nil, ErrBadDimension
	}

	holdings, err := c.holdings.List(ctx, userID, assetType)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		invested decimal.Decimal
		value    decimal.Decimal
	}
	buckets := map[string]*bucket{}
	order := []string{}
	total := decimal.Zero

	for _, h := range holdings {
		if h.TotalQuantity.IsZero() {
			continue
		}
		v, err := c.value(ctx, h)
		if err != nil {
			return nil, err
		}

		label := h.SectorOrRegion
		if label == "" {
			label = "Unknown"
		}
		b, ok := buckets[label]
		if !ok {
			b = &bucket{invested: decimal.Zero, value: decimal.Zero}
			buckets[label] = b
			order = append(order, label)
		}
		b.invested = b.invested.Add(v.Invested)
		b.value = b.value.Add(v.MarketValue)
		total = total.Add(v.MarketValue)
	}

	result := &Breakdown{
		Dimension: dim,
		Currency:  c.converter.ReportingCurrency(),
		Total:     total,
		Slices:    []BreakdownSlice{},
	}
	for _, label := range order {
		b := buckets[label]
		slice := BreakdownSlice{Label: label, Invested: b.invested, MarketValue: b.value}
		if total.IsPositive() {
			slice.Weight = b.value.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
		}
		result.Slices = append(result.Slices, slice)
	}
	return result, nil
}

// Timeseries 从估值快照构建组合市值时间序列。
// 快照按资产逐日前向填充，再按粒度取每个桶的最后一天作为采样点
func (c *Calculator) Timeseries(ctx context.Context, userID string, interval Interval, from, to time.Time) (*Timeseries, error) {
	switch interval {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
	default:
		return nil, ErrBadInterval
	}

	snaps, err := c.snapshots.ListRange(ctx, userID, "", from, to)
	if err != nil {
		return nil, err
	}

	result := &Timeseries{
		Interval: interval,
		Currency: c.converter.ReportingCurrency(),
		Points:   []TimeseriesPoint{},
	}
	if len(snaps) == 0 {
		return result, nil
	}

	// 逐日前向填充：某资产当日无快照时沿用最近一次估值
	type valued struct {
		invested decimal.Decimal
		value    decimal.Decimal
	}
	lastByAsset := map[string]valued{}
	byDay := map[string][]*assetdomain.Snapshot{}
	for _, s := range snaps {
		byDay[s.SnapshotDate.Format("2006-01-02")] = append(byDay[s.SnapshotDate.Format("2006-01-02")], s)
	}

	firstDay := snaps[0].SnapshotDate
	lastDay := snaps[len(snaps)-1].SnapshotDate

	var dailyPoints []TimeseriesPoint
	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		for _, s := range byDay[key] {
			invested, _, err := c.converter.Convert(ctx, s.InvestedAmount, s.CurrencyCode)
			if err != nil {
				return nil, err
			}
			value, _, err := c.converter.Convert(ctx, s.MarketValue, s.CurrencyCode)
			if err != nil {
				return nil, err
			}
			lastByAsset[s.AssetKey] = valued{invested: invested, value: value}
		}

		invested := decimal.Zero
		value := decimal.Zero
		for _, v := range lastByAsset {
			invested = invested.Add(v.invested)
			value = value.Add(v.value)
		}

		point := TimeseriesPoint{
			Date:        key,
			Invested:    invested,
			MarketValue: value,
			Return:      value.Sub(invested),
		}
		if invested.IsPositive() {
			point.ReturnRate = point.Return.Div(invested).Mul(decimal.NewFromInt(100)).Round(2)
		}
		dailyPoints = append(dailyPoints, point)
	}

	sampled := sampleByInterval(dailyPoints, interval)
	prev := decimal.Zero
	for i := range sampled {
		sampled[i].DailyChange = sampled[i].MarketValue.Sub(prev)
		prev = sampled[i].MarketValue
	}
	if len(sampled) > 0 {
		sampled[0].DailyChange = decimal.Zero
	}

	result.Points = sampled
	return result, nil
}

// sampleByInterval 每个周/月桶取最后一天；daily 原样返回
func sampleByInterval(points []TimeseriesPoint, interval Interval) []TimeseriesPoint {
	if interval == IntervalDaily || len(points) == 0 {
		return points
	}

	bucketOf := func(dateStr string) string {
		d, _ := time.Parse("2006-01-02", dateStr)
		if interval == IntervalWeekly {
			year, week := d.ISOWeek()
			return fmt.Sprintf("%d-W%02d", year, week)
		}
		return d.Format("2006-01")
	}

	var sampled []TimeseriesPoint
	for i, p := range points {
		if i+1 < len(points) && bucketOf(points[i+1].Date) == bucketOf(p.Date) {
			continue
		}
		sampled = append(sampled, p)
	}
	return sampled
}

// value 对单个持仓估值并换算为报告货币。
// 市值按取价来源自带的货币换算：行情源报的货币比持仓登记货币更可信
func (c *Calculator) value(ctx context.Context, h *assetdomain.Holding) (*HoldingValuation, error) {
	price, priceCurrency, source, stale := c.resolvePrice(ctx, h)
	marketValue := h.TotalQuantity.Mul(price)

	invested, investedStale, err := c.converter.Convert(ctx, h.InvestedAmount, h.CurrencyCode)
	if err != nil {
		return nil, fmt.Errorf("convert invested for %s: %w", h.AssetKey, err)
	}
	converted, valueStale, err := c.converter.Convert(ctx, marketValue, priceCurrency)
	if err != nil {
		return nil, fmt.Errorf("convert market value for %s: %w", h.AssetKey, err)
	}

	v := &HoldingValuation{
		AssetKey:       h.AssetKey,
		AssetType:      string(h.AssetType),
		AssetName:      h.AssetName,
		SectorOrRegion: h.SectorOrRegion,
		Quantity:       h.TotalQuantity,
		AvgBuyPrice:    h.AvgBuyPrice,
		Invested:       invested,
		MarketPrice:    price,
		MarketValue:    converted,
		Return:         converted.Sub(invested),
		PriceSource:    source,
		Stale:          stale || investedStale || valueStale,
	}
	if invested.IsPositive() {
		v.ReturnRate = v.Return.Div(invested).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return v, nil
}

// resolvePrice 取估值单价：实时行情 → 最近快照价 → 平均成本。
// 第二个返回值是价格的计价货币，实时行情以行情源报的货币为准，兜底价沿用自身记录的货币
func (c *Calculator) resolvePrice(ctx context.Context, h *assetdomain.Holding) (decimal.Decimal, string, string, bool) {
	if h.AssetType == assetdomain.AssetStock && c.prices != nil {
		if result, err := c.prices.GetPrice(ctx, h.Ticker); err == nil {
			source := "live"
			if result.Stale {
				source = "last_close"
			}
			currency := result.Currency
			if currency == "" {
				currency = h.CurrencyCode
			}
			return result.Price, currency, source, result.Stale
		}
	}

	if latest, err := c.snapshots.Latest(ctx, h.UserID, h.Ref()); err == nil && latest != nil {
		if c.metrics != nil {
			c.metrics.ValuationFallbacks.WithLabelValues("latest_snapshot").Inc()
		}
		currency := latest.CurrencyCode
		if currency == "" {
			currency = h.CurrencyCode
		}
		return latest.MarketPrice, currency, "snapshot", h.AssetType == assetdomain.AssetStock
	}

	if h.AvgBuyPrice != nil {
		if c.metrics != nil {
			c.metrics.ValuationFallbacks.WithLabelValues("avg_cost").Inc()
		}
		logger.Debug(ctx, "Valuing holding at cost", "asset_key", h.AssetKey)
		return *h.AvgBuyPrice, h.CurrencyCode, "cost", true
	}
	return decimal.Zero, h.CurrencyCode, "cost", true
}
