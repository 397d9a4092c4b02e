package domain

import (
	"time"

	"github.com/shopspring/decimal"

	journaldomain "github.com/dhet13/finnote/internal/journal/domain"
)

// Holding 当前持仓投影，每个 (用户, 资产键) 恰好一行。
// 股票由日志聚合投影而来，不动产由成交记录直接投影（数量固定 1）。
// 只能整体 Upsert，身份字段创建后不可变
type Holding struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(32);uniqueIndex:idx_user_asset;not null" json:"user_id"`
	// AssetKey 多态键，如 stock:AAPL / re:123
	AssetKey  string    `gorm:"column:asset_key;type:varchar(64);uniqueIndex:idx_user_asset;not null" json:"asset_key"`
	AssetType AssetType `gorm:"column:asset_type;type:varchar(20);not null" json:"asset_type"`
	// Ticker 股票键，二选一
	Ticker string `gorm:"column:ticker;type:varchar(20)" json:"ticker,omitempty"`
	// PropertyID 不动产键，二选一
	PropertyID uint `gorm:"column:property_id" json:"property_id,omitempty"`

	// AssetName 展示名称
	AssetName string `gorm:"column:asset_name;type:varchar(255)" json:"asset_name"`
	// SectorOrRegion 分类字段：股票为行业，不动产为地区
	SectorOrRegion string `gorm:"column:sector_or_region;type:varchar(255)" json:"sector_or_region"`
	// CurrencyCode 计价货币
	CurrencyCode string `gorm:"column:currency_code;type:varchar(3);not null;default:'KRW'" json:"currency_code"`

	// TotalQuantity 当前持有数量
	TotalQuantity decimal.Decimal `gorm:"column:total_quantity;type:decimal(20,6);not null;default:0" json:"total_quantity"`
	// AvgBuyPrice 平均买入价，可空
	AvgBuyPrice *decimal.Decimal `gorm:"column:avg_buy_price;type:decimal(20,6)" json:"avg_buy_price"`
	// InvestedAmount 净投入金额
	InvestedAmount decimal.Decimal `gorm:"column:invested_amount;type:decimal(20,6);not null;default:0" json:"invested_amount"`
	// RealizedProfit 已实现收益
	RealizedProfit decimal.Decimal `gorm:"column:realized_profit;type:decimal(20,6);not null;default:0" json:"realized_profit"`
	// TotalBuyAmount 累计买入金额
	TotalBuyAmount decimal.Decimal `gorm:"column:total_buy_amount;type:decimal(20,6);not null;default:0" json:"total_buy_amount"`
	// TotalSellAmount 累计卖出金额
	TotalSellAmount decimal.Decimal `gorm:"column:total_sell_amount;type:decimal(20,6);not null;default:0" json:"total_sell_amount"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Holding) TableName() string { return "portfolio_holdings" }

// Ref 还原资产标识
func (h *Holding) Ref() AssetRef {
	if h.AssetType == AssetRealEstate {
		return RealEstateRef(h.PropertyID)
	}
	return StockRef(h.Ticker)
}

// ProjectJournal 把一个股票日志的当前聚合投影成持仓。
// invested_amount = net_qty × avg_buy_price，均价为空时按 0 兜底
func ProjectJournal(j *journaldomain.Journal, inst *journaldomain.Instrument) (*Holding, error) {
	ref := StockRef(j.Ticker)
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	h := &Holding{
		UserID:          j.UserID,
		AssetKey:        ref.Key(),
		AssetType:       AssetStock,
		Ticker:          j.Ticker,
		TotalQuantity:   j.NetQty,
		AvgBuyPrice:     j.AvgBuyPrice,
		InvestedAmount:  j.InvestedAmount(),
		TotalBuyAmount:  j.TotalBuyAmount(),
		TotalSellAmount: j.TotalSellAmount(),
		CurrencyCode:    "KRW",
		SectorOrRegion:  "Unknown",
	}
	if j.RealizedPnL != nil {
		h.RealizedProfit = *j.RealizedPnL
	}
	if inst != nil {
		h.AssetName = inst.Name
		h.CurrencyCode = inst.QuoteCurrency()
		if inst.Sector != "" {
			h.SectorOrRegion = inst.Sector
		}
	}
	return h, nil
}

// ProjectDeal 把一笔不动产成交投影成持仓，数量固定为 1，货币为 KRW
func ProjectDeal(d *journaldomain.Deal, prop *journaldomain.Property) (*Holding, error) {
	ref := RealEstateRef(d.PropertyID)
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	amount := d.AmountMain
	h := &Holding{
		UserID:         d.UserID,
		AssetKey:       ref.Key(),
		AssetType:      AssetRealEstate,
		PropertyID:     d.PropertyID,
		TotalQuantity:  decimal.NewFromInt(1),
		AvgBuyPrice:    &amount,
		InvestedAmount: amount,
		TotalBuyAmount: amount,
		CurrencyCode:   "KRW",
		SectorOrRegion: "Unknown",
	}
	if prop != nil {
		h.AssetName = prop.BuildingName
		h.SectorOrRegion = prop.Region()
	}
	return h, nil
}
