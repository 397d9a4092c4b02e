package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot 某日的估值快照，每个 (用户, 资产键, 日期) 至多一行。
// 同日重复生成按 Upsert 覆盖，不产生重复行；这是所有图表时间序列的数据源
type Snapshot struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(32);uniqueIndex:idx_user_asset_date;index:idx_user_date" json:"user_id"`
	// AssetKey 多态键
	AssetKey  string    `gorm:"column:asset_key;type:varchar(64);uniqueIndex:idx_user_asset_date;not null" json:"asset_key"`
	AssetType AssetType `gorm:"column:asset_type;type:varchar(20);not null" json:"asset_type"`
	// SnapshotDate 快照日期
	SnapshotDate time.Time `gorm:"column:snapshot_date;type:date;uniqueIndex:idx_user_asset_date;index:idx_user_date;not null" json:"snapshot_date"`

	// Quantity 快照时点持有数量
	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(20,6);not null" json:"quantity"`
	// AvgBuyPrice 快照时点平均买入价，可空
	AvgBuyPrice *decimal.Decimal `gorm:"column:avg_buy_price;type:decimal(20,6)" json:"avg_buy_price"`
	// InvestedAmount 快照时点净投入金额
	InvestedAmount decimal.Decimal `gorm:"column:invested_amount;type:decimal(20,6);not null;default:0" json:"invested_amount"`
	// MarketPrice 市场单价
	MarketPrice decimal.Decimal `gorm:"column:market_price;type:decimal(20,6);not null" json:"market_price"`
	// MarketValue 市值 = 数量 × 市场单价
	MarketValue decimal.Decimal `gorm:"column:market_value;type:decimal(20,6);not null" json:"market_value"`
	// CurrencyCode 计价货币
	CurrencyCode string `gorm:"column:currency_code;type:varchar(3);not null;default:'KRW'" json:"currency_code"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Snapshot) TableName() string { return "portfolio_snapshots" }

// SnapshotOf 以给定市场单价为一个持仓生成某日的快照
func SnapshotOf(h *Holding, day time.Time, marketPrice decimal.Decimal) *Snapshot {
	return &Snapshot{
		UserID:         h.UserID,
		AssetKey:       h.AssetKey,
		AssetType:      h.AssetType,
		SnapshotDate:   truncateToDay(day),
		Quantity:       h.TotalQuantity,
		AvgBuyPrice:    h.AvgBuyPrice,
		InvestedAmount: h.InvestedAmount,
		MarketPrice:    marketPrice,
		MarketValue:    h.TotalQuantity.Mul(marketPrice),
		CurrencyCode:   h.CurrencyCode,
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
