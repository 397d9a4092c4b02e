// Package domain 交易日志服务的领域模型：证券、交易账本与聚合重算
package domain

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status 日志生命周期状态
type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
)

var ErrJournalNotFound = errors.New("journal not found")

// 均价与收益率的存储精度，对齐 decimal(18,4) / decimal(8,2) 列定义
const (
	avgPriceScale   = 4
	pnlScale        = 2
	returnRateScale = 2
)

// Journal 一个 (用户, 证券) 的交易日志聚合根。
// 所有聚合字段都是其交易集合的确定性函数，只能通过 Recalculate 重建，禁止手工修改。
type Journal struct {
	gorm.Model
	// UserID 所属用户
	UserID string `gorm:"column:user_id;type:varchar(32);uniqueIndex:idx_user_ticker;not null" json:"user_id"`
	// Ticker 证券代码
	Ticker string `gorm:"column:ticker;type:varchar(20);uniqueIndex:idx_user_ticker;not null" json:"ticker"`

	// TargetPrice 目标价（计划字段，不参与聚合计算）
	TargetPrice decimal.Decimal `gorm:"column:target_price;type:decimal(18,4);not null;default:0" json:"target_price"`
	// StopPrice 止损价（计划字段，不参与聚合计算）
	StopPrice decimal.Decimal `gorm:"column:stop_price;type:decimal(18,4);not null;default:0" json:"stop_price"`

	// TotalBuyQty 累计买入数量
	TotalBuyQty decimal.Decimal `gorm:"column:total_buy_qty;type:decimal(18,6);not null;default:0" json:"total_buy_qty"`
	// TotalSellQty 累计卖出数量
	TotalSellQty decimal.Decimal `gorm:"column:total_sell_qty;type:decimal(18,6);not null;default:0" json:"total_sell_qty"`
	// AvgBuyPrice 加权平均买入价，无买入时为空
	AvgBuyPrice *decimal.Decimal `gorm:"column:avg_buy_price;type:decimal(18,4)" json:"avg_buy_price"`
	// AvgSellPrice 加权平均卖出价，无卖出时为空
	AvgSellPrice *decimal.Decimal `gorm:"column:avg_sell_price;type:decimal(18,4)" json:"avg_sell_price"`
	// NetQty 净持仓数量（买入 − 卖出），超卖时可为负
	NetQty decimal.Decimal `gorm:"column:net_qty;type:decimal(18,6);not null;default:0" json:"net_qty"`
	// RealizedPnL 已实现损益，仅在 completed 状态下有值
	RealizedPnL *decimal.Decimal `gorm:"column:realized_pnl;type:decimal(18,2)" json:"realized_pnl"`
	// ReturnRate 收益率（%），仅在 completed 状态下有值
	ReturnRate *decimal.Decimal `gorm:"column:return_rate;type:decimal(8,2)" json:"return_rate"`
	// Status 生命周期状态
	Status Status `gorm:"column:status;type:varchar(10);not null;default:'open'" json:"status"`
}

func (Journal) TableName() string { return "stock_journals" }

// Aggregates 由交易集合折叠出的全部聚合字段
type Aggregates struct {
	TotalBuyQty  decimal.Decimal
	TotalSellQty decimal.Decimal
	NetQty       decimal.Decimal
	AvgBuyPrice  *decimal.Decimal
	AvgSellPrice *decimal.Decimal
	RealizedPnL  *decimal.Decimal
	ReturnRate   *decimal.Decimal
	Status       Status
}

// Aggregate 对一个账本的完整交易集合做确定性折叠。
// 交易集合无序；空集合返回全零/空聚合且状态为 open。
//
// 已实现损益使用平均成本近似：(平均卖价 − 平均买价) × 总买入量，
// 假设全部买入量最终按平均卖价卖出，而非逐笔 FIFO/LIFO 配对。
// 这是有意保留的简化口径，不要当作缺陷修正。
func Aggregate(trades []Trade) Aggregates {
	totalBuyQty := decimal.Zero
	totalBuyValue := decimal.Zero
	totalSellQty := decimal.Zero
	totalSellValue := decimal.Zero

	for _, t := range trades {
		switch t.Side {
		case SideBuy:
			totalBuyQty = totalBuyQty.Add(t.Quantity)
			totalBuyValue = totalBuyValue.Add(t.GrossAmount())
		case SideSell:
			totalSellQty = totalSellQty.Add(t.Quantity)
			totalSellValue = totalSellValue.Add(t.GrossAmount())
		}
	}

	agg := Aggregates{
		TotalBuyQty:  totalBuyQty,
		TotalSellQty: totalSellQty,
		NetQty:       totalBuyQty.Sub(totalSellQty),
		Status:       StatusOpen,
	}

	if totalBuyQty.IsPositive() {
		p := totalBuyValue.DivRound(totalBuyQty, avgPriceScale)
		agg.AvgBuyPrice = &p
	}
	if totalSellQty.IsPositive() {
		p := totalSellValue.DivRound(totalSellQty, avgPriceScale)
		agg.AvgSellPrice = &p
	}

	// 净持仓归零且有过买入才算完成；之后若继续交易，状态会被重算回 open
	if agg.NetQty.IsZero() && totalBuyQty.IsPositive() {
		agg.Status = StatusCompleted

		if agg.AvgBuyPrice != nil && agg.AvgSellPrice != nil {
			pnl := agg.AvgSellPrice.Sub(*agg.AvgBuyPrice).Mul(totalBuyQty).Round(pnlScale)
			agg.RealizedPnL = &pnl

			if totalBuyValue.IsPositive() {
				rate := pnl.Div(totalBuyValue).Mul(decimal.NewFromInt(100)).Round(returnRateScale)
				agg.ReturnRate = &rate
			}
		}
	}

	return agg
}

// Apply 将折叠结果写入聚合字段
func (j *Journal) Apply(agg Aggregates) {
	j.TotalBuyQty = agg.TotalBuyQty
	j.TotalSellQty = agg.TotalSellQty
	j.NetQty = agg.NetQty
	j.AvgBuyPrice = agg.AvgBuyPrice
	j.AvgSellPrice = agg.AvgSellPrice
	j.RealizedPnL = agg.RealizedPnL
	j.ReturnRate = agg.ReturnRate
	j.Status = agg.Status
}

// InvestedAmount 当前净投入金额（净持仓 × 平均买入价），均价为空时为 0
func (j *Journal) InvestedAmount() decimal.Decimal {
	if j.AvgBuyPrice == nil {
		return decimal.Zero
	}
	return j.NetQty.Mul(*j.AvgBuyPrice)
}

// TotalBuyAmount 累计买入金额
func (j *Journal) TotalBuyAmount() decimal.Decimal {
	if j.AvgBuyPrice == nil {
		return decimal.Zero
	}
	return j.TotalBuyQty.Mul(*j.AvgBuyPrice)
}

// TotalSellAmount 累计卖出金额
func (j *Journal) TotalSellAmount() decimal.Decimal {
	if j.AvgSellPrice == nil {
		return decimal.Zero
	}
	return j.TotalSellQty.Mul(*j.AvgSellPrice)
}
