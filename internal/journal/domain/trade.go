package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Side 交易方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

var (
	ErrInvalidSide     = errors.New("side must be BUY or SELL")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrTradeNotFound   = errors.New("trade not found")
)

// Trade 单笔交易，追加写入；每次插入或删除都会触发所属日志的聚合重算
type Trade struct {
	gorm.Model
	// JournalID 所属日志
	JournalID uint `gorm:"column:journal_id;index:idx_journal_date;not null" json:"journal_id"`
	// UserID 所属用户
	UserID string `gorm:"column:user_id;type:varchar(32);index;not null" json:"user_id"`
	// Ticker 证券代码
	Ticker string `gorm:"column:ticker;type:varchar(20);index;not null" json:"ticker"`
	// Side 交易方向
	Side Side `gorm:"column:side;type:varchar(4);not null" json:"side"`
	// TradeDate 交易日
	TradeDate time.Time `gorm:"column:trade_date;type:date;index:idx_journal_date;not null" json:"trade_date"`
	// PricePerShare 成交单价
	PricePerShare decimal.Decimal `gorm:"column:price_per_share;type:decimal(18,4);not null" json:"price_per_share"`
	// Quantity 成交数量，恒为正
	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(18,6);not null" json:"quantity"`
	// FeeAmount 手续费，可空；不参与均价计算
	FeeAmount *decimal.Decimal `gorm:"column:fee_amount;type:decimal(18,2)" json:"fee_amount"`
	// TaxAmount 税费，可空；不参与均价计算
	TaxAmount *decimal.Decimal `gorm:"column:tax_amount;type:decimal(18,2)" json:"tax_amount"`
}

func (Trade) TableName() string { return "stock_trades" }

// Validate 在写入边界校验交易数据，非法数据不得进入账本
func (t *Trade) Validate() error {
	if t.Side != SideBuy && t.Side != SideSell {
		return ErrInvalidSide
	}
	if !t.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if !t.PricePerShare.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

// GrossAmount 成交金额（单价 × 数量），不含费税
func (t *Trade) GrossAmount() decimal.Decimal {
	return t.PricePerShare.Mul(t.Quantity)
}
