package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInstrumentNotFound = errors.New("instrument not found")

// Instrument 证券基础信息，首次交易时懒创建
type Instrument struct {
	// Ticker 证券代码，不可变主键
	Ticker string `gorm:"column:ticker;type:varchar(20);primaryKey" json:"ticker"`
	// Name 证券名称
	Name string `gorm:"column:name;type:varchar(255);not null" json:"name"`
	// Sector 所属行业
	Sector string `gorm:"column:sector;type:varchar(100)" json:"sector"`
	// Exchange 交易所
	Exchange string `gorm:"column:exchange;type:varchar(50)" json:"exchange"`
	// Currency 计价货币
	Currency string `gorm:"column:currency;type:varchar(10)" json:"currency"`
	// LastClosePrice 最近收盘价，行情源不可用时作为兜底价格
	LastClosePrice *decimal.Decimal `gorm:"column:last_close_price;type:decimal(18,4)" json:"last_close_price"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Instrument) TableName() string { return "instruments" }

// QuoteCurrency 返回计价货币，未知时按 KRW 处理
func (i *Instrument) QuoteCurrency() string {
	if i.Currency == "" {
		return "KRW"
	}
	return i.Currency
}

// Enrich 补全登记信息。懒创建的证券只有代码和名称，
// 名称、行业与计价货币由后续交易录入或实时行情回填；有变化时返回 true
func (i *Instrument) Enrich(name, sector, currency string) bool {
	changed := false
	if name != "" && i.Name != name {
		i.Name = name
		changed = true
	}
	if sector != "" && i.Sector != sector {
		i.Sector = sector
		changed = true
	}
	if currency != "" && i.Currency != currency {
		i.Currency = currency
		changed = true
	}
	return changed
}
