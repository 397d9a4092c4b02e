// Package domain 行情数据的领域模型：报价、汇率与数据源端口
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrQuoteNotFound = errors.New("quote not found")
	ErrRateNotFound  = errors.New("fx rate not found")
)

// Quote 某证券的现价
type Quote struct {
	// Symbol 证券代码
	Symbol string `json:"symbol"`
	// Price 现价，以证券自身计价货币计
	Price decimal.Decimal `json:"price"`
	// Currency 计价货币
	Currency string `json:"currency"`
	// AsOf 行情时间
	AsOf time.Time `json:"as_of"`
	// Source 数据来源
	Source string `json:"source"`
}

// FxRate 即期汇率，1 Base = Rate Quote
type FxRate struct {
	Base  string          `json:"base"`
	Quote string          `json:"quote"`
	Rate  decimal.Decimal `json:"rate"`
	AsOf  time.Time       `json:"as_of"`
}

// QuoteProvider 外部行情源。调用方必须优雅降级：失败或超时不向估值读路径透传
type QuoteProvider interface {
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
}

// FxProvider 外部汇率源
type FxProvider interface {
	FetchRate(ctx context.Context, from, to string) (*FxRate, error)
}

// QuoteCache 行情缓存读模型，miss 时返回 nil 而非错误
type QuoteCache interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	SaveQuote(ctx context.Context, q *Quote) error
	GetRate(ctx context.Context, from, to string) (*FxRate, error)
	SaveRate(ctx context.Context, r *FxRate) error
}
