// Package yahoo 基于 Yahoo Finance chart v8 接口的行情与汇率源
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dhet13/finnote/internal/marketdata/domain"
)

const (
	sourceName = "yahoo"
	userAgent  = "finnote/1.0"
)

// Client Yahoo 行情客户端，同时充当 QuoteProvider 与 FxProvider
type Client struct {
	cli     *http.Client
	baseURL string
}

// New 创建客户端，timeout 约束单次外部请求，超时按降级处理
func New(timeout time.Duration) *Client {
	return &Client{
		cli:     &http.Client{Timeout: timeout},
		baseURL: "https://query2.finance.yahoo.com",
	}
}

// NewWithBaseURL 指定基地址创建客户端，测试用
func NewWithBaseURL(baseURL string, timeout time.Duration) *Client {
	return &Client{
		cli:     &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchQuote 拉取证券现价
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, domain.ErrQuoteNotFound
	}

	price, currency, asOf, err := c.fetchChart(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return &domain.Quote{
		Symbol:   symbol,
		Price:    price,
		Currency: currency,
		AsOf:     asOf,
		Source:   sourceName,
	}, nil
}

// FetchRate 拉取即期汇率，币对符号形如 USDKRW=X
func (c *Client) FetchRate(ctx context.Context, from, to string) (*domain.FxRate, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return nil, domain.ErrRateNotFound
	}
	if from == to {
		return &domain.FxRate{Base: from, Quote: to, Rate: decimal.NewFromInt(1), AsOf: time.Now()}, nil
	}

	rate, _, asOf, err := c.fetchChart(ctx, from+to+"=X")
	if err != nil {
		return nil, err
	}
	if !rate.IsPositive() {
		return nil, domain.ErrRateNotFound
	}

	return &domain.FxRate{Base: from, Quote: to, Rate: rate, AsOf: asOf}, nil
}

func (c *Client) fetchChart(ctx context.Context, symbol string) (decimal.Decimal, string, time.Time, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1m&range=1d", c.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, "", time.Time{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.cli.Do(req)
	if err != nil {
		return decimal.Zero, "", time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, "", time.Time{}, fmt.Errorf("yahoo http %d for %s", resp.StatusCode, symbol)
	}

	var raw struct {
		Chart struct {
			Result []struct {
				Meta struct {
					Currency           string  `json:"currency"`
					RegularMarketPrice float64 `json:"regularMarketPrice"`
					RegularMarketTime  int64   `json:"regularMarketTime"`
				} `json:"meta"`
			} `json:"result"`
		} `json:"chart"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return decimal.Zero, "", time.Time{}, err
	}
	if len(raw.Chart.Result) == 0 {
		return decimal.Zero, "", time.Time{}, domain.ErrQuoteNotFound
	}

	meta := raw.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return decimal.Zero, "", time.Time{}, domain.ErrQuoteNotFound
	}

	asOf := time.Unix(meta.RegularMarketTime, 0)
	if meta.RegularMarketTime == 0 {
		asOf = time.Now()
	}

	return decimal.NewFromFloat(meta.RegularMarketPrice), meta.Currency, asOf, nil
}
