// Package metrics 提供 Prometheus helper，包含核心业务 counter/gauge/histogram
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dhet13/finnote/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数（按方法、路由、状态码）
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 写入路径处理的交易数（按结果）
	TradesProcessed *prometheus.CounterVec
	// 写入的估值快照数
	SnapshotsWritten prometheus.Counter
	// 行情拉取失败数（按来源）
	QuoteFetchFailures *prometheus.CounterVec
	// 估值使用兜底价格/汇率的次数（按类型）
	ValuationFallbacks *prometheus.CounterVec
	// 读路径估值请求耗时
	ValuationDuration prometheus.Histogram

	registry *prometheus.Registry
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finnote",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "finnote",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		TradesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finnote",
			Subsystem: serviceName,
			Name:      "trades_processed_total",
			Help:      "Trades processed by the write path",
		}, []string{"result"}),
		SnapshotsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "finnote",
			Subsystem: serviceName,
			Name:      "snapshots_written_total",
			Help:      "Valuation snapshots upserted",
		}),
		QuoteFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finnote",
			Subsystem: serviceName,
			Name:      "quote_fetch_failures_total",
			Help:      "External quote fetch failures",
		}, []string{"source"}),
		ValuationFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finnote",
			Subsystem: serviceName,
			Name:      "valuation_fallbacks_total",
			Help:      "Valuations served from fallback price or fx rate",
		}, []string{"kind"}),
		ValuationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "finnote",
			Subsystem: serviceName,
			Name:      "valuation_duration_seconds",
			Help:      "Read-path valuation latency",
			Buckets:   prometheus.DefBuckets,
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TradesProcessed,
		m.SnapshotsWritten,
		m.QuoteFetchFailures,
		m.ValuationFallbacks,
		m.ValuationDuration,
	)

	return m
}

// ExposeHTTP 启动独立的指标 HTTP 服务
func (m *Metrics) ExposeHTTP(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Metrics server starting", "addr", addr, "path", path)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error(context.Background(), "Metrics server exited", "error", err)
	}
}
