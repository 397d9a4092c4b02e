// Package http 组合估值模块的 HTTP 接口
package http

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	assetdomain "github.com/dhet13/finnote/internal/asset/domain"
	journalapp "github.com/dhet13/finnote/internal/journal/application"
	"github.com/dhet13/finnote/internal/portfolio/application"
	"github.com/dhet13/finnote/pkg/logger"
	"github.com/dhet13/finnote/pkg/response"
)

const dateLayout = "2006-01-02"

// 时间序列默认回看窗口（天）
const defaultLookbackDays = 90

// PortfolioHandler 组合总览、分布、时间序列与维护操作的 HTTP 处理器
type PortfolioHandler struct {
	calc    *application.Calculator
	journal *journalapp.JournalService
}

// NewPortfolioHandler 创建 HTTP 处理器实例
func NewPortfolioHandler(calc *application.Calculator, journal *journalapp.JournalService) *PortfolioHandler {
	return &PortfolioHandler{calc: calc, journal: journal}
}

// RegisterRoutes 将处理器方法绑定到 Gin 路由引擎
func (h *PortfolioHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/portfolio")
	{
		api.GET("/overview", h.Overview)
		api.GET("/breakdown", h.Breakdown)
		api.GET("/timeseries", h.Timeseries)
		api.POST("/replay", h.Replay)
		api.POST("/mark", h.MarkToMarket)
	}
}

// Overview 组合总览，asset_type 可选（stock / real_estate）
func (h *PortfolioHandler) Overview(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	assetType := assetdomain.AssetType(c.Query("asset_type"))
	switch assetType {
	case "", assetdomain.AssetStock, assetdomain.AssetRealEstate:
	default:
		response.BadRequest(c, "asset_type must be stock or real_estate")
		return
	}

	overview, err := h.calc.Overview(c.Request.Context(), userID, assetType)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to compute overview", "error", err)
		response.Internal(c, "failed to compute overview")
		return
	}

	response.Success(c, overview)
}

// Breakdown 组合分布，by=sector（股票按行业）或 by=region（不动产按地区）
func (h *PortfolioHandler) Breakdown(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}
	dim := application.BreakdownDimension(c.DefaultQuery("by", "sector"))

	breakdown, err := h.calc.Breakdown(c.Request.Context(), userID, dim)
	if err != nil {
		if errors.Is(err, application.ErrBadDimension) {
			response.BadRequest(c, err.Error())
			return
		}
		logger.Error(c.Request.Context(), "Failed to compute breakdown", "error", err)
		response.Internal(c, "failed to compute breakdown")
		return
	}

	response.Success(c, breakdown)
}

// Timeseries 组合估值时间序列，interval=daily|weekly|monthly，from/to 可选
func (h *PortfolioHandler) Timeseries(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}
	interval := application.Interval(c.DefaultQuery("interval", "daily"))

	to := time.Now()
	from := to.AddDate(0, 0, -defaultLookbackDays)
	if s := c.Query("from"); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			response.BadRequest(c, "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if s := c.Query("to"); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			response.BadRequest(c, "to must be YYYY-MM-DD")
			return
		}
		to = parsed
	}
	if to.Before(from) {
		response.BadRequest(c, "to must not precede from")
		return
	}

	series, err := h.calc.Timeseries(c.Request.Context(), userID, interval, from, to)
	if err != nil {
		if errors.Is(err, application.ErrBadInterval) {
			response.BadRequest(c, err.Error())
			return
		}
		logger.Error(c.Request.Context(), "Failed to compute timeseries", "error", err)
		response.Internal(c, "failed to compute timeseries")
		return
	}

	response.Success(c, series)
}

// Replay 从交易流水重建历史快照
func (h *PortfolioHandler) Replay(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	written, err := h.journal.Replay(c.Request.Context(), userID)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to replay history", "error", err)
		response.Internal(c, "failed to replay history")
		return
	}

	response.Success(c, gin.H{"snapshots_written": written})
}

// MarkToMarket 为全部持仓写一张今日市价快照
func (h *PortfolioHandler) MarkToMarket(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	written, err := h.journal.MarkToMarket(c.Request.Context(), userID)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to mark to market", "error", err)
		response.Internal(c, "failed to mark to market")
		return
	}

	response.Success(c, gin.H{"snapshots_written": written})
}
