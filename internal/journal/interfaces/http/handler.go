// Package http 交易日志模块的 HTTP 接口
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dhet13/finnote/internal/journal/application"
	"github.com/dhet13/finnote/internal/journal/domain"
	"github.com/dhet13/finnote/pkg/logger"
	"github.com/dhet13/finnote/pkg/response"
)

const dateLayout = "2006-01-02"

// JournalHandler 交易与成交写入、日志查询的 HTTP 处理器
type JournalHandler struct {
	app *application.JournalService
}

// NewJournalHandler 创建 HTTP 处理器实例
func NewJournalHandler(app *application.JournalService) *JournalHandler {
	return &JournalHandler{app: app}
}

// RegisterRoutes 将处理器方法绑定到 Gin 路由引擎
func (h *JournalHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/trades", h.RecordTrade)
		api.DELETE("/trades/:id", h.RemoveTrade)
		api.POST("/deals", h.RecordDeal)
		api.GET("/journals", h.ListJournals)
		api.GET("/deals", h.ListDeals)
	}
}

// recordTradeRequest 交易写入请求体，日期为 YYYY-MM-DD
type recordTradeRequest struct {
	UserID        string           `json:"user_id" binding:"required"`
	Ticker        string           `json:"ticker" binding:"required"`
	Name          string           `json:"name"`
	Sector        string           `json:"sector"`
	CurrencyCode  string           `json:"currency_code"`
	Side          string           `json:"side" binding:"required"`
	TradeDate     string           `json:"trade_date" binding:"required"`
	PricePerShare decimal.Decimal  `json:"price_per_share"`
	Quantity      decimal.Decimal  `json:"quantity"`
	FeeAmount     *decimal.Decimal `json:"fee_amount"`
	TaxAmount     *decimal.Decimal `json:"tax_amount"`
	TargetPrice   *decimal.Decimal `json:"target_price"`
	StopPrice     *decimal.Decimal `json:"stop_price"`
}

// RecordTrade 写入一笔交易，返回重算后的日志、持仓与快照
func (h *JournalHandler) RecordTrade(c *gin.Context) {
	var req recordTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tradeDate, err := time.Parse(dateLayout, req.TradeDate)
	if err != nil {
		response.BadRequest(c, "trade_date must be YYYY-MM-DD")
		return
	}

	result, err := h.app.RecordTrade(c.Request.Context(), application.RecordTradeCommand{
		UserID:        req.UserID,
		Ticker:        req.Ticker,
		Name:          req.Name,
		Sector:        req.Sector,
		CurrencyCode:  req.CurrencyCode,
		Side:          domain.Side(req.Side),
		TradeDate:     tradeDate,
		PricePerShare: req.PricePerShare,
		Quantity:      req.Quantity,
		FeeAmount:     req.FeeAmount,
		TaxAmount:     req.TaxAmount,
		TargetPrice:   req.TargetPrice,
		StopPrice:     req.StopPrice,
	})
	if err != nil {
		if isValidationError(err) {
			response.BadRequest(c, err.Error())
			return
		}
		logger.Error(c.Request.Context(), "Failed to record trade",
			"ticker", req.Ticker, "error", err)
		response.Internal(c, "failed to record trade")
		return
	}

	c.JSON(http.StatusCreated, response.Body{Code: 0, Message: "ok", Data: result})
}

// RemoveTrade 删除一笔交易并级联重算
func (h *JournalHandler) RemoveTrade(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid trade id")
		return
	}

	result, err := h.app.RemoveTrade(c.Request.Context(), userID, uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrTradeNotFound) {
			response.NotFound(c, "trade not found")
			return
		}
		logger.Error(c.Request.Context(), "Failed to remove trade", "id", id, "error", err)
		response.Internal(c, "failed to remove trade")
		return
	}

	response.Success(c, result)
}

// recordDealRequest 不动产成交写入请求体
type recordDealRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	DealType     string `json:"deal_type" binding:"required"`
	ContractDate string `json:"contract_date" binding:"required"`

	PropertyType string `json:"property_type"`
	BuildingName string `json:"building_name" binding:"required"`
	AddressBase  string `json:"address_base"`
	Dong         string `json:"dong"`
	BuildYear    int    `json:"build_year"`

	AmountMain    decimal.Decimal  `json:"amount_main"`
	AmountDeposit decimal.Decimal  `json:"amount_deposit"`
	AmountMonthly decimal.Decimal  `json:"amount_monthly"`
	AreaM2        decimal.Decimal  `json:"area_m2"`
	Floor         int              `json:"floor"`
	LoanAmount    *decimal.Decimal `json:"loan_amount"`
	LoanRate      *decimal.Decimal `json:"loan_rate"`
}

// RecordDeal 写入一笔不动产成交
func (h *JournalHandler) RecordDeal(c *gin.Context) {
	var req recordDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	contractDate, err := time.Parse(dateLayout, req.ContractDate)
	if err != nil {
		response.BadRequest(c, "contract_date must be YYYY-MM-DD")
		return
	}

	result, err := h.app.RecordDeal(c.Request.Context(), application.RecordDealCommand{
		UserID:        req.UserID,
		DealType:      domain.DealType(req.DealType),
		ContractDate:  contractDate,
		PropertyType:  req.PropertyType,
		BuildingName:  req.BuildingName,
		AddressBase:   req.AddressBase,
		Dong:          req.Dong,
		BuildYear:     req.BuildYear,
		AmountMain:    req.AmountMain,
		AmountDeposit: req.AmountDeposit,
		AmountMonthly: req.AmountMonthly,
		AreaM2:        req.AreaM2,
		Floor:         req.Floor,
		LoanAmount:    req.LoanAmount,
		LoanRate:      req.LoanRate,
	})
	if err != nil {
		if isValidationError(err) {
			response.BadRequest(c, err.Error())
			return
		}
		logger.Error(c.Request.Context(), "Failed to record deal",
			"building", req.BuildingName, "error", err)
		response.Internal(c, "failed to record deal")
		return
	}

	c.JSON(http.StatusCreated, response.Body{Code: 0, Message: "ok", Data: result})
}

// ListJournals 列出用户全部日志（含聚合字段）
func (h *JournalHandler) ListJournals(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	journals, err := h.app.ListJournals(c.Request.Context(), userID)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to list journals", "error", err)
		response.Internal(c, "failed to list journals")
		return
	}

	response.Success(c, journals)
}

// ListDeals 列出用户全部不动产成交
func (h *JournalHandler) ListDeals(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	deals, err := h.app.ListDeals(c.Request.Context(), userID)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to list deals", "error", err)
		response.Internal(c, "failed to list deals")
		return
	}

	response.Success(c, deals)
}

func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrInvalidSide) ||
		errors.Is(err, domain.ErrInvalidQuantity) ||
		errors.Is(err, domain.ErrInvalidPrice) ||
		errors.Is(err, domain.ErrInvalidDealType) ||
		errors.Is(err, domain.ErrInvalidAmount)
}
