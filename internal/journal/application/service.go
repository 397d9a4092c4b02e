// Package application 交易日志应用服务：交易写入、成交写入、历史重放与市价快照
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	assetdomain "github.com/dhet13/finnote/internal/asset/domain"
	"github.com/dhet13/finnote/internal/journal/domain"
	mdapp "github.com/dhet13/finnote/internal/marketdata/application"
	"github.com/dhet13/finnote/pkg/logger"
	"github.com/dhet13/finnote/pkg/metrics"
)

// PriceLookup 行情查询端口，mark-to-market 用；由行情应用服务实现
type PriceLookup interface {
	GetPrice(ctx context.Context, ticker string) (*mdapp.PriceResult, error)
	RefreshLastClose(ctx context.Context, ticker string, price decimal.Decimal) error
}

// RecordTradeCommand 交易写入命令
type RecordTradeCommand struct {
	UserID string `json:"user_id"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	// Sector/CurrencyCode 随交易回填到证券登记信息，缺省时保留已有值
	Sector        string           `json:"sector"`
	CurrencyCode  string           `json:"currency_code"`
	Side          domain.Side      `json:"side"`
	TradeDate     time.Time        `json:"trade_date"`
	PricePerShare decimal.Decimal  `json:"price_per_share"`
	Quantity      decimal.Decimal  `json:"quantity"`
	FeeAmount     *decimal.Decimal `json:"fee_amount"`
	TaxAmount     *decimal.Decimal `json:"tax_amount"`
	// TargetPrice/StopPrice 计划字段，给出时回写到所属日志
	TargetPrice *decimal.Decimal `json:"target_price"`
	StopPrice   *decimal.Decimal `json:"stop_price"`
}

// RecordDealCommand 不动产成交写入命令
type RecordDealCommand struct {
	UserID       string          `json:"user_id"`
	DealType     domain.DealType `json:"deal_type"`
	ContractDate time.Time       `json:"contract_date"`

	PropertyType string `json:"property_type"`
	BuildingName string `json:"building_name"`
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

// TradeResult 交易写入路径的完整产出：重算后的日志、投影持仓与当日快照
type TradeResult struct {
	Trade    *domain.Trade         `json:"trade"`
	Journal  *domain.Journal       `json:"journal"`
	Holding  *assetdomain.Holding  `json:"holding"`
	Snapshot *assetdomain.Snapshot `json:"snapshot"`
}

// DealResult 成交写入路径的完整产出
type DealResult struct {
	Deal     *domain.Deal          `json:"deal"`
	Property *domain.Property      `json:"property"`
	Holding  *assetdomain.Holding  `json:"holding"`
	Snapshot *assetdomain.Snapshot `json:"snapshot"`
}

// JournalService 交易日志应用服务。
// 写入路径（交易 → 聚合重算 → 持仓投影 → 快照）在单个事务内完成，
// 全程不依赖实时行情：快照市价取交易自身价格，市价盯市走独立的 MarkToMarket
type JournalService struct {
	tx          domain.TxManager
	instruments domain.InstrumentRepository
	journals    domain.JournalRepository
	trades      domain.TradeRepository
	properties  domain.PropertyRepository
	deals       domain.DealRepository
	holdings    assetdomain.HoldingRepository
	snapshots   assetdomain.SnapshotRepository
	publisher   domain.EventPublisher
	prices      PriceLookup
	metrics     *metrics.Metrics
}

// NewJournalService 创建交易日志应用服务
func NewJournalService(
	tx domain.TxManager,
	instruments domain.InstrumentRepository,
	journals domain.JournalRepository,
	trades domain.TradeRepository,
	properties domain.PropertyRepository,
	deals domain.DealRepository,
	holdings assetdomain.HoldingRepository,
	snapshots assetdomain.SnapshotRepository,
	publisher domain.EventPublisher,
	prices PriceLookup,
	m *metrics.Metrics,
) *JournalService {
	return &JournalService{
		tx:          tx,
		instruments: instruments,
		journals:    journals,
		trades:      trades,
		properties:  properties,
		deals:       deals,
		holdings:    holdings,
		snapshots:   snapshots,
		publisher:   publisher,
		prices:      prices,
		metrics:     m,
	}
}

// RecordTrade 写入一笔交易并级联重算。
// 事务内：懒创建证券与日志 → 插入交易 → 全量重算聚合 → 投影持仓 → 写当日快照。
// 快照市价取本笔交易价格，行情源不可用也不影响写入
func (s *JournalService) RecordTrade(ctx context.Context, cmd RecordTradeCommand) (*TradeResult, error) {
	trade := &domain.Trade{
		UserID:        cmd.UserID,
		Ticker:        cmd.Ticker,
		Side:          cmd.Side,
		TradeDate:     cmd.TradeDate,
		PricePerShare: cmd.PricePerShare,
		Quantity:      cmd.Quantity,
		FeeAmount:     cmd.FeeAmount,
		TaxAmount:     cmd.TaxAmount,
	}
	if err := trade.Validate(); err != nil {
		s.countTrade("rejected")
		return nil, err
	}

	var result TradeResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		inst, err := s.instruments.GetOrCreate(ctx, cmd.Ticker, cmd.Name)
		if err != nil {
			return fmt.Errorf("get or create instrument: %w", err)
		}
		if inst.Enrich(cmd.Name, cmd.Sector, cmd.CurrencyCode) {
			if err := s.instruments.Save(ctx, inst); err != nil {
				return fmt.Errorf("save instrument: %w", err)
			}
		}

		journal, err := s.journals.GetOrCreate(ctx, cmd.UserID, cmd.Ticker)
		if err != nil {
			return fmt.Errorf("get or create journal: %w", err)
		}

		if cmd.TargetPrice != nil || cmd.StopPrice != nil {
			if cmd.TargetPrice != nil {
				journal.TargetPrice = *cmd.TargetPrice
			}
			if cmd.StopPrice != nil {
				journal.StopPrice = *cmd.StopPrice
			}
			if err := s.journals.SavePlan(ctx, journal); err != nil {
				return fmt.Errorf("save plan: %w", err)
			}
		}

		trade.JournalID = journal.ID
		if err := s.trades.Create(ctx, trade); err != nil {
			return fmt.Errorf("create trade: %w", err)
		}

		holding, err := s.recalculate(ctx, journal, inst)
		if err != nil {
			return err
		}

		snapshot := assetdomain.SnapshotOf(holding, cmd.TradeDate, cmd.PricePerShare)
		if err := s.snapshots.Upsert(ctx, snapshot); err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}

		result = TradeResult{Trade: trade, Journal: journal, Holding: holding, Snapshot: snapshot}
		return nil
	})
	if err != nil {
		s.countTrade("failed")
		return nil, err
	}

	s.countTrade("ok")
	s.countSnapshot(1)
	s.publishUpdated(ctx, result.Journal)
	return &result, nil
}

// RemoveTrade 删除一笔交易并级联重算，同样在单个事务内完成。
// 删除后刷新当日快照，市价退回最近收盘价，无收盘价时退回平均成本
func (s *JournalService) RemoveTrade(ctx context.Context, userID string, tradeID uint) (*TradeResult, error) {
	var result TradeResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		trade, err := s.trades.GetByID(ctx, tradeID)
		if err != nil {
			return err
		}
		if trade.UserID != userID {
			return domain.ErrTradeNotFound
		}

		journal, err := s.journals.GetByID(ctx, trade.JournalID)
		if err != nil {
			return err
		}
		inst, err := s.instruments.Get(ctx, journal.Ticker)
		if err != nil {
			return fmt.Errorf("get instrument: %w", err)
		}

		if err := s.trades.Delete(ctx, tradeID); err != nil {
			return err
		}

		holding, err := s.recalculate(ctx, journal, inst)
		if err != nil {
			return err
		}

		price := markPrice(holding, inst)
		snapshot := assetdomain.SnapshotOf(holding, time.Now(), price)
		if err := s.snapshots.Upsert(ctx, snapshot); err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}

		result = TradeResult{Trade: trade, Journal: journal, Holding: holding, Snapshot: snapshot}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.countSnapshot(1)
	s.publishUpdated(ctx, result.Journal)
	return &result, nil
}

// RecordDeal 写入一笔不动产成交。没有账本聚合，成交直接投影为数量 1 的持仓，
// 快照市价取合同金额
func (s *JournalService) RecordDeal(ctx context.Context, cmd RecordDealCommand) (*DealResult, error) {
	deal := &domain.Deal{
		UserID:        cmd.UserID,
		DealType:      cmd.DealType,
		ContractDate:  cmd.ContractDate,
		AmountMain:    cmd.AmountMain,
		AmountDeposit: cmd.AmountDeposit,
		AmountMonthly: cmd.AmountMonthly,
		AreaM2:        cmd.AreaM2,
		Floor:         cmd.Floor,
		LoanAmount:    cmd.LoanAmount,
		LoanRate:      cmd.LoanRate,
	}
	if err := deal.Validate(); err != nil {
		return nil, err
	}

	var result DealResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		prop, err := s.properties.GetOrCreate(ctx, &domain.Property{
			PropertyType: cmd.PropertyType,
			BuildingName: cmd.BuildingName,
			AddressBase:  cmd.AddressBase,
			Dong:         cmd.Dong,
			BuildYear:    cmd.BuildYear,
		})
		if err != nil {
			return fmt.Errorf("get or create property: %w", err)
		}

		deal.PropertyID = prop.ID
		if err := s.deals.Create(ctx, deal); err != nil {
			return fmt.Errorf("create deal: %w", err)
		}

		holding, err := assetdomain.ProjectDeal(deal, prop)
		if err != nil {
			return err
		}
		if err := s.holdings.Upsert(ctx, holding); err != nil {
			return fmt.Errorf("upsert holding: %w", err)
		}

		snapshot := assetdomain.SnapshotOf(holding, cmd.ContractDate, cmd.AmountMain)
		if err := s.snapshots.Upsert(ctx, snapshot); err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}

		result = DealResult{Deal: deal, Property: prop, Holding: holding, Snapshot: snapshot}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.countSnapshot(1)
	return &result, nil
}

// ListJournals 返回用户全部日志（含聚合字段）
func (s *JournalService) ListJournals(ctx context.Context, userID string) ([]*domain.Journal, error) {
	return s.journals.ListByUser(ctx, userID)
}

// ListDeals 返回用户全部不动产成交
func (s *JournalService) ListDeals(ctx context.Context, userID string) ([]*domain.Deal, error) {
	return s.deals.ListByUser(ctx, userID)
}

// Replay 从交易流水重建一个用户的全部历史快照。
// 先清空已有快照再重写，重建结果是当前流水的纯函数，被删交易留下的快照不会残留。
// 按交易日升序逐笔回放，每个交易日为受影响的资产各写一张快照，
// 当日市价取该资产当日最后一笔交易价格；最终聚合与持仓一并刷新。
// 整个重建在单个事务内完成，失败不留半成品
func (s *JournalService) Replay(ctx context.Context, userID string) (int, error) {
	written := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.snapshots.DeleteByUser(ctx, userID); err != nil {
			return fmt.Errorf("clear snapshots: %w", err)
		}

		trades, err := s.trades.ListByUserChronological(ctx, userID)
		if err != nil {
			return fmt.Errorf("list trades: %w", err)
		}

		// 按账本累积交易，按日期边界落快照
		byJournal := map[uint][]domain.Trade{}
		tickerOf := map[uint]string{}
		dayPrice := map[uint]decimal.Decimal{}
		touched := map[uint]bool{}
		var currentDay time.Time

		flushDay := func() error {
			for journalID := range touched {
				n, err := s.replaySnapshot(ctx, userID, tickerOf[journalID],
					byJournal[journalID], currentDay, dayPrice[journalID])
				if err != nil {
					return err
				}
				written += n
			}
			touched = map[uint]bool{}
			return nil
		}

		for _, t := range trades {
			day := t.TradeDate
			if !currentDay.IsZero() && !day.Equal(currentDay) {
				if err := flushDay(); err != nil {
					return err
				}
			}
			currentDay = day
			byJournal[t.JournalID] = append(byJournal[t.JournalID], t)
			tickerOf[t.JournalID] = t.Ticker
			dayPrice[t.JournalID] = t.PricePerShare
			touched[t.JournalID] = true
		}
		if len(touched) > 0 {
			if err := flushDay(); err != nil {
				return err
			}
		}

		// 终态回写：聚合与持仓以完整交易集合刷新
		for journalID, set := range byJournal {
			journal, err := s.journals.GetByID(ctx, journalID)
			if err != nil {
				return err
			}
			inst, err := s.instruments.Get(ctx, tickerOf[journalID])
			if err != nil {
				return err
			}
			journal.Apply(domain.Aggregate(set))
			if err := s.journals.SaveAggregates(ctx, journal); err != nil {
				return fmt.Errorf("save aggregates: %w", err)
			}
			holding, err := assetdomain.ProjectJournal(journal, inst)
			if err != nil {
				return err
			}
			if err := s.holdings.Upsert(ctx, holding); err != nil {
				return fmt.Errorf("upsert holding: %w", err)
			}
		}

		// 不动产成交同样回放为合同日快照
		deals, err := s.deals.ListByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("list deals: %w", err)
		}
		for _, d := range deals {
			prop, err := s.properties.Get(ctx, d.PropertyID)
			if err != nil {
				return err
			}
			holding, err := assetdomain.ProjectDeal(d, prop)
			if err != nil {
				return err
			}
			if err := s.holdings.Upsert(ctx, holding); err != nil {
				return fmt.Errorf("upsert holding: %w", err)
			}
			snapshot := assetdomain.SnapshotOf(holding, d.ContractDate, d.AmountMain)
			if err := s.snapshots.Upsert(ctx, snapshot); err != nil {
				return fmt.Errorf("upsert snapshot: %w", err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.countSnapshot(written)
	logger.Info(ctx, "History replay finished", "user_id", userID, "snapshots", written)
	return written, nil
}

// replaySnapshot 以某交易日为界重算一个账本并写当日快照
func (s *JournalService) replaySnapshot(
	ctx context.Context,
	userID, ticker string,
	trades []domain.Trade,
	day time.Time,
	price decimal.Decimal,
) (int, error) {
	inst, err := s.instruments.Get(ctx, ticker)
	if err != nil {
		return 0, err
	}

	journal := &domain.Journal{UserID: userID, Ticker: ticker}
	journal.Apply(domain.Aggregate(trades))

	holding, err := assetdomain.ProjectJournal(journal, inst)
	if err != nil {
		return 0, err
	}
	snapshot := assetdomain.SnapshotOf(holding, day, price)
	if err := s.snapshots.Upsert(ctx, snapshot); err != nil {
		return 0, fmt.Errorf("upsert snapshot: %w", err)
	}
	return 1, nil
}

// MarkToMarket 为用户全部持仓写一张今日市价快照。
// 股票按 缓存 → 行情源 → 最近收盘价 → 平均成本 的顺序取价，
// 不动产没有行情源，按投影成本估值。取价失败单个资产跳过，不中断整轮
func (s *JournalService) MarkToMarket(ctx context.Context, userID string) (int, error) {
	holdings, err := s.holdings.List(ctx, userID, "")
	if err != nil {
		return 0, err
	}

	now := time.Now()
	written := 0
	for _, h := range holdings {
		if h.TotalQuantity.IsZero() {
			continue
		}

		price, ok := s.resolveMarkPrice(ctx, h)
		if !ok {
			continue
		}

		snapshot := assetdomain.SnapshotOf(h, now, price)
		if err := s.snapshots.Upsert(ctx, snapshot); err != nil {
			logger.Error(ctx, "Failed to write mark-to-market snapshot",
				"asset_key", h.AssetKey, "error", err)
			continue
		}
		written++
	}

	s.countSnapshot(written)
	logger.Info(ctx, "Mark-to-market finished",
		"user_id", userID, "holdings", len(holdings), "snapshots", written)
	return written, nil
}

// resolveMarkPrice 为盯市取价，返回 false 表示该资产无任何可用价格
func (s *JournalService) resolveMarkPrice(ctx context.Context, h *assetdomain.Holding) (decimal.Decimal, bool) {
	if h.AssetType == assetdomain.AssetRealEstate {
		if h.AvgBuyPrice != nil {
			return *h.AvgBuyPrice, true
		}
		return decimal.Zero, false
	}

	if s.prices != nil {
		if result, err := s.prices.GetPrice(ctx, h.Ticker); err == nil {
			if !result.Stale {
				if err := s.prices.RefreshLastClose(ctx, h.Ticker, result.Price); err != nil {
					logger.Warn(ctx, "Failed to refresh last close",
						"ticker", h.Ticker, "error", err)
				}
			}
			return result.Price, true
		}
	}

	// 行情链路全部失效时退回最近快照价，再退回平均成本
	if latest, err := s.snapshots.Latest(ctx, h.UserID, h.Ref()); err == nil && latest != nil {
		if s.metrics != nil {
			s.metrics.ValuationFallbacks.WithLabelValues("latest_snapshot").Inc()
		}
		return latest.MarketPrice, true
	}
	if h.AvgBuyPrice != nil {
		if s.metrics != nil {
			s.metrics.ValuationFallbacks.WithLabelValues("avg_cost").Inc()
		}
		return *h.AvgBuyPrice, true
	}
	return decimal.Zero, false
}

// recalculate 全量重算一个日志的聚合并刷新持仓投影，必须在事务内调用
func (s *JournalService) recalculate(
	ctx context.Context,
	journal *domain.Journal,
	inst *domain.Instrument,
) (*assetdomain.Holding, error) {
	trades, err := s.trades.ListByJournal(ctx, journal.ID)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}

	journal.Apply(domain.Aggregate(trades))
	if err := s.journals.SaveAggregates(ctx, journal); err != nil {
		return nil, fmt.Errorf("save aggregates: %w", err)
	}

	holding, err := assetdomain.ProjectJournal(journal, inst)
	if err != nil {
		return nil, err
	}
	if err := s.holdings.Upsert(ctx, holding); err != nil {
		return nil, fmt.Errorf("upsert holding: %w", err)
	}
	return holding, nil
}

// markPrice 无实时行情时的快照市价：最近收盘价优先，其次平均成本，再次为零
func markPrice(h *assetdomain.Holding, inst *domain.Instrument) decimal.Decimal {
	if inst != nil && inst.LastClosePrice != nil {
		return *inst.LastClosePrice
	}
	if h.AvgBuyPrice != nil {
		return *h.AvgBuyPrice
	}
	return decimal.Zero
}

func (s *JournalService) publishUpdated(ctx context.Context, j *domain.Journal) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishJournalUpdated(ctx, domain.JournalUpdatedEvent{
		UserID:     j.UserID,
		Ticker:     j.Ticker,
		JournalID:  j.ID,
		Status:     j.Status,
		NetQty:     j.NetQty.String(),
		OccurredOn: time.Now(),
	})
}

func (s *JournalService) countTrade(result string) {
	if s.metrics != nil {
		s.metrics.TradesProcessed.WithLabelValues(result).Inc()
	}
}

func (s *JournalService) countSnapshot(n int) {
	if s.metrics != nil && n > 0 {
		s.metrics.SnapshotsWritten.Add(float64(n))
	}
}
