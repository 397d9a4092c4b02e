package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	assetdomain "github.com/dhet13/finnote/internal/asset/domain"
	"github.com/dhet13/finnote/internal/journal/domain"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func buyCmd(t *testing.T, user, ticker, date, price, qty string) RecordTradeCommand {
	t.Helper()
	return RecordTradeCommand{
		UserID:        user,
		Ticker:        ticker,
		Side:          domain.SideBuy,
		TradeDate:     day(t, date),
		PricePerShare: dec(t, price),
		Quantity:      dec(t, qty),
	}
}

func sellCmd(t *testing.T, user, ticker, date, price, qty string) RecordTradeCommand {
	t.Helper()
	cmd := buyCmd(t, user, ticker, date, price, qty)
	cmd.Side = domain.SideSell
	return cmd
}

func TestRecordTradeCreatesJournalHoldingSnapshot(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	cmd := buyCmd(t, "u1", "005930", "2026-03-02", "70000", "10")
	cmd.Name = "Samsung Electronics"

	result, err := env.svc.RecordTrade(ctx, cmd)
	if err != nil {
		t.Fatalf("RecordTrade() error: %v", err)
	}

	j := result.Journal
	if j.Status != domain.StatusOpen {
		t.Errorf("journal status = %s, want open", j.Status)
	}
	if !j.NetQty.Equal(dec(t, "10")) {
		t.Errorf("net qty = %s, want 10", j.NetQty)
	}
	if j.AvgBuyPrice == nil || !j.AvgBuyPrice.Equal(dec(t, "70000")) {
		t.Errorf("avg buy price = %v, want 70000", j.AvgBuyPrice)
	}

	h := result.Holding
	if h.AssetKey != "stock:005930" {
		t.Errorf("asset key = %s, want stock:005930", h.AssetKey)
	}
	if h.AssetName != "Samsung Electronics" {
		t.Errorf("asset name = %s", h.AssetName)
	}
	if !h.InvestedAmount.Equal(dec(t, "700000")) {
		t.Errorf("invested = %s, want 700000", h.InvestedAmount)
	}

	s := result.Snapshot
	if !s.MarketPrice.Equal(dec(t, "70000")) {
		t.Errorf("snapshot market price = %s, want trade price 70000", s.MarketPrice)
	}
	if !s.MarketValue.Equal(dec(t, "700000")) {
		t.Errorf("snapshot market value = %s, want 700000", s.MarketValue)
	}
	if got := s.SnapshotDate.Format("2006-01-02"); got != "2026-03-02" {
		t.Errorf("snapshot date = %s, want trade date", got)
	}

	if len(env.publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(env.publisher.events))
	}
	if evt := env.publisher.events[0]; evt.Ticker != "005930" || evt.NetQty != "10" {
		t.Errorf("event = %+v", evt)
	}
}

func TestRecordTradeRejectsInvalid(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	cmd := buyCmd(t, "u1", "005930", "2026-03-02", "70000", "0")
	if _, err := env.svc.RecordTrade(ctx, cmd); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("error = %v, want ErrInvalidQuantity", err)
	}
	if len(env.trades.byID) != 0 {
		t.Error("rejected trade was persisted")
	}
	if len(env.publisher.events) != 0 {
		t.Error("rejected trade published an event")
	}
}

func TestRecordTradeRoundTripCompletesJournal(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.RecordTrade(ctx, buyCmd(t, "u1", "AAPL", "2026-01-05", "68000", "10")); err != nil {
		t.Fatalf("buy 1: %v", err)
	}
	if _, err := env.svc.RecordTrade(ctx, buyCmd(t, "u1", "AAPL", "2026-01-12", "76000", "5")); err != nil {
		t.Fatalf("buy 2: %v", err)
	}
	result, err := env.svc.RecordTrade(ctx, sellCmd(t, "u1", "AAPL", "2026-02-02", "75000", "15"))
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	j := result.Journal
	if j.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", j.Status)
	}
	if j.RealizedPnL == nil || !j.RealizedPnL.Equal(dec(t, "65000.00")) {
		t.Errorf("realized pnl = %v, want 65000.00", j.RealizedPnL)
	}
	if j.ReturnRate == nil || !j.ReturnRate.Equal(dec(t, "6.13")) {
		t.Errorf("return rate = %v, want 6.13", j.ReturnRate)
	}
	if !result.Holding.TotalQuantity.IsZero() {
		t.Errorf("holding qty = %s, want 0", result.Holding.TotalQuantity)
	}
	if !result.Holding.RealizedProfit.Equal(dec(t, "65000.00")) {
		t.Errorf("holding realized profit = %s", result.Holding.RealizedProfit)
	}
}

func TestRecordTradeSetsPlanFields(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	target := dec(t, "90000")
	stop := dec(t, "60000")
	cmd := buyCmd(t, "u1", "005930", "2026-03-02", "70000", "10")
	cmd.TargetPrice = &target
	cmd.StopPrice = &stop

	result, err := env.svc.RecordTrade(ctx, cmd)
	if err != nil {
		t.Fatalf("RecordTrade() error: %v", err)
	}
	if !result.Journal.TargetPrice.Equal(target) || !result.Journal.StopPrice.Equal(stop) {
		t.Errorf("plan fields = %s/%s, want 90000/60000",
			result.Journal.TargetPrice, result.Journal.StopPrice)
	}
}

func TestRecordTradeEnrichesInstrumentRegistry(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	cmd := buyCmd(t, "u1", "AAPL", "2026-03-02", "230", "10")
	cmd.Name = "Apple"
	cmd.Sector = "Technology"
	cmd.CurrencyCode = "USD"

	result, err := env.svc.RecordTrade(ctx, cmd)
	if err != nil {
		t.Fatalf("RecordTrade() error: %v", err)
	}

	// 美元计价的持仓必须带 USD 标记，否则金额会被当作 KRW 直接求和
	if result.Holding.CurrencyCode != "USD" {
		t.Errorf("holding currency = %s, want USD", result.Holding.CurrencyCode)
	}
	if result.Holding.SectorOrRegion != "Technology" {
		t.Errorf("holding sector = %s, want Technology", result.Holding.SectorOrRegion)
	}

	// 后续交易不带登记信息时保留已有值
	if _, err := env.svc.RecordTrade(ctx, buyCmd(t, "u1", "AAPL", "2026-03-03", "235", "5")); err != nil {
		t.Fatalf("second buy: %v", err)
	}
	inst, err := env.instruments.Get(ctx, "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if inst.Currency != "USD" || inst.Sector != "Technology" {
		t.Errorf("instrument = %s/%s, want USD/Technology retained", inst.Currency, inst.Sector)
	}
}

func TestRemoveTradeRecomputes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first, err := env.svc.RecordTrade(ctx, buyCmd(t, "u1", "005930", "2026-01-05", "70000", "10"))
	if err != nil {
		t.Fatalf("buy 1: %v", err)
	}
	if _, err := env.svc.RecordTrade(ctx, buyCmd(t, "u1", "005930", "2026-01-12", "80000", "10")); err != nil {
		t.Fatalf("buy 2: %v", err)
	}

	result, err := env.svc.RemoveTrade(ctx, "u1", first.Trade.ID)
	if err != nil {
		t.Fatalf("RemoveTrade() error: %v", err)
	}

	j := result.Journal
	if !j.NetQty.Equal(dec(t, "10")) {
		t.Errorf("net qty = %s, want 10", j.NetQty)
	}
	if j.AvgBuyPrice == nil || !j.AvgBuyPrice.Equal(dec(t, "80000")) {
		t.Errorf("avg buy price = %v, want 80000 after removal", j.AvgBuyPrice)
	}
}

func TestRemoveTradeWrongUser(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	result, err := env.svc.RecordTrade(ctx, buyCmd(t, "u1", "005930", "2026-01-05", "70000", "10"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	if _, err := env.svc.RemoveTrade(ctx, "intruder", result.Trade.ID); !errors.Is(err, domain.ErrTradeNotFound) {
		t.Errorf("error = %v, want ErrTradeNotFound", err)
	}
	if _, ok := env.trades.byID[result.Trade.ID]; !ok {
		t.Error("trade was deleted by wrong user")
	}
}

func TestRecordDealProjectsHolding(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	result, err := env.svc.RecordDeal(ctx, RecordDealCommand{
		UserID:       "u1",
		DealType:     domain.DealTypeSale,
		ContractDate: day(t, "2026-02-10"),
		PropertyType: "apartment",
		BuildingName: "래미안 원베일리",
		AddressBase:  "서울 서초구",
		Dong:         "반포동",
		BuildYear:    2023,
		AmountMain:   dec(t, "2500000000"),
		AreaM2:       dec(t, "84.99"),
		Floor:        15,
	})
	if err != nil {
		t.Fatalf("RecordDeal() error: %v", err)
	}

	h := result.Holding
	if h.AssetType != assetdomain.AssetRealEstate {
		t.Errorf("asset type = %s", h.AssetType)
	}
	if !h.TotalQuantity.Equal(dec(t, "1")) {
		t.Errorf("quantity = %s, want 1", h.TotalQuantity)
	}
	if h.SectorOrRegion != "서울 서초구 반포동" {
		t.Errorf("region = %s", h.SectorOrRegion)
	}
	if !result.Snapshot.MarketValue.Equal(dec(t, "2500000000")) {
		t.Errorf("snapshot value = %s", result.Snapshot.MarketValue)
	}

	// 同一物业再次成交复用已有物业，不产生重复
	if _, err := env.svc.RecordDeal(ctx, RecordDealCommand{
		UserID:       "u1",
		DealType:     domain.DealTypeJeonse,
		ContractDate: day(t, "2026-03-01"),
		BuildingName: "래미안 원베일리",
		AddressBase:  "서울 서초구",
		Dong:         "반포동",
		AmountMain:   dec(t, "1200000000"),
	}); err != nil {
		t.Fatalf("second deal: %v", err)
	}
	if len(env.properties.byID) != 1 {
		t.Errorf("properties = %d, want 1 (reused)", len(env.properties.byID))
	}
}

func TestRecordDealRejectsBadType(t *testing.T) {
	env := newTestEnv()
	if _, err := env.svc.RecordDeal(context.Background(), RecordDealCommand{
		UserID:       "u1",
		DealType:     "lease",
		ContractDate: day(t, "2026-02-10"),
		BuildingName: "x",
		AmountMain:   dec(t, "1"),
	}); !errors.Is(err, domain.ErrInvalidDealType) {
		t.Errorf("error = %v, want ErrInvalidDealType", err)
	}
}

func TestReplayRebuildsDailySnapshots(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.RecordTrade(ctx, buyCmd(t, "u1", "005930", "2026-01-05", "70000", "10")); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.RecordTrade(ctx, buyCmd(t, "u1", "005930", "2026-01-12", "76000", "5")); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.RecordTrade(ctx, sellCmd(t, "u1", "005930", "2026-02-02", "75000", "15")); err != nil {
		t.Fatal(err)
	}

	// 抹掉写入路径产生的快照，验证重放能完整重建
	env.snapshots.byKey = map[string]*assetdomain.Snapshot{}

	written, err := env.svc.Replay(ctx, "u1")
	if err != nil {
		t.Fatalf("Replay() error: %v", err)
	}
	if written != 3 {
		t.Fatalf("snapshots written = %d, want 3 (one per trade date)", written)
	}

	snaps, err := env.snapshots.ListRange(ctx, "u1", "",
		day(t, "2026-01-01"), day(t, "2026-12-31"))
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 3 {
		t.Fatalf("snapshot count = %d, want 3", len(snaps))
	}

	// 第一日：10 股 @70000
	if !snaps[0].Quantity.Equal(dec(t, "10")) || !snaps[0].MarketValue.Equal(dec(t, "700000")) {
		t.Errorf("day1 snapshot qty=%s value=%s", snaps[0].Quantity, snaps[0].MarketValue)
	}
	// 第二日：15 股，当日价 76000
	if !snaps[1].Quantity.Equal(dec(t, "15")) || !snaps[1].MarketValue.Equal(dec(t, "1140000")) {
		t.Errorf("day2 snapshot qty=%s value=%s", snaps[1].Quantity, snaps[1].MarketValue)
	}
	// 清仓日：数量归零
	if !snaps[2].Quantity.IsZero() {
		t.Errorf("final snapshot qty = %s, want 0", snaps[2].Quantity)
	}

	// 重放具备幂等性，重跑不翻倍
	if _, err := env.svc.Replay(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	snaps, _ = env.snapshots.ListRange(ctx, "u1", "",
		day(t, "2026-01-01"), day(t, "2026-12-31"))
	if len(snaps) != 3 {
		t.Errorf("snapshot count after rerun = %d, want 3", len(snaps))
	}
}

func TestReplayDropsSnapshotsOfDeletedTrades(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.RecordTrade(ctx, buyCmd(t, "u1", "005930", "2026-01-05", "70000", "10")); err != nil {
		t.Fatal(err)
	}
	second, err := env.svc.RecordTrade(ctx, buyCmd(t, "u1", "005930", "2026-01-12", "80000", "10"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.RemoveTrade(ctx, "u1", second.Trade.ID); err != nil {
		t.Fatal(err)
	}

	// 被删交易留下的 1/12 快照与删除时写的当日快照都不能在重建结果里残留
	written, err := env.svc.Replay(ctx, "u1")
	if err != nil {
		t.Fatalf("Replay() error: %v", err)
	}
	if written != 1 {
		t.Fatalf("snapshots written = %d, want 1", written)
	}
	if len(env.snapshots.byKey) != 1 {
		t.Fatalf("snapshot count = %d, want 1 after rebuild", len(env.snapshots.byKey))
	}
	for _, s := range env.snapshots.byKey {
		if got := s.SnapshotDate.Format("2006-01-02"); got != "2026-01-05" {
			t.Errorf("surviving snapshot date = %s, want 2026-01-05", got)
		}
		if !s.MarketValue.Equal(dec(t, "700000")) {
			t.Errorf("surviving snapshot value = %s, want 700000", s.MarketValue)
		}
	}
}

func TestMarkToMarketUsesLivePrice(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.RecordTrade(ctx, buyCmd(t, "u1", "005930", "2026-01-05", "70000", "10")); err != nil {
		t.Fatal(err)
	}
	env.prices.prices["005930"] = dec(t, "72500")

	written, err := env.svc.MarkToMarket(ctx, "u1")
	if err != nil {
		t.Fatalf("MarkToMarket() error: %v", err)
	}
	if written != 1 {
		t.Fatalf("snapshots written = %d, want 1", written)
	}

	latest, err := env.snapshots.Latest(ctx, "u1", assetdomain.StockRef("005930"))
	if err != nil || latest == nil {
		t.Fatalf("Latest() = %v, %v", latest, err)
	}
	if !latest.MarketPrice.Equal(dec(t, "72500")) {
		t.Errorf("market price = %s, want live 72500", latest.MarketPrice)
	}
	if !latest.MarketValue.Equal(dec(t, "725000")) {
		t.Errorf("market value = %s, want 725000", latest.MarketValue)
	}
	if got := env.prices.closes["005930"]; !got.Equal(dec(t, "72500")) {
		t.Errorf("last close not refreshed, got %s", got)
	}
}

func TestMarkToMarketFallsBackToLatestSnapshot(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.RecordTrade(ctx, buyCmd(t, "u1", "005930", "2026-01-05", "70000", "10")); err != nil {
		t.Fatal(err)
	}
	// 行情源无此代码，退回写入路径留下的最近快照价 70000

	written, err := env.svc.MarkToMarket(ctx, "u1")
	if err != nil {
		t.Fatalf("MarkToMarket() error: %v", err)
	}
	if written != 1 {
		t.Fatalf("snapshots written = %d, want 1", written)
	}

	latest, _ := env.snapshots.Latest(ctx, "u1", assetdomain.StockRef("005930"))
	if !latest.MarketPrice.Equal(dec(t, "70000")) {
		t.Errorf("fallback price = %s, want 70000", latest.MarketPrice)
	}
}

func TestMarkToMarketSkipsZeroQuantity(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.RecordTrade(ctx, buyCmd(t, "u1", "005930", "2026-01-05", "70000", "10")); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.RecordTrade(ctx, sellCmd(t, "u1", "005930", "2026-01-06", "71000", "10")); err != nil {
		t.Fatal(err)
	}

	written, err := env.svc.MarkToMarket(ctx, "u1")
	if err != nil {
		t.Fatalf("MarkToMarket() error: %v", err)
	}
	if written != 0 {
		t.Errorf("snapshots written = %d, want 0 for flat position", written)
	}
}

func TestMarkToMarketValuesRealEstateAtCost(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.RecordDeal(ctx, RecordDealCommand{
		UserID:       "u1",
		DealType:     domain.DealTypeSale,
		ContractDate: day(t, "2026-02-10"),
		BuildingName: "한강뷰아파트",
		AddressBase:  "서울 용산구",
		AmountMain:   dec(t, "1500000000"),
	}); err != nil {
		t.Fatal(err)
	}

	written, err := env.svc.MarkToMarket(ctx, "u1")
	if err != nil {
		t.Fatalf("MarkToMarket() error: %v", err)
	}
	if written != 1 {
		t.Fatalf("snapshots written = %d, want 1", written)
	}

	latest, _ := env.snapshots.Latest(ctx, "u1", assetdomain.RealEstateRef(1))
	if !latest.MarketValue.Equal(dec(t, "1500000000")) {
		t.Errorf("real estate marked at %s, want cost 1500000000", latest.MarketValue)
	}
}
