package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	journaldomain "github.com/dhet13/finnote/internal/journal/domain"
)

func TestAssetRefValidate(t *testing.T) {
	testCases := []struct {
		name    string
		ref     AssetRef
		wantErr bool
	}{
		{"stock ok", StockRef("AAPL"), false},
		{"real estate ok", RealEstateRef(42), false},
		{"stock without ticker", AssetRef{Type: AssetStock}, true},
		{"real estate without id", AssetRef{Type: AssetRealEstate}, true},
		{"both keys set", AssetRef{Type: AssetStock, Ticker: "AAPL", PropertyID: 7}, true},
		{"unknown type", AssetRef{Type: AssetType("bond"), Ticker: "X"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.ref.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestAssetKeyRoundTrip(t *testing.T) {
	for _, ref := range []AssetRef{StockRef("005930.KS"), RealEstateRef(12345)} {
		got, err := ParseKey(ref.Key())
		if err != nil {
			t.Fatalf("ParseKey(%q) error: %v", ref.Key(), err)
		}
		if got != ref {
			t.Errorf("ParseKey(%q) = %+v, want %+v", ref.Key(), got, ref)
		}
	}

	for _, bad := range []string{"", "stock:", "re:", "re:abc", "re:0", "bond:X", "stockAAPL"} {
		if _, err := ParseKey(bad); err == nil {
			t.Errorf("ParseKey(%q) succeeded, want error", bad)
		}
	}
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func stockJournal(t *testing.T) *journaldomain.Journal {
	t.Helper()
	j := &journaldomain.Journal{UserID: "u1", Ticker: "AAPL"}
	j.Apply(journaldomain.Aggregate([]journaldomain.Trade{
		{Side: journaldomain.SideBuy, Quantity: mustDec(t, "10"), PricePerShare: mustDec(t, "100")},
		{Side: journaldomain.SideSell, Quantity: mustDec(t, "4"), PricePerShare: mustDec(t, "120")},
	}))
	return j
}

func TestProjectJournal(t *testing.T) {
	inst := &journaldomain.Instrument{
		Ticker:   "AAPL",
		Name:     "Apple Inc.",
		Sector:   "Technology",
		Currency: "USD",
	}

	h, err := ProjectJournal(stockJournal(t), inst)
	if err != nil {
		t.Fatalf("ProjectJournal() error: %v", err)
	}

	if h.AssetKey != "stock:AAPL" {
		t.Errorf("AssetKey = %q, want stock:AAPL", h.AssetKey)
	}
	if got, want := h.TotalQuantity, mustDec(t, "6"); !got.Equal(want) {
		t.Errorf("TotalQuantity = %s, want %s", got, want)
	}
	// 6 × 100
	if got, want := h.InvestedAmount, mustDec(t, "600"); !got.Equal(want) {
		t.Errorf("InvestedAmount = %s, want %s", got, want)
	}
	if got, want := h.TotalBuyAmount, mustDec(t, "1000"); !got.Equal(want) {
		t.Errorf("TotalBuyAmount = %s, want %s", got, want)
	}
	if got, want := h.TotalSellAmount, mustDec(t, "480"); !got.Equal(want) {
		t.Errorf("TotalSellAmount = %s, want %s", got, want)
	}
	if h.CurrencyCode != "USD" {
		t.Errorf("CurrencyCode = %q, want USD", h.CurrencyCode)
	}
	if h.SectorOrRegion != "Technology" {
		t.Errorf("SectorOrRegion = %q, want Technology", h.SectorOrRegion)
	}
	// 仍为 open 状态，已实现收益为 0
	if !h.RealizedProfit.IsZero() {
		t.Errorf("RealizedProfit = %s, want 0 while open", h.RealizedProfit)
	}
}

func TestProjectJournalIdempotent(t *testing.T) {
	j := stockJournal(t)

	h1, err := ProjectJournal(j, nil)
	if err != nil {
		t.Fatalf("ProjectJournal() error: %v", err)
	}
	h2, err := ProjectJournal(j, nil)
	if err != nil {
		t.Fatalf("ProjectJournal() error: %v", err)
	}

	if h1.AssetKey != h2.AssetKey ||
		!h1.TotalQuantity.Equal(h2.TotalQuantity) ||
		!h1.InvestedAmount.Equal(h2.InvestedAmount) ||
		!h1.RealizedProfit.Equal(h2.RealizedProfit) {
		t.Error("projecting the same journal state twice produced different holdings")
	}
}

func TestProjectJournalEmptyLedger(t *testing.T) {
	j := &journaldomain.Journal{UserID: "u1", Ticker: "AAPL"}
	j.Apply(journaldomain.Aggregate(nil))

	h, err := ProjectJournal(j, nil)
	if err != nil {
		t.Fatalf("ProjectJournal() error: %v", err)
	}
	if !h.InvestedAmount.IsZero() || !h.TotalQuantity.IsZero() {
		t.Error("empty ledger must project a zeroed holding, not fail")
	}
	if h.AvgBuyPrice != nil {
		t.Errorf("AvgBuyPrice = %s, want nil", h.AvgBuyPrice)
	}
}

func TestProjectDeal(t *testing.T) {
	deal := &journaldomain.Deal{
		UserID:     "u1",
		PropertyID: 12345,
		DealType:   journaldomain.DealTypeSale,
		AmountMain: mustDec(t, "850000000"),
	}
	prop := &journaldomain.Property{
		BuildingName: "래미안",
		AddressBase:  "서울 서초구",
		Dong:         "반포동",
	}

	h, err := ProjectDeal(deal, prop)
	if err != nil {
		t.Fatalf("ProjectDeal() error: %v", err)
	}

	if h.AssetKey != "re:12345" {
		t.Errorf("AssetKey = %q, want re:12345", h.AssetKey)
	}
	if got, want := h.TotalQuantity, decimal.NewFromInt(1); !got.Equal(want) {
		t.Errorf("TotalQuantity = %s, want 1", got)
	}
	if got, want := h.InvestedAmount, mustDec(t, "850000000"); !got.Equal(want) {
		t.Errorf("InvestedAmount = %s, want %s", got, want)
	}
	if h.CurrencyCode != "KRW" {
		t.Errorf("CurrencyCode = %q, want KRW", h.CurrencyCode)
	}
	if h.SectorOrRegion != "서울 서초구 반포동" {
		t.Errorf("SectorOrRegion = %q, want region label", h.SectorOrRegion)
	}
}

func TestSnapshotOf(t *testing.T) {
	avg := mustDec(t, "100")
	h := &Holding{
		UserID:         "u1",
		AssetKey:       "stock:AAPL",
		AssetType:      AssetStock,
		Ticker:         "AAPL",
		TotalQuantity:  mustDec(t, "6"),
		AvgBuyPrice:    &avg,
		InvestedAmount: mustDec(t, "600"),
		CurrencyCode:   "USD",
	}

	day := time.Date(2026, 8, 31, 15, 4, 5, 0, time.UTC)
	s := SnapshotOf(h, day, mustDec(t, "110"))

	if got, want := s.MarketValue, mustDec(t, "660"); !got.Equal(want) {
		t.Errorf("MarketValue = %s, want %s", got, want)
	}
	if !s.SnapshotDate.Equal(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("SnapshotDate = %s, want truncated to day", s.SnapshotDate)
	}
	if s.CurrencyCode != "USD" {
		t.Errorf("CurrencyCode = %q, want USD", s.CurrencyCode)
	}
	if got, want := s.InvestedAmount, h.InvestedAmount; !got.Equal(want) {
		t.Errorf("InvestedAmount = %s, want %s", got, want)
	}
}
