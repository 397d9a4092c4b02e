package application

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	assetdomain "github.com/dhet13/finnote/internal/asset/domain"
	"github.com/dhet13/finnote/internal/journal/domain"
	mdapp "github.com/dhet13/finnote/internal/marketdata/application"
)

// 内存仓储，事务语义简化为直通执行

type fakeTxManager struct{}

func (fakeTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeInstrumentRepo struct {
	byTicker map[string]*domain.Instrument
}

func newFakeInstrumentRepo() *fakeInstrumentRepo {
	return &fakeInstrumentRepo{byTicker: map[string]*domain.Instrument{}}
}

func (r *fakeInstrumentRepo) GetOrCreate(ctx context.Context, ticker, name string) (*domain.Instrument, error) {
	if inst, ok := r.byTicker[ticker]; ok {
		return inst, nil
	}
	if name == "" {
		name = ticker
	}
	inst := &domain.Instrument{Ticker: ticker, Name: name}
	r.byTicker[ticker] = inst
	return inst, nil
}

func (r *fakeInstrumentRepo) Get(ctx context.Context, ticker string) (*domain.Instrument, error) {
	if inst, ok := r.byTicker[ticker]; ok {
		return inst, nil
	}
	return nil, domain.ErrInstrumentNotFound
}

func (r *fakeInstrumentRepo) Save(ctx context.Context, inst *domain.Instrument) error {
	r.byTicker[inst.Ticker] = inst
	return nil
}

type fakeJournalRepo struct {
	byID   map[uint]*domain.Journal
	nextID uint
}

func newFakeJournalRepo() *fakeJournalRepo {
	return &fakeJournalRepo{byID: map[uint]*domain.Journal{}, nextID: 1}
}

func (r *fakeJournalRepo) GetByID(ctx context.Context, id uint) (*domain.Journal, error) {
	if j, ok := r.byID[id]; ok {
		return j, nil
	}
	return nil, domain.ErrJournalNotFound
}

func (r *fakeJournalRepo) GetOrCreate(ctx context.Context, userID, ticker string) (*domain.Journal, error) {
	for _, j := range r.byID {
		if j.UserID == userID && j.Ticker == ticker {
			return j, nil
		}
	}
	j := &domain.Journal{UserID: userID, Ticker: ticker, Status: domain.StatusOpen}
	j.ID = r.nextID
	r.nextID++
	r.byID[j.ID] = j
	return j, nil
}

func (r *fakeJournalRepo) SaveAggregates(ctx context.Context, j *domain.Journal) error {
	r.byID[j.ID] = j
	return nil
}

func (r *fakeJournalRepo) SavePlan(ctx context.Context, j *domain.Journal) error {
	r.byID[j.ID] = j
	return nil
}

func (r *fakeJournalRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Journal, error) {
	var out []*domain.Journal
	for _, j := range r.byID {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

type fakeTradeRepo struct {
	byID   map[uint]*domain.Trade
	nextID uint
}

func newFakeTradeRepo() *fakeTradeRepo {
	return &fakeTradeRepo{byID: map[uint]*domain.Trade{}, nextID: 1}
}

func (r *fakeTradeRepo) GetByID(ctx context.Context, id uint) (*domain.Trade, error) {
	if t, ok := r.byID[id]; ok {
		return t, nil
	}
	return nil, domain.ErrTradeNotFound
}

func (r *fakeTradeRepo) Create(ctx context.Context, t *domain.Trade) error {
	t.ID = r.nextID
	r.nextID++
	r.byID[t.ID] = t
	return nil
}

func (r *fakeTradeRepo) Delete(ctx context.Context, id uint) error {
	if _, ok := r.byID[id]; !ok {
		return domain.ErrTradeNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *fakeTradeRepo) ListByJournal(ctx context.Context, journalID uint) ([]domain.Trade, error) {
	var out []domain.Trade
	for _, t := range r.byID {
		if t.JournalID == journalID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTradeRepo) ListByUserChronological(ctx context.Context, userID string) ([]domain.Trade, error) {
	var out []domain.Trade
	for _, t := range r.byID {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].TradeDate.Equal(out[k].TradeDate) {
			return out[i].TradeDate.Before(out[k].TradeDate)
		}
		return out[i].ID < out[k].ID
	})
	return out, nil
}

type fakePropertyRepo struct {
	byID   map[uint]*domain.Property
	nextID uint
}

func newFakePropertyRepo() *fakePropertyRepo {
	return &fakePropertyRepo{byID: map[uint]*domain.Property{}, nextID: 1}
}

func (r *fakePropertyRepo) GetOrCreate(ctx context.Context, p *domain.Property) (*domain.Property, error) {
	for _, existing := range r.byID {
		if existing.BuildingName == p.BuildingName &&
			existing.AddressBase == p.AddressBase && existing.Dong == p.Dong {
			return existing, nil
		}
	}
	p.ID = r.nextID
	r.nextID++
	r.byID[p.ID] = p
	return p, nil
}

func (r *fakePropertyRepo) Get(ctx context.Context, id uint) (*domain.Property, error) {
	if p, ok := r.byID[id]; ok {
		return p, nil
	}
	return nil, domain.ErrPropertyNotFound
}

type fakeDealRepo struct {
	byID   map[uint]*domain.Deal
	nextID uint
}

func newFakeDealRepo() *fakeDealRepo {
	return &fakeDealRepo{byID: map[uint]*domain.Deal{}, nextID: 1}
}

func (r *fakeDealRepo) GetByID(ctx context.Context, id uint) (*domain.Deal, error) {
	if d, ok := r.byID[id]; ok {
		return d, nil
	}
	return nil, domain.ErrDealNotFound
}

func (r *fakeDealRepo) Create(ctx context.Context, d *domain.Deal) error {
	d.ID = r.nextID
	r.nextID++
	r.byID[d.ID] = d
	return nil
}

func (r *fakeDealRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Deal, error) {
	var out []*domain.Deal
	for _, d := range r.byID {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

type fakeHoldingRepo struct {
	byKey map[string]*assetdomain.Holding
}

func newFakeHoldingRepo() *fakeHoldingRepo {
	return &fakeHoldingRepo{byKey: map[string]*assetdomain.Holding{}}
}

func holdingKey(userID, assetKey string) string { return userID + "|" + assetKey }

func (r *fakeHoldingRepo) Upsert(ctx context.Context, h *assetdomain.Holding) error {
	r.byKey[holdingKey(h.UserID, h.AssetKey)] = h
	return nil
}

func (r *fakeHoldingRepo) Get(ctx context.Context, userID string, ref assetdomain.AssetRef) (*assetdomain.Holding, error) {
	if h, ok := r.byKey[holdingKey(userID, ref.Key())]; ok {
		return h, nil
	}
	return nil, assetdomain.ErrHoldingNotFound
}

func (r *fakeHoldingRepo) List(ctx context.Context, userID string, assetType assetdomain.AssetType) ([]*assetdomain.Holding, error) {
	var out []*assetdomain.Holding
	for _, h := range r.byKey {
		if h.UserID != userID {
			continue
		}
		if assetType != "" && h.AssetType != assetType {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].AssetKey < out[k].AssetKey })
	return out, nil
}

func (r *fakeHoldingRepo) Delete(ctx context.Context, userID string, ref assetdomain.AssetRef) error {
	delete(r.byKey, holdingKey(userID, ref.Key()))
	return nil
}

type fakeSnapshotRepo struct {
	byKey map[string]*assetdomain.Snapshot
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{byKey: map[string]*assetdomain.Snapshot{}}
}

func snapshotKey(userID, assetKey string, day time.Time) string {
	return userID + "|" + assetKey + "|" + day.Format("2006-01-02")
}

func (r *fakeSnapshotRepo) Upsert(ctx context.Context, s *assetdomain.Snapshot) error {
	r.byKey[snapshotKey(s.UserID, s.AssetKey, s.SnapshotDate)] = s
	return nil
}

func (r *fakeSnapshotRepo) Latest(ctx context.Context, userID string, ref assetdomain.AssetRef) (*assetdomain.Snapshot, error) {
	var latest *assetdomain.Snapshot
	for _, s := range r.byKey {
		if s.UserID != userID || s.AssetKey != ref.Key() {
			continue
		}
		if latest == nil || s.SnapshotDate.After(latest.SnapshotDate) {
			latest = s
		}
	}
	return latest, nil
}

func (r *fakeSnapshotRepo) DeleteByUser(ctx context.Context, userID string) error {
	for key, s := range r.byKey {
		if s.UserID == userID {
			delete(r.byKey, key)
		}
	}
	return nil
}

func (r *fakeSnapshotRepo) ListRange(ctx context.Context, userID string, assetType assetdomain.AssetType, from, to time.Time) ([]*assetdomain.Snapshot, error) {
	var out []*assetdomain.Snapshot
	for _, s := range r.byKey {
		if s.UserID != userID {
			continue
		}
		if assetType != "" && s.AssetType != assetType {
			continue
		}
		if s.SnapshotDate.Before(from) || s.SnapshotDate.After(to) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].SnapshotDate.Equal(out[k].SnapshotDate) {
			return out[i].SnapshotDate.Before(out[k].SnapshotDate)
		}
		return out[i].AssetKey < out[k].AssetKey
	})
	return out, nil
}

type fakePublisher struct {
	events []domain.JournalUpdatedEvent
}

func (p *fakePublisher) PublishJournalUpdated(ctx context.Context, evt domain.JournalUpdatedEvent) {
	p.events = append(p.events, evt)
}

type fakePriceLookup struct {
	prices map[string]decimal.Decimal
	closes map[string]decimal.Decimal
}

func (p *fakePriceLookup) GetPrice(ctx context.Context, ticker string) (*mdapp.PriceResult, error) {
	if price, ok := p.prices[ticker]; ok {
		return &mdapp.PriceResult{Price: price, Currency: "KRW"}, nil
	}
	return nil, context.DeadlineExceeded
}

func (p *fakePriceLookup) RefreshLastClose(ctx context.Context, ticker string, price decimal.Decimal) error {
	if p.closes == nil {
		p.closes = map[string]decimal.Decimal{}
	}
	p.closes[ticker] = price
	return nil
}

// testEnv 组装一套内存依赖的应用服务
type testEnv struct {
	svc         *JournalService
	instruments *fakeInstrumentRepo
	journals    *fakeJournalRepo
	trades      *fakeTradeRepo
	properties  *fakePropertyRepo
	deals       *fakeDealRepo
	holdings    *fakeHoldingRepo
	snapshots   *fakeSnapshotRepo
	publisher   *fakePublisher
	prices      *fakePriceLookup
}

func newTestEnv() *testEnv {
	env := &testEnv{
		instruments: newFakeInstrumentRepo(),
		journals:    newFakeJournalRepo(),
		trades:      newFakeTradeRepo(),
		properties:  newFakePropertyRepo(),
		deals:       newFakeDealRepo(),
		holdings:    newFakeHoldingRepo(),
		snapshots:   newFakeSnapshotRepo(),
		publisher:   &fakePublisher{},
		prices:      &fakePriceLookup{prices: map[string]decimal.Decimal{}},
	}
	env.svc = NewJournalService(
		fakeTxManager{},
		env.instruments, env.journals, env.trades,
		env.properties, env.deals,
		env.holdings, env.snapshots,
		env.publisher, env.prices, nil,
	)
	return env
}
