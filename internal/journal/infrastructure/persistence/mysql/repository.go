// Package mysql 交易日志模块的 GORM 仓储实现
package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dhet13/finnote/internal/journal/domain"
	"github.com/dhet13/finnote/pkg/contextx"
	"github.com/dhet13/finnote/pkg/db"
)

// TxManager 基于 GORM 事务实现，事务句柄经 context 传递给各仓储
type TxManager struct {
	db *db.DB
}

// NewTxManager 创建事务管理器
func NewTxManager(database *db.DB) *TxManager {
	return &TxManager{db: database}
}

// WithinTx 在单个事务中执行 fn，fn 内所有仓储调用复用同一事务
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	})
}

// session 优先取 context 中的事务句柄，事务外回落到普通连接
func session(ctx context.Context, database *db.DB) *gorm.DB {
	if tx := contextx.Tx(ctx); tx != nil {
		return tx
	}
	return database.DB.WithContext(ctx)
}

// InstrumentRepository 证券信息仓储实现
type InstrumentRepository struct {
	db *db.DB
}

// NewInstrumentRepository 创建证券信息仓储
func NewInstrumentRepository(database *db.DB) *InstrumentRepository {
	return &InstrumentRepository{db: database}
}

// GetOrCreate 按代码获取证券，不存在时以给定名称懒创建
func (r *InstrumentRepository) GetOrCreate(ctx context.Context, ticker, name string) (*domain.Instrument, error) {
	tx := session(ctx, r.db)

	var inst domain.Instrument
	err := tx.Where("ticker = ?", ticker).First(&inst).Error
	if err == nil {
		return &inst, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if name == "" {
		name = ticker
	}
	inst = domain.Instrument{Ticker: ticker, Name: name}
	if err := tx.Create(&inst).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

// Get 按代码获取证券
func (r *InstrumentRepository) Get(ctx context.Context, ticker string) (*domain.Instrument, error) {
	var inst domain.Instrument
	err := session(ctx, r.db).Where("ticker = ?", ticker).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInstrumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// Save 保存证券信息
func (r *InstrumentRepository) Save(ctx context.Context, inst *domain.Instrument) error {
	return session(ctx, r.db).Save(inst).Error
}

// JournalRepository 交易日志仓储实现
type JournalRepository struct {
	db *db.DB
}

// NewJournalRepository 创建交易日志仓储
func NewJournalRepository(database *db.DB) *JournalRepository {
	return &JournalRepository{db: database}
}

// GetByID 按主键获取日志并加行锁。
// 写路径在事务内先锁定日志行，同一账本的并发重算被串行化，聚合不会丢并发交易
func (r *JournalRepository) GetByID(ctx context.Context, id uint) (*domain.Journal, error) {
	var j domain.Journal
	err := session(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&j, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrJournalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetOrCreate 按 (用户, 证券) 获取日志并加行锁，不存在时创建 open 状态的新日志
func (r *JournalRepository) GetOrCreate(ctx context.Context, userID, ticker string) (*domain.Journal, error) {
	tx := session(ctx, r.db)

	var j domain.Journal
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND ticker = ?", userID, ticker).First(&j).Error
	if err == nil {
		return &j, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	j = domain.Journal{UserID: userID, Ticker: ticker, Status: domain.StatusOpen}
	if err := tx.Create(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// SaveAggregates 回写聚合字段。Updates 跳过零值，因此用 Select 显式列出全部聚合列，
// 保证重算结果（包括归零与置空）完整落库
func (r *JournalRepository) SaveAggregates(ctx context.Context, j *domain.Journal) error {
	return session(ctx, r.db).Model(j).
		Select("total_buy_qty", "total_sell_qty", "net_qty",
			"avg_buy_price", "avg_sell_price", "realized_pnl", "return_rate", "status").
		Updates(j).Error
}

// SavePlan 回写目标价/止损价计划字段
func (r *JournalRepository) SavePlan(ctx context.Context, j *domain.Journal) error {
	return session(ctx, r.db).Model(j).
		Select("target_price", "stop_price").
		Updates(j).Error
}

// ListByUser 返回用户全部日志
func (r *JournalRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Journal, error) {
	var journals []*domain.Journal
	err := session(ctx, r.db).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&journals).Error
	if err != nil {
		return nil, err
	}
	return journals, nil
}

// TradeRepository 交易仓储实现
type TradeRepository struct {
	db *db.DB
}

// NewTradeRepository 创建交易仓储
func NewTradeRepository(database *db.DB) *TradeRepository {
	return &TradeRepository{db: database}
}

// GetByID 按主键获取交易
func (r *TradeRepository) GetByID(ctx context.Context, id uint) (*domain.Trade, error) {
	var t domain.Trade
	err := session(ctx, r.db).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTradeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create 写入一笔交易
func (r *TradeRepository) Create(ctx context.Context, t *domain.Trade) error {
	return session(ctx, r.db).Create(t).Error
}

// Delete 删除一笔交易（软删除）
func (r *TradeRepository) Delete(ctx context.Context, id uint) error {
	result := session(ctx, r.db).Delete(&domain.Trade{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTradeNotFound
	}
	return nil
}

// ListByJournal 返回一个日志的完整交易集合
func (r *TradeRepository) ListByJournal(ctx context.Context, journalID uint) ([]domain.Trade, error) {
	var trades []domain.Trade
	err := session(ctx, r.db).
		Where("journal_id = ?", journalID).
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// ListByUserChronological 按交易日升序返回用户全部交易，同日内按主键升序保证重放顺序稳定
func (r *TradeRepository) ListByUserChronological(ctx context.Context, userID string) ([]domain.Trade, error) {
	var trades []domain.Trade
	err := session(ctx, r.db).
		Where("user_id = ?", userID).
		Order("trade_date ASC, id ASC").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// PropertyRepository 物业信息仓储实现
type PropertyRepository struct {
	db *db.DB
}

// NewPropertyRepository 创建物业信息仓储
func NewPropertyRepository(database *db.DB) *PropertyRepository {
	return &PropertyRepository{db: database}
}

// GetOrCreate 按 (楼盘, 地址, 洞) 匹配已有物业，不存在时创建
func (r *PropertyRepository) GetOrCreate(ctx context.Context, p *domain.Property) (*domain.Property, error) {
	tx := session(ctx, r.db)

	var existing domain.Property
	err := tx.Where("building_name = ? AND address_base = ? AND dong = ?",
		p.BuildingName, p.AddressBase, p.Dong).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := tx.Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// Get 按主键获取物业
func (r *PropertyRepository) Get(ctx context.Context, id uint) (*domain.Property, error) {
	var p domain.Property
	err := session(ctx, r.db).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPropertyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DealRepository 不动产成交仓储实现
type DealRepository struct {
	db *db.DB
}

// NewDealRepository 创建不动产成交仓储
func NewDealRepository(database *db.DB) *DealRepository {
	return &DealRepository{db: database}
}

// GetByID 按主键获取成交
func (r *DealRepository) GetByID(ctx context.Context, id uint) (*domain.Deal, error) {
	var d domain.Deal
	err := session(ctx, r.db).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDealNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create 写入一笔成交
func (r *DealRepository) Create(ctx context.Context, d *domain.Deal) error {
	return session(ctx, r.db).Create(d).Error
}

// ListByUser 按合同日期降序返回用户全部成交
func (r *DealRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Deal, error) {
	var deals []*domain.Deal
	err := session(ctx, r.db).
		Where("user_id = ?", userID).
		Order("contract_date DESC, id DESC").
		Find(&deals).Error
	if err != nil {
		return nil, err
	}
	return deals, nil
}
