package domain

import (
	"context"
	"time"
)

// TxManager 把一次写入路径包进单个事务：交易写入、聚合重算、持仓投影与快照写入要么全部成功要么全部回滚
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// InstrumentRepository 证券信息仓储
type InstrumentRepository interface {
	// GetOrCreate 按代码获取证券，不存在时以给定名称懒创建
	GetOrCreate(ctx context.Context, ticker, name string) (*Instrument, error)
	Get(ctx context.Context, ticker string) (*Instrument, error)
	Save(ctx context.Context, inst *Instrument) error
}

// JournalRepository 交易日志仓储
type JournalRepository interface {
	GetByID(ctx context.Context, id uint) (*Journal, error)
	// GetOrCreate 按 (用户, 证券) 获取日志，不存在时创建 open 状态的新日志
	GetOrCreate(ctx context.Context, userID, ticker string) (*Journal, error)
	// SaveAggregates 回写聚合字段，聚合字段只能经由重算落库
	SaveAggregates(ctx context.Context, j *Journal) error
	// SavePlan 回写目标价/止损价计划字段
	SavePlan(ctx context.Context, j *Journal) error
	ListByUser(ctx context.Context, userID string) ([]*Journal, error)
}

// TradeRepository 交易仓储
type TradeRepository interface {
	GetByID(ctx context.Context, id uint) (*Trade, error)
	Create(ctx context.Context, t *Trade) error
	Delete(ctx context.Context, id uint) error
	// ListByJournal 返回一个日志的完整交易集合，聚合重算的唯一输入
	ListByJournal(ctx context.Context, journalID uint) ([]Trade, error)
	// ListByUserChronological 按交易日升序返回用户全部交易，历史重放用
	ListByUserChronological(ctx context.Context, userID string) ([]Trade, error)
}

// PropertyRepository 物业信息仓储
type PropertyRepository interface {
	GetOrCreate(ctx context.Context, p *Property) (*Property, error)
	Get(ctx context.Context, id uint) (*Property, error)
}

// DealRepository 不动产成交仓储
type DealRepository interface {
	GetByID(ctx context.Context, id uint) (*Deal, error)
	Create(ctx context.Context, d *Deal) error
	ListByUser(ctx context.Context, userID string) ([]*Deal, error)
}

// EventPublisher 领域事件发布，发布失败只记录不阻断写入路径
type EventPublisher interface {
	PublishJournalUpdated(ctx context.Context, evt JournalUpdatedEvent)
}

// JournalUpdatedEvent 日志聚合重算完成事件
type JournalUpdatedEvent struct {
	UserID     string    `json:"user_id"`
	Ticker     string    `json:"ticker"`
	JournalID  uint      `json:"journal_id"`
	Status     Status    `json:"status"`
	NetQty     string    `json:"net_qty"`
	OccurredOn time.Time `json:"occurred_on"`
}
