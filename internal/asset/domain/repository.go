package domain

import (
	"context"
	"time"
)

// HoldingRepository 持仓投影仓储。Upsert 以 (user_id, asset_key) 唯一约束兜底，
// 多条写入路径并发调用也不会为同一资产产生重复行
type HoldingRepository interface {
	// Upsert 不存在则创建，存在则只覆盖派生字段，身份字段不变
	Upsert(ctx context.Context, h *Holding) error
	Get(ctx context.Context, userID string, ref AssetRef) (*Holding, error)
	// List 按资产类别列出用户持仓，assetType 为空时返回全部
	List(ctx context.Context, userID string, assetType AssetType) ([]*Holding, error)
	// Delete 删除持仓投影（底层日志/成交被清空时）
	Delete(ctx context.Context, userID string, ref AssetRef) error
}

// SnapshotRepository 估值快照仓储
type SnapshotRepository interface {
	// Upsert 以 (user_id, asset_key, snapshot_date) 为键，同日重复写入覆盖已有行
	Upsert(ctx context.Context, s *Snapshot) error
	// Latest 返回某资产最近一次快照，没有时返回 nil
	Latest(ctx context.Context, userID string, ref AssetRef) (*Snapshot, error)
	// ListRange 返回窗口内快照，按日期升序；assetType 为空时不过滤类别
	ListRange(ctx context.Context, userID string, assetType AssetType, from, to time.Time) ([]*Snapshot, error)
	// DeleteByUser 清空用户全部快照，历史重建前调用，保证重建结果只来自当前流水
	DeleteByUser(ctx context.Context, userID string) error
}
