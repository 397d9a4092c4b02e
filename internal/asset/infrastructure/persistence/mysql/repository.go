// Package mysql 持仓与快照投影的 GORM 仓储实现
package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dhet13/finnote/internal/asset/domain"
	"github.com/dhet13/finnote/pkg/contextx"
	"github.com/dhet13/finnote/pkg/db"
)

func session(ctx context.Context, database *db.DB) *gorm.DB {
	if tx := contextx.Tx(ctx); tx != nil {
		return tx
	}
	return database.DB.WithContext(ctx)
}

// HoldingRepository 持仓投影仓储实现
type HoldingRepository struct {
	db *db.DB
}

// NewHoldingRepository 创建持仓投影仓储
func NewHoldingRepository(database *db.DB) *HoldingRepository {
	return &HoldingRepository{db: database}
}

// holdingDerivedColumns Upsert 冲突时只覆盖派生字段，身份字段（user_id/asset_key/asset_type 等）不变
var holdingDerivedColumns = []string{
	"asset_name", "sector_or_region", "currency_code",
	"total_quantity", "avg_buy_price", "invested_amount",
	"realized_profit", "total_buy_amount", "total_sell_amount",
	"updated_at",
}

// Upsert 不存在则创建，(user_id, asset_key) 冲突时覆盖派生字段
func (r *HoldingRepository) Upsert(ctx context.Context, h *domain.Holding) error {
	h.UpdatedAt = time.Now()
	return db.Upsert(session(ctx, r.db), h,
		[]string{"user_id", "asset_key"}, holdingDerivedColumns)
}

// Get 按 (用户, 资产) 获取持仓
func (r *HoldingRepository) Get(ctx context.Context, userID string, ref domain.AssetRef) (*domain.Holding, error) {
	var h domain.Holding
	err := session(ctx, r.db).
		Where("user_id = ? AND asset_key = ?", userID, ref.Key()).
		First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrHoldingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// List 按资产类别列出用户持仓，assetType 为空时返回全部
func (r *HoldingRepository) List(ctx context.Context, userID string, assetType domain.AssetType) ([]*domain.Holding, error) {
	query := session(ctx, r.db).Where("user_id = ?", userID)
	if assetType != "" {
		query = query.Where("asset_type = ?", assetType)
	}

	var holdings []*domain.Holding
	if err := query.Order("asset_key ASC").Find(&holdings).Error; err != nil {
		return nil, err
	}
	return holdings, nil
}

// Delete 删除持仓投影
func (r *HoldingRepository) Delete(ctx context.Context, userID string, ref domain.AssetRef) error {
	return session(ctx, r.db).
		Where("user_id = ? AND asset_key = ?", userID, ref.Key()).
		Delete(&domain.Holding{}).Error
}

// SnapshotRepository 估值快照仓储实现
type SnapshotRepository struct {
	db *db.DB
}

// NewSnapshotRepository 创建估值快照仓储
func NewSnapshotRepository(database *db.DB) *SnapshotRepository {
	return &SnapshotRepository{db: database}
}

// Upsert (user_id, asset_key, snapshot_date) 冲突时覆盖估值字段，同日重算不产生重复行
func (r *SnapshotRepository) Upsert(ctx context.Context, s *domain.Snapshot) error {
	s.UpdatedAt = time.Now()
	return db.Upsert(session(ctx, r.db), s,
		[]string{"user_id", "asset_key", "snapshot_date"},
		[]string{"quantity", "avg_buy_price", "invested_amount",
			"market_price", "market_value", "currency_code", "updated_at"})
}

// Latest 返回某资产最近一次快照，没有时返回 nil
func (r *SnapshotRepository) Latest(ctx context.Context, userID string, ref domain.AssetRef) (*domain.Snapshot, error) {
	var s domain.Snapshot
	err := session(ctx, r.db).
		Where("user_id = ? AND asset_key = ?", userID, ref.Key()).
		Order("snapshot_date DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteByUser 清空用户全部快照
func (r *SnapshotRepository) DeleteByUser(ctx context.Context, userID string) error {
	return session(ctx, r.db).
		Where("user_id = ?", userID).
		Delete(&domain.Snapshot{}).Error
}

// ListRange 返回窗口内快照，按日期升序
func (r *SnapshotRepository) ListRange(ctx context.Context, userID string, assetType domain.AssetType, from, to time.Time) ([]*domain.Snapshot, error) {
	query := session(ctx, r.db).
		Where("user_id = ? AND snapshot_date >= ? AND snapshot_date <= ?", userID, from, to)
	if assetType != "" {
		query = query.Where("asset_type = ?", assetType)
	}

	var snapshots []*domain.Snapshot
	if err := query.Order("snapshot_date ASC, asset_key ASC").Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}
