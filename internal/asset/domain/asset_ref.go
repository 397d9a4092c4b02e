// Package domain 资产投影的领域模型：带标签的资产标识、当前持仓与估值快照
package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// AssetType 资产类别
type AssetType string

const (
	AssetStock      AssetType = "stock"
	AssetRealEstate AssetType = "real_estate"
)

var (
	ErrAmbiguousAssetRef = errors.New("asset ref must carry exactly one of ticker or property id")
	ErrBadAssetKey       = errors.New("malformed asset key")
	ErrHoldingNotFound   = errors.New("holding not found")
)

// AssetRef 资产标识的和类型：股票用证券代码，不动产用物业 ID，二者有且仅有一个。
// 显式建模，避免到处解析字符串键
type AssetRef struct {
	Type       AssetType
	Ticker     string
	PropertyID uint
}

// StockRef 构造股票资产标识
func StockRef(ticker string) AssetRef {
	return AssetRef{Type: AssetStock, Ticker: ticker}
}

// RealEstateRef 构造不动产资产标识
func RealEstateRef(propertyID uint) AssetRef {
	return AssetRef{Type: AssetRealEstate, PropertyID: propertyID}
}

// Validate 校验标识恰好携带一种键，键歧义是数据完整性违规，必须在写入时拒绝
func (r AssetRef) Validate() error {
	switch r.Type {
	case AssetStock:
		if r.Ticker == "" || r.PropertyID != 0 {
			return ErrAmbiguousAssetRef
		}
	case AssetRealEstate:
		if r.PropertyID == 0 || r.Ticker != "" {
			return ErrAmbiguousAssetRef
		}
	default:
		return ErrAmbiguousAssetRef
	}
	return nil
}

// Key 持久化用的多态键，形如 "stock:AAPL" / "re:123"
func (r AssetRef) Key() string {
	if r.Type == AssetRealEstate {
		return fmt.Sprintf("re:%d", r.PropertyID)
	}
	return "stock:" + r.Ticker
}

// ParseKey 从持久化键还原资产标识
func ParseKey(key string) (AssetRef, error) {
	prefix, rest, ok := strings.Cut(key, ":")
	if !ok || rest == "" {
		return AssetRef{}, ErrBadAssetKey
	}
	switch prefix {
	case "stock":
		return StockRef(rest), nil
	case "re":
		id, err := strconv.ParseUint(rest, 10, 64)
		if err != nil || id == 0 {
			return AssetRef{}, ErrBadAssetKey
		}
		return RealEstateRef(uint(id)), nil
	default:
		return AssetRef{}, ErrBadAssetKey
	}
}
