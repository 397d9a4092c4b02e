package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DealType 不动产成交类型
type DealType string

const (
	DealTypeSale    DealType = "sale"    // 买卖
	DealTypeJeonse  DealType = "jeonse"  // 全租
	DealTypeMonthly DealType = "monthly" // 月租
)

var (
	ErrInvalidDealType  = errors.New("unknown deal type")
	ErrInvalidAmount    = errors.New("contract amount must be positive")
	ErrDealNotFound     = errors.New("deal not found")
	ErrPropertyNotFound = errors.New("property not found")
)

// Property 不动产基础信息，首次成交时懒创建
type Property struct {
	gorm.Model
	// PropertyType 物业类型（apartment 等）
	PropertyType string `gorm:"column:property_type;type:varchar(50);not null" json:"property_type"`
	// BuildingName 楼盘名称
	BuildingName string `gorm:"column:building_name;type:varchar(255);not null" json:"building_name"`
	// AddressBase 基础地址
	AddressBase string `gorm:"column:address_base;type:varchar(255);not null" json:"address_base"`
	// Dong 行政洞
	Dong string `gorm:"column:dong;type:varchar(50)" json:"dong"`
	// BuildYear 建成年份
	BuildYear int `gorm:"column:build_year" json:"build_year"`
}

func (Property) TableName() string { return "re_properties" }

// Region 地区标签，组合 breakdown 的分类字段
func (p *Property) Region() string {
	if p.AddressBase == "" {
		return "Unknown"
	}
	if p.Dong != "" {
		return p.AddressBase + " " + p.Dong
	}
	return p.AddressBase
}

// Deal 不动产成交记录。与股票不同，没有账本，一笔成交即一个持仓（数量固定为 1）
type Deal struct {
	gorm.Model
	// UserID 所属用户
	UserID string `gorm:"column:user_id;type:varchar(32);index:idx_user_property;not null" json:"user_id"`
	// PropertyID 对应物业
	PropertyID uint `gorm:"column:property_id;index:idx_user_property;not null" json:"property_id"`
	// DealType 成交类型
	DealType DealType `gorm:"column:deal_type;type:varchar(10);not null" json:"deal_type"`
	// ContractDate 合同日期
	ContractDate time.Time `gorm:"column:contract_date;type:date;index;not null" json:"contract_date"`
	// AmountMain 成交价/全租押金/保证金
	AmountMain decimal.Decimal `gorm:"column:amount_main;type:decimal(18,0);not null" json:"amount_main"`
	// AmountDeposit 押金
	AmountDeposit decimal.Decimal `gorm:"column:amount_deposit;type:decimal(18,0);not null;default:0" json:"amount_deposit"`
	// AmountMonthly 月租金
	AmountMonthly decimal.Decimal `gorm:"column:amount_monthly;type:decimal(18,0);not null;default:0" json:"amount_monthly"`
	// AreaM2 专有面积
	AreaM2 decimal.Decimal `gorm:"column:area_m2;type:decimal(8,2);not null;default:0" json:"area_m2"`
	// Floor 楼层
	Floor int `gorm:"column:floor;not null;default:0" json:"floor"`
	// LoanAmount 贷款金额，可空
	LoanAmount *decimal.Decimal `gorm:"column:loan_amount;type:decimal(18,0)" json:"loan_amount"`
	// LoanRate 贷款利率，可空
	LoanRate *decimal.Decimal `gorm:"column:loan_rate;type:decimal(6,2)" json:"loan_rate"`
}

func (Deal) TableName() string { return "re_deals" }

// Validate 在写入边界校验成交数据
func (d *Deal) Validate() error {
	switch d.DealType {
	case DealTypeSale, DealTypeJeonse, DealTypeMonthly:
	default:
		return ErrInvalidDealType
	}
	if !d.AmountMain.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
