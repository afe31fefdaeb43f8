package models

import (
	"time"

	"github.com/glowmart/storefront-backend/pkg/enums"
)

// Voucher is a discount grant with global and per-user issuance caps.
// IssuedCount only moves when an order commits, never speculatively.
type Voucher struct {
	Code             string            `gorm:"column:code;primaryKey"`
	Type             enums.VoucherType `gorm:"column:type;type:text;not null"`
	Value            int               `gorm:"column:value;not null"`
	MinOrderCents    int               `gorm:"column:min_order_cents;not null;default:0"`
	MaxDiscountCents int               `gorm:"column:max_discount_cents;not null;default:0"`
	StartsAt         time.Time         `gorm:"column:starts_at;not null"`
	ExpiresAt        time.Time         `gorm:"column:expires_at;not null"`
	TotalCap         int               `gorm:"column:total_cap;not null"`
	PerUserCap       int               `gorm:"column:per_user_cap;not null;default:1"`
	IssuedCount      int               `gorm:"column:issued_count;not null;default:0"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
