package models

import (
	"time"

	"github.com/google/uuid"
)

// VoucherClaim counts how many times one customer has used one voucher. The
// unique index keeps concurrent first claims from inserting twice.
type VoucherClaim struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID  uuid.UUID `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:ux_voucher_claims_customer_code"`
	VoucherCode string    `gorm:"column:voucher_code;not null;uniqueIndex:ux_voucher_claims_customer_code"`
	Uses        int       `gorm:"column:uses;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
