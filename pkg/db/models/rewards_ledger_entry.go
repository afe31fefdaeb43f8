package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowmart/storefront-backend/pkg/enums"
)

// RewardsLedgerEntry is an immutable record of a points movement. The unique
// index over (order_id, reason) makes credits idempotent per order and reason.
type RewardsLedgerEntry struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID          `gorm:"column:customer_id;type:uuid;not null;index"`
	Points     int                `gorm:"column:points;not null"`
	Reason     enums.LedgerReason `gorm:"column:reason;type:text;not null;uniqueIndex:ux_rewards_ledger_order_reason"`
	OrderID    *uuid.UUID         `gorm:"column:order_id;type:uuid;uniqueIndex:ux_rewards_ledger_order_reason"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}
