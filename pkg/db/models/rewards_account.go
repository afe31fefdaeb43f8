package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowmart/storefront-backend/pkg/enums"
)

// RewardsAccount holds a customer's mutable loyalty balance. The balance only
// changes through the rewards ledger's conditional statements; history lives
// in RewardsLedgerEntry rows.
type RewardsAccount struct {
	CustomerID     uuid.UUID         `gorm:"column:customer_id;type:uuid;primaryKey"`
	PointsBalance  int               `gorm:"column:points_balance;not null;default:0"`
	LifetimePoints int               `gorm:"column:lifetime_points;not null;default:0"`
	Tier           enums.RewardsTier `gorm:"column:tier;type:text;not null;default:'bronze'"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
