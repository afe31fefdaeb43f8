package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem tracks available/sold counts per product. AvailableQty only
// moves through the inventory ledger's conditional statements.
type InventoryItem struct {
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	SoldQty      int       `gorm:"column:sold_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
