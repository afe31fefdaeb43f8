package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem captures the price/discount snapshot of each ordered item.
type OrderLineItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name            string    `gorm:"column:name;not null"`
	Qty             int       `gorm:"column:qty;not null"`
	UnitPriceCents  int       `gorm:"column:unit_price_cents;not null"`
	DiscountPercent int       `gorm:"column:discount_percent;not null;default:0"`
	LineTotalCents  int       `gorm:"column:line_total_cents;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
