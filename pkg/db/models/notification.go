package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowmart/storefront-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to customers.
type Notification struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID              `gorm:"column:customer_id;type:uuid;not null;index"`
	OrderID    *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	Type       enums.NotificationType `gorm:"column:type;type:text;not null"`
	Message    string                 `gorm:"column:message;not null"`
	ReadAt     *time.Time             `gorm:"column:read_at"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
}
