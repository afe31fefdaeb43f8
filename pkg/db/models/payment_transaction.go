package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowmart/storefront-backend/pkg/enums"
)

// PaymentTransaction records a verified gateway transaction linked to an
// order. The unique order_id index prevents double-crediting a single order.
type PaymentTransaction struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	GatewayOrderRef   string              `gorm:"column:gateway_order_ref;not null"`
	GatewayRequestRef string              `gorm:"column:gateway_request_ref;not null"`
	GatewayTxnID      string              `gorm:"column:gateway_txn_id;not null"`
	AmountCents       int                 `gorm:"column:amount_cents;not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
}
