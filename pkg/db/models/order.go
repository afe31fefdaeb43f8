package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowmart/storefront-backend/pkg/enums"
	"github.com/glowmart/storefront-backend/pkg/types"
)

// Order is the persisted result of a committed checkout. Created atomically
// with its side-effect debits; owned by the lifecycle manager afterwards.
type Order struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`

	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`

	ShippingAddress types.Address `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	ContactPhone    string        `gorm:"column:contact_phone;not null"`

	SubtotalCents        int     `gorm:"column:subtotal_cents;not null"`
	VoucherCode          *string `gorm:"column:voucher_code"`
	VoucherDiscountCents int     `gorm:"column:voucher_discount_cents;not null;default:0"`
	PointsRedeemed       int     `gorm:"column:points_redeemed;not null;default:0"`
	PointsDiscountCents  int     `gorm:"column:points_discount_cents;not null;default:0"`
	TotalCents           int     `gorm:"column:total_cents;not null"`

	GatewayOrderRef   *string `gorm:"column:gateway_order_ref"`
	GatewayRequestRef *string `gorm:"column:gateway_request_ref"`

	ProcessAfter        *time.Time `gorm:"column:process_after;index"`
	DeliveryPromptAt    *time.Time `gorm:"column:delivery_prompt_at;index"`
	DeliveryPromptCount int        `gorm:"column:delivery_prompt_count;not null;default:0"`
	DeliveredAt         *time.Time `gorm:"column:delivered_at"`
	CancelledAt         *time.Time `gorm:"column:cancelled_at"`

	Items []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
