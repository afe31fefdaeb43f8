package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	"github.com/glowmart/storefront-backend/pkg/logger"
	"github.com/glowmart/storefront-backend/pkg/outbox"
	"github.com/glowmart/storefront-backend/pkg/outbox/idempotency"
	"github.com/glowmart/storefront-backend/pkg/outbox/payloads"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns order lifecycle changes into
// in-app notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	rawType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": rawType,
	})

	eventType, err := enums.ParseOutboxEventType(rawType)
	if err != nil {
		c.logg.Info(logCtx, "skipping unknown event type")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notification, err := buildNotification(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	if notification == nil {
		c.logg.Info(logCtx, "event type not handled")
		return processResult{ack: true}
	}

	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "notification write failed", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"customer_id": notification.CustomerID.String(),
	}), "customer notified")
	return processResult{ack: true}
}

// buildNotification maps a domain event to the customer-facing message.
// A nil notification with nil error means the event needs no notification.
func buildNotification(eventType enums.OutboxEventType, data json.RawMessage) (*models.Notification, error) {
	switch eventType {
	case enums.EventOrderCreated:
		var payload payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.CustomerID == uuid.Nil {
			return nil, fmt.Errorf("customer id missing")
		}
		return &models.Notification{
			CustomerID: payload.CustomerID,
			OrderID:    &payload.OrderID,
			Type:       enums.NotificationTypeOrderCreated,
			Message:    fmt.Sprintf("Your order has been placed. Total: %s.", formatCents(payload.TotalCents)),
		}, nil

	case enums.EventOrderStatusChanged:
		var payload payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.CustomerID == uuid.Nil {
			return nil, fmt.Errorf("customer id missing")
		}
		return &models.Notification{
			CustomerID: payload.CustomerID,
			OrderID:    &payload.OrderID,
			Type:       enums.NotificationTypeOrderStatus,
			Message:    statusMessage(payload.ToStatus),
		}, nil

	case enums.EventOrderCancelled:
		var payload payloads.OrderCancelledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.CustomerID == uuid.Nil {
			return nil, fmt.Errorf("customer id missing")
		}
		message := "Your order has been cancelled."
		if payload.PointsRefunded > 0 {
			message = fmt.Sprintf("Your order has been cancelled. %d points were returned to your account.", payload.PointsRefunded)
		}
		return &models.Notification{
			CustomerID: payload.CustomerID,
			OrderID:    &payload.OrderID,
			Type:       enums.NotificationTypeOrderStatus,
			Message:    message,
		}, nil

	case enums.EventDeliveryConfirmationRequested:
		var payload payloads.DeliveryConfirmationRequestedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.CustomerID == uuid.Nil {
			return nil, fmt.Errorf("customer id missing")
		}
		return &models.Notification{
			CustomerID: payload.CustomerID,
			OrderID:    &payload.OrderID,
			Type:       enums.NotificationTypeDeliveryConfirm,
			Message:    "Has your order arrived? Tap to confirm delivery.",
		}, nil

	case enums.EventPointsConverted:
		var payload payloads.PointsConvertedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.CustomerID == uuid.Nil {
			return nil, fmt.Errorf("customer id missing")
		}
		return &models.Notification{
			CustomerID: payload.CustomerID,
			OrderID:    &payload.OrderID,
			Type:       enums.NotificationTypePointsCredited,
			Message:    fmt.Sprintf("%d loyalty points were credited for your cancelled online payment.", payload.PointsCredited),
		}, nil

	default:
		return nil, nil
	}
}

func statusMessage(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusProcessing:
		return "Your order is being processed."
	case enums.OrderStatusPrepared:
		return "Your order has been packed and is ready to ship."
	case enums.OrderStatusShipped:
		return "Your order is on its way."
	case enums.OrderStatusDelivered:
		return "Your order has been delivered. Thank you for shopping with us."
	default:
		return fmt.Sprintf("Your order status changed to %s.", status)
	}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
