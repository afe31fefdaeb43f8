package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
	"github.com/glowmart/storefront-backend/pkg/outbox/payloads"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate notifications table: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedNotification(t *testing.T, db *gorm.DB, customerID uuid.UUID, read bool) models.Notification {
	t.Helper()
	notification := models.Notification{
		ID:         uuid.New(),
		CustomerID: customerID,
		Type:       enums.NotificationTypeOrderStatus,
		Message:    "Your order is on its way.",
	}
	if read {
		now := time.Now()
		notification.ReadAt = &now
	}
	if err := db.Create(&notification).Error; err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	return notification
}

func TestListFiltersUnread(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := newTestService(t, db)
	customerID := uuid.New()
	seedNotification(t, db, customerID, true)
	unread := seedNotification(t, db, customerID, false)
	seedNotification(t, db, uuid.New(), false)

	all, err := svc.List(context.Background(), ListParams{CustomerID: customerID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(all))
	}

	onlyUnread, err := svc.List(context.Background(), ListParams{CustomerID: customerID, UnreadOnly: true})
	if err != nil {
		t.Fatalf("List unread: %v", err)
	}
	if len(onlyUnread) != 1 || onlyUnread[0].ID != unread.ID {
		t.Fatalf("expected only the unread notification, got %d", len(onlyUnread))
	}
}

func TestMarkRead(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := newTestService(t, db)
	customerID := uuid.New()
	notification := seedNotification(t, db, customerID, false)

	if err := svc.MarkRead(context.Background(), customerID, notification.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	// idempotent
	if err := svc.MarkRead(context.Background(), customerID, notification.ID); err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}

	var got models.Notification
	if err := db.Where("id = ?", notification.ID).First(&got).Error; err != nil {
		t.Fatalf("load notification: %v", err)
	}
	if got.ReadAt == nil {
		t.Fatalf("read_at not set")
	}

	err := svc.MarkRead(context.Background(), uuid.New(), notification.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign customer, got %v", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := newTestService(t, db)
	customerID := uuid.New()
	seedNotification(t, db, customerID, false)
	seedNotification(t, db, customerID, false)
	seedNotification(t, db, customerID, true)

	updated, err := svc.MarkAllRead(context.Background(), customerID)
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 updated rows, got %d", updated)
	}
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func TestBuildNotification(t *testing.T) {
	t.Parallel()
	customerID := uuid.New()
	orderID := uuid.New()

	created, err := buildNotification(enums.EventOrderCreated, mustJSON(t, payloads.OrderCreatedEvent{
		OrderID:    orderID,
		CustomerID: customerID,
		TotalCents: 10150,
	}))
	if err != nil {
		t.Fatalf("buildNotification: %v", err)
	}
	if created.Type != enums.NotificationTypeOrderCreated {
		t.Fatalf("unexpected type %s", created.Type)
	}
	if created.Message != "Your order has been placed. Total: 101.50." {
		t.Fatalf("unexpected message %q", created.Message)
	}
	if created.OrderID == nil || *created.OrderID != orderID {
		t.Fatalf("order id not carried over")
	}

	cancelled, err := buildNotification(enums.EventOrderCancelled, mustJSON(t, payloads.OrderCancelledEvent{
		OrderID:        orderID,
		CustomerID:     customerID,
		PointsRefunded: 150,
	}))
	if err != nil {
		t.Fatalf("buildNotification cancelled: %v", err)
	}
	if cancelled.Message != "Your order has been cancelled. 150 points were returned to your account." {
		t.Fatalf("unexpected message %q", cancelled.Message)
	}

	prompt, err := buildNotification(enums.EventDeliveryConfirmationRequested, mustJSON(t, payloads.DeliveryConfirmationRequestedEvent{
		OrderID:    orderID,
		CustomerID: customerID,
	}))
	if err != nil {
		t.Fatalf("buildNotification prompt: %v", err)
	}
	if prompt.Type != enums.NotificationTypeDeliveryConfirm {
		t.Fatalf("unexpected type %s", prompt.Type)
	}

	unhandled, err := buildNotification(enums.EventOrderPaid, mustJSON(t, payloads.OrderPaidEvent{
		OrderID:    orderID,
		CustomerID: customerID,
	}))
	if err != nil {
		t.Fatalf("buildNotification unhandled: %v", err)
	}
	if unhandled != nil {
		t.Fatalf("order_paid should not notify, got %+v", unhandled)
	}

	if _, err := buildNotification(enums.EventOrderCreated, mustJSON(t, payloads.OrderCreatedEvent{OrderID: orderID})); err == nil {
		t.Fatalf("expected error for missing customer id")
	}
}
