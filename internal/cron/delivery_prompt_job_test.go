package cron

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/internal/orders"
	"github.com/glowmart/storefront-backend/pkg/config"
	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	"github.com/glowmart/storefront-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cron_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate tables: %v", err)
	}
	return db
}

type testTxRunner struct {
	db *gorm.DB
}

func (r *testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func seedShippedOrder(t *testing.T, db *gorm.DB, promptCount int) models.Order {
	t.Helper()
	promptAt := time.Now().Add(-time.Hour)
	order := models.Order{
		ID:                  uuid.New(),
		CustomerID:          uuid.New(),
		Status:              enums.OrderStatusShipped,
		PaymentMethod:       enums.PaymentMethodCashOnDelivery,
		PaymentStatus:       enums.PaymentStatusUnpaid,
		ContactPhone:        "+33611112222",
		DeliveryPromptAt:    &promptAt,
		DeliveryPromptCount: promptCount,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func newPromptJob(t *testing.T, db *gorm.DB) Job {
	t.Helper()
	job, err := NewDeliveryPromptJob(DeliveryPromptJobParams{
		Logger: testLogger(),
		DB:     &testTxRunner{db: db},
		Orders: orders.NewRepository(db),
		Outbox: outbox.NewService(outbox.NewRepository(db), nil),
		Config: config.OrdersConfig{
			DeliveryPromptRetry: 24 * time.Hour,
			MaxDeliveryPrompts:  2,
		},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	return job
}

func promptEventCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventDeliveryConfirmationRequested).
		Count(&n).Error
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	return n
}

func TestDeliveryPromptJobEmitsAndReschedules(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	job := newPromptJob(t, db)
	order := seedShippedOrder(t, db, 0)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if n := promptEventCount(t, db); n != 1 {
		t.Fatalf("expected one prompt event, got %d", n)
	}
	var event models.OutboxEvent
	if err := db.Where("event_type = ?", enums.EventDeliveryConfirmationRequested).First(&event).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	wantKey := fmt.Sprintf("delivery_prompt:%s:1", order.ID)
	if event.DedupeKey == nil || *event.DedupeKey != wantKey {
		t.Fatalf("unexpected dedupe key %v", event.DedupeKey)
	}

	var got models.Order
	if err := db.Where("id = ?", order.ID).First(&got).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if got.DeliveryPromptCount != 1 {
		t.Fatalf("expected prompt count 1, got %d", got.DeliveryPromptCount)
	}
	if got.DeliveryPromptAt == nil || got.DeliveryPromptAt.Before(time.Now().Add(23*time.Hour)) {
		t.Fatalf("expected retry scheduled about 24h out, got %v", got.DeliveryPromptAt)
	}
}

func TestDeliveryPromptJobStopsAtCap(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	job := newPromptJob(t, db)
	order := seedShippedOrder(t, db, 1)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var got models.Order
	if err := db.Where("id = ?", order.ID).First(&got).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if got.DeliveryPromptCount != 2 {
		t.Fatalf("expected prompt count 2, got %d", got.DeliveryPromptCount)
	}
	if got.DeliveryPromptAt != nil {
		t.Fatalf("prompt cap reached, expected no reschedule, got %v", got.DeliveryPromptAt)
	}
	// nothing due anymore
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if n := promptEventCount(t, db); n != 1 {
		t.Fatalf("expected one prompt event, got %d", n)
	}
}

func TestDeliveryPromptJobDedupesRetries(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	job := newPromptJob(t, db)
	order := seedShippedOrder(t, db, 0)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	// a crashed cycle reruns with the stale snapshot; the dedupe key keeps
	// the queue clean
	stale := time.Now().Add(-time.Minute)
	err := db.Model(&models.Order{}).Where("id = ?", order.ID).
		Updates(map[string]interface{}{"delivery_prompt_count": 0, "delivery_prompt_at": stale}).Error
	if err != nil {
		t.Fatalf("rewind order: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if n := promptEventCount(t, db); n != 1 {
		t.Fatalf("expected dedupe to keep one event, got %d", n)
	}
}
