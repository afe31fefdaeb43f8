package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/glowmart/storefront-backend/pkg/config"
	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
)

type fakeDueReader struct {
	orders []models.Order
	err    error
}

func (f *fakeDueReader) FindDueForProcessing(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return f.orders, f.err
}

type fakeTransitioner struct {
	calls []uuid.UUID
	errs  map[uuid.UUID]error
}

func (f *fakeTransitioner) Transition(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) error {
	f.calls = append(f.calls, orderID)
	if from != enums.OrderStatusPending || to != enums.OrderStatusProcessing {
		panic("unexpected transition")
	}
	return f.errs[orderID]
}

func TestOrderProcessingJobPromotesDueOrders(t *testing.T) {
	first := models.Order{ID: uuid.New()}
	second := models.Order{ID: uuid.New()}
	transitioner := &fakeTransitioner{}
	job, err := NewOrderProcessingJob(OrderProcessingJobParams{
		Logger:    testLogger(),
		Orders:    &fakeDueReader{orders: []models.Order{first, second}},
		Lifecycle: transitioner,
		Config:    config.OrdersConfig{ProcessingBatchLimit: 50},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(transitioner.calls) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(transitioner.calls))
	}
}

func TestOrderProcessingJobIgnoresRacedCancellations(t *testing.T) {
	raced := models.Order{ID: uuid.New()}
	transitioner := &fakeTransitioner{
		errs: map[uuid.UUID]error{
			raced.ID: pkgerrors.New(pkgerrors.CodeConflict, "order is no longer pending"),
		},
	}
	job, err := NewOrderProcessingJob(OrderProcessingJobParams{
		Logger:    testLogger(),
		Orders:    &fakeDueReader{orders: []models.Order{raced}},
		Lifecycle: transitioner,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("a raced cancel is not a job failure: %v", err)
	}
}

func TestOrderProcessingJobCollectsErrors(t *testing.T) {
	broken := models.Order{ID: uuid.New()}
	healthy := models.Order{ID: uuid.New()}
	transitioner := &fakeTransitioner{
		errs: map[uuid.UUID]error{
			broken.ID: pkgerrors.New(pkgerrors.CodeInternal, "write failed"),
		},
	}
	job, err := NewOrderProcessingJob(OrderProcessingJobParams{
		Logger:    testLogger(),
		Orders:    &fakeDueReader{orders: []models.Order{broken, healthy}},
		Lifecycle: transitioner,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected aggregated error")
	}
	// the failure must not stop the batch
	if len(transitioner.calls) != 2 {
		t.Fatalf("expected both orders attempted, got %d", len(transitioner.calls))
	}
}
