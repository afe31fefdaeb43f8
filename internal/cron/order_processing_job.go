package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/glowmart/storefront-backend/pkg/config"
	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
	"github.com/glowmart/storefront-backend/pkg/logger"
)

type dueOrderReader interface {
	FindDueForProcessing(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderTransitioner interface {
	Transition(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) error
}

// OrderProcessingJobParams configure the pending order promoter.
type OrderProcessingJobParams struct {
	Logger    *logger.Logger
	Orders    dueOrderReader
	Lifecycle orderTransitioner
	Config    config.OrdersConfig
}

// NewOrderProcessingJob builds the job that moves pending orders into
// processing once their grace window has elapsed.
func NewOrderProcessingJob(params OrderProcessingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle service required")
	}
	limit := params.Config.ProcessingBatchLimit
	if limit <= 0 {
		limit = 200
	}
	return &orderProcessingJob{
		logg:      params.Logger,
		orders:    params.Orders,
		lifecycle: params.Lifecycle,
		limit:     limit,
		now:       time.Now,
	}, nil
}

type orderProcessingJob struct {
	logg      *logger.Logger
	orders    dueOrderReader
	lifecycle orderTransitioner
	limit     int
	now       func() time.Time
}

func (j *orderProcessingJob) Name() string { return "order-processing" }

func (j *orderProcessingJob) Run(ctx context.Context) error {
	due, err := j.orders.FindDueForProcessing(ctx, j.now().UTC(), j.limit)
	if err != nil {
		return fmt.Errorf("query due orders: %w", err)
	}

	var errs error
	promoted := 0
	for _, order := range due {
		err := j.lifecycle.Transition(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusProcessing)
		if err != nil {
			// a concurrent cancel won the race; nothing to promote
			if pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("promote order %s: %w", order.ID, err))
			continue
		}
		promoted++
	}

	if promoted > 0 {
		j.logg.Info(j.logg.WithField(ctx, "count", promoted), "orders moved to processing")
	}
	return errs
}
