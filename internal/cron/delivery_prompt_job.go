package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/internal/orders"
	"github.com/glowmart/storefront-backend/pkg/config"
	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	"github.com/glowmart/storefront-backend/pkg/logger"
	"github.com/glowmart/storefront-backend/pkg/outbox"
	"github.com/glowmart/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type promptDueReader interface {
	FindDueForDeliveryPrompt(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type promptOrderRepo interface {
	UpdateFields(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}

type promptRepoFactory func(tx *gorm.DB) promptOrderRepo

func defaultPromptRepo(tx *gorm.DB) promptOrderRepo {
	return orders.NewRepository(tx)
}

// DeliveryPromptJobParams configure the delivery confirmation prompter.
type DeliveryPromptJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Orders      promptDueReader
	Outbox      outboxEmitter
	Config      config.OrdersConfig
	RepoFactory promptRepoFactory
}

// NewDeliveryPromptJob builds the job that asks customers whether a shipped
// order has arrived. Each prompt carries a dedupe key, so a crashed cycle
// never enqueues the same prompt twice.
func NewDeliveryPromptJob(params DeliveryPromptJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	repoFactory := params.RepoFactory
	if repoFactory == nil {
		repoFactory = defaultPromptRepo
	}
	limit := params.Config.ProcessingBatchLimit
	if limit <= 0 {
		limit = 200
	}
	return &deliveryPromptJob{
		logg:        params.Logger,
		db:          params.DB,
		orders:      params.Orders,
		outbox:      params.Outbox,
		repoFactory: repoFactory,
		retryDelay:  params.Config.DeliveryPromptRetry,
		maxPrompts:  params.Config.MaxDeliveryPrompts,
		limit:       limit,
		now:         time.Now,
	}, nil
}

type deliveryPromptJob struct {
	logg        *logger.Logger
	db          txRunner
	orders      promptDueReader
	outbox      outboxEmitter
	repoFactory promptRepoFactory
	retryDelay  time.Duration
	maxPrompts  int
	limit       int
	now         func() time.Time
}

func (j *deliveryPromptJob) Name() string { return "delivery-prompt" }

func (j *deliveryPromptJob) Run(ctx context.Context) error {
	due, err := j.orders.FindDueForDeliveryPrompt(ctx, j.now().UTC(), j.limit)
	if err != nil {
		return fmt.Errorf("query due prompts: %w", err)
	}

	var errs error
	for _, order := range due {
		if err := j.promptOrder(ctx, order); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("prompt order %s: %w", order.ID, err))
		}
	}
	return errs
}

func (j *deliveryPromptJob) promptOrder(ctx context.Context, order models.Order) error {
	promptNumber := order.DeliveryPromptCount + 1
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		err := j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryConfirmationRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.DeliveryConfirmationRequestedEvent{
				OrderID:     order.ID,
				CustomerID:  order.CustomerID,
				PromptCount: promptNumber,
			},
			Version:   1,
			DedupeKey: fmt.Sprintf("delivery_prompt:%s:%d", order.ID, promptNumber),
		})
		if err != nil {
			return err
		}

		updates := map[string]any{
			"delivery_prompt_count": promptNumber,
			"delivery_prompt_at":    nil,
		}
		if promptNumber < j.maxPrompts {
			updates["delivery_prompt_at"] = j.now().Add(j.retryDelay)
		}
		return j.repoFactory(tx).UpdateFields(ctx, order.ID, updates)
	})
}
