package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/internal/inventory"
	"github.com/glowmart/storefront-backend/pkg/config"
	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
	"github.com/glowmart/storefront-backend/pkg/outbox"
	"github.com/glowmart/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type pointsRefunder interface {
	CreditPoints(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, points int, reason enums.LedgerReason, orderID uuid.UUID) (bool, error)
}

type paymentConverter interface {
	ConvertToPoints(ctx context.Context, tx *gorm.DB, order *models.Order) (int, error)
}

type stockReleaser func(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error

// Service drives the post-checkout order lifecycle: guarded status
// transitions, cancellation with full side-effect reversal, and the
// delivery-confirmation exchange.
type Service interface {
	Get(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) error
	Cancel(ctx context.Context, customerID, orderID uuid.UUID, reason string) (*models.Order, error)
	ConfirmDelivery(ctx context.Context, customerID, orderID uuid.UUID, received bool) (*models.Order, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	rewards   pointsRefunder
	converter paymentConverter
	release   stockReleaser
	cfg       config.OrdersConfig
}

// NewService builds the order lifecycle service.
func NewService(
	repo Repository,
	tx txRunner,
	publisher outboxPublisher,
	rewards pointsRefunder,
	converter paymentConverter,
	cfg config.OrdersConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if rewards == nil {
		return nil, fmt.Errorf("rewards service required")
	}
	if converter == nil {
		return nil, fmt.Errorf("payment converter required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    publisher,
		rewards:   rewards,
		converter: converter,
		release:   inventory.Release,
		cfg:       cfg,
	}, nil
}

func (s *service) Get(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByIDForCustomer(ctx, orderID, customerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, err
}

func (s *service) List(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	return s.repo.ListByCustomer(ctx, customerID, limit, offset)
}

// Transition performs an admin- or timer-driven status change. The write is
// guarded on the expected current status; entering shipped schedules the
// delivery-confirmation prompt.
func (s *service) Transition(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) error {
	if !from.IsValid() || !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if !from.CanTransitionTo(to) {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("cannot transition order from %s to %s", from, to))
	}
	if to == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeValidation, "use the cancellation flow for cancelled")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if err != nil {
			return err
		}

		extra := map[string]any{}
		if to == enums.OrderStatusShipped {
			extra["delivery_prompt_at"] = time.Now().Add(s.cfg.DeliveryPromptDelay)
		}
		if to == enums.OrderStatusProcessing {
			extra["process_after"] = nil
		}

		moved, err := repo.UpdateStatusGuarded(ctx, orderID, from, to, extra)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("order is no longer %s", from))
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    orderID,
				CustomerID: order.CustomerID,
				FromStatus: from,
				ToStatus:   to,
			},
			Version: 1,
		})
	})
}

// Cancel aborts a pending order: the guarded flip to cancelled, the return
// of every reserved unit, the refund of redeemed points, and for
// gateway-paid orders the one-time conversion of the paid amount into
// points. Cancelling an already-cancelled order is a no-op so duplicate
// webhooks stay harmless.
func (s *service) Cancel(ctx context.Context, customerID, orderID uuid.UUID, reason string) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.loadOwned(ctx, repo, customerID, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCancelled {
			result = order
			return nil
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("order in status %s can no longer be cancelled", order.Status))
		}

		now := time.Now()
		extra := map[string]any{
			"cancelled_at":  now,
			"process_after": nil,
		}
		moved, err := repo.UpdateStatusGuarded(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusCancelled, extra)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was updated concurrently, retry")
		}

		for _, item := range order.Items {
			if err := s.release(ctx, tx, item.ProductID, item.Qty); err != nil {
				return err
			}
		}

		pointsRefunded := 0
		if order.PointsRedeemed > 0 {
			credited, err := s.rewards.CreditPoints(ctx, tx, order.CustomerID, order.PointsRedeemed, enums.LedgerReasonCancelRefund, order.ID)
			if err != nil {
				return err
			}
			if credited {
				pointsRefunded = order.PointsRedeemed
			}
		}

		if order.PaymentMethod == enums.PaymentMethodOnlineGateway {
			converted, err := s.converter.ConvertToPoints(ctx, tx, order)
			if err != nil {
				return err
			}
			pointsRefunded += converted
			if order.PaymentStatus == enums.PaymentStatusPaid {
				if err := repo.UpdateFields(ctx, orderID, map[string]any{
					"payment_status": enums.PaymentStatusRefunded,
				}); err != nil {
					return err
				}
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderCancelledEvent{
				OrderID:        orderID,
				CustomerID:     order.CustomerID,
				PointsRefunded: int64(pointsRefunded),
				CancelledAt:    now,
				Reason:         reason,
			},
			Version: 1,
		}); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ConfirmDelivery resolves a delivery prompt. A confirmation moves the order
// to delivered (and settles cash-on-delivery payment); a not-received answer
// reschedules the prompt once, never in a loop.
func (s *service) ConfirmDelivery(ctx context.Context, customerID, orderID uuid.UUID, received bool) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.loadOwned(ctx, repo, customerID, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusShipped {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("order in status %s has no pending delivery confirmation", order.Status))
		}

		if !received {
			updates := map[string]any{"delivery_prompt_at": nil}
			if order.DeliveryPromptCount < s.cfg.MaxDeliveryPrompts {
				updates["delivery_prompt_at"] = time.Now().Add(s.cfg.DeliveryPromptRetry)
			}
			if err := repo.UpdateFields(ctx, orderID, updates); err != nil {
				return err
			}
			result, err = repo.FindByID(ctx, orderID)
			return err
		}

		now := time.Now()
		extra := map[string]any{
			"delivered_at":       now,
			"delivery_prompt_at": nil,
		}
		codSettled := order.PaymentMethod == enums.PaymentMethodCashOnDelivery && order.PaymentStatus != enums.PaymentStatusPaid
		if codSettled {
			extra["payment_status"] = enums.PaymentStatusPaid
		}
		moved, err := repo.UpdateStatusGuarded(ctx, orderID, enums.OrderStatusShipped, enums.OrderStatusDelivered, extra)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was updated concurrently, retry")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    orderID,
				CustomerID: order.CustomerID,
				FromStatus: enums.OrderStatusShipped,
				ToStatus:   enums.OrderStatusDelivered,
			},
			Version: 1,
		}); err != nil {
			return err
		}

		if codSettled {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Data: payloads.OrderPaidEvent{
					OrderID:     orderID,
					CustomerID:  order.CustomerID,
					AmountCents: int64(order.TotalCents),
					PaidAt:      now,
				},
				Version: 1,
			}); err != nil {
				return err
			}
		}

		result, err = repo.FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// loadOwned fetches the order, scoping to the customer when one is given.
// Timer- and admin-driven flows pass uuid.Nil.
func (s *service) loadOwned(ctx context.Context, repo Repository, customerID, orderID uuid.UUID) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	if customerID == uuid.Nil {
		order, err = repo.FindByID(ctx, orderID)
	} else {
		order, err = repo.FindByIDForCustomer(ctx, orderID, customerID)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}
