package gatewaywebhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/internal/orders"
	"github.com/glowmart/storefront-backend/internal/payments"
	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
	"github.com/glowmart/storefront-backend/pkg/logger"
)

// GatewayCallback carries the fields of a payment gateway IPN callback.
type GatewayCallback struct {
	PartnerCode string `json:"partnerCode"`
	OrderRef    string `json:"orderId"`
	RequestRef  string `json:"requestId"`
	Amount      int64  `json:"amount"`
	ResultCode  int    `json:"resultCode"`
	Message     string `json:"message"`
	TransID     string `json:"transId"`
	Signature   string `json:"signature"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderCanceller interface {
	Cancel(ctx context.Context, customerID, orderID uuid.UUID, reason string) (*models.Order, error)
}

type settlementVerifier interface {
	Verify(ctx context.Context, orderRef, requestRef string, expectedAmountCents int) (*payments.GatewayTransaction, error)
	RecordTransaction(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, txn *payments.GatewayTransaction) error
}

type Service interface {
	HandleCallback(ctx context.Context, callback *GatewayCallback) error
}

type service struct {
	tx        txRunner
	repo      orders.Repository
	lifecycle orderCanceller
	settler   settlementVerifier
	logg      *logger.Logger
}

// NewService builds the gateway callback processor.
func NewService(tx txRunner, repo orders.Repository, lifecycle orderCanceller, settler settlementVerifier, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if repo == nil {
		return nil, errors.New("orders repository is required")
	}
	if lifecycle == nil {
		return nil, errors.New("order lifecycle service is required")
	}
	if settler == nil {
		return nil, errors.New("settlement verifier is required")
	}
	return &service{tx: tx, repo: repo, lifecycle: lifecycle, settler: settler, logg: logg}, nil
}

// HandleCallback reconciles an order against the gateway's reported outcome.
// The payload is treated as a hint only: settlement is confirmed by querying
// the gateway directly before the order is marked paid.
func (s *service) HandleCallback(ctx context.Context, callback *GatewayCallback) error {
	if callback == nil || callback.OrderRef == "" || callback.RequestRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "callback refs required")
	}

	order, err := s.repo.FindByGatewayOrderRef(ctx, callback.OrderRef)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no order for gateway ref")
	}
	if err != nil {
		return err
	}

	if callback.ResultCode != 0 {
		return s.handleFailure(ctx, order, callback)
	}
	return s.handleSuccess(ctx, order)
}

func (s *service) handleFailure(ctx context.Context, order *models.Order, callback *GatewayCallback) error {
	if order.Status != enums.OrderStatusPending {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()),
				fmt.Sprintf("gateway failure callback for %s order ignored", order.Status))
		}
		return nil
	}

	reason := fmt.Sprintf("gateway declined payment (code %d)", callback.ResultCode)
	_, err := s.lifecycle.Cancel(ctx, uuid.Nil, order.ID, reason)
	if pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		// The order moved past pending between the lookup and the cancel.
		if s.logg != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "gateway failure callback lost cancel race")
		}
		return nil
	}
	return err
}

func (s *service) handleSuccess(ctx context.Context, order *models.Order) error {
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil
	}
	if order.GatewayOrderRef == nil || order.GatewayRequestRef == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no gateway refs on file")
	}

	txn, err := s.settler.Verify(ctx, *order.GatewayOrderRef, *order.GatewayRequestRef, order.TotalCents)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.settler.RecordTransaction(ctx, tx, order.ID, txn); err != nil {
			return err
		}
		return s.repo.WithTx(tx).UpdateFields(ctx, order.ID, map[string]any{
			"payment_status": enums.PaymentStatusPaid,
		})
	})
}
