package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/internal/rewards"
	"github.com/glowmart/storefront-backend/pkg/config"
	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
)

// AmountMismatchDetail reports a verified amount that differs from the order
// total.
type AmountMismatchDetail struct {
	ExpectedCents int `json:"expected_cents"`
	VerifiedCents int `json:"verified_cents"`
}

// Reconciler verifies gateway payments against order totals and converts
// settled payments of cancelled orders into loyalty points.
type Reconciler struct {
	gateway    Gateway
	repo       Repository
	rewards    rewards.Service
	payment    config.PaymentConfig
	rewardsCfg config.RewardsConfig
}

// NewReconciler builds the payment reconciler.
func NewReconciler(gateway Gateway, repo Repository, rewardsSvc rewards.Service, paymentCfg config.PaymentConfig, rewardsCfg config.RewardsConfig) (*Reconciler, error) {
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if rewardsSvc == nil {
		return nil, fmt.Errorf("rewards service required")
	}
	if rewardsCfg.PointExchangeRateCents <= 0 {
		return nil, fmt.Errorf("point exchange rate must be positive")
	}
	return &Reconciler{
		gateway:    gateway,
		repo:       repo,
		rewards:    rewardsSvc,
		payment:    paymentCfg,
		rewardsCfg: rewardsCfg,
	}, nil
}

// Verify queries the gateway and requires a settled payment matching the
// expected amount. The call is bounded by the configured verification
// timeout so a slow gateway fails the checkout instead of stalling it.
func (r *Reconciler) Verify(ctx context.Context, orderRef, requestRef string, expectedAmountCents int) (*GatewayTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, r.payment.VerifyTimeout)
	defer cancel()

	txn, err := r.gateway.QueryTransaction(ctx, orderRef, requestRef)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "query gateway transaction")
	}
	if !txn.Paid() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentUnverified,
			fmt.Sprintf("gateway reports transaction not settled (code %d)", txn.ResultCode))
	}
	if txn.AmountCents != expectedAmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "verified amount does not match order total").
			WithDetails(AmountMismatchDetail{
				ExpectedCents: expectedAmountCents,
				VerifiedCents: txn.AmountCents,
			})
	}
	return txn, nil
}

// RecordTransaction stores the verified transaction inside the caller's
// transaction. The unique order index rejects a second record for the same
// order.
func (r *Reconciler) RecordTransaction(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, txn *GatewayTransaction) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if txn == nil {
		return fmt.Errorf("gateway transaction required")
	}
	row := models.PaymentTransaction{
		OrderID:           orderID,
		GatewayOrderRef:   txn.OrderRef,
		GatewayRequestRef: txn.RequestRef,
		GatewayTxnID:      txn.TransactionID,
		AmountCents:       txn.AmountCents,
		Status:            enums.PaymentStatusPaid,
	}
	return r.repo.WithTx(tx).Create(ctx, &row)
}

// ConvertToPoints credits floor(paidCents / exchangeRate) points for a
// cancelled gateway-paid order. The rewards ledger's (order, reason) unique
// marker guarantees the conversion happens at most once per order, no matter
// how many duplicate cancellations or webhooks arrive.
func (r *Reconciler) ConvertToPoints(ctx context.Context, tx *gorm.DB, order *models.Order) (int, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction required")
	}
	if order == nil {
		return 0, fmt.Errorf("order required")
	}

	txn, err := r.repo.WithTx(tx).FindByOrderID(ctx, order.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	points := txn.AmountCents / r.rewardsCfg.PointExchangeRateCents
	if points <= 0 {
		return 0, nil
	}

	credited, err := r.rewards.CreditPoints(ctx, tx, order.CustomerID, points, enums.LedgerReasonPaymentConversion, order.ID)
	if err != nil {
		return 0, err
	}
	if !credited {
		return 0, nil
	}
	return points, nil
}
