package rewards

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/pkg/config"
	dbpkg "github.com/glowmart/storefront-backend/pkg/db"
	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
)

// InsufficientPointsDetail names the gap when a debit cannot be covered.
type InsufficientPointsDetail struct {
	Requested int `json:"requested"`
	Balance   int `json:"balance"`
}

// Service owns loyalty-point balances and voucher claims. All mutating
// operations take the caller's transaction so checkout can fold them into
// its single unit of work.
type Service interface {
	GetAccount(ctx context.Context, customerID uuid.UUID) (*models.RewardsAccount, error)
	ListLedger(ctx context.Context, customerID uuid.UUID, limit int) ([]models.RewardsLedgerEntry, error)
	DebitPoints(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, points int, orderID uuid.UUID) (int, error)
	CreditPoints(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, points int, reason enums.LedgerReason, orderID uuid.UUID) (bool, error)
	ClaimVoucher(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, code string, subtotalCents int) (int, error)
}

type service struct {
	repo Repository
	cfg  config.RewardsConfig
}

// NewService builds the rewards service.
func NewService(repo Repository, cfg config.RewardsConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rewards repository required")
	}
	if cfg.PointExchangeRateCents <= 0 {
		return nil, fmt.Errorf("point exchange rate must be positive")
	}
	return &service{repo: repo, cfg: cfg}, nil
}

// GetAccount returns the customer's account, creating an empty bronze one on
// first touch.
func (s *service) GetAccount(ctx context.Context, customerID uuid.UUID) (*models.RewardsAccount, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	return s.repo.EnsureAccount(ctx, customerID)
}

func (s *service) ListLedger(ctx context.Context, customerID uuid.UUID, limit int) ([]models.RewardsLedgerEntry, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListLedgerEntries(ctx, customerID, limit)
}

// DebitPoints spends points against the customer's balance and returns the
// equivalent discount in cents. The balance check and decrement are one
// conditional statement, so concurrent debits can never overspend.
func (s *service) DebitPoints(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, points int, orderID uuid.UUID) (int, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction required")
	}
	if points <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "points to redeem must be positive")
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.DebitBalance(ctx, customerID, points)
	if err != nil {
		return 0, err
	}
	if !ok {
		balance := 0
		if account, ferr := repo.FindAccount(ctx, customerID); ferr == nil {
			balance = account.PointsBalance
		}
		return 0, pkgerrors.New(pkgerrors.CodeInsufficientPoints, "points balance does not cover redemption").
			WithDetails(InsufficientPointsDetail{Requested: points, Balance: balance})
	}

	entry := models.RewardsLedgerEntry{
		CustomerID: customerID,
		Points:     -points,
		Reason:     enums.LedgerReasonRedeem,
	}
	if orderID != uuid.Nil {
		id := orderID
		entry.OrderID = &id
	}
	if err := repo.InsertLedgerEntry(ctx, &entry); err != nil {
		return 0, err
	}
	return points * s.cfg.PointExchangeRateCents, nil
}

// CreditPoints appends a ledger entry and raises the balance. The unique
// (reason, order_id) ledger index makes the credit idempotent; a duplicate
// returns false with no mutation.
func (s *service) CreditPoints(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, points int, reason enums.LedgerReason, orderID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction required")
	}
	if points <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "points to credit must be positive")
	}
	if orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id required for credit")
	}
	repo := s.repo.WithTx(tx)

	exists, err := repo.LedgerEntryExists(ctx, orderID, reason)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if _, err := repo.EnsureAccount(ctx, customerID); err != nil {
		return false, err
	}

	id := orderID
	entry := models.RewardsLedgerEntry{
		CustomerID: customerID,
		Points:     points,
		Reason:     reason,
		OrderID:    &id,
	}
	if err := repo.InsertLedgerEntry(ctx, &entry); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_rewards_ledger_order_reason") {
			return false, nil
		}
		return false, err
	}

	if err := repo.CreditBalance(ctx, customerID, points); err != nil {
		return false, err
	}
	return true, s.recomputeTier(ctx, repo, customerID)
}

func (s *service) recomputeTier(ctx context.Context, repo Repository, customerID uuid.UUID) error {
	account, err := repo.FindAccount(ctx, customerID)
	if err != nil {
		return err
	}
	tier := s.tierFor(account.LifetimePoints)
	if tier == account.Tier {
		return nil
	}
	return repo.UpdateTier(ctx, customerID, tier)
}

func (s *service) tierFor(lifetimePoints int) enums.RewardsTier {
	switch {
	case lifetimePoints >= s.cfg.GoldThresholdPoints:
		return enums.RewardsTierGold
	case lifetimePoints >= s.cfg.SilverThresholdPoints:
		return enums.RewardsTierSilver
	default:
		return enums.RewardsTierBronze
	}
}
