package rewards

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
)

// Repository is the data-access surface for rewards accounts, the points
// ledger and voucher counters. Balance and counter writes are conditional so
// they stay correct under concurrent checkouts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindAccount(ctx context.Context, customerID uuid.UUID) (*models.RewardsAccount, error)
	EnsureAccount(ctx context.Context, customerID uuid.UUID) (*models.RewardsAccount, error)
	DebitBalance(ctx context.Context, customerID uuid.UUID, points int) (bool, error)
	CreditBalance(ctx context.Context, customerID uuid.UUID, points int) error
	UpdateTier(ctx context.Context, customerID uuid.UUID, tier enums.RewardsTier) error

	InsertLedgerEntry(ctx context.Context, entry *models.RewardsLedgerEntry) error
	LedgerEntryExists(ctx context.Context, orderID uuid.UUID, reason enums.LedgerReason) (bool, error)
	ListLedgerEntries(ctx context.Context, customerID uuid.UUID, limit int) ([]models.RewardsLedgerEntry, error)

	FindVoucher(ctx context.Context, code string) (*models.Voucher, error)
	IncrementVoucherIssued(ctx context.Context, code string) (bool, error)
	FindClaim(ctx context.Context, customerID uuid.UUID, code string) (*models.VoucherClaim, error)
	CreateClaim(ctx context.Context, claim *models.VoucherClaim) error
	IncrementClaimUses(ctx context.Context, customerID uuid.UUID, code string, perUserCap int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a rewards repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAccount(ctx context.Context, customerID uuid.UUID) (*models.RewardsAccount, error) {
	var account models.RewardsAccount
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) EnsureAccount(ctx context.Context, customerID uuid.UUID) (*models.RewardsAccount, error) {
	account := models.RewardsAccount{CustomerID: customerID, Tier: enums.RewardsTierBronze}
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		FirstOrCreate(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// DebitBalance decrements the balance only when it covers the debit. Returns
// false without touching the row when the balance is short.
func (r *repository) DebitBalance(ctx context.Context, customerID uuid.UUID, points int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RewardsAccount{}).
		Where("customer_id = ? AND points_balance >= ?", customerID, points).
		Update("points_balance", gorm.Expr("points_balance - ?", points))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CreditBalance(ctx context.Context, customerID uuid.UUID, points int) error {
	return r.db.WithContext(ctx).
		Model(&models.RewardsAccount{}).
		Where("customer_id = ?", customerID).
		Updates(map[string]any{
			"points_balance":  gorm.Expr("points_balance + ?", points),
			"lifetime_points": gorm.Expr("lifetime_points + ?", points),
		}).Error
}

func (r *repository) UpdateTier(ctx context.Context, customerID uuid.UUID, tier enums.RewardsTier) error {
	return r.db.WithContext(ctx).
		Model(&models.RewardsAccount{}).
		Where("customer_id = ?", customerID).
		Update("tier", tier).Error
}

func (r *repository) InsertLedgerEntry(ctx context.Context, entry *models.RewardsLedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) LedgerEntryExists(ctx context.Context, orderID uuid.UUID, reason enums.LedgerReason) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RewardsLedgerEntry{}).
		Where("order_id = ? AND reason = ?", orderID, reason).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListLedgerEntries(ctx context.Context, customerID uuid.UUID, limit int) ([]models.RewardsLedgerEntry, error) {
	var entries []models.RewardsLedgerEntry
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) FindVoucher(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

// IncrementVoucherIssued bumps the global counter only while the cap holds.
func (r *repository) IncrementVoucherIssued(ctx context.Context, code string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("code = ? AND issued_count < total_cap", code).
		Update("issued_count", gorm.Expr("issued_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindClaim(ctx context.Context, customerID uuid.UUID, code string) (*models.VoucherClaim, error) {
	var claim models.VoucherClaim
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND voucher_code = ?", customerID, code).
		First(&claim).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *repository) CreateClaim(ctx context.Context, claim *models.VoucherClaim) error {
	if claim.ID == uuid.Nil {
		claim.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(claim).Error
}

// IncrementClaimUses bumps the per-customer counter only while under the cap.
func (r *repository) IncrementClaimUses(ctx context.Context, customerID uuid.UUID, code string, perUserCap int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.VoucherClaim{}).
		Where("customer_id = ? AND voucher_code = ? AND uses < ?", customerID, code, perUserCap).
		Update("uses", gorm.Expr("uses + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
