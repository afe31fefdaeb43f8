package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/glowmart/storefront-backend/pkg/db"
	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
)

// ClaimVoucher consumes one use of a voucher for the customer and returns the
// discount in cents. The global issuance counter and the per-customer use
// counter move in the same transaction; a failure on either leaves both
// untouched when the caller rolls back.
func (s *service) ClaimVoucher(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, code string, subtotalCents int) (int, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction required")
	}
	if customerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if code == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "voucher code required")
	}
	repo := s.repo.WithTx(tx)

	voucher, err := repo.FindVoucher(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, pkgerrors.New(pkgerrors.CodeVoucherInvalid, fmt.Sprintf("voucher %q does not exist", code))
	}
	if err != nil {
		return 0, err
	}

	now := time.Now()
	if now.Before(voucher.StartsAt) || now.After(voucher.ExpiresAt) {
		return 0, pkgerrors.New(pkgerrors.CodeVoucherInvalid, fmt.Sprintf("voucher %q is outside its validity window", code))
	}
	if subtotalCents < voucher.MinOrderCents {
		return 0, pkgerrors.New(pkgerrors.CodeVoucherInvalid,
			fmt.Sprintf("voucher %q requires a minimum order of %d cents", code, voucher.MinOrderCents))
	}

	granted, err := repo.IncrementVoucherIssued(ctx, code)
	if err != nil {
		return 0, err
	}
	if !granted {
		return 0, pkgerrors.New(pkgerrors.CodeVoucherExhausted, fmt.Sprintf("voucher %q has reached its issuance cap", code))
	}

	if err := s.claimUse(ctx, repo, customerID, voucher); err != nil {
		return 0, err
	}

	return voucherDiscountCents(voucher, subtotalCents), nil
}

func (s *service) claimUse(ctx context.Context, repo Repository, customerID uuid.UUID, voucher *models.Voucher) error {
	_, err := repo.FindClaim(ctx, customerID, voucher.Code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		claim := models.VoucherClaim{
			CustomerID:  customerID,
			VoucherCode: voucher.Code,
			Uses:        1,
		}
		cerr := repo.CreateClaim(ctx, &claim)
		if cerr == nil {
			return nil
		}
		// lost a concurrent first-claim race, fall back to the guarded bump
		if !dbpkg.IsUniqueViolation(cerr, "ux_voucher_claims_customer_code") {
			return cerr
		}
	} else if err != nil {
		return err
	}

	bumped, err := repo.IncrementClaimUses(ctx, customerID, voucher.Code, voucher.PerUserCap)
	if err != nil {
		return err
	}
	if !bumped {
		return pkgerrors.New(pkgerrors.CodeVoucherExhausted,
			fmt.Sprintf("voucher %q already used the maximum %d times", voucher.Code, voucher.PerUserCap))
	}
	return nil
}

// voucherDiscountCents computes the merchandise discount. Free-shipping
// vouchers do not reduce the merchandise total.
func voucherDiscountCents(voucher *models.Voucher, subtotalCents int) int {
	var discount int
	switch voucher.Type {
	case enums.VoucherTypePercentage:
		pct := decimal.NewFromInt(int64(subtotalCents)).
			Mul(decimal.NewFromInt(int64(voucher.Value))).
			Div(decimal.NewFromInt(100)).
			Round(0)
		discount = int(pct.IntPart())
		if voucher.MaxDiscountCents > 0 && discount > voucher.MaxDiscountCents {
			discount = voucher.MaxDiscountCents
		}
	case enums.VoucherTypeFixedAmount:
		discount = voucher.Value
	case enums.VoucherTypeFreeShipping:
		discount = 0
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
