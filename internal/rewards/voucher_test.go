package rewards

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
)

func seedVoucher(t *testing.T, db *gorm.DB, voucher models.Voucher) models.Voucher {
	t.Helper()
	if voucher.Code == "" {
		voucher.Code = "SAVE10-" + uuid.NewString()[:8]
	}
	if voucher.StartsAt.IsZero() {
		voucher.StartsAt = time.Now().Add(-time.Hour)
	}
	if voucher.ExpiresAt.IsZero() {
		voucher.ExpiresAt = time.Now().Add(time.Hour)
	}
	if voucher.TotalCap == 0 {
		voucher.TotalCap = 100
	}
	if voucher.PerUserCap == 0 {
		voucher.PerUserCap = 1
	}
	if err := db.Create(&voucher).Error; err != nil {
		t.Fatalf("seed voucher: %v", err)
	}
	return voucher
}

func claim(t *testing.T, db *gorm.DB, svc Service, customerID uuid.UUID, code string, subtotal int) (int, error) {
	t.Helper()
	var discount int
	err := db.Transaction(func(tx *gorm.DB) error {
		var terr error
		discount, terr = svc.ClaimVoucher(context.Background(), tx, customerID, code, subtotal)
		return terr
	})
	return discount, err
}

func TestClaimVoucherPercentageDiscount(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	voucher := seedVoucher(t, db, models.Voucher{
		Type:             enums.VoucherTypePercentage,
		Value:            10,
		MaxDiscountCents: 1500,
	})
	customerID := uuid.New()

	discount, err := claim(t, db, svc, customerID, voucher.Code, 12000)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if discount != 1200 {
		t.Fatalf("expected 1200 cents discount, got %d", discount)
	}

	var stored models.Voucher
	if err := db.First(&stored, "code = ?", voucher.Code).Error; err != nil {
		t.Fatalf("load voucher: %v", err)
	}
	if stored.IssuedCount != 1 {
		t.Fatalf("expected issued count 1, got %d", stored.IssuedCount)
	}

	var claimRow models.VoucherClaim
	if err := db.First(&claimRow, "customer_id = ? AND voucher_code = ?", customerID, voucher.Code).Error; err != nil {
		t.Fatalf("load claim: %v", err)
	}
	if claimRow.Uses != 1 {
		t.Fatalf("expected uses 1, got %d", claimRow.Uses)
	}
}

func TestClaimVoucherPercentageRespectsCap(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	voucher := seedVoucher(t, db, models.Voucher{
		Type:             enums.VoucherTypePercentage,
		Value:            50,
		MaxDiscountCents: 1000,
	})

	discount, err := claim(t, db, svc, uuid.New(), voucher.Code, 10000)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if discount != 1000 {
		t.Fatalf("expected capped discount 1000, got %d", discount)
	}
}

func TestClaimVoucherFixedAmountClampedToSubtotal(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	voucher := seedVoucher(t, db, models.Voucher{
		Type:  enums.VoucherTypeFixedAmount,
		Value: 5000,
	})

	discount, err := claim(t, db, svc, uuid.New(), voucher.Code, 3000)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if discount != 3000 {
		t.Fatalf("expected clamped discount 3000, got %d", discount)
	}
}

func TestClaimVoucherUnknownCode(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := claim(t, db, svc, uuid.New(), "NOPE", 5000)
	if !pkgerrors.HasCode(err, pkgerrors.CodeVoucherInvalid) {
		t.Fatalf("expected voucher invalid error, got %v", err)
	}
}

func TestClaimVoucherOutsideWindow(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	voucher := seedVoucher(t, db, models.Voucher{
		Type:      enums.VoucherTypeFixedAmount,
		Value:     500,
		StartsAt:  time.Now().Add(-48 * time.Hour),
		ExpiresAt: time.Now().Add(-24 * time.Hour),
	})

	_, err := claim(t, db, svc, uuid.New(), voucher.Code, 5000)
	if !pkgerrors.HasCode(err, pkgerrors.CodeVoucherInvalid) {
		t.Fatalf("expected voucher invalid error, got %v", err)
	}
}

func TestClaimVoucherBelowMinimumOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	voucher := seedVoucher(t, db, models.Voucher{
		Type:          enums.VoucherTypeFixedAmount,
		Value:         500,
		MinOrderCents: 10000,
	})

	_, err := claim(t, db, svc, uuid.New(), voucher.Code, 5000)
	if !pkgerrors.HasCode(err, pkgerrors.CodeVoucherInvalid) {
		t.Fatalf("expected voucher invalid error, got %v", err)
	}
}

func TestClaimVoucherGlobalCapExhausted(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	voucher := seedVoucher(t, db, models.Voucher{
		Type:     enums.VoucherTypeFixedAmount,
		Value:    500,
		TotalCap: 1,
	})

	if _, err := claim(t, db, svc, uuid.New(), voucher.Code, 5000); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err := claim(t, db, svc, uuid.New(), voucher.Code, 5000)
	if !pkgerrors.HasCode(err, pkgerrors.CodeVoucherExhausted) {
		t.Fatalf("expected voucher exhausted error, got %v", err)
	}
}

func TestClaimVoucherPerUserCapExhaustedRollsBackGlobalCounter(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	voucher := seedVoucher(t, db, models.Voucher{
		Type:       enums.VoucherTypeFixedAmount,
		Value:      500,
		TotalCap:   100,
		PerUserCap: 1,
	})
	customerID := uuid.New()

	if _, err := claim(t, db, svc, customerID, voucher.Code, 5000); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err := claim(t, db, svc, customerID, voucher.Code, 5000)
	if !pkgerrors.HasCode(err, pkgerrors.CodeVoucherExhausted) {
		t.Fatalf("expected voucher exhausted error, got %v", err)
	}

	// both counters must reflect exactly one successful claim
	var stored models.Voucher
	if err := db.First(&stored, "code = ?", voucher.Code).Error; err != nil {
		t.Fatalf("load voucher: %v", err)
	}
	if stored.IssuedCount != 1 {
		t.Fatalf("expected issued count 1 after rollback, got %d", stored.IssuedCount)
	}
	var claimRow models.VoucherClaim
	if err := db.First(&claimRow, "customer_id = ? AND voucher_code = ?", customerID, voucher.Code).Error; err != nil {
		t.Fatalf("load claim: %v", err)
	}
	if claimRow.Uses != 1 {
		t.Fatalf("expected uses 1 after rollback, got %d", claimRow.Uses)
	}
}

func TestClaimVoucherFreeShippingNoMerchandiseDiscount(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	voucher := seedVoucher(t, db, models.Voucher{
		Type:  enums.VoucherTypeFreeShipping,
		Value: 0,
	})

	discount, err := claim(t, db, svc, uuid.New(), voucher.Code, 5000)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if discount != 0 {
		t.Fatalf("expected no merchandise discount, got %d", discount)
	}
}
