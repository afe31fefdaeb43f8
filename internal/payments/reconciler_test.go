package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/internal/rewards"
	"github.com/glowmart/storefront-backend/pkg/config"
	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
)

type stubGateway struct {
	txn *GatewayTransaction
	err error
}

func (s *stubGateway) QueryTransaction(ctx context.Context, orderRef, requestRef string) (*GatewayTransaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *s.txn
	out.OrderRef = orderRef
	out.RequestRef = requestRef
	return &out, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.PaymentTransaction{},
		&models.RewardsAccount{},
		&models.RewardsLedgerEntry{},
	)
	if err != nil {
		t.Fatalf("migrate payment tables: %v", err)
	}
	return db
}

func newReconciler(t *testing.T, db *gorm.DB, gateway Gateway) *Reconciler {
	t.Helper()
	rewardsCfg := config.RewardsConfig{
		PointExchangeRateCents: 10,
		SilverThresholdPoints:  1000,
		GoldThresholdPoints:    5000,
	}
	rewardsSvc, err := rewards.NewService(rewards.NewRepository(db), rewardsCfg)
	if err != nil {
		t.Fatalf("rewards service: %v", err)
	}
	paymentCfg := config.PaymentConfig{VerifyTimeout: 2 * time.Second}
	rec, err := NewReconciler(gateway, NewRepository(db), rewardsSvc, paymentCfg, rewardsCfg)
	if err != nil {
		t.Fatalf("NewReconciler: %v", err)
	}
	return rec
}

func TestVerifyPaidMatchingAmount(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	gateway := &stubGateway{txn: &GatewayTransaction{
		TransactionID: "888001",
		AmountCents:   12500,
		ResultCode:    0,
	}}
	rec := newReconciler(t, db, gateway)

	txn, err := rec.Verify(context.Background(), "ord-1", "req-1", 12500)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if txn.TransactionID != "888001" || !txn.Paid() {
		t.Fatalf("unexpected transaction: %+v", txn)
	}
}

func TestVerifyUnsettledPayment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	gateway := &stubGateway{txn: &GatewayTransaction{ResultCode: 1000, AmountCents: 12500}}
	rec := newReconciler(t, db, gateway)

	_, err := rec.Verify(context.Background(), "ord-1", "req-1", 12500)
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentUnverified) {
		t.Fatalf("expected payment unverified error, got %v", err)
	}
}

func TestVerifyAmountMismatch(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	gateway := &stubGateway{txn: &GatewayTransaction{ResultCode: 0, AmountCents: 9900}}
	rec := newReconciler(t, db, gateway)

	_, err := rec.Verify(context.Background(), "ord-1", "req-1", 12500)
	if !pkgerrors.HasCode(err, pkgerrors.CodeAmountMismatch) {
		t.Fatalf("expected amount mismatch error, got %v", err)
	}
	detail, ok := pkgerrors.As(err).Details().(AmountMismatchDetail)
	if !ok {
		t.Fatalf("expected mismatch detail, got %T", pkgerrors.As(err).Details())
	}
	if detail.ExpectedCents != 12500 || detail.VerifiedCents != 9900 {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestVerifyGatewayErrorIsRetryable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	gateway := &stubGateway{err: errors.New("connection refused")}
	rec := newReconciler(t, db, gateway)

	_, err := rec.Verify(context.Background(), "ord-1", "req-1", 12500)
	if !pkgerrors.HasCode(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if !pkgerrors.MetadataFor(pkgerrors.CodeGateway).Retryable {
		t.Fatal("gateway errors must be retryable")
	}
}

func TestConvertToPointsFloorsAndIsIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	rec := newReconciler(t, db, &stubGateway{txn: &GatewayTransaction{ResultCode: 0}})
	order := &models.Order{ID: uuid.New(), CustomerID: uuid.New()}

	seed := models.PaymentTransaction{
		ID:           uuid.New(),
		OrderID:      order.ID,
		GatewayTxnID: "888002",
		AmountCents:  12555,
		Status:       enums.PaymentStatusPaid,
	}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	var points int
	for i := 0; i < 2; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			var terr error
			points, terr = rec.ConvertToPoints(context.Background(), tx, order)
			return terr
		})
		if err != nil {
			t.Fatalf("convert attempt %d: %v", i+1, err)
		}
		if i == 0 && points != 1255 {
			t.Fatalf("expected 1255 points, got %d", points)
		}
		if i == 1 && points != 0 {
			t.Fatalf("expected duplicate conversion to credit nothing, got %d", points)
		}
	}

	var account models.RewardsAccount
	if err := db.First(&account, "customer_id = ?", order.CustomerID).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account.PointsBalance != 1255 {
		t.Fatalf("expected balance 1255, got %d", account.PointsBalance)
	}
}

func TestConvertToPointsWithoutTransactionIsNoop(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	rec := newReconciler(t, db, &stubGateway{txn: &GatewayTransaction{ResultCode: 0}})
	order := &models.Order{ID: uuid.New(), CustomerID: uuid.New()}

	err := db.Transaction(func(tx *gorm.DB) error {
		points, terr := rec.ConvertToPoints(context.Background(), tx, order)
		if terr != nil {
			return terr
		}
		if points != 0 {
			t.Fatalf("expected 0 points for unpaid order, got %d", points)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
}
