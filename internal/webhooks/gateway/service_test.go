package gatewaywebhook

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/internal/orders"
	"github.com/glowmart/storefront-backend/internal/payments"
	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:gatewaywebhook_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderLineItem{}, &models.PaymentTransaction{}); err != nil {
		t.Fatalf("migrate tables: %v", err)
	}
	return db
}

type testTxRunner struct {
	db *gorm.DB
}

func (r *testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeCanceller struct {
	calls   []uuid.UUID
	reasons []string
	err     error
}

func (f *fakeCanceller) Cancel(ctx context.Context, customerID, orderID uuid.UUID, reason string) (*models.Order, error) {
	f.calls = append(f.calls, orderID)
	f.reasons = append(f.reasons, reason)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Order{ID: orderID, Status: enums.OrderStatusCancelled}, nil
}

type fakeSettler struct {
	txn      *payments.GatewayTransaction
	err      error
	verified int
	recorded int
}

func (f *fakeSettler) Verify(ctx context.Context, orderRef, requestRef string, expectedAmountCents int) (*payments.GatewayTransaction, error) {
	f.verified++
	if f.err != nil {
		return nil, f.err
	}
	return f.txn, nil
}

func (f *fakeSettler) RecordTransaction(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, txn *payments.GatewayTransaction) error {
	f.recorded++
	row := models.PaymentTransaction{
		ID:                uuid.New(),
		OrderID:           orderID,
		GatewayOrderRef:   txn.OrderRef,
		GatewayRequestRef: txn.RequestRef,
		GatewayTxnID:      txn.TransactionID,
		AmountCents:       txn.AmountCents,
		Status:            enums.PaymentStatusPaid,
	}
	return tx.WithContext(ctx).Create(&row).Error
}

func seedGatewayOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, paymentStatus enums.PaymentStatus) *models.Order {
	t.Helper()
	orderRef := "GM-" + uuid.NewString()
	requestRef := uuid.NewString()
	order := models.Order{
		ID:                uuid.New(),
		CustomerID:        uuid.New(),
		Status:            status,
		PaymentMethod:     enums.PaymentMethodOnlineGateway,
		PaymentStatus:     paymentStatus,
		ContactPhone:      "5550100",
		SubtotalCents:     8000,
		TotalCents:        8000,
		GatewayOrderRef:   &orderRef,
		GatewayRequestRef: &requestRef,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return &order
}

func newTestService(t *testing.T, db *gorm.DB, canceller *fakeCanceller, settler *fakeSettler) Service {
	t.Helper()
	svc, err := NewService(&testTxRunner{db: db}, orders.NewRepository(db), canceller, settler, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestHandleCallbackFailureCancelsPendingOrder(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	canceller := &fakeCanceller{}
	settler := &fakeSettler{}
	svc := newTestService(t, db, canceller, settler)
	order := seedGatewayOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusUnpaid)

	err := svc.HandleCallback(context.Background(), &GatewayCallback{
		OrderRef:   *order.GatewayOrderRef,
		RequestRef: *order.GatewayRequestRef,
		ResultCode: 1006,
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if len(canceller.calls) != 1 || canceller.calls[0] != order.ID {
		t.Fatalf("expected cancel of %s, got %v", order.ID, canceller.calls)
	}
	if settler.verified != 0 {
		t.Fatalf("failure callback should not query the gateway")
	}
}

func TestHandleCallbackFailureIgnoresShippedOrder(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	canceller := &fakeCanceller{}
	svc := newTestService(t, db, canceller, &fakeSettler{})
	order := seedGatewayOrder(t, db, enums.OrderStatusShipped, enums.PaymentStatusPaid)

	err := svc.HandleCallback(context.Background(), &GatewayCallback{
		OrderRef:   *order.GatewayOrderRef,
		RequestRef: *order.GatewayRequestRef,
		ResultCode: 1006,
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if len(canceller.calls) != 0 {
		t.Fatalf("shipped order must not be cancelled by a gateway callback")
	}
}

func TestHandleCallbackFailureToleratesCancelRace(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	canceller := &fakeCanceller{err: pkgerrors.New(pkgerrors.CodeConflict, "order moved on")}
	svc := newTestService(t, db, canceller, &fakeSettler{})
	order := seedGatewayOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusUnpaid)

	err := svc.HandleCallback(context.Background(), &GatewayCallback{
		OrderRef:   *order.GatewayOrderRef,
		RequestRef: *order.GatewayRequestRef,
		ResultCode: 9000,
	})
	if err != nil {
		t.Fatalf("expected conflict to be tolerated, got %v", err)
	}
}

func TestHandleCallbackSuccessMarksOrderPaid(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := newTestService(t, db, &fakeCanceller{}, &fakeSettler{
		txn: &payments.GatewayTransaction{
			OrderRef:      "filled-below",
			RequestRef:    "filled-below",
			TransactionID: "288200001",
			AmountCents:   8000,
			ResultCode:    0,
		},
	})
	order := seedGatewayOrder(t, db, enums.OrderStatusPending, enums.PaymentStatusUnpaid)

	err := svc.HandleCallback(context.Background(), &GatewayCallback{
		OrderRef:   *order.GatewayOrderRef,
		RequestRef: *order.GatewayRequestRef,
		ResultCode: 0,
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	var reloaded models.Order
	if err := db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", reloaded.PaymentStatus)
	}
	var txnCount int64
	if err := db.Model(&models.PaymentTransaction{}).Where("order_id = ?", order.ID).Count(&txnCount).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if txnCount != 1 {
		t.Fatalf("expected 1 recorded transaction, got %d", txnCount)
	}
}

func TestHandleCallbackSuccessSkipsPaidOrder(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	settler := &fakeSettler{}
	svc := newTestService(t, db, &fakeCanceller{}, settler)
	order := seedGatewayOrder(t, db, enums.OrderStatusProcessing, enums.PaymentStatusPaid)

	err := svc.HandleCallback(context.Background(), &GatewayCallback{
		OrderRef:   *order.GatewayOrderRef,
		RequestRef: *order.GatewayRequestRef,
		ResultCode: 0,
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if settler.verified != 0 {
		t.Fatalf("already-paid order should not be re-verified")
	}
}

func TestHandleCallbackUnknownRef(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := newTestService(t, db, &fakeCanceller{}, &fakeSettler{})

	err := svc.HandleCallback(context.Background(), &GatewayCallback{
		OrderRef:   "GM-" + uuid.NewString(),
		RequestRef: uuid.NewString(),
		ResultCode: 0,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
