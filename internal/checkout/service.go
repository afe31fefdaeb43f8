package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/internal/catalog"
	"github.com/glowmart/storefront-backend/internal/inventory"
	"github.com/glowmart/storefront-backend/internal/orders"
	"github.com/glowmart/storefront-backend/internal/payments"
	"github.com/glowmart/storefront-backend/pkg/config"
	"github.com/glowmart/storefront-backend/pkg/db/models"
	"github.com/glowmart/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
	"github.com/glowmart/storefront-backend/pkg/logger"
	"github.com/glowmart/storefront-backend/pkg/metrics"
	"github.com/glowmart/storefront-backend/pkg/outbox"
	"github.com/glowmart/storefront-backend/pkg/outbox/payloads"
	"github.com/glowmart/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type rewardsLedger interface {
	DebitPoints(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, points int, orderID uuid.UUID) (int, error)
	ClaimVoucher(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, code string, subtotalCents int) (int, error)
}

type paymentVerifier interface {
	Verify(ctx context.Context, orderRef, requestRef string, expectedAmountCents int) (*payments.GatewayTransaction, error)
	RecordTransaction(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, txn *payments.GatewayTransaction) error
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []inventory.Reservation) error
}

type cartCleaner interface {
	RemoveProducts(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, productIDs []uuid.UUID) error
}

type reservationEngine struct{}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, requests []inventory.Reservation) error {
	return inventory.Reserve(ctx, tx, requests)
}

// LineInput is one requested product and quantity.
type LineInput struct {
	ProductID uuid.UUID
	Qty       int
}

// PlaceOrderInput carries everything a checkout needs.
type PlaceOrderInput struct {
	CustomerID      uuid.UUID
	Lines           []LineInput
	ShippingAddress types.Address
	ContactPhone    string
	PaymentMethod   enums.PaymentMethod
	VoucherCode     *string
	PointsToRedeem  int

	// Gateway refs identify the client-initiated payment to re-verify.
	// Required for online-gateway orders, ignored otherwise.
	GatewayOrderRef   string
	GatewayRequestRef string
}

// Service turns a checkout request into a committed order. Every side effect
// of a placement happens inside one transaction; any failure rolls all of
// them back.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
}

type service struct {
	tx          txRunner
	products    catalog.Repository
	ordersRepo  orders.Repository
	rewards     rewardsLedger
	verifier    paymentVerifier
	reservation stockReserver
	cart        cartCleaner
	outbox      outboxPublisher
	cfg         config.OrdersConfig
	metrics     *metrics.CheckoutMetrics
	logg        *logger.Logger
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	products catalog.Repository,
	ordersRepo orders.Repository,
	rewards rewardsLedger,
	verifier paymentVerifier,
	cart cartCleaner,
	publisher outboxPublisher,
	cfg config.OrdersConfig,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if rewards == nil {
		return nil, fmt.Errorf("rewards ledger required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("payment verifier required")
	}
	if cart == nil {
		return nil, fmt.Errorf("cart cleaner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:          tx,
		products:    products,
		ordersRepo:  ordersRepo,
		rewards:     rewards,
		verifier:    verifier,
		reservation: reservationEngine{},
		cart:        cart,
		outbox:      publisher,
		cfg:         cfg,
		metrics:     checkoutMetrics,
		logg:        logg,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if err := validateInput(input); err != nil {
		s.metrics.IncPlaced("invalid")
		return nil, err
	}

	start := time.Now()
	orderID := uuid.New()
	var result *models.Order

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)
		productsRepo := s.products.WithTx(tx)

		snapshots, err := s.loadSnapshots(ctx, productsRepo, input.Lines)
		if err != nil {
			return err
		}

		// sequential, in request order, so the error names the first
		// product that ran out
		requests := make([]inventory.Reservation, len(input.Lines))
		for i, line := range input.Lines {
			requests[i] = inventory.Reservation{ProductID: line.ProductID, Qty: line.Qty}
		}
		if err := s.reservation.Reserve(ctx, tx, requests); err != nil {
			return err
		}

		lineItems, subtotalCents := buildLineItems(orderID, input.Lines, snapshots)

		pointsDiscount := 0
		if input.PointsToRedeem > 0 {
			pointsDiscount, err = s.rewards.DebitPoints(ctx, tx, input.CustomerID, input.PointsToRedeem, orderID)
			if err != nil {
				return err
			}
		}

		voucherDiscount := 0
		if input.VoucherCode != nil && *input.VoucherCode != "" {
			voucherDiscount, err = s.rewards.ClaimVoucher(ctx, tx, input.CustomerID, *input.VoucherCode, subtotalCents)
			if err != nil {
				return err
			}
		}

		// voucher discount applies before point currency; never below zero
		totalCents := subtotalCents - voucherDiscount - pointsDiscount
		if totalCents < 0 {
			totalCents = 0
		}

		paymentStatus := enums.PaymentStatusUnpaid
		var gatewayOrderRef, gatewayRequestRef *string
		if input.PaymentMethod == enums.PaymentMethodOnlineGateway {
			txn, err := s.verifier.Verify(ctx, input.GatewayOrderRef, input.GatewayRequestRef, totalCents)
			if err != nil {
				return err
			}
			if err := s.verifier.RecordTransaction(ctx, tx, orderID, txn); err != nil {
				return err
			}
			paymentStatus = enums.PaymentStatusPaid
			gatewayOrderRef = &input.GatewayOrderRef
			gatewayRequestRef = &input.GatewayRequestRef
		}

		processAfter := time.Now().Add(s.cfg.ProcessingDelay)
		order := &models.Order{
			ID:                   orderID,
			CustomerID:           input.CustomerID,
			Status:               enums.OrderStatusPending,
			PaymentMethod:        input.PaymentMethod,
			PaymentStatus:        paymentStatus,
			ShippingAddress:      input.ShippingAddress,
			ContactPhone:         input.ContactPhone,
			SubtotalCents:        subtotalCents,
			VoucherCode:          input.VoucherCode,
			VoucherDiscountCents: voucherDiscount,
			PointsRedeemed:       input.PointsToRedeem,
			PointsDiscountCents:  pointsDiscount,
			TotalCents:           totalCents,
			GatewayOrderRef:      gatewayOrderRef,
			GatewayRequestRef:    gatewayRequestRef,
			ProcessAfter:         &processAfter,
		}
		if err := ordersRepo.Create(ctx, order); err != nil {
			return err
		}
		if err := ordersRepo.CreateLineItems(ctx, lineItems); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{CustomerID: input.CustomerID, Role: "customer"},
			Data: payloads.OrderCreatedEvent{
				OrderID:       orderID,
				CustomerID:    input.CustomerID,
				TotalCents:    int64(totalCents),
				PaymentMethod: input.PaymentMethod,
				LineItemCount: len(lineItems),
			},
			Version: 1,
		}); err != nil {
			return err
		}

		result, err = ordersRepo.FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		s.metrics.IncPlaced(placementResult(err))
		return nil, err
	}

	s.metrics.IncPlaced("success")
	s.metrics.ObservePlacement(input.PaymentMethod.String(), time.Since(start))
	s.cleanupCart(ctx, input)

	return result, nil
}

// cleanupCart strips ordered products from the cart after commit. Best
// effort: the order is already the source of truth.
func (s *service) cleanupCart(ctx context.Context, input PlaceOrderInput) {
	productIDs := make([]uuid.UUID, len(input.Lines))
	for i, line := range input.Lines {
		productIDs[i] = line.ProductID
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.cart.RemoveProducts(ctx, tx, input.CustomerID, productIDs)
	})
	if err != nil && s.logg != nil {
		logCtx := s.logg.WithCustomerID(ctx, input.CustomerID.String())
		s.logg.Warn(logCtx, fmt.Sprintf("cart cleanup after checkout failed: %v", err))
	}
}

func placementResult(err error) string {
	switch {
	case pkgerrors.HasCode(err, pkgerrors.CodeOutOfStock):
		return "out_of_stock"
	case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientPoints):
		return "insufficient_points"
	case pkgerrors.HasCode(err, pkgerrors.CodeVoucherInvalid),
		pkgerrors.HasCode(err, pkgerrors.CodeVoucherExhausted):
		return "voucher_rejected"
	case pkgerrors.HasCode(err, pkgerrors.CodePaymentUnverified),
		pkgerrors.HasCode(err, pkgerrors.CodeAmountMismatch),
		pkgerrors.HasCode(err, pkgerrors.CodeGateway):
		return "payment_failed"
	case pkgerrors.HasCode(err, pkgerrors.CodeValidation),
		pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		return "invalid"
	default:
		return "error"
	}
}

func (s *service) loadSnapshots(ctx context.Context, repo catalog.Repository, lines []LineInput) (map[uuid.UUID]models.Product, error) {
	ids := make([]uuid.UUID, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	products, err := repo.ListActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	snapshots := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		snapshots[product.ID] = product
	}
	for _, line := range lines {
		if _, ok := snapshots[line.ProductID]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("product %s is not available", line.ProductID))
		}
	}
	return snapshots, nil
}

func validateInput(input PlaceOrderInput) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order contains no items")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Lines))
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("invalid quantity %d for product %s", line.Qty, line.ProductID))
		}
		if _, dup := seen[line.ProductID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("duplicate line for product %s", line.ProductID))
		}
		seen[line.ProductID] = struct{}{}
	}
	if !input.ShippingAddress.IsComplete() {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address is incomplete")
	}
	if input.ContactPhone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "contact phone required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.PointsToRedeem < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "points to redeem cannot be negative")
	}
	if input.PaymentMethod == enums.PaymentMethodOnlineGateway {
		if input.GatewayOrderRef == "" || input.GatewayRequestRef == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "gateway refs required for online payment")
		}
	}
	return nil
}

// buildLineItems snapshots price and discount per line. Unit discounts are
// computed with decimal math and rounded to whole cents per line.
func buildLineItems(orderID uuid.UUID, lines []LineInput, snapshots map[uuid.UUID]models.Product) ([]models.OrderLineItem, int) {
	items := make([]models.OrderLineItem, 0, len(lines))
	subtotal := 0
	for _, line := range lines {
		product := snapshots[line.ProductID]
		lineTotal := discountedLineTotal(product.PriceCents, product.DiscountPercent, line.Qty)
		subtotal += lineTotal
		items = append(items, models.OrderLineItem{
			OrderID:         orderID,
			ProductID:       product.ID,
			Name:            product.Name,
			Qty:             line.Qty,
			UnitPriceCents:  product.PriceCents,
			DiscountPercent: product.DiscountPercent,
			LineTotalCents:  lineTotal,
		})
	}
	return items, subtotal
}

func discountedLineTotal(unitPriceCents, discountPercent, qty int) int {
	total := decimal.NewFromInt(int64(unitPriceCents)).
		Mul(decimal.NewFromInt(int64(100 - discountPercent))).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromInt(int64(qty))).
		Round(0)
	return int(total.IntPart())
}
