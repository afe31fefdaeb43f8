package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/internal/catalog"
	"github.com/glowmart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
)

const maxQtyPerItem = 99

// Service manages a customer's cart contents.
type Service interface {
	SetItem(ctx context.Context, customerID, productID uuid.UUID, qty int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, customerID, productID uuid.UUID) error
	List(ctx context.Context, customerID uuid.UUID) ([]models.CartItem, error)
	RemoveProducts(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, productIDs []uuid.UUID) error
}

type service struct {
	repo     Repository
	products catalog.Repository
}

// NewService builds the cart service.
func NewService(repo Repository, products catalog.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo, products: products}, nil
}

// SetItem adds the product to the cart or replaces its quantity.
func (s *service) SetItem(ctx context.Context, customerID, productID uuid.UUID, qty int) (*models.CartItem, error) {
	if customerID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer and product ids required")
	}
	if qty <= 0 || qty > maxQtyPerItem {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", maxQtyPerItem))
	}

	product, err := s.products.FindByID(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is no longer available")
	}

	item := &models.CartItem{
		CustomerID: customerID,
		ProductID:  productID,
		Qty:        qty,
	}
	if err := s.repo.Upsert(ctx, item); err != nil {
		return nil, err
	}
	return s.repo.FindItem(ctx, customerID, productID)
}

func (s *service) RemoveItem(ctx context.Context, customerID, productID uuid.UUID) error {
	if customerID == uuid.Nil || productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer and product ids required")
	}
	return s.repo.DeleteItem(ctx, customerID, productID)
}

func (s *service) List(ctx context.Context, customerID uuid.UUID) ([]models.CartItem, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	return s.repo.ListByCustomer(ctx, customerID)
}

// RemoveProducts strips the ordered products from the cart inside the
// caller's transaction after a successful checkout.
func (s *service) RemoveProducts(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, productIDs []uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	return s.repo.WithTx(tx).DeleteProducts(ctx, customerID, productIDs)
}
