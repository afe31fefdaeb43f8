package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowmart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
)

// Reservation asks for qty units of one product.
type Reservation struct {
	ProductID uuid.UUID
	Qty       int
}

// ShortfallDetail reports why a reservation could not be satisfied.
type ShortfallDetail struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Reserve decrements available stock for every request inside the caller's
// transaction. The decrement is guarded so the row never goes negative under
// concurrent checkouts; the first shortfall aborts the whole set.
func Reserve(ctx context.Context, tx *gorm.DB, requests []Reservation) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quantity %d for product %s", req.Qty, req.ProductID))
		}

		res := tx.WithContext(ctx).
			Model(&models.InventoryItem{}).
			Where("product_id = ? AND available_qty >= ?", req.ProductID, req.Qty).
			Updates(map[string]any{
				"available_qty": gorm.Expr("available_qty - ?", req.Qty),
				"sold_qty":      gorm.Expr("sold_qty + ?", req.Qty),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shortfallError(ctx, tx, req)
		}
	}
	return nil
}

// Release returns qty units to available stock. Used when a pending order is
// cancelled after its stock was already sold.
func Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid release quantity %d", qty))
	}

	res := tx.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ? AND sold_qty >= ?", productID, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty + ?", qty),
			"sold_qty":      gorm.Expr("sold_qty - ?", qty),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot release %d units of product %s", qty, productID))
	}
	return nil
}

func shortfallError(ctx context.Context, tx *gorm.DB, req Reservation) error {
	var item models.InventoryItem
	err := tx.WithContext(ctx).
		Where("product_id = ?", req.ProductID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no inventory for product %s", req.ProductID))
	}
	if err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
		WithDetails(ShortfallDetail{
			ProductID: req.ProductID,
			Requested: req.Qty,
			Available: item.AvailableQty,
		})
}
