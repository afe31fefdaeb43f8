package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/glowmart/storefront-backend/api/responses"
	"github.com/glowmart/storefront-backend/api/validators"
	checkoutsvc "github.com/glowmart/storefront-backend/internal/checkout"
	"github.com/glowmart/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
	"github.com/glowmart/storefront-backend/pkg/logger"
	"github.com/glowmart/storefront-backend/pkg/types"
)

type checkoutRequest struct {
	Items           []checkoutLineRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress types.Address         `json:"shipping_address" validate:"required"`
	ContactPhone    string                `json:"contact_phone" validate:"required,min=6,max=20"`
	PaymentMethod   string                `json:"payment_method" validate:"required,oneof=cash_on_delivery online_gateway"`
	VoucherCode     *string               `json:"voucher_code,omitempty" validate:"omitempty,min=1,max=64"`
	PointsToRedeem  int                   `json:"points_to_redeem" validate:"min=0"`

	GatewayOrderRef   string `json:"gateway_order_ref,omitempty"`
	GatewayRequestRef string `json:"gateway_request_ref,omitempty"`
}

type checkoutLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1,max=99"`
}

// Checkout places an order from the submitted lines.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		lines := make([]checkoutsvc.LineInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			lines = append(lines, checkoutsvc.LineInput{ProductID: item.ProductID, Qty: item.Qty})
		}

		order, err := svc.PlaceOrder(r.Context(), checkoutsvc.PlaceOrderInput{
			CustomerID:        customerID,
			Lines:             lines,
			ShippingAddress:   payload.ShippingAddress,
			ContactPhone:      payload.ContactPhone,
			PaymentMethod:     method,
			VoucherCode:       payload.VoucherCode,
			PointsToRedeem:    payload.PointsToRedeem,
			GatewayOrderRef:   payload.GatewayOrderRef,
			GatewayRequestRef: payload.GatewayRequestRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

type paymentRequester interface {
	CreatePaymentRequest(ctx context.Context, orderRef, requestRef string, amountCents int) (string, error)
}

type paymentRequestBody struct {
	AmountCents int `json:"amount_cents" validate:"required,min=1"`
}

type paymentRequestResponse struct {
	PayURL            string `json:"pay_url"`
	GatewayOrderRef   string `json:"gateway_order_ref"`
	GatewayRequestRef string `json:"gateway_request_ref"`
}

// CreatePaymentRequest registers a gateway payment intent ahead of checkout
// and hands the client the hosted payment page plus the refs to submit back.
func CreatePaymentRequest(gateway paymentRequester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gateway == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway unavailable"))
			return
		}

		if _, err := customerIDFromContext(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentRequestBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderRef := "GM-" + uuid.NewString()
		requestRef := uuid.NewString()
		payURL, err := gateway.CreatePaymentRequest(r.Context(), orderRef, requestRef, payload.AmountCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, paymentRequestResponse{
			PayURL:            payURL,
			GatewayOrderRef:   orderRef,
			GatewayRequestRef: requestRef,
		})
	}
}
