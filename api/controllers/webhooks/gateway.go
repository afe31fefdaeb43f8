package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/glowmart/storefront-backend/api/responses"
	"github.com/glowmart/storefront-backend/internal/payments"
	gatewaywebhook "github.com/glowmart/storefront-backend/internal/webhooks/gateway"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
	"github.com/glowmart/storefront-backend/pkg/logger"
)

type GatewayWebhookService interface {
	HandleCallback(ctx context.Context, callback *gatewaywebhook.GatewayCallback) error
}

type gatewayWebhookGuard interface {
	CheckAndMark(ctx context.Context, requestRef string) (bool, error)
	Delete(ctx context.Context, requestRef string) error
}

type callbackVerifier interface {
	VerifyCallbackSignature(fields payments.CallbackFields, signature string) bool
}

// GatewayWebhook handles payment gateway IPN callbacks.
func GatewayWebhook(svc GatewayWebhookService, verifier callbackVerifier, guard gatewayWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		// The gateway adds fields over time, so decode leniently.
		var callback gatewaywebhook.GatewayCallback
		if err := json.Unmarshal(payload, &callback); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode callback"))
			return
		}
		if callback.RequestRef == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request ref missing"))
			return
		}

		fields := payments.CallbackFields{
			Amount:     callback.Amount,
			OrderRef:   callback.OrderRef,
			RequestRef: callback.RequestRef,
			ResultCode: callback.ResultCode,
			TransID:    callback.TransID,
		}
		if !verifier.VerifyCallbackSignature(fields, callback.Signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "invalid gateway signature"))
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, callback.RequestRef)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleCallback(ctx, &callback); err != nil {
			_ = guard.Delete(ctx, callback.RequestRef)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("gateway callback %s processed", callback.RequestRef))
		}
		responses.WriteSuccess(w, nil)
	}
}
