package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("row not found")
	err := Wrap(CodeNotFound, cause, "order lookup failed")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to survive errors.Is")
	}
	if err.Code() != CodeNotFound {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsFindsTypedErrorThroughChain(t *testing.T) {
	t.Parallel()

	inner := New(CodeOutOfStock, "product sold out").WithDetails(map[string]string{"product": "serum"})
	wrapped := fmt.Errorf("place order: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeOutOfStock {
		t.Fatalf("unexpected code %s", typed.Code())
	}
	if typed.Details() == nil {
		t.Fatal("expected details to survive wrapping")
	}
}

func TestHasCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("checkout: %w", New(CodeInsufficientPoints, "balance too low"))
	if !HasCode(err, CodeInsufficientPoints) {
		t.Fatal("expected HasCode match")
	}
	if HasCode(err, CodeOutOfStock) {
		t.Fatal("unexpected HasCode match")
	}
	if HasCode(nil, CodeOutOfStock) {
		t.Fatal("nil error should never match")
	}
}

func TestMetadataForDomainCodes(t *testing.T) {
	t.Parallel()

	cases := map[Code]int{
		CodeOutOfStock:         http.StatusConflict,
		CodeInsufficientPoints: http.StatusConflict,
		CodeVoucherExhausted:   http.StatusConflict,
		CodeVoucherInvalid:     http.StatusUnprocessableEntity,
		CodePaymentUnverified:  http.StatusPaymentRequired,
		CodeAmountMismatch:     http.StatusPaymentRequired,
		CodeGateway:            http.StatusBadGateway,
	}
	for code, want := range cases {
		if got := MetadataFor(code).HTTPStatus; got != want {
			t.Fatalf("%s: expected status %d, got %d", code, want, got)
		}
	}
	if !MetadataFor(CodeGateway).Retryable {
		t.Fatal("gateway errors must surface as retryable")
	}
	if MetadataFor("UNKNOWN").HTTPStatus != http.StatusInternalServerError {
		t.Fatal("unknown codes fall back to internal metadata")
	}
}
