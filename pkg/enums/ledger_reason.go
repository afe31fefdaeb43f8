package enums

import "fmt"

// LedgerReason classifies a rewards ledger entry. Together with the linked
// order id it forms the idempotency key for point credits.
type LedgerReason string

const (
	LedgerReasonRedeem            LedgerReason = "redeem"
	LedgerReasonCancelRefund      LedgerReason = "cancel_refund"
	LedgerReasonPaymentConversion LedgerReason = "payment_conversion"
	LedgerReasonPromotion         LedgerReason = "promotion"
)

var validLedgerReasons = []LedgerReason{
	LedgerReasonRedeem,
	LedgerReasonCancelRefund,
	LedgerReasonPaymentConversion,
	LedgerReasonPromotion,
}

// String implements fmt.Stringer.
func (l LedgerReason) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LedgerReason.
func (l LedgerReason) IsValid() bool {
	for _, candidate := range validLedgerReasons {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLedgerReason converts raw input into a LedgerReason.
func ParseLedgerReason(value string) (LedgerReason, error) {
	for _, candidate := range validLedgerReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger reason %q", value)
}
