package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
)

// MaxAmount is the largest amount accepted for a single transfer.
var MaxAmount = decimal.NewFromInt(1_000_000)

// ParseAmount parses a decimal string and validates it as a transfer amount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	const op = "ledger.ParseAmount"
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, apperr.Validation(op, "amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, apperr.Validation(op, "amount must be a decimal number")
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Decimal{}, err
	}
	return amount, nil
}

// ValidateAmount checks that amount is positive, within MaxAmount and carries
// at most two fractional digits.
func ValidateAmount(amount decimal.Decimal) error {
	const op = "ledger.ValidateAmount"
	if !amount.IsPositive() {
		return apperr.Validation(op, "amount must be greater than zero")
	}
	if amount.GreaterThan(MaxAmount) {
		return apperr.Validation(op, "amount exceeds the maximum of 1000000")
	}
	if !HasCents(amount) {
		return apperr.Validation(op, "amount must have at most two decimal places")
	}
	return nil
}

// HasCents reports whether amount is representable with two fractional digits.
func HasCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(2))
}

// FormatAmount renders an amount with exactly two fractional digits.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
