package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount converts a major-unit amount such as "12.50" to cents.
func parseAmount(raw string) (int64, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if !amount.IsPositive() {
		return 0, fmt.Errorf("amount must be positive, got %s", amount)
	}
	cents := amount.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than two decimal places", amount)
	}
	return cents.IntPart(), nil
}

// formatAmount renders cents as a major-unit amount for logs.
func formatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
