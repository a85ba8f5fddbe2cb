// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"strings"
)

// FormatMoney formats a dollar amount with thousands separators.
func FormatMoney(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")

	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var groups []string
	for n > 3 {
		groups = append([]string{s[n-3:]}, groups...)
		s = s[:n-3]
		n = len(s)
	}
	return s + "," + strings.Join(groups, ",")
}

// FormatQuantity formats a possibly fractional quantity, trimming
// trailing zeros down to a whole number where possible.
func FormatQuantity(qty float64) string {
	s := fmt.Sprintf("%.5f", qty)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}

// FormatPercent formats a fraction as a signed percentage.
func FormatPercent(value float64) string {
	return fmt.Sprintf("%+.2f%%", value*100)
}

// FormatPnL formats a profit/loss amount with an explicit sign.
func FormatPnL(pnl float64) string {
	if pnl >= 0 {
		return "+" + FormatMoney(pnl)
	}
	return FormatMoney(pnl)
}
