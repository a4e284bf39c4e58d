// Package core holds the ledger domain model: transactions, categories and
// money handling.
//
// Amounts are decimal.Decimal end to end; float64 never appears in sums.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user input into a strictly positive decimal amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Signs,
// grouping separators, exponents and zero are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("500")    -> 500
//	ParseAmount("12,50")  -> 12.5
//	ParseAmount("-3")     -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) || r > unicode.MaxASCII {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatINR renders an amount as rupees with Indian digit grouping, e.g.
// 123456.5 -> "₹1,23,456.50". Display only; never feed the result back into
// arithmetic.
func FormatINR(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	out := "₹" + groupIndian(intPart) + frac
	if neg {
		return "-" + out
	}
	return out
}

// groupIndian inserts separators after the last three digits and then every
// two digits (lakh/crore grouping).
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(append(groups, tail), ",")
}
