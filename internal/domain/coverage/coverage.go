// Package coverage splits a priced bill between the insurer and the member.
//
// Every amount is rounded to the cent per line before it is summed, and the
// member share is the remainder of the total, so the two shares always add
// up to the total exactly.
package coverage

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
)

// Line is one priced entry of a bill.
type Line struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Split is the result of Compute, in cents.
type Split struct {
	TotalCents        int64 `json:"total_cents"`
	InsurerShareCents int64 `json:"insurer_share_cents"`
	MemberShareCents  int64 `json:"member_share_cents"`
}

// Compute returns the total and its split for coveragePercent, clamped to
// [0, 100]. An empty bill yields a zero Split.
func Compute(lines []Line, coveragePercent decimal.Decimal) Split {
	var total int64
	for _, l := range lines {
		total += UnitCents(l.UnitPrice) * int64(l.Quantity)
	}

	pct := ClampPercent(coveragePercent)
	insurer := decimal.NewFromInt(total).Mul(pct).Div(hundred).Round(0).IntPart()
	return Split{
		TotalCents:        total,
		InsurerShareCents: insurer,
		MemberShareCents:  total - insurer,
	}
}

// UnitCents converts a price to whole cents, rounding half away from zero.
func UnitCents(price decimal.Decimal) int64 {
	return price.Mul(hundred).Round(0).IntPart()
}

// ClampPercent bounds p to [0, 100].
func ClampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

// FormatCents renders cents as a fixed two-decimal amount, e.g. 2501 -> "25.01".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// String renders the split for logs.
func (s Split) String() string {
	return fmt.Sprintf("total=%s insurer=%s member=%s",
		FormatCents(s.TotalCents), FormatCents(s.InsurerShareCents), FormatCents(s.MemberShareCents))
}
