// Package pricing derives the computed fields of a proposal: the total value,
// the validity date and the display number.
//
// Every function here is pure and total. Malformed numeric input degrades to
// zero or "absent" instead of failing.
package pricing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"

	"github.com/shopspring/decimal"
)

// maxValidityDays bounds the validity period so date arithmetic cannot overflow.
const maxValidityDays = 1_000_000

// LineTotal returns quantity × unit value for a single item.
func LineTotal(item domain.LineItem) decimal.Decimal {
	return Amount(item.Quantidade).Mul(Amount(item.ValorUnit))
}

// ComputeTotal sums the extended totals of items. An empty or nil
// collection yields exactly zero.
func ComputeTotal(items []domain.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(LineTotal(it))
	}
	return total
}

// ValidUntilInstant returns now + validityDays × 86400 seconds. It reports
// false when the validity is zero or not a finite number.
func ValidUntilInstant(now time.Time, validityDays float64) (time.Time, bool) {
	if validityDays == 0 || math.IsNaN(validityDays) || math.IsInf(validityDays, 0) {
		return time.Time{}, false
	}
	validityDays = math.Max(-maxValidityDays, math.Min(maxValidityDays, validityDays))

	whole, frac := math.Modf(validityDays)
	// UTC days are exactly 86400s long, so AddDate here never drifts across DST.
	t := now.UTC().AddDate(0, 0, int(whole)).Add(time.Duration(frac * float64(24*time.Hour)))
	return t.In(now.Location()), true
}

// ComputeValidUntil is ValidUntilInstant truncated to the calendar date in
// loc (UTC when nil).
func ComputeValidUntil(now time.Time, validityDays float64, loc *time.Location) (time.Time, bool) {
	t, ok := ValidUntilInstant(now, validityDays)
	if !ok {
		return time.Time{}, false
	}
	return truncateToDate(t, loc), true
}

// ComputeDisplayNumber picks the human-facing proposal reference:
// a positive sequential number zero-padded to at least three digits, else
// the last six characters of the raw id upper-cased, else "000".
func ComputeDisplayNumber(seq *int64, rawID string) string {
	if seq != nil && *seq > 0 {
		return fmt.Sprintf("%03d", *seq)
	}
	if rawID != "" {
		r := []rune(rawID)
		if len(r) > 6 {
			r = r[len(r)-6:]
		}
		return strings.ToUpper(string(r))
	}
	return "000"
}

// Derived holds the display fields computed at render time. They are never persisted.
type Derived struct {
	Total         decimal.Decimal
	ValidUntil    time.Time
	HasValidUntil bool
	DisplayNumber string
}

// Derive computes every derived field of a draft. The total comes from the
// items when they are loaded and from the stored total otherwise.
func Derive(d domain.Draft, now time.Time, loc *time.Location) Derived {
	out := Derived{
		Total:         decimal.Zero,
		DisplayNumber: ComputeDisplayNumber(d.NumeroSequencial, d.ID),
	}
	switch {
	case d.Itens != nil:
		out.Total = ComputeTotal(d.Itens)
	case d.ValorTotal != nil:
		out.Total = Amount(*d.ValorTotal)
	}
	out.ValidUntil, out.HasValidUntil = ComputeValidUntil(now, d.ValidadeDias.Float64(), loc)
	return out
}

// AsNumber converts a computed amount into the stored representation.
func AsNumber(v decimal.Decimal) domain.Number {
	return domain.Number(v.InexactFloat64())
}

// Amount converts a lenient stored number into a decimal.
func Amount(n domain.Number) decimal.Decimal {
	return decimal.NewFromFloat(n.Float64())
}

func truncateToDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
