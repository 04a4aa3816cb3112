// Package settlement implements the copayment calculator and the
// settlement document composer for prescription (VO) courses.
package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Statutory copayment: 10 currency units flat plus 10% of the total
// treatment cost. Fixed by law, not configurable.
var (
	statutoryBase = decimal.NewFromInt(10)
	statutoryRate = decimal.RequireFromString("0.10")
)

// Copayment computes the statutory copayment for a treatment count and a
// per-treatment cost. The result is kept at full precision; rounding to
// two decimals happens only at serialization points.
func Copayment(treatmentCount int, perTreatment decimal.Decimal) decimal.Decimal {
	total := perTreatment.Mul(decimal.NewFromInt(int64(treatmentCount)))
	return statutoryBase.Add(total.Mul(statutoryRate))
}

// RefundAmounts is the result of a refund computation.
type RefundAmounts struct {
	// Original is the copayment invoiced for the full prescribed course.
	Original decimal.Decimal
	// Actual is the copayment owed for the treatments actually completed.
	Actual decimal.Decimal
	// Refund is Original minus Actual.
	Refund decimal.Decimal
}

// NegativeRefundAnomaly reports upstream data that would produce a
// negative refund (actual copayment above the invoiced one). It is a
// data problem, not a programming error, and is never silently emitted
// as a negative amount.
type NegativeRefundAnomaly struct {
	VONumber string
	Original decimal.Decimal
	Actual   decimal.Decimal
}

func (e *NegativeRefundAnomaly) Error() string {
	return fmt.Sprintf("vo %s: actual copayment %s exceeds invoiced copayment %s",
		e.VONumber, e.Actual.StringFixed(2), e.Original.StringFixed(2))
}

// ComputeRefund derives the pro-rated refund for an interrupted course.
// original is the invoiced copayment (the invoice-time snapshot is
// authoritative); the actual copayment is recomputed from the completed
// count against the invoiced per-treatment cost.
//
// Callers enforce the eligibility gate (completed >= 1 and
// completed < prescribed); the formula itself needs no special casing.
func ComputeRefund(voNumber string, original decimal.Decimal, completed int, perTreatment decimal.Decimal) (RefundAmounts, error) {
	actual := Copayment(completed, perTreatment)
	refund := original.Sub(actual)
	if refund.IsNegative() {
		return RefundAmounts{}, &NegativeRefundAnomaly{
			VONumber: voNumber,
			Original: original,
			Actual:   actual,
		}
	}
	return RefundAmounts{Original: original, Actual: actual, Refund: refund}, nil
}
