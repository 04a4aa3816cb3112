package settlement

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCopayment(t *testing.T) {
	tests := []struct {
		name         string
		count        int
		perTreatment string
		want         string
	}{
		{"eight treatments at 25", 8, "25.00", "30.00"},
		{"three treatments at 25", 3, "25.00", "17.50"},
		{"zero treatments", 0, "25.00", "10.00"},
		{"six treatments at 19.50", 6, "19.50", "21.70"},
		{"odd cost keeps precision", 7, "32.80", "32.96"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Copayment(tt.count, d(tt.perTreatment))
			if !got.Equal(d(tt.want)) {
				t.Errorf("Copayment(%d, %s) = %s, want %s", tt.count, tt.perTreatment, got, tt.want)
			}
		})
	}
}

func TestCopaymentFullPrecision(t *testing.T) {
	// 10 + 0.10 * 3 * 33.33 = 19.999; the calculator must not round.
	got := Copayment(3, d("33.33"))
	if !got.Equal(d("19.999")) {
		t.Errorf("Copayment(3, 33.33) = %s, want 19.999", got)
	}
	if got.StringFixed(2) != "20.00" {
		t.Errorf("display rounding = %s, want 20.00", got.StringFixed(2))
	}
}

func TestComputeRefund(t *testing.T) {
	amounts, err := ComputeRefund("VO-1", d("30.00"), 3, d("25.00"))
	if err != nil {
		t.Fatalf("ComputeRefund returned error: %v", err)
	}
	if !amounts.Original.Equal(d("30.00")) {
		t.Errorf("Original = %s, want 30.00", amounts.Original)
	}
	if !amounts.Actual.Equal(d("17.50")) {
		t.Errorf("Actual = %s, want 17.50", amounts.Actual)
	}
	if !amounts.Refund.Equal(d("12.50")) {
		t.Errorf("Refund = %s, want 12.50", amounts.Refund)
	}
}

func TestComputeRefundZero(t *testing.T) {
	// Actual equals original: a zero refund is valid, not an anomaly.
	amounts, err := ComputeRefund("VO-1", d("30.00"), 8, d("25.00"))
	if err != nil {
		t.Fatalf("ComputeRefund returned error: %v", err)
	}
	if !amounts.Refund.IsZero() {
		t.Errorf("Refund = %s, want 0", amounts.Refund)
	}
}

func TestComputeRefundNegativeAnomaly(t *testing.T) {
	_, err := ComputeRefund("VO-1", d("15.00"), 5, d("25.00"))
	if err == nil {
		t.Fatal("expected anomaly, got nil")
	}

	var anomaly *NegativeRefundAnomaly
	if !errors.As(err, &anomaly) {
		t.Fatalf("expected NegativeRefundAnomaly, got %T", err)
	}
	if anomaly.VONumber != "VO-1" {
		t.Errorf("VONumber = %s, want VO-1", anomaly.VONumber)
	}
	if !anomaly.Actual.Equal(d("22.50")) {
		t.Errorf("Actual = %s, want 22.50", anomaly.Actual)
	}
}
