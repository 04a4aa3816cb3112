package vo

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParsePrescriptionStatus(t *testing.T) {
	for _, s := range PrescriptionStatuses {
		got, err := ParsePrescriptionStatus(string(s))
		if err != nil || got != s {
			t.Errorf("ParsePrescriptionStatus(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParsePrescriptionStatus("cancelled"); err == nil {
		t.Error("unknown status accepted")
	}
}

func TestParseBillingStatuses(t *testing.T) {
	// The empty value is a legal menu entry on both billing dimensions.
	if _, err := ParseInsuranceBillingStatus(""); err != nil {
		t.Errorf("empty insurance status rejected: %v", err)
	}
	if _, err := ParseCopaymentBillingStatus(""); err != nil {
		t.Errorf("empty copayment status rejected: %v", err)
	}
	if _, err := ParseInsuranceBillingStatus("paid"); err != nil {
		t.Errorf("paid rejected: %v", err)
	}
	if _, err := ParseCopaymentBillingStatus("refunded"); err == nil {
		t.Error("unknown copayment status accepted")
	}
}

func TestProgress(t *testing.T) {
	p := &Prescription{Completed: 3, Prescribed: 8}
	if got := p.Progress(); got != "3/8" {
		t.Errorf("Progress = %q, want 3/8", got)
	}
}

func TestInterrupted(t *testing.T) {
	tests := []struct {
		completed, prescribed int
		want                  bool
	}{
		{3, 8, true},
		{0, 8, false},
		{8, 8, false},
		{1, 2, true},
	}
	for _, tt := range tests {
		p := &Prescription{Completed: tt.completed, Prescribed: tt.prescribed}
		if got := p.Interrupted(); got != tt.want {
			t.Errorf("Interrupted(%d/%d) = %v, want %v", tt.completed, tt.prescribed, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := &Prescription{
		Number:           "VO-1",
		Prescribed:       8,
		Completed:        3,
		CostPerTreatment: decimal.RequireFromString("25.00"),
		Status:           StatusActive,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}

	missing := *valid
	missing.Number = ""
	if err := missing.Validate(); err == nil {
		t.Error("missing number accepted")
	}

	negative := *valid
	negative.Completed = -1
	if err := negative.Validate(); err == nil {
		t.Error("negative completed count accepted")
	}

	badStatus := *valid
	badStatus.Status = "archived"
	if err := badStatus.Validate(); err == nil {
		t.Error("unknown status accepted")
	}
}

func TestCopaymentProfile(t *testing.T) {
	if _, ok := ExemptProfile().Info(); ok {
		t.Error("exempt profile exposed info")
	}
	if !ExemptProfile().Exempt() {
		t.Error("exempt profile not exempt")
	}

	if _, ok := BillableProfile(nil).Info(); ok {
		t.Error("billable profile without document exposed info")
	}
	if BillableProfile(nil).Exempt() {
		t.Error("billable profile reported exempt")
	}

	info := &CopaymentInfo{InvoiceNumber: "ZZ-VO-1"}
	got, ok := BillableProfile(info).Info()
	if !ok || got.InvoiceNumber != "ZZ-VO-1" {
		t.Errorf("Info() = %+v, %v", got, ok)
	}
}
