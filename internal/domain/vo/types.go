// Package vo implements the prescription (VO) domain model: treatment
// courses, the three status dimensions, and copayment settlement data.
package vo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PrescriptionStatus is the treatment-course status of a VO.
type PrescriptionStatus string

const (
	StatusActive            PrescriptionStatus = "active"
	StatusAborted           PrescriptionStatus = "aborted"
	StatusTreatmentComplete PrescriptionStatus = "treatment_complete"
	StatusBilled            PrescriptionStatus = "billed"
	StatusExpired           PrescriptionStatus = "expired"
)

// InsuranceBillingStatus tracks the insurer-side billing dimension.
// The empty value means no insurance billing state has been recorded.
type InsuranceBillingStatus string

const (
	InsuranceNone        InsuranceBillingStatus = ""
	InsuranceReadyToSend InsuranceBillingStatus = "ready_to_send"
	InsuranceForFixing   InsuranceBillingStatus = "for_fixing"
	InsuranceSent        InsuranceBillingStatus = "sent"
	InsurancePaid        InsuranceBillingStatus = "paid"
)

// CopaymentBillingStatus tracks the patient-side billing dimension.
// Only meaningful for copayment-liable patients.
type CopaymentBillingStatus string

const (
	CopaymentNone      CopaymentBillingStatus = ""
	CopaymentPaid      CopaymentBillingStatus = "paid"
	CopaymentForRefund CopaymentBillingStatus = "for_refund"
)

// Dimension identifies one of the three independent status dimensions.
type Dimension string

const (
	DimensionPrescription Dimension = "prescription"
	DimensionInsurance    Dimension = "insurance_billing"
	DimensionCopayment    Dimension = "copayment_billing"
)

// PrescriptionStatuses is the fixed status menu for the prescription dimension.
var PrescriptionStatuses = []PrescriptionStatus{
	StatusActive,
	StatusAborted,
	StatusTreatmentComplete,
	StatusBilled,
	StatusExpired,
}

// InsuranceBillingStatuses is the fixed menu for the insurance dimension,
// the empty value included.
var InsuranceBillingStatuses = []InsuranceBillingStatus{
	InsuranceNone,
	InsuranceReadyToSend,
	InsuranceForFixing,
	InsuranceSent,
	InsurancePaid,
}

// CopaymentBillingStatuses is the fixed menu for the copayment dimension,
// the empty value included.
var CopaymentBillingStatuses = []CopaymentBillingStatus{
	CopaymentNone,
	CopaymentPaid,
	CopaymentForRefund,
}

// ParsePrescriptionStatus validates a raw status value at the boundary.
func ParsePrescriptionStatus(raw string) (PrescriptionStatus, error) {
	for _, s := range PrescriptionStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown prescription status %q", raw)
}

// ParseInsuranceBillingStatus validates a raw insurance billing value.
func ParseInsuranceBillingStatus(raw string) (InsuranceBillingStatus, error) {
	for _, s := range InsuranceBillingStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown insurance billing status %q", raw)
}

// ParseCopaymentBillingStatus validates a raw copayment billing value.
func ParseCopaymentBillingStatus(raw string) (CopaymentBillingStatus, error) {
	for _, s := range CopaymentBillingStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown copayment billing status %q", raw)
}

// Prescription is the immutable base record for a treatment order. The
// status store layers current override values on top of it; the record
// itself is never mutated after loading.
type Prescription struct {
	Number           string                 `json:"number"`
	PatientName      string                 `json:"patient_name"`
	Therapy          string                 `json:"therapy"`
	Prescribed       int                    `json:"prescribed"`
	Completed        int                    `json:"completed"`
	CostPerTreatment decimal.Decimal        `json:"cost_per_treatment"`
	Status           PrescriptionStatus     `json:"status"`
	InsuranceStatus  InsuranceBillingStatus `json:"insurance_status"`
	CopaymentStatus  CopaymentBillingStatus `json:"copayment_status"`
	CopaymentLiable  bool                   `json:"copayment_liable"`
	IssuedAt         time.Time              `json:"issued_at"`
}

// Progress renders the treatment progress pair as "completed/prescribed".
func (p *Prescription) Progress() string {
	return fmt.Sprintf("%d/%d", p.Completed, p.Prescribed)
}

// Interrupted reports whether the course started but did not run to the
// prescribed count.
func (p *Prescription) Interrupted() bool {
	return p.Completed >= 1 && p.Completed < p.Prescribed
}

// Validate checks the base-record invariants.
func (p *Prescription) Validate() error {
	if p.Number == "" {
		return fmt.Errorf("prescription number is required")
	}
	if p.Prescribed < 0 || p.Completed < 0 {
		return fmt.Errorf("vo %s: treatment counts must be non-negative", p.Number)
	}
	if p.CostPerTreatment.IsNegative() {
		return fmt.Errorf("vo %s: cost per treatment must be non-negative", p.Number)
	}
	if _, err := ParsePrescriptionStatus(string(p.Status)); err != nil {
		return fmt.Errorf("vo %s: %w", p.Number, err)
	}
	return nil
}

// CopaymentInfo holds the settlement state for a copayment-liable VO.
// The prescribed count and per-treatment cost are snapshotted at invoice
// time so a later refund is computed against what was actually invoiced,
// not against counts that may have been edited since.
type CopaymentInfo struct {
	InvoiceNumber       string          `json:"invoice_number"`
	GeneratedAt         time.Time       `json:"generated_at"`
	Amount              decimal.Decimal `json:"amount"`
	PrescribedAtInvoice int             `json:"prescribed_at_invoice"`
	CostAtInvoice       decimal.Decimal `json:"cost_at_invoice"`
	DocumentGenerated   bool            `json:"document_generated"`
	RefundGenerated     bool            `json:"refund_generated"`
	RefundAmount        decimal.Decimal `json:"refund_amount"`
	RefundDate          time.Time       `json:"refund_date"`
	RefundInvoiceNumber string          `json:"refund_invoice_number"`
}

// CopaymentProfile distinguishes "copayment not applicable" from
// "applicable but not yet invoiced". Exempt patients carry no info at
// all; liable patients carry nil info until a document is generated.
type CopaymentProfile struct {
	exempt bool
	info   *CopaymentInfo
}

// ExemptProfile is the profile of a patient with no copayment obligation.
func ExemptProfile() CopaymentProfile {
	return CopaymentProfile{exempt: true}
}

// BillableProfile is the profile of a copayment-liable patient. info may
// be nil when no document has been generated yet.
func BillableProfile(info *CopaymentInfo) CopaymentProfile {
	return CopaymentProfile{info: info}
}

// Exempt reports whether copayment fields are inapplicable.
func (p CopaymentProfile) Exempt() bool { return p.exempt }

// Info returns the settlement info. ok is false for exempt patients and
// for liable patients without a generated document.
func (p CopaymentProfile) Info() (*CopaymentInfo, bool) {
	if p.exempt || p.info == nil {
		return nil, false
	}
	return p.info, true
}
