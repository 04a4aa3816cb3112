package settlement

import (
	"time"

	"github.com/praxisdesk/go-praxis/internal/domain/vo"
)

// View is the data the document-preview consumer renders: either the
// original copayment invoice or the refund correction letter. Amounts
// are serialized with two decimals here and nowhere earlier.
type View struct {
	VONumber      string        `json:"vo_number"`
	PatientName   string        `json:"patient_name"`
	Therapy       string        `json:"therapy"`
	Progress      string        `json:"progress"`
	State         DocumentState `json:"state"`
	Applicable    bool          `json:"applicable"`
	BillingStatus string        `json:"billing_status,omitempty"`
	Authoritative string        `json:"authoritative,omitempty"`
	Invoice       *InvoiceView  `json:"invoice,omitempty"`
	Refund        *RefundView   `json:"refund,omitempty"`
	CanRefund     bool          `json:"can_refund"`
}

// InvoiceView is the original copayment invoice.
type InvoiceView struct {
	InvoiceNumber  string    `json:"invoice_number"`
	Date           time.Time `json:"date"`
	TreatmentCount int       `json:"treatment_count"`
	PerTreatment   string    `json:"per_treatment"`
	Amount         string    `json:"amount"`
}

// RefundView is the refund correction letter.
type RefundView struct {
	RefundInvoiceNumber string    `json:"refund_invoice_number"`
	Date                time.Time `json:"date"`
	CompletedCount      int       `json:"completed_count"`
	OriginalAmount      string    `json:"original_amount"`
	ActualAmount        string    `json:"actual_amount"`
	RefundAmount        string    `json:"refund_amount"`
}

// ComposeView assembles the settlement view for a prescription.
// copaymentStatus is the effective value read from the status store.
// For exempt patients the view is marked inapplicable and carries no
// billing status at all; once a refund exists, the refund letter is the
// authoritative view while the invoice stays navigable.
func (c *Composer) ComposeView(p *vo.Prescription, copaymentStatus vo.CopaymentBillingStatus) View {
	view := View{
		VONumber:    p.Number,
		PatientName: p.PatientName,
		Therapy:     p.Therapy,
		Progress:    p.Progress(),
		State:       c.DocumentState(p),
	}

	profile := c.Profile(p)
	if profile.Exempt() {
		return view
	}

	view.Applicable = true
	view.BillingStatus = string(copaymentStatus)
	view.CanRefund = c.CanGenerateRefund(p)

	info, ok := profile.Info()
	if !ok {
		return view
	}

	view.Authoritative = "invoice"
	view.Invoice = &InvoiceView{
		InvoiceNumber:  info.InvoiceNumber,
		Date:           info.GeneratedAt,
		TreatmentCount: info.PrescribedAtInvoice,
		PerTreatment:   info.CostAtInvoice.StringFixed(2),
		Amount:         info.Amount.StringFixed(2),
	}

	if info.RefundGenerated {
		view.Authoritative = "refund"
		view.Refund = &RefundView{
			RefundInvoiceNumber: info.RefundInvoiceNumber,
			Date:                info.RefundDate,
			CompletedCount:      p.Completed,
			OriginalAmount:      info.Amount.StringFixed(2),
			ActualAmount:        info.Amount.Sub(info.RefundAmount).StringFixed(2),
			RefundAmount:        info.RefundAmount.StringFixed(2),
		}
	}

	return view
}
