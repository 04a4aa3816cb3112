package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/praxisdesk/go-praxis/internal/domain/vo"
	"github.com/praxisdesk/go-praxis/internal/observability/metrics"
	"github.com/praxisdesk/go-praxis/pkg/idempotency"
)

// DocumentState is the settlement view state machine. Transitions are
// forward-only; there is no undo for a generated refund.
type DocumentState string

const (
	StateNoDocument        DocumentState = "no_document"
	StateDocumentGenerated DocumentState = "document_generated"
	StateRefundGenerated   DocumentState = "refund_generated"
)

const opRefund = "refund"

var (
	// ErrCopaymentNotApplicable is returned for copayment-exempt patients.
	ErrCopaymentNotApplicable = errors.New("copayment not applicable for exempt patient")
	// ErrRefundNotEligible is returned when the eligibility guard fails.
	ErrRefundNotEligible = errors.New("refund not eligible")
)

// EventSink receives settlement domain events.
type EventSink interface {
	Record(ctx context.Context, events []*vo.Event) error
}

// Composer decides which settlement view is authoritative for a VO and
// owns the mutable copayment info registry. The base records stay
// immutable; all settlement state lives here.
type Composer struct {
	mu    sync.Mutex
	infos map[string]*vo.CopaymentInfo

	ledger  *idempotency.Ledger
	sink    EventSink
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewComposer creates a composer with an empty registry. sink and m may
// be nil.
func NewComposer(sink EventSink, m *metrics.Metrics, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		infos:   make(map[string]*vo.CopaymentInfo),
		ledger:  idempotency.NewLedger(),
		sink:    sink,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Restore seeds the registry from previously persisted copayment infos.
// Already-generated refunds are re-marked in the ledger so they can
// never be issued again after a restart.
func (c *Composer) Restore(infos map[string]*vo.CopaymentInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for voNumber, info := range infos {
		cp := *info
		c.infos[voNumber] = &cp
		if cp.RefundGenerated {
			c.ledger.Restore(idempotency.Key(opRefund, voNumber, cp.InvoiceNumber), cp.RefundDate)
		}
	}
}

// InvoiceNumber derives the copayment invoice number for a VO.
func InvoiceNumber(voNumber string) string {
	return "ZZ-" + voNumber
}

// RefundInvoiceNumber derives the correction invoice number.
func RefundInvoiceNumber(invoiceNumber string) string {
	return invoiceNumber + "-R"
}

// Profile returns the copayment profile for a prescription: Exempt for
// patients without a copayment obligation, otherwise Billable with the
// current info (nil until a document exists).
func (c *Composer) Profile(p *vo.Prescription) vo.CopaymentProfile {
	if !p.CopaymentLiable {
		return vo.ExemptProfile()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.infos[p.Number]; ok {
		cp := *info
		return vo.BillableProfile(&cp)
	}
	return vo.BillableProfile(nil)
}

// DocumentState returns the current view state for a prescription.
func (c *Composer) DocumentState(p *vo.Prescription) DocumentState {
	info, ok := c.Profile(p).Info()
	switch {
	case !ok || !info.DocumentGenerated:
		return StateNoDocument
	case info.RefundGenerated:
		return StateRefundGenerated
	default:
		return StateDocumentGenerated
	}
}

// GenerateDocument creates the copayment invoice for a liable VO. The
// prescribed count and per-treatment cost are snapshotted so later
// refunds settle against what was actually invoiced. Calling it again
// returns the existing document unchanged.
func (c *Composer) GenerateDocument(ctx context.Context, p *vo.Prescription) (*vo.CopaymentInfo, error) {
	if !p.CopaymentLiable {
		return nil, ErrCopaymentNotApplicable
	}

	c.mu.Lock()
	if existing, ok := c.infos[p.Number]; ok && existing.DocumentGenerated {
		cp := *existing
		c.mu.Unlock()
		return &cp, nil
	}

	amount := Copayment(p.Prescribed, p.CostPerTreatment)
	info := &vo.CopaymentInfo{
		InvoiceNumber:       InvoiceNumber(p.Number),
		GeneratedAt:         c.now().UTC(),
		Amount:              amount,
		PrescribedAtInvoice: p.Prescribed,
		CostAtInvoice:       p.CostPerTreatment,
		DocumentGenerated:   true,
	}
	c.infos[p.Number] = info
	cp := *info
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.DocumentsGenerated.Inc()
		f, _ := amount.Float64()
		c.metrics.CopaymentAmounts.Observe(f)
	}
	c.emit(ctx, p.Number, vo.EventDocumentGenerated, &vo.DocumentGeneratedData{
		VONumber:      p.Number,
		InvoiceNumber: cp.InvoiceNumber,
		Amount:        amount.StringFixed(2),
		GeneratedAt:   cp.GeneratedAt,
	})
	c.logger.Info("copayment document generated",
		zap.String("vo", p.Number),
		zap.String("invoice", cp.InvoiceNumber),
		zap.String("amount", amount.StringFixed(2)),
	)
	return &cp, nil
}

// CanGenerateRefund is the refund eligibility guard: a copayment
// document must exist, no refund may exist yet, and the course must have
// started (completed >= 1) without running to completion
// (completed < prescribed). It is side-effect-free.
func (c *Composer) CanGenerateRefund(p *vo.Prescription) bool {
	info, ok := c.Profile(p).Info()
	if !ok || !info.DocumentGenerated || info.RefundGenerated {
		return false
	}
	return p.Completed >= 1 && p.Completed < p.Prescribed
}

// GenerateRefund computes the pro-rated refund, mints the correction
// invoice number, stamps the date, and writes the refund fields exactly
// once. The guard is re-checked under the registry lock immediately
// before the write, and the ledger makes the write unrepeatable even
// across a registry reload.
func (c *Composer) GenerateRefund(ctx context.Context, p *vo.Prescription) (*vo.CopaymentInfo, error) {
	if !p.CopaymentLiable {
		return nil, ErrCopaymentNotApplicable
	}

	c.mu.Lock()
	info, ok := c.infos[p.Number]
	if !ok || !info.DocumentGenerated || info.RefundGenerated ||
		p.Completed < 1 || p.Completed >= p.Prescribed {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RefundsRejected.Inc()
		}
		return nil, fmt.Errorf("vo %s: %w", p.Number, ErrRefundNotEligible)
	}

	amounts, err := ComputeRefund(p.Number, info.Amount, p.Completed, info.CostAtInvoice)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	// Marked only after the computation succeeded, so an anomaly does not
	// burn the one-shot key.
	if !c.ledger.Acquire(idempotency.Key(opRefund, p.Number, info.InvoiceNumber)) {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RefundsRejected.Inc()
		}
		return nil, fmt.Errorf("vo %s: refund already issued: %w", p.Number, ErrRefundNotEligible)
	}

	info.RefundGenerated = true
	info.RefundAmount = amounts.Refund
	info.RefundDate = c.now().UTC()
	info.RefundInvoiceNumber = RefundInvoiceNumber(info.InvoiceNumber)
	cp := *info
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RefundsGenerated.Inc()
	}
	c.emit(ctx, p.Number, vo.EventRefundGenerated, &vo.RefundGeneratedData{
		VONumber:            p.Number,
		InvoiceNumber:       cp.InvoiceNumber,
		RefundInvoiceNumber: cp.RefundInvoiceNumber,
		RefundAmount:        cp.RefundAmount.StringFixed(2),
		RefundDate:          cp.RefundDate,
	})
	c.logger.Info("refund generated",
		zap.String("vo", p.Number),
		zap.String("refund_invoice", cp.RefundInvoiceNumber),
		zap.String("refund_amount", cp.RefundAmount.StringFixed(2)),
	)
	return &cp, nil
}

func (c *Composer) emit(ctx context.Context, voNumber string, eventType vo.EventType, data interface{}) {
	if c.sink == nil {
		return
	}
	ev, err := vo.NewEvent(voNumber, eventType, data)
	if err != nil {
		c.logger.Error("event marshal failed", zap.String("vo", voNumber), zap.Error(err))
		return
	}
	if err := c.sink.Record(ctx, []*vo.Event{ev}); err != nil {
		c.logger.Error("event sink record failed", zap.String("vo", voNumber), zap.Error(err))
	}
}
