package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/praxisdesk/go-praxis/internal/domain/vo"
	"github.com/praxisdesk/go-praxis/internal/observability/metrics"
)

// Change is one status-dimension write produced by a transition. Derived
// marks writes mandated by a rule rather than requested directly.
type Change struct {
	Dimension vo.Dimension `json:"dimension"`
	Old       string       `json:"old"`
	New       string       `json:"new"`
	Derived   bool         `json:"derived"`
}

// ApplyTransition computes the full set of writes for a requested
// prescription-status change. It is pure: the derived rules are
// evaluated against the pre-change prescription context only.
//
// Rules:
//   - Billed: a fully billed prescription is considered paid, so the
//     insurance dimension is set to Paid.
//   - Aborted on a copayment-liable VO: a refund review is owed, so the
//     copayment dimension is set to ForRefund.
func ApplyTransition(p *vo.Prescription, newStatus vo.PrescriptionStatus) []Change {
	changes := []Change{{
		Dimension: vo.DimensionPrescription,
		New:       string(newStatus),
	}}

	if newStatus == vo.StatusBilled {
		changes = append(changes, Change{
			Dimension: vo.DimensionInsurance,
			New:       string(vo.InsurancePaid),
			Derived:   true,
		})
	}

	if newStatus == vo.StatusAborted && p.CopaymentLiable {
		changes = append(changes, Change{
			Dimension: vo.DimensionCopayment,
			New:       string(vo.CopaymentForRefund),
			Derived:   true,
		})
	}

	return changes
}

// EventSink receives domain events for the writes an engine applies.
// The Postgres implementation records them in the transactional outbox;
// the prototype runs without one.
type EventSink interface {
	Record(ctx context.Context, events []*vo.Event) error
}

// Engine applies requested status changes plus their mandated derived
// writes as a single logical update per VO number.
type Engine struct {
	store   Store
	sink    EventSink
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an engine over the given store. sink and m may be nil.
func NewEngine(store Store, sink EventSink, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   store,
		sink:    sink,
		logger:  logger,
		metrics: m,
		locks:   make(map[string]*sync.Mutex),
	}
}

// lockFor returns the critical-section lock for a VO number. Compound
// writes for the same VO must never interleave; unrelated VOs never
// contend.
func (e *Engine) lockFor(voNumber string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[voNumber]
	if !ok {
		l = &sync.Mutex{}
		e.locks[voNumber] = l
	}
	return l
}

// ChangePrescriptionStatus writes newStatus for p's prescription
// dimension and applies any derived writes atomically. It returns the
// full list of changes applied, old values included.
func (e *Engine) ChangePrescriptionStatus(ctx context.Context, p *vo.Prescription, newStatus vo.PrescriptionStatus) ([]Change, error) {
	changes := ApplyTransition(p, newStatus)

	l := e.lockFor(p.Number)
	l.Lock()
	defer l.Unlock()

	for i := range changes {
		changes[i].Old = e.currentValue(p, changes[i].Dimension)
		if err := e.store.Set(changes[i].Dimension, p.Number, changes[i].New); err != nil {
			return nil, fmt.Errorf("set %s for vo %s: %w", changes[i].Dimension, p.Number, err)
		}
	}

	e.record(ctx, p.Number, changes)
	e.observe(p.Number, changes)
	return changes, nil
}

// ChangeInsuranceBillingStatus is a direct write with no derived side
// effects.
func (e *Engine) ChangeInsuranceBillingStatus(ctx context.Context, p *vo.Prescription, newStatus vo.InsuranceBillingStatus) error {
	return e.changeDirect(ctx, p, vo.DimensionInsurance, string(newStatus))
}

// ChangeCopaymentBillingStatus is a direct write with no derived side
// effects.
func (e *Engine) ChangeCopaymentBillingStatus(ctx context.Context, p *vo.Prescription, newStatus vo.CopaymentBillingStatus) error {
	return e.changeDirect(ctx, p, vo.DimensionCopayment, string(newStatus))
}

func (e *Engine) changeDirect(ctx context.Context, p *vo.Prescription, dim vo.Dimension, newValue string) error {
	l := e.lockFor(p.Number)
	l.Lock()
	defer l.Unlock()

	change := Change{Dimension: dim, Old: e.currentValue(p, dim), New: newValue}
	if err := e.store.Set(dim, p.Number, newValue); err != nil {
		return fmt.Errorf("set %s for vo %s: %w", dim, p.Number, err)
	}

	changes := []Change{change}
	e.record(ctx, p.Number, changes)
	e.observe(p.Number, changes)
	return nil
}

// CurrentPrescriptionStatus reads the effective status for a dimension,
// falling back to the base record's own value.
func (e *Engine) CurrentPrescriptionStatus(p *vo.Prescription) vo.PrescriptionStatus {
	return vo.PrescriptionStatus(e.store.Get(vo.DimensionPrescription, p.Number, string(p.Status)))
}

// CurrentInsuranceStatus reads the effective insurance billing status.
func (e *Engine) CurrentInsuranceStatus(p *vo.Prescription) vo.InsuranceBillingStatus {
	return vo.InsuranceBillingStatus(e.store.Get(vo.DimensionInsurance, p.Number, string(p.InsuranceStatus)))
}

// CurrentCopaymentStatus reads the effective copayment billing status.
func (e *Engine) CurrentCopaymentStatus(p *vo.Prescription) vo.CopaymentBillingStatus {
	return vo.CopaymentBillingStatus(e.store.Get(vo.DimensionCopayment, p.Number, string(p.CopaymentStatus)))
}

func (e *Engine) currentValue(p *vo.Prescription, dim vo.Dimension) string {
	switch dim {
	case vo.DimensionPrescription:
		return e.store.Get(dim, p.Number, string(p.Status))
	case vo.DimensionInsurance:
		return e.store.Get(dim, p.Number, string(p.InsuranceStatus))
	default:
		return e.store.Get(dim, p.Number, string(p.CopaymentStatus))
	}
}

func (e *Engine) record(ctx context.Context, voNumber string, changes []Change) {
	if e.sink == nil {
		return
	}

	events := make([]*vo.Event, 0, len(changes))
	now := time.Now().UTC()
	for _, c := range changes {
		ev, err := vo.NewEvent(voNumber, vo.EventStatusChanged, &vo.StatusChangedData{
			VONumber:  voNumber,
			Dimension: c.Dimension,
			OldValue:  c.Old,
			NewValue:  c.New,
			Derived:   c.Derived,
			ChangedAt: now,
		})
		if err != nil {
			e.logger.Error("event marshal failed", zap.String("vo", voNumber), zap.Error(err))
			continue
		}
		events = append(events, ev)
	}

	if err := e.sink.Record(ctx, events); err != nil {
		e.logger.Error("event sink record failed", zap.String("vo", voNumber), zap.Error(err))
	}
}

func (e *Engine) observe(voNumber string, changes []Change) {
	for _, c := range changes {
		if e.metrics != nil {
			e.metrics.StatusChanges.WithLabelValues(string(c.Dimension)).Inc()
			if c.Derived {
				e.metrics.AutoTransitions.Inc()
			}
		}
		e.logger.Info("status changed",
			zap.String("vo", voNumber),
			zap.String("dimension", string(c.Dimension)),
			zap.String("old", c.Old),
			zap.String("new", c.New),
			zap.Bool("derived", c.Derived),
		)
	}
}
