package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/praxisdesk/go-praxis/internal/domain/vo"
	"github.com/praxisdesk/go-praxis/internal/records"
	"github.com/praxisdesk/go-praxis/internal/render"
	"github.com/praxisdesk/go-praxis/internal/settlement"
	"github.com/praxisdesk/go-praxis/internal/status"
)

// LetterPublisher enqueues letter render jobs. Nil disables the render
// pipeline (the prototype deployment runs without brokers).
type LetterPublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// SettlementHandler serves the document-preview consumer: the settlement
// view, refund generation, and the abort hook.
type SettlementHandler struct {
	source   records.Source
	engine   *status.Engine
	composer *settlement.Composer
	letters  LetterPublisher
	topic    string
	logger   *zap.Logger

	// Follow-up flags set by the abort hook live outside the engine's
	// dimensions; they only matter to the scheduling screens.
	followupMu sync.Mutex
	followups  map[string]bool
}

// NewSettlementHandler creates a new handler. letters may be nil.
func NewSettlementHandler(source records.Source, engine *status.Engine, composer *settlement.Composer, letters LetterPublisher, topic string, logger *zap.Logger) *SettlementHandler {
	return &SettlementHandler{
		source:    source,
		engine:    engine,
		composer:  composer,
		letters:   letters,
		topic:     topic,
		logger:    logger,
		followups: make(map[string]bool),
	}
}

// Routes returns the handler routes
func (h *SettlementHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{number}", h.View)
	r.Post("/{number}/document", h.GenerateDocument)
	r.Post("/{number}/refund", h.GenerateRefund)
	r.Post("/{number}/abort", h.MarkAsAborted)
	return r
}

// View handles GET /settlement/{number}
func (h *SettlementHandler) View(w http.ResponseWriter, r *http.Request) {
	p, ok := h.source.Find(chi.URLParam(r, "number"))
	if !ok {
		jsonError(w, "prescription not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.composer.ComposeView(p, h.engine.CurrentCopaymentStatus(p)))
}

// GenerateDocument handles POST /settlement/{number}/document
func (h *SettlementHandler) GenerateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number := chi.URLParam(r, "number")

	p, ok := h.source.Find(number)
	if !ok {
		jsonError(w, "prescription not found", http.StatusNotFound)
		return
	}

	info, err := h.composer.GenerateDocument(ctx, p)
	if err != nil {
		if errors.Is(err, settlement.ErrCopaymentNotApplicable) {
			jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("document generation failed", zap.String("vo", number), zap.Error(err))
		jsonError(w, "failed to generate document", http.StatusInternalServerError)
		return
	}

	h.enqueueLetter(ctx, p, render.KindInvoice, info.InvoiceNumber)
	writeJSON(w, http.StatusCreated, h.composer.ComposeView(p, h.engine.CurrentCopaymentStatus(p)))
}

// GenerateRefund handles POST /settlement/{number}/refund
func (h *SettlementHandler) GenerateRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("settlement-handler")
	ctx, span := tracer.Start(ctx, "generate_refund")
	defer span.End()

	number := chi.URLParam(r, "number")
	span.SetAttributes(attribute.String("vo_number", number))

	p, ok := h.source.Find(number)
	if !ok {
		jsonError(w, "prescription not found", http.StatusNotFound)
		return
	}

	info, err := h.composer.GenerateRefund(ctx, p)
	if err != nil {
		var anomaly *settlement.NegativeRefundAnomaly
		switch {
		case errors.Is(err, settlement.ErrCopaymentNotApplicable),
			errors.Is(err, settlement.ErrRefundNotEligible):
			jsonError(w, err.Error(), http.StatusConflict)
		case errors.As(err, &anomaly):
			h.logger.Warn("refund anomaly", zap.String("vo", number), zap.Error(err))
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			h.logger.Error("refund generation failed", zap.String("vo", number), zap.Error(err))
			jsonError(w, "failed to generate refund", http.StatusInternalServerError)
		}
		return
	}

	h.enqueueLetter(ctx, p, render.KindRefund, info.RefundInvoiceNumber)
	writeJSON(w, http.StatusCreated, h.composer.ComposeView(p, h.engine.CurrentCopaymentStatus(p)))
}

// AbortRequest is the body for the abort hook.
type AbortRequest struct {
	AlsoUpdateFollowupFlag bool `json:"also_update_followup_flag"`
}

// MarkAsAborted handles POST /settlement/{number}/abort. It funnels into
// the rule engine's prescription-status change (derived writes
// included); the follow-up flag is an extra write outside the engine.
func (h *SettlementHandler) MarkAsAborted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number := chi.URLParam(r, "number")

	p, ok := h.source.Find(number)
	if !ok {
		jsonError(w, "prescription not found", http.StatusNotFound)
		return
	}

	// An empty body means "abort, no follow-up flag".
	var req AbortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	changes, err := h.engine.ChangePrescriptionStatus(ctx, p, vo.StatusAborted)
	if err != nil {
		h.logger.Error("abort failed", zap.String("vo", number), zap.Error(err))
		jsonError(w, "failed to mark as aborted", http.StatusInternalServerError)
		return
	}

	if req.AlsoUpdateFollowupFlag {
		h.followupMu.Lock()
		h.followups[number] = true
		h.followupMu.Unlock()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"number":           number,
		"changes":          changes,
		"followup_flagged": req.AlsoUpdateFollowupFlag,
	})
}

func (h *SettlementHandler) enqueueLetter(ctx context.Context, p *vo.Prescription, kind render.Kind, invoiceNumber string) {
	if h.letters == nil {
		return
	}

	view := h.composer.ComposeView(p, h.engine.CurrentCopaymentStatus(p))
	viewJSON, err := json.Marshal(view)
	if err != nil {
		h.logger.Error("letter view marshal failed", zap.String("vo", p.Number), zap.Error(err))
		return
	}
	job, err := json.Marshal(&render.Job{
		VONumber:      p.Number,
		Kind:          kind,
		InvoiceNumber: invoiceNumber,
		View:          viewJSON,
	})
	if err != nil {
		h.logger.Error("letter job marshal failed", zap.String("vo", p.Number), zap.Error(err))
		return
	}

	if err := h.letters.Publish(ctx, h.topic, p.Number, job); err != nil {
		h.logger.Error("letter enqueue failed", zap.String("vo", p.Number), zap.Error(err))
	}
}
