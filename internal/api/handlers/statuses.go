// Package handlers provides HTTP handlers for the admin API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/praxisdesk/go-praxis/internal/api/middleware"
	"github.com/praxisdesk/go-praxis/internal/domain/vo"
	"github.com/praxisdesk/go-praxis/internal/records"
	"github.com/praxisdesk/go-praxis/internal/settlement"
	"github.com/praxisdesk/go-praxis/internal/status"
)

// VOHandler serves the prescription table consumer: current status
// badges per dimension and the status-change actions.
type VOHandler struct {
	source   records.Source
	engine   *status.Engine
	composer *settlement.Composer
	logger   *zap.Logger
}

// NewVOHandler creates a new handler
func NewVOHandler(source records.Source, engine *status.Engine, composer *settlement.Composer, logger *zap.Logger) *VOHandler {
	return &VOHandler{source: source, engine: engine, composer: composer, logger: logger}
}

// Routes returns the handler routes
func (h *VOHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/menus", h.Menus)
	r.Get("/{number}", h.Get)
	r.Post("/{number}/status", h.ChangeStatus)
	r.Post("/{number}/insurance-status", h.ChangeInsuranceStatus)
	r.Post("/{number}/copayment-status", h.ChangeCopaymentStatus)
	return r
}

// Row is one prescription table row with effective status values.
type Row struct {
	Number          string `json:"number"`
	PatientName     string `json:"patient_name"`
	Therapy         string `json:"therapy"`
	Progress        string `json:"progress"`
	Status          string `json:"status"`
	InsuranceStatus string `json:"insurance_status"`
	// CopaymentStatus is absent for exempt patients: the dimension is
	// not applicable there, not merely empty.
	CopaymentStatus    *string `json:"copayment_status"`
	CopaymentLiable    bool    `json:"copayment_liable"`
	CostPerTreatment   string  `json:"cost_per_treatment"`
	SettlementDocument string  `json:"settlement_document"`
}

func (h *VOHandler) row(p *vo.Prescription) Row {
	row := Row{
		Number:             p.Number,
		PatientName:        p.PatientName,
		Therapy:            p.Therapy,
		Progress:           p.Progress(),
		Status:             string(h.engine.CurrentPrescriptionStatus(p)),
		InsuranceStatus:    string(h.engine.CurrentInsuranceStatus(p)),
		CopaymentLiable:    p.CopaymentLiable,
		CostPerTreatment:   p.CostPerTreatment.StringFixed(2),
		SettlementDocument: string(h.composer.DocumentState(p)),
	}
	if p.CopaymentLiable {
		v := string(h.engine.CurrentCopaymentStatus(p))
		row.CopaymentStatus = &v
	}
	return row
}

// List handles GET /prescriptions
func (h *VOHandler) List(w http.ResponseWriter, r *http.Request) {
	prescriptions := h.source.LoadAllPrescriptions()
	rows := make([]Row, 0, len(prescriptions))
	for _, p := range prescriptions {
		rows = append(rows, h.row(p))
	}
	writeJSON(w, http.StatusOK, rows)
}

// Get handles GET /prescriptions/{number}
func (h *VOHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.source.Find(chi.URLParam(r, "number"))
	if !ok {
		jsonError(w, "prescription not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.row(p))
}

// Menus handles GET /prescriptions/menus: the fixed status menu per
// dimension the table consumer offers.
func (h *VOHandler) Menus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		string(vo.DimensionPrescription): vo.PrescriptionStatuses,
		string(vo.DimensionInsurance):    vo.InsuranceBillingStatuses,
		string(vo.DimensionCopayment):    vo.CopaymentBillingStatuses,
	})
}

// StatusChangeRequest is the body for all status-change endpoints.
type StatusChangeRequest struct {
	Status string `json:"status"`
}

// ChangeStatus handles POST /prescriptions/{number}/status
func (h *VOHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("vo-handler")
	ctx, span := tracer.Start(ctx, "change_prescription_status")
	defer span.End()

	number := chi.URLParam(r, "number")
	span.SetAttributes(attribute.String("vo_number", number))

	p, ok := h.source.Find(number)
	if !ok {
		jsonError(w, "prescription not found", http.StatusNotFound)
		return
	}

	var req StatusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	newStatus, err := vo.ParsePrescriptionStatus(req.Status)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	changes, err := h.engine.ChangePrescriptionStatus(ctx, p, newStatus)
	if err != nil {
		h.logger.Error("status change failed", zap.String("vo", number), zap.Error(err))
		jsonError(w, "failed to change status", http.StatusInternalServerError)
		return
	}

	h.logger.Info("prescription status changed",
		zap.String("vo", number),
		zap.String("status", req.Status),
		zap.Int("writes", len(changes)),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"number":  number,
		"changes": changes,
	})
}

// ChangeInsuranceStatus handles POST /prescriptions/{number}/insurance-status
func (h *VOHandler) ChangeInsuranceStatus(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	p, ok := h.source.Find(number)
	if !ok {
		jsonError(w, "prescription not found", http.StatusNotFound)
		return
	}

	var req StatusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	newStatus, err := vo.ParseInsuranceBillingStatus(req.Status)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.engine.ChangeInsuranceBillingStatus(r.Context(), p, newStatus); err != nil {
		jsonError(w, "failed to change status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, h.row(p))
}

// ChangeCopaymentStatus handles POST /prescriptions/{number}/copayment-status
func (h *VOHandler) ChangeCopaymentStatus(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	p, ok := h.source.Find(number)
	if !ok {
		jsonError(w, "prescription not found", http.StatusNotFound)
		return
	}
	if !p.CopaymentLiable {
		jsonError(w, "copayment not applicable for exempt patient", http.StatusConflict)
		return
	}

	var req StatusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	newStatus, err := vo.ParseCopaymentBillingStatus(req.Status)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.engine.ChangeCopaymentBillingStatus(r.Context(), p, newStatus); err != nil {
		jsonError(w, "failed to change status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, h.row(p))
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}
