package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/praxisdesk/go-praxis/internal/records"
	"github.com/praxisdesk/go-praxis/internal/settlement"
	"github.com/praxisdesk/go-praxis/internal/status"
)

type capturePublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *capturePublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, value)
	return nil
}

func newSettlementFixture(t *testing.T, letters LetterPublisher) *SettlementHandler {
	t.Helper()
	source := records.NewMockSource()
	engine := status.NewEngine(status.NewMemoryStore(), nil, nil, zap.NewNop())
	composer := settlement.NewComposer(nil, nil, zap.NewNop())
	composer.Restore(source.LoadCopaymentInfos())
	return NewSettlementHandler(source, engine, composer, letters, "settlement.letters", zap.NewNop())
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSettlementViewNotFound(t *testing.T) {
	h := newSettlementFixture(t, nil).Routes()
	rec := doJSON(t, h, http.MethodGet, "/VO-9999-0000", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSettlementViewExempt(t *testing.T) {
	h := newSettlementFixture(t, nil).Routes()
	rec := doJSON(t, h, http.MethodGet, "/VO-2026-0103", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var view settlement.View
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view.Applicable {
		t.Error("exempt view marked applicable")
	}
	if view.BillingStatus != "" {
		t.Errorf("exempt view carries billing status %q", view.BillingStatus)
	}
}

func TestSettlementRefundFlow(t *testing.T) {
	letters := &capturePublisher{}
	h := newSettlementFixture(t, letters).Routes()

	// VO-2026-0101 is aborted at 3/8 with an invoiced copayment of 30.00.
	rec := doJSON(t, h, http.MethodPost, "/VO-2026-0101/refund", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var view settlement.View
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view.Authoritative != "refund" {
		t.Errorf("Authoritative = %s, want refund", view.Authoritative)
	}
	if view.Refund == nil || view.Refund.RefundAmount != "12.50" {
		t.Fatalf("refund view unexpected: %+v", view.Refund)
	}
	if view.Refund.RefundInvoiceNumber != "ZZ-VO-2026-0101-R" {
		t.Errorf("RefundInvoiceNumber = %s", view.Refund.RefundInvoiceNumber)
	}

	if len(letters.messages) != 1 {
		t.Errorf("published %d letter jobs, want 1", len(letters.messages))
	}

	// A second refund is a conflict.
	rec = doJSON(t, h, http.MethodPost, "/VO-2026-0101/refund", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("repeat refund status = %d, want 409", rec.Code)
	}
}

func TestSettlementRefundCompletedCourse(t *testing.T) {
	h := newSettlementFixture(t, nil).Routes()

	// VO-2026-0104 ran to completion (12/12): no refund.
	rec := doJSON(t, h, http.MethodPost, "/VO-2026-0104/refund", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestSettlementRefundExempt(t *testing.T) {
	h := newSettlementFixture(t, nil).Routes()
	rec := doJSON(t, h, http.MethodPost, "/VO-2026-0103/refund", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestSettlementGenerateDocument(t *testing.T) {
	h := newSettlementFixture(t, nil).Routes()

	// VO-2026-0105 has no document yet (6 prescribed at 19.50).
	rec := doJSON(t, h, http.MethodPost, "/VO-2026-0105/document", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var view settlement.View
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view.Invoice == nil || view.Invoice.Amount != "21.70" {
		t.Fatalf("invoice view unexpected: %+v", view.Invoice)
	}
	if view.Invoice.InvoiceNumber != "ZZ-VO-2026-0105" {
		t.Errorf("InvoiceNumber = %s", view.Invoice.InvoiceNumber)
	}
}

func TestSettlementAbortHook(t *testing.T) {
	source := records.NewMockSource()
	engine := status.NewEngine(status.NewMemoryStore(), nil, nil, zap.NewNop())
	composer := settlement.NewComposer(nil, nil, zap.NewNop())
	composer.Restore(source.LoadCopaymentInfos())
	handler := NewSettlementHandler(source, engine, composer, nil, "", zap.NewNop())
	h := handler.Routes()

	rec := doJSON(t, h, http.MethodPost, "/VO-2026-0105/abort", `{"also_update_followup_flag":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Changes         []status.Change `json:"changes"`
		FollowupFlagged bool            `json:"followup_flagged"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// Liable VO: abort plus the derived copayment write.
	if len(resp.Changes) != 2 {
		t.Errorf("got %d changes, want 2", len(resp.Changes))
	}
	if !resp.FollowupFlagged {
		t.Error("followup flag not set")
	}

	p, _ := source.Find("VO-2026-0105")
	if got := engine.CurrentCopaymentStatus(p); string(got) != "for_refund" {
		t.Errorf("CurrentCopaymentStatus = %s, want for_refund", got)
	}
}

func TestSettlementAbortEmptyBody(t *testing.T) {
	h := newSettlementFixture(t, nil).Routes()
	rec := doJSON(t, h, http.MethodPost, "/VO-2026-0102/abort", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for empty body", rec.Code)
	}
}
