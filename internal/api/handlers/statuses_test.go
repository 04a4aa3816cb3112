package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/praxisdesk/go-praxis/internal/records"
	"github.com/praxisdesk/go-praxis/internal/settlement"
	"github.com/praxisdesk/go-praxis/internal/status"
)

func newVOFixture(t *testing.T) (*VOHandler, *status.Engine, records.Source) {
	t.Helper()
	source := records.NewMockSource()
	engine := status.NewEngine(status.NewMemoryStore(), nil, nil, zap.NewNop())
	composer := settlement.NewComposer(nil, nil, zap.NewNop())
	composer.Restore(source.LoadCopaymentInfos())
	return NewVOHandler(source, engine, composer, zap.NewNop()), engine, source
}

func TestListPrescriptions(t *testing.T) {
	handler, _, _ := newVOFixture(t)
	rec := doJSON(t, handler.Routes(), http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var rows []Row
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	// Sorted by VO number.
	if rows[0].Number != "VO-2026-0101" {
		t.Errorf("first row = %s", rows[0].Number)
	}
	if rows[0].Progress != "3/8" {
		t.Errorf("Progress = %s, want 3/8", rows[0].Progress)
	}
}

func TestListOmitsCopaymentForExempt(t *testing.T) {
	handler, _, _ := newVOFixture(t)
	rec := doJSON(t, handler.Routes(), http.MethodGet, "/VO-2026-0103", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var row Row
	if err := json.Unmarshal(rec.Body.Bytes(), &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if row.CopaymentStatus != nil {
		t.Errorf("exempt row carries copayment status %q", *row.CopaymentStatus)
	}
	if row.CopaymentLiable {
		t.Error("exempt row marked liable")
	}
}

func TestMenus(t *testing.T) {
	handler, _, _ := newVOFixture(t)
	rec := doJSON(t, handler.Routes(), http.MethodGet, "/menus", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var menus map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &menus); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(menus["prescription"]) != 5 {
		t.Errorf("prescription menu has %d entries, want 5", len(menus["prescription"]))
	}
	if len(menus["copayment_billing"]) != 3 {
		t.Errorf("copayment menu has %d entries, want 3", len(menus["copayment_billing"]))
	}
}

func TestChangeStatusBilledDerivesInsurancePaid(t *testing.T) {
	handler, engine, source := newVOFixture(t)
	rec := doJSON(t, handler.Routes(), http.MethodPost, "/VO-2026-0102/status", `{"status":"billed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Changes []status.Change `json:"changes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(resp.Changes))
	}

	p, _ := source.Find("VO-2026-0102")
	if got := engine.CurrentInsuranceStatus(p); string(got) != "paid" {
		t.Errorf("CurrentInsuranceStatus = %s, want paid", got)
	}
}

func TestChangeStatusRejectsUnknownValue(t *testing.T) {
	handler, _, _ := newVOFixture(t)
	rec := doJSON(t, handler.Routes(), http.MethodPost, "/VO-2026-0102/status", `{"status":"archived"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChangeCopaymentStatusExemptConflict(t *testing.T) {
	handler, _, _ := newVOFixture(t)
	rec := doJSON(t, handler.Routes(), http.MethodPost, "/VO-2026-0103/copayment-status", `{"status":"paid"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestChangeInsuranceStatus(t *testing.T) {
	handler, _, _ := newVOFixture(t)
	rec := doJSON(t, handler.Routes(), http.MethodPost, "/VO-2026-0105/insurance-status", `{"status":"sent"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var row Row
	if err := json.Unmarshal(rec.Body.Bytes(), &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if row.InsuranceStatus != "sent" {
		t.Errorf("InsuranceStatus = %s, want sent", row.InsuranceStatus)
	}
	// Override layered over the base record, base untouched.
	if row.Status != "expired" {
		t.Errorf("Status = %s, want expired", row.Status)
	}
}

func TestChangeStatusNotFound(t *testing.T) {
	handler, _, _ := newVOFixture(t)
	rec := doJSON(t, handler.Routes(), http.MethodPost, "/VO-9999-0000/status", `{"status":"billed"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
