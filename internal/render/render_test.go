package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRender(t *testing.T) {
	var received Job
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/render" {
			t.Errorf("path = %s, want /render", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	job := &Job{
		VONumber:      "VO-2026-0101",
		Kind:          KindRefund,
		InvoiceNumber: "ZZ-VO-2026-0101-R",
		View:          json.RawMessage(`{"vo_number":"VO-2026-0101"}`),
	}

	if err := c.Render(context.Background(), job); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if received.VONumber != "VO-2026-0101" || received.Kind != KindRefund {
		t.Errorf("received job %+v", received)
	}
}

func TestRenderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if err := c.Render(context.Background(), &Job{VONumber: "VO-1", Kind: KindInvoice}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
