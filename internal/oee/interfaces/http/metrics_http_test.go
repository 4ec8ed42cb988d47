package oeehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oee-cloud/internal/audit"
	"oee-cloud/internal/auth"
	oeeapp "oee-cloud/internal/oee/application"
	oee "oee-cloud/internal/oee/domain"
	"oee-cloud/internal/oee/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func at(d, h int) time.Time { return time.Date(2026, time.March, d, h, 0, 0, 0, time.UTC) }

func newTestMux(t *testing.T) (*http.ServeMux, *memory.Store, *audit.MemoryLogger) {
	t.Helper()
	store := memory.NewStore()
	for _, d := range []int{10, 11} {
		if _, err := store.InsertStateEvents(context.Background(), oee.EntityMachine, []oee.StateEvent{
			{EntityRef: "M-1", Timestamp: at(d, 8), StatusCode: oee.StatusRunning},
			{EntityRef: "M-1", Timestamp: at(d, 10), StatusCode: oee.StatusPaused},
		}); err != nil {
			t.Fatalf("insert events: %v", err)
		}
		store.AddSession(oee.EntityMachine, oee.Session{
			EntityRef: "M-1", Start: at(d, 8), End: at(d, 10),
			RuntimeSec: 7200, WorkedTimeSec: 7000, TimeCreditSec: 5600, ValidCount: 90, MisfeedCount: 10,
		})
	}
	if err := store.PutRollup(oee.RollupRecord{
		EntityType: oee.EntityMachine, EntityKey: "M-1", Date: "2026-03-10",
		RuntimeMs: 7200000, WorkedTimeMs: 7000000, TimeCreditMs: 5600000, TotalCounts: 90, TotalMisfeeds: 10,
		UpdatedAt: at(11, 1),
	}); err != nil {
		t.Fatalf("put rollup: %v", err)
	}

	cfg := oeeapp.DefaultConfig()
	svc, err := oeeapp.NewMetricsService(store, cfg, fixedClock{now: at(11, 14)}, nil)
	if err != nil {
		t.Fatalf("metrics service: %v", err)
	}
	auditLog := audit.NewMemoryLogger()
	handler, err := NewMetricsHandler(svc, auditLog, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	ingest, err := oeeapp.NewIngestService(store, nil)
	if err != nil {
		t.Fatalf("ingest service: %v", err)
	}
	ingestHandler, err := NewIngestHandler(ingest, "backfill", auditLog, nil)
	if err != nil {
		t.Fatalf("ingest handler: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/oee", handler)
	mux.Handle("/api/v1/oee/", handler)
	mux.Handle("/api/v1/oee/state-events", ingestHandler)
	auditHandler, err := NewAuditHandler(auditLog, nil)
	if err != nil {
		t.Fatalf("audit handler: %v", err)
	}
	mux.Handle("/api/v1/oee/audit", auditHandler)
	return mux, store, auditLog
}

func TestMetricsHandler_Query(t *testing.T) {
	mux, _, _ := newTestMux(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/oee?entity_type=machine&entity_ref=M-1&from=2026-03-10T00:00:00Z&to=2026-03-11T12:00:00Z", nil)
	resp := httptest.NewRecorder()
	mux.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d: %s", resp.Code, resp.Body.String())
	}

	var view resultView
	if err := json.Unmarshal(resp.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Strategy != "hybrid" || len(view.Partitions) != 2 {
		t.Fatalf("plan mismatch: %+v", view)
	}
	if view.Partitions[0].Strategy != "cache" || view.Partitions[1].Strategy != "live" {
		t.Fatalf("partition strategies mismatch: %+v", view.Partitions)
	}
	if len(view.Entities) != 1 || view.Entities[0].Outcome != "ok" {
		t.Fatalf("entities mismatch: %+v", view.Entities)
	}
	// 14400s of runtime over a 36h window.
	if got := view.Entities[0].Metrics.Availability; got != 11.11 {
		t.Fatalf("availability percent mismatch: %v", got)
	}
	if got := view.Entities[0].Metrics.Efficiency; got != 80 {
		t.Fatalf("efficiency percent mismatch: %v", got)
	}
	if view.Entities[0].Totals.RuntimeSec != 14400 {
		t.Fatalf("runtime mismatch: %v", view.Entities[0].Totals.RuntimeSec)
	}
}

func TestMetricsHandler_BadRequests(t *testing.T) {
	mux, _, _ := newTestMux(t)
	cases := []string{
		"/api/v1/oee?entity_type=plant&from=2026-03-10T00:00:00Z&to=2026-03-11T00:00:00Z",
		"/api/v1/oee?entity_type=machine&from=yesterday&to=2026-03-11T00:00:00Z",
		"/api/v1/oee?entity_type=machine&from=2026-03-11T00:00:00Z&to=2026-03-10T00:00:00Z",
		"/api/v1/oee?entity_type=machine-item&entity_ref=M-1&from=2026-03-10T00:00:00Z&to=2026-03-11T00:00:00Z",
		"/api/v1/oee?entity_type=machine&from=2026-03-10T00:00:00Z&to=2026-03-11T00:00:00Z&force_live=maybe",
	}
	for _, target := range cases {
		resp := httptest.NewRecorder()
		mux.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, resp.Code)
		}
	}
}

func TestMetricsHandler_Exports(t *testing.T) {
	mux, _, auditLog := newTestMux(t)
	query := "?entity_type=machine&from=2026-03-10T00:00:00Z&to=2026-03-11T12:00:00Z"

	pdfResp := httptest.NewRecorder()
	mux.ServeHTTP(pdfResp, httptest.NewRequest(http.MethodGet, "/api/v1/oee/export.pdf"+query, nil))
	if pdfResp.Code != http.StatusOK {
		t.Fatalf("pdf status %d", pdfResp.Code)
	}
	if pdfResp.Header().Get("Content-Type") != "application/pdf" || pdfResp.Body.Len() == 0 {
		t.Fatalf("pdf response mismatch")
	}

	xlsxResp := httptest.NewRecorder()
	mux.ServeHTTP(xlsxResp, httptest.NewRequest(http.MethodGet, "/api/v1/oee/export.xlsx"+query, nil))
	if xlsxResp.Code != http.StatusOK {
		t.Fatalf("xlsx status %d", xlsxResp.Code)
	}
	if xlsxResp.Header().Get("Content-Type") != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" || xlsxResp.Body.Len() == 0 {
		t.Fatalf("xlsx response mismatch")
	}

	entries := auditLog.Entries()
	if len(entries) != 2 || entries[0].Action != audit.ActionReportExport || entries[0].ResourceID == "" {
		t.Fatalf("audit entries mismatch: %+v", entries)
	}
}

func TestIngestHandler(t *testing.T) {
	mux, store, auditLog := newTestMux(t)
	body := []byte(`{"entity_type":"machine","entity_ref":"M-9","events":[{"ts":1773302400000,"status":1},{"ts":1773306000000,"status":0}]}`)

	resp := httptest.NewRecorder()
	mux.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/oee/state-events", bytes.NewReader(body)))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", resp.Code, resp.Body.String())
	}
	var out map[string]int
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil || out["inserted"] != 2 {
		t.Fatalf("inserted mismatch: %v err=%v", out, err)
	}
	events, err := store.ListStateEvents(context.Background(), oee.EntityMachine, "M-9", oee.TimeRange{Start: at(12, 0), End: at(13, 0)})
	if err != nil || len(events) != 2 {
		t.Fatalf("stored events mismatch: %d err=%v", len(events), err)
	}
	if entries := auditLog.Entries(); len(entries) != 1 || entries[0].EntityRef != "M-9" || entries[0].Action != audit.ActionStateEventBackfill {
		t.Fatalf("audit mismatch: %+v", entries)
	}

	bad := httptest.NewRecorder()
	mux.ServeHTTP(bad, httptest.NewRequest(http.MethodPost, "/api/v1/oee/state-events", bytes.NewReader([]byte(`{"entity_type":"item","entity_ref":"towel","ts":1773302400000,"status":1}`))))
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for item ingest, got %d", bad.Code)
	}
}

func TestMetricsHandler_MachineScope(t *testing.T) {
	mux, store, _ := newTestMux(t)
	store.RegisterEntity(oee.EntityMachine, "M-1")
	store.RegisterEntity(oee.EntityMachine, "M-2")
	scoped := auth.Identity{Subject: "u-1", Role: auth.RoleViewer, Machines: []string{"M-1"}}
	serve := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), scoped))
		resp := httptest.NewRecorder()
		mux.ServeHTTP(resp, req)
		return resp
	}
	window := "&from=2026-03-10T00:00:00Z&to=2026-03-11T00:00:00Z"

	resp := serve("/api/v1/oee?entity_type=machine" + window)
	if resp.Code != http.StatusOK {
		t.Fatalf("fleet status %d: %s", resp.Code, resp.Body.String())
	}
	var view resultView
	if err := json.Unmarshal(resp.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Entities) != 1 || view.Entities[0].EntityRef != "M-1" {
		t.Fatalf("scoped fleet mismatch: %+v", view.Entities)
	}

	for _, target := range []string{
		"/api/v1/oee?entity_type=machine&entity_ref=M-2" + window,
		"/api/v1/oee?entity_type=machine&filter=M-1,M-2" + window,
		"/api/v1/oee?entity_type=machine-item" + window,
		"/api/v1/oee/export.pdf?entity_type=machine-item&entity_ref=M-2%7Ctowel" + window,
	} {
		if resp := serve(target); resp.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", target, resp.Code)
		}
	}
}

func TestAuditHandler(t *testing.T) {
	mux, _, _ := newTestMux(t)
	query := "?entity_type=machine&entity_ref=M-1&from=2026-03-10T00:00:00Z&to=2026-03-11T00:00:00Z"
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/oee/export.pdf"+query, nil))
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/oee/state-events",
		bytes.NewReader([]byte(`{"entity_ref":"M-9","ts":1773302400000,"status":1}`))))

	resp := httptest.NewRecorder()
	mux.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/oee/audit?action=oee.report.export&limit=10", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}
	var out struct {
		Entries []audit.Entry `json:"entries"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Entries) != 1 || out.Entries[0].EntityRef != "M-1" || out.Entries[0].ResourceType != "oee_report" {
		t.Fatalf("audit listing mismatch: %+v", out.Entries)
	}

	bad := httptest.NewRecorder()
	mux.ServeHTTP(bad, httptest.NewRequest(http.MethodGet, "/api/v1/oee/audit?limit=-1", nil))
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", bad.Code)
	}
}
