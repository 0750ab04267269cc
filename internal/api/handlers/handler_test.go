package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/langchou/dtcinsights/internal/agent"
	"github.com/langchou/dtcinsights/internal/kb"
	"github.com/langchou/dtcinsights/internal/models"
	"github.com/langchou/dtcinsights/internal/service"
	"github.com/langchou/dtcinsights/pkg/ws"
)

type fakeDiagnostics struct {
	err error

	lastKey      string
	lastWindow   int
	lastOverview models.OverviewQuery
}

func (f *fakeDiagnostics) ResolveVehicle(ctx context.Context, key string) (*models.ResolvedVehicle, bool, error) {
	f.lastKey = key
	if f.err != nil {
		return nil, false, f.err
	}
	if key != "ABC1234" {
		return nil, false, nil
	}
	return &models.ResolvedVehicle{VehicleIdentity: models.VehicleIdentity{VehicleID: 1, Plate: "ABC1234"}}, true, nil
}

func (f *fakeDiagnostics) GetFaults(ctx context.Context, key string, hours int) ([]models.FaultRecord, error) {
	f.lastKey, f.lastWindow = key, hours
	if f.err != nil {
		return nil, f.err
	}
	return []models.FaultRecord{{DTC: "P0217", Plate: "ABC1234"}}, nil
}

func (f *fakeDiagnostics) GetTelemetry(ctx context.Context, key string, minutes int) (*models.TelemetrySeries, error) {
	f.lastKey, f.lastWindow = key, minutes
	if f.err != nil {
		return nil, f.err
	}
	return &models.TelemetrySeries{TimeSeries: []models.TelemetryPoint{{DTC: "P0217"}}}, nil
}

func (f *fakeDiagnostics) GetVehicleSummary(ctx context.Context, key string, days int) ([]models.ClassificationResult, error) {
	f.lastKey, f.lastWindow = key, days
	return []models.ClassificationResult{}, f.err
}

func (f *fakeDiagnostics) GetCustomerSummary(ctx context.Context, name string, days int) ([]models.ClassificationResult, error) {
	f.lastKey, f.lastWindow = name, days
	return []models.ClassificationResult{}, f.err
}

func (f *fakeDiagnostics) GetOverview(ctx context.Context, q models.OverviewQuery) ([]models.OverviewItem, error) {
	f.lastOverview = q
	return []models.OverviewItem{{ChassisLast8: "VT004251", DTCCount: 1}}, f.err
}

type fakeAssistant struct {
	out agent.Output
	err error
	got agent.Question
}

func (f *fakeAssistant) Ask(ctx context.Context, q agent.Question) (agent.Output, error) {
	f.got = q
	return f.out, f.err
}

func newTestRouter(t *testing.T, diag Diagnostics, assistant Assistant, logger *zap.Logger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	base, err := kb.Load()
	if err != nil {
		t.Fatalf("load kb: %v", err)
	}
	h := NewHandler(logger, diag, assistant, base, ws.NewHub(zap.NewNop()), nil, Defaults{
		FaultHours:       24,
		TelemetryMinutes: 30,
		SummaryDays:      30,
	})

	r := gin.New()
	r.Use(RequestID(), AccessLog(logger))
	h.RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVehicleRoutes(t *testing.T) {
	diag := &fakeDiagnostics{}
	r := newTestRouter(t, diag, &fakeAssistant{}, zap.NewNop())

	cases := []struct {
		name       string
		path       string
		wantStatus int
		wantWindow int
	}{
		{"resolve found", "/api/vehicles/ABC1234", http.StatusOK, 0},
		{"resolve not found", "/api/vehicles/NOPE", http.StatusNotFound, 0},
		{"faults default window", "/api/vehicles/ABC1234/dtc", http.StatusOK, 24},
		{"faults explicit window", "/api/vehicles/ABC1234/dtc?hours=6", http.StatusOK, 6},
		{"faults non-positive window", "/api/vehicles/ABC1234/dtc?hours=0", http.StatusOK, 24},
		{"faults bad window", "/api/vehicles/ABC1234/dtc?hours=abc", http.StatusBadRequest, 0},
		{"telemetry default window", "/api/vehicles/ABC1234/telemetry", http.StatusOK, 30},
		{"summary explicit window", "/api/vehicles/ABC1234/summary?days=7", http.StatusOK, 7},
		{"customer summary", "/api/customers/summary?name=norte", http.StatusOK, 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			diag.lastWindow = 0
			w := do(r, http.MethodGet, tc.path, nil)
			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, w.Code, w.Body.String())
			}
			if tc.wantWindow != 0 && diag.lastWindow != tc.wantWindow {
				t.Fatalf("expected window %d, got %d", tc.wantWindow, diag.lastWindow)
			}
		})
	}
}

func TestTelemetryBody(t *testing.T) {
	r := newTestRouter(t, &fakeDiagnostics{}, &fakeAssistant{}, zap.NewNop())

	w := do(r, http.MethodGet, "/api/vehicles/ABC1234/telemetry", nil)
	var body struct {
		TimeSeries []models.TelemetryPoint `json:"time_series"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.TimeSeries) != 1 || body.TimeSeries[0].DTC != "P0217" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRetrievalFailureIsBadGateway(t *testing.T) {
	diag := &fakeDiagnostics{err: fmt.Errorf("%w: events: boom", service.ErrRetrieval)}
	r := newTestRouter(t, diag, &fakeAssistant{}, zap.NewNop())

	for _, path := range []string{"/api/vehicles/ABC1234", "/api/vehicles/ABC1234/dtc", "/api/customers/summary"} {
		if w := do(r, http.MethodGet, path, nil); w.Code != http.StatusBadGateway {
			t.Fatalf("%s: expected 502, got %d", path, w.Code)
		}
	}

	diag.err = errors.New("unexpected")
	if w := do(r, http.MethodGet, "/api/vehicles/ABC1234/dtc", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for other errors, got %d", w.Code)
	}
}

func TestOverviewParams(t *testing.T) {
	diag := &fakeDiagnostics{}
	r := newTestRouter(t, diag, &fakeAssistant{}, zap.NewNop())

	w := do(r, http.MethodGet, "/api/overview/dtc-events?chassi=vt004251&customer=norte&dtc=p0217&event_date=2024-06-01&limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	q := diag.lastOverview
	if q.Chassis != "vt004251" || q.Customer != "norte" || q.DTC != "p0217" || q.Limit != 10 {
		t.Fatalf("unexpected query: %+v", q)
	}
	if q.Days != service.DefaultOverviewDays {
		t.Fatalf("expected default days, got %d", q.Days)
	}
	if q.EventDate == nil || !q.EventDate.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected event date: %v", q.EventDate)
	}

	var body map[string][]models.OverviewItem
	json.Unmarshal(w.Body.Bytes(), &body)
	if len(body["items"]) != 1 {
		t.Fatalf("expected items in body, got %s", w.Body.String())
	}

	do(r, http.MethodGet, "/api/overview/dtc-events?chassis=9BWZZZ377VT004251", nil)
	if diag.lastOverview.Chassis != "9BWZZZ377VT004251" {
		t.Fatalf("expected chassis alias to be accepted")
	}

	if w := do(r, http.MethodGet, "/api/overview/dtc-events?event_date=06/01/2024", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", w.Code)
	}
}

func TestChat(t *testing.T) {
	assistant := &fakeAssistant{out: agent.Sequence{agent.Text("P0217 is persistent."), agent.Text("Check coolant.")}}
	r := newTestRouter(t, &fakeDiagnostics{}, assistant, zap.NewNop())

	w := do(r, http.MethodPost, "/api/chat", []byte(`{"message":"status?","vehicle_key":"ABC1234","hours":12}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["reply"] != "P0217 is persistent.\nCheck coolant." {
		t.Fatalf("unexpected reply %q", body["reply"])
	}
	if assistant.got.VehicleKey != "ABC1234" || assistant.got.Hours != 12 {
		t.Fatalf("unexpected question: %+v", assistant.got)
	}

	if w := do(r, http.MethodPost, "/api/chat", []byte(`{"message":"  "}`)); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %d", w.Code)
	}

	assistant.err = agent.ErrNotConfigured
	if w := do(r, http.MethodPost, "/api/chat", []byte(`{"message":"hi"}`)); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestLookupSeverity(t *testing.T) {
	r := newTestRouter(t, &fakeDiagnostics{}, &fakeAssistant{}, zap.NewNop())

	w := do(r, http.MethodGet, "/api/kb/lookup?spn=110&fmi=0", nil)
	var body struct {
		Data kb.Entry `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusOK || body.Data.Severity != "High" {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}

	if w := do(r, http.MethodGet, "/api/kb/lookup?spn=x&fmi=0", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, &fakeDiagnostics{}, &fakeAssistant{}, zap.NewNop())

	if w := do(r, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/metrics", nil); w.Code != http.StatusOK {
		t.Fatalf("expected metrics endpoint, got %d", w.Code)
	}
}

func TestRequestIDAndAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newTestRouter(t, &fakeDiagnostics{}, &fakeAssistant{}, zap.New(core))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) != "req-1" {
		t.Fatalf("expected request id to be echoed")
	}

	w = do(r, http.MethodGet, "/health", nil)
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}

	entries := logs.FilterMessage("Request").All()
	if len(entries) != 2 {
		t.Fatalf("expected two access log entries, got %d", len(entries))
	}
	if entries[0].ContextMap()["request_id"] != "req-1" || entries[0].ContextMap()["path"] != "/health" {
		t.Fatalf("unexpected fields: %v", entries[0].ContextMap())
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://localhost:5173"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodOptions, "/x", nil)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected preflight response %d %v", w.Code, w.Header())
	}
}
