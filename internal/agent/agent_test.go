package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/dtcinsights/internal/models"
)

// scriptedModel 依次返回预置回复并记录请求
type scriptedModel struct {
	replies  []*Response
	err      error
	requests []Request
}

func (m *scriptedModel) Generate(_ context.Context, req *Request) (*Response, error) {
	cp := *req
	cp.Messages = append([]Message(nil), req.Messages...)
	m.requests = append(m.requests, cp)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return &Response{Calls: []ToolCall{{Name: ToolFetchDTCs}}}, nil
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r, nil
}

type fakeDiagnostics struct {
	keys  []string
	hours []int
	err   error
}

func (d *fakeDiagnostics) GetFaults(_ context.Context, key string, hours int) ([]models.FaultRecord, error) {
	d.keys = append(d.keys, key)
	d.hours = append(d.hours, hours)
	if d.err != nil {
		return nil, d.err
	}
	var rows []models.FaultRecord
	for i := 0; i < 80; i++ {
		rows = append(rows, models.FaultRecord{Timestamp: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), DTC: "P0217", Plate: key})
	}
	return rows, nil
}

func (d *fakeDiagnostics) GetTelemetry(_ context.Context, key string, minutes int) (*models.TelemetrySeries, error) {
	points := make([]models.TelemetryPoint, 300)
	return &models.TelemetrySeries{TimeSeries: points}, nil
}

func (d *fakeDiagnostics) GetVehicleSummary(_ context.Context, key string, days int) ([]models.ClassificationResult, error) {
	return []models.ClassificationResult{{StatusLabel: "persistent"}}, nil
}

func (d *fakeDiagnostics) GetCustomerSummary(_ context.Context, name string, days int) ([]models.ClassificationResult, error) {
	return nil, nil
}

func TestAskRunsToolsThenAnswers(t *testing.T) {
	model := &scriptedModel{replies: []*Response{
		{Calls: []ToolCall{{Name: ToolFetchDTCs, Args: map[string]any{"vehicle_key": "ABC1234", "hours": float64(48)}}}},
		{Output: Text("P0217 is persistent, act immediately.")},
	}}
	diag := &fakeDiagnostics{}
	a := New(zap.NewNop(), model, diag, 3)

	out, err := a.Ask(context.Background(), Question{Message: "what is wrong?", VehicleKey: "ABC1234"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if DisplayText(out) != "P0217 is persistent, act immediately." {
		t.Fatalf("unexpected answer: %q", DisplayText(out))
	}
	if len(diag.keys) != 1 || diag.keys[0] != "ABC1234" || diag.hours[0] != 48 {
		t.Fatalf("unexpected tool invocation: %v %v", diag.keys, diag.hours)
	}

	second := model.requests[1]
	if len(second.Messages) != 3 {
		t.Fatalf("expected user, model and tool messages, got %d", len(second.Messages))
	}
	result := second.Messages[2].Results[0]
	rows, ok := result.Output.([]map[string]any)
	if !ok || len(rows) != maxDTCRows {
		t.Fatalf("expected %d slim rows, got %T", maxDTCRows, result.Output)
	}
	if rows[0]["timestamp"] != "2024-06-01 10:00:00" {
		t.Fatalf("unexpected timestamp format: %v", rows[0]["timestamp"])
	}
	if second.System == "" || len(second.Tools) != 4 {
		t.Fatalf("expected system prompt and four tools")
	}
}

func TestAskToolErrorIsReturnedToModel(t *testing.T) {
	model := &scriptedModel{replies: []*Response{
		{Calls: []ToolCall{{Name: ToolFetchDTCs, Args: map[string]any{"vehicle_key": "X"}}, {Name: "drop_tables"}}},
		{Output: Text("could not fetch data")},
	}}
	a := New(zap.NewNop(), model, &fakeDiagnostics{err: errors.New("quota")}, 3)

	if _, err := a.Ask(context.Background(), Question{Message: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results := model.requests[1].Messages[2].Results
	if len(results) != 2 {
		t.Fatalf("expected two results, got %d", len(results))
	}
	for _, r := range results {
		m, ok := r.Output.(map[string]any)
		if !ok || m["error"] == nil {
			t.Fatalf("expected error result for %s, got %#v", r.Name, r.Output)
		}
	}
}

func TestAskStopsAfterMaxRounds(t *testing.T) {
	model := &scriptedModel{}
	a := New(zap.NewNop(), model, &fakeDiagnostics{}, 2)

	_, err := a.Ask(context.Background(), Question{Message: "loop"})
	if !errors.Is(err, ErrTooManyRounds) {
		t.Fatalf("expected ErrTooManyRounds, got %v", err)
	}
	if len(model.requests) != 2 {
		t.Fatalf("expected exactly 2 model calls, got %d", len(model.requests))
	}
}

func TestAskModelFailure(t *testing.T) {
	boom := errors.New("unavailable")
	a := New(zap.NewNop(), &scriptedModel{err: boom}, &fakeDiagnostics{}, 2)
	if _, err := a.Ask(context.Background(), Question{Message: "hi"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped model error, got %v", err)
	}
}

func TestAskNotConfigured(t *testing.T) {
	a := New(zap.NewNop(), nil, &fakeDiagnostics{}, 2)
	if a.Configured() {
		t.Fatalf("expected agent without model to be unconfigured")
	}
	if _, err := a.Ask(context.Background(), Question{Message: "hi"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestQuestionPrompt(t *testing.T) {
	plain := Question{Message: "hello"}
	if plain.Prompt() != "hello" {
		t.Fatalf("expected prompt unchanged without context")
	}
	p := Question{Message: "status?", VehicleKey: "ABC1234", CustomerName: "Trans Norte", Hours: 12}.Prompt()
	for _, want := range []string{
		`fetch_dtcs(vehicle_key="ABC1234", hours=12)`,
		`fetch_telemetry(vehicle_key="ABC1234", minutes=60)`,
		`fetch_customer_summary(customer_name="Trans Norte", days=30)`,
	} {
		if !strings.Contains(p, want) {
			t.Fatalf("expected %q in prompt:\n%s", want, p)
		}
	}
}

func TestSlimTelemetryCaps(t *testing.T) {
	out := slimTelemetry(&models.TelemetrySeries{TimeSeries: make([]models.TelemetryPoint, 300)})
	if pts := out["time_series"].([]map[string]any); len(pts) != maxTelemetryRows {
		t.Fatalf("expected %d points, got %d", maxTelemetryRows, len(pts))
	}
	if pts := slimTelemetry(nil)["time_series"].([]map[string]any); len(pts) != 0 {
		t.Fatalf("expected empty series for nil input")
	}
}

func TestDisplayText(t *testing.T) {
	cases := []struct {
		name string
		in   Output
		want string
	}{
		{"nil", nil, ""},
		{"text", Text("  hello "), "hello"},
		{"sequence", Sequence{Text("a"), Text(""), Sequence{Text("b")}}, "a\nb"},
		{"structured text", Structured{"text": "from map"}, "from map"},
		{"structured content", Structured{"content": "body"}, "body"},
		{"structured json", Structured{"b": 1, "a": "x"}, "{\n  \"a\": \"x\",\n  \"b\": 1\n}"},
		{"empty structured", Structured{}, ""},
	}
	for _, tc := range cases {
		if got := DisplayText(tc.in); got != tc.want {
			t.Fatalf("%s: DisplayText = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestMachineRejectsInvalidTransition(t *testing.T) {
	m := newMachine(zap.NewNop())
	if err := m.trigger(context.Background(), EventAnswer); err == nil {
		t.Fatalf("expected answer from idle to be rejected")
	}
	if err := m.trigger(context.Background(), EventAsk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.current() != StateThinking || m.rounds != 1 {
		t.Fatalf("unexpected state %s round %d", m.current(), m.rounds)
	}
}
