package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/langchou/dtcinsights/internal/models"
)

// 工具名称
const (
	ToolFetchDTCs            = "fetch_dtcs"
	ToolFetchTelemetry       = "fetch_telemetry"
	ToolFetchVehicleSummary  = "fetch_vehicle_summary"
	ToolFetchCustomerSummary = "fetch_customer_summary"
)

// 传给模型的行数上限
const (
	maxDTCRows         = 50
	maxTelemetryRows   = 200
	defaultToolHours   = 24
	defaultToolMinutes = 60
	defaultToolDays    = 30
)

const tsLayout = "2006-01-02 15:04:05"

// Diagnostics 工具背后的故障查询
type Diagnostics interface {
	GetFaults(ctx context.Context, key string, hours int) ([]models.FaultRecord, error)
	GetTelemetry(ctx context.Context, key string, minutes int) (*models.TelemetrySeries, error)
	GetVehicleSummary(ctx context.Context, key string, days int) ([]models.ClassificationResult, error)
	GetCustomerSummary(ctx context.Context, name string, days int) ([]models.ClassificationResult, error)
}

type toolFunc func(ctx context.Context, args map[string]any) (any, error)

type toolbox struct {
	logger *zap.Logger
	specs  []ToolSpec
	funcs  map[string]toolFunc
}

func newToolbox(logger *zap.Logger, diag Diagnostics) *toolbox {
	tb := &toolbox{logger: logger, funcs: make(map[string]toolFunc)}

	tb.add(ToolSpec{
		Name:        ToolFetchDTCs,
		Description: "Recent DTC events for a vehicle (plate, device identifier or last 8 chassis characters). Returns up to 50 rows.",
		Parameters:  schema(param("vehicle_key", "string", "plate, device identifier or chassis last 8"), param("hours", "integer", "lookback window in hours")),
	}, func(ctx context.Context, args map[string]any) (any, error) {
		rows, err := diag.GetFaults(ctx, stringArg(args, "vehicle_key"), intArg(args, "hours", defaultToolHours))
		if err != nil {
			return nil, err
		}
		return slimFaults(rows), nil
	})

	tb.add(ToolSpec{
		Name:        ToolFetchTelemetry,
		Description: "Raw recent telemetry for a vehicle. Returns up to 200 points.",
		Parameters:  schema(param("vehicle_key", "string", "plate, device identifier or chassis last 8"), param("minutes", "integer", "lookback window in minutes")),
	}, func(ctx context.Context, args map[string]any) (any, error) {
		series, err := diag.GetTelemetry(ctx, stringArg(args, "vehicle_key"), intArg(args, "minutes", defaultToolMinutes))
		if err != nil {
			return nil, err
		}
		return slimTelemetry(series), nil
	})

	tb.add(ToolSpec{
		Name:        ToolFetchVehicleSummary,
		Description: "Per DTC/FMI summary for a vehicle, classified as persistent, intermittent or probably_resolved.",
		Parameters:  schema(param("vehicle_key", "string", "plate, device identifier or chassis last 8"), param("days", "integer", "lookback window in days")),
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return diag.GetVehicleSummary(ctx, stringArg(args, "vehicle_key"), intArg(args, "days", defaultToolDays))
	})

	tb.add(ToolSpec{
		Name:        ToolFetchCustomerSummary,
		Description: "Per DTC/FMI summary across every vehicle of a customer (partial name accepted), with plan status.",
		Parameters:  schema(param("customer_name", "string", "customer name or part of it"), param("days", "integer", "lookback window in days")),
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return diag.GetCustomerSummary(ctx, stringArg(args, "customer_name"), intArg(args, "days", defaultToolDays))
	})

	return tb
}

func (tb *toolbox) add(spec ToolSpec, fn toolFunc) {
	tb.specs = append(tb.specs, spec)
	tb.funcs[spec.Name] = fn
}

// invoke 依次执行工具调用；失败作为结果返回给模型，不中断对话
func (tb *toolbox) invoke(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		fn, ok := tb.funcs[call.Name]
		if !ok {
			results = append(results, ToolResult{Name: call.Name, Output: map[string]any{"error": "unknown tool " + call.Name}})
			continue
		}
		out, err := fn(ctx, call.Args)
		if err != nil {
			tb.logger.Warn("Tool call failed", zap.String("tool", call.Name), zap.Error(err))
			results = append(results, ToolResult{Name: call.Name, Output: map[string]any{"error": err.Error()}})
			continue
		}
		tb.logger.Debug("Tool call succeeded", zap.String("tool", call.Name))
		results = append(results, ToolResult{Name: call.Name, Output: out})
	}
	return results
}

func slimFaults(rows []models.FaultRecord) []map[string]any {
	if len(rows) > maxDTCRows {
		rows = rows[:maxDTCRows]
	}
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, map[string]any{
			"timestamp":       r.Timestamp.UTC().Format(tsLayout),
			"dtc":             r.DTC,
			"fmi":             r.FMI,
			"spn":             r.SPN,
			"status":          r.Status,
			"plate":           r.Plate,
			"customer":        r.CustomerName,
			"plan_active":     r.PlanActive,
			"plan_type":       r.PlanType,
			"dtc_description": r.DTCDescription,
			"fmi_pt":          r.FMITranslation,
		})
	}
	return out
}

func slimTelemetry(series *models.TelemetrySeries) map[string]any {
	points := []map[string]any{}
	if series != nil {
		ts := series.TimeSeries
		if len(ts) > maxTelemetryRows {
			ts = ts[:maxTelemetryRows]
		}
		for _, p := range ts {
			points = append(points, map[string]any{
				"time":   p.Time.UTC().Format(tsLayout),
				"spn":    p.SPN,
				"fmi":    p.FMI,
				"dtc":    p.DTC,
				"status": p.Status,
			})
		}
	}
	return map[string]any{"time_series": points}
}

func schema(props ...map[string]any) map[string]any {
	properties := make(map[string]any, len(props))
	var required []string
	for _, p := range props {
		name := p["name"].(string)
		delete(p, "name")
		properties[name] = p
		if p["type"] == "string" {
			required = append(required, name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func param(name, typ, desc string) map[string]any {
	return map[string]any{"name": name, "type": typ, "description": desc}
}

func stringArg(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// intArg JSON 数字解码为 float64，也接受数字字符串
func intArg(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return def
}
