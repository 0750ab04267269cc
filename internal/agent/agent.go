package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrNotConfigured 未配置语言模型
	ErrNotConfigured = errors.New("agent model not configured")
	// ErrTooManyRounds 工具调用轮数超过上限
	ErrTooManyRounds = errors.New("agent exceeded tool rounds")
)

const defaultMaxRounds = 5

const systemPrompt = `You are a vehicle diagnostics analyst specialised in DTC (Diagnostic Trouble Codes).
- Treat the user as a level 2 technical support customer who must decide based on the severity of each fault.
- When asked about a specific customer, answer as the manufacturer's analyst.
- Whenever the user provides a PLATE, CHASSIS (last 8), a device identifier or asks for a customer summary (customer_name), use the tools.
- Explain DTC + FMI, severity and next steps objectively.
- If there is no data, suggest widening the window or confirming the identification.
- Classify each DTC/FMI as:
  * persistent (activity in the last 24h OR events on 3 or more distinct days)
  * intermittent (seen in the last week but not in the last 24h)
  * probably_resolved (no events in the last week)
- If the vehicle (plate/identifier/chassis 8) or the customer name is missing, ask for it politely.`

// Question 用户提问及可选上下文
type Question struct {
	Message      string
	VehicleKey   string
	CustomerName string
	Hours        int
	Minutes      int
	Days         int
}

// Prompt 附加工具提示后的提问
func (q Question) Prompt() string {
	var tips []string
	if k := strings.TrimSpace(q.VehicleKey); k != "" {
		tips = append(tips,
			fmt.Sprintf("- %s(vehicle_key=%q, hours=%d)", ToolFetchDTCs, k, orDefault(q.Hours, defaultToolHours)),
			fmt.Sprintf("- %s(vehicle_key=%q, minutes=%d)", ToolFetchTelemetry, k, orDefault(q.Minutes, defaultToolMinutes)),
			fmt.Sprintf("- %s(vehicle_key=%q, days=%d)", ToolFetchVehicleSummary, k, orDefault(q.Days, defaultToolDays)),
		)
	}
	if c := strings.TrimSpace(q.CustomerName); c != "" {
		tips = append(tips,
			fmt.Sprintf("- %s(customer_name=%q, days=%d)", ToolFetchCustomerSummary, c, orDefault(q.Days, defaultToolDays)))
	}
	if len(tips) == 0 {
		return q.Message
	}
	return q.Message + "\n\nIf useful, call the tools:\n" + strings.Join(tips, "\n")
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Agent 对话助手，由宿主进程创建一次后注入各处理器
type Agent struct {
	logger    *zap.Logger
	model     Model
	tools     *toolbox
	maxRounds int
}

// New 创建对话助手；model 为 nil 时 Ask 返回 ErrNotConfigured
func New(logger *zap.Logger, model Model, diag Diagnostics, maxRounds int) *Agent {
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	return &Agent{
		logger:    logger,
		model:     model,
		tools:     newToolbox(logger, diag),
		maxRounds: maxRounds,
	}
}

// Configured 是否可用
func (a *Agent) Configured() bool {
	return a != nil && a.model != nil
}

// Ask 运行一次对话：模型请求工具时执行并回填结果，直到给出最终回答
func (a *Agent) Ask(ctx context.Context, q Question) (Output, error) {
	if !a.Configured() {
		return nil, ErrNotConfigured
	}

	m := newMachine(a.logger)
	if err := m.trigger(ctx, EventAsk); err != nil {
		return nil, err
	}

	req := &Request{
		System:   systemPrompt,
		Tools:    a.tools.specs,
		Messages: []Message{{Role: RoleUser, Text: q.Prompt()}},
	}

	for m.rounds <= a.maxRounds {
		resp, err := a.model.Generate(ctx, req)
		if err != nil {
			_ = m.trigger(ctx, EventFail)
			return nil, fmt.Errorf("generate: %w", err)
		}

		if len(resp.Calls) == 0 {
			if err := m.trigger(ctx, EventAnswer); err != nil {
				return nil, err
			}
			a.logger.Info("Agent answered", zap.Int("rounds", m.rounds))
			return resp.Output, nil
		}

		if err := m.trigger(ctx, EventCallTools); err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages,
			Message{Role: RoleModel, Text: DisplayText(resp.Output), Calls: resp.Calls},
			Message{Role: RoleTool, Results: a.tools.invoke(ctx, resp.Calls)},
		)
		if err := m.trigger(ctx, EventToolResults); err != nil {
			return nil, err
		}
	}

	_ = m.trigger(ctx, EventFail)
	a.logger.Warn("Agent exceeded tool rounds", zap.Int("max_rounds", a.maxRounds))
	return nil, ErrTooManyRounds
}
