package agent

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// 对话状态
const (
	StateIdle         = "idle"
	StateThinking     = "thinking"
	StateCallingTools = "calling_tools"
	StateAnswered     = "answered"
	StateFailed       = "failed"
)

// 事件常量
const (
	EventAsk         = "ask"
	EventCallTools   = "call_tools"
	EventToolResults = "tool_results"
	EventAnswer      = "answer"
	EventFail        = "fail"
)

// machine 单次对话的状态机，不跨请求共享
type machine struct {
	fsm    *fsm.FSM
	rounds int
}

func newMachine(logger *zap.Logger) *machine {
	m := &machine{}
	m.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventAsk, Src: []string{StateIdle}, Dst: StateThinking},

			// 从 thinking 状态
			{Name: EventCallTools, Src: []string{StateThinking}, Dst: StateCallingTools},
			{Name: EventAnswer, Src: []string{StateThinking}, Dst: StateAnswered},

			// 工具返回后重新思考
			{Name: EventToolResults, Src: []string{StateCallingTools}, Dst: StateThinking},

			{Name: EventFail, Src: []string{StateIdle, StateThinking, StateCallingTools}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_" + StateThinking: func(_ context.Context, e *fsm.Event) {
				m.rounds++
			},
			"after_event": func(_ context.Context, e *fsm.Event) {
				logger.Debug("Agent transition",
					zap.String("event", e.Event),
					zap.String("from", e.Src),
					zap.String("to", e.Dst),
					zap.Int("round", m.rounds))
			},
		},
	)
	return m
}

// trigger 触发事件
func (m *machine) trigger(ctx context.Context, event string) error {
	if err := m.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}
	return nil
}

func (m *machine) current() string {
	return m.fsm.Current()
}
