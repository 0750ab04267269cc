// Package agent 故障诊断对话助手
package agent

import "context"

// 消息角色
const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// ToolCall 模型请求调用的工具
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResult 工具执行结果
type ToolResult struct {
	Name   string `json:"name"`
	Output any    `json:"output"`
}

// ToolSpec 工具声明，Parameters 为 JSON Schema
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Message 对话中的一条消息
type Message struct {
	Role    string
	Text    string
	Calls   []ToolCall
	Results []ToolResult
}

// Request 一次生成请求
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// Response 模型回复：要么是最终输出，要么是工具调用
type Response struct {
	Output Output
	Calls  []ToolCall
}

// Model 语言模型
type Model interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}
