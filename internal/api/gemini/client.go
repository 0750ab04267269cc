package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/langchou/dtcinsights/internal/agent"
)

// DefaultHost Gemini API 地址
const DefaultHost = "https://generativelanguage.googleapis.com"

// DefaultModel 默认模型
const DefaultModel = "gemini-1.5-flash"

// 错误定义
var (
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrRateLimited  = fmt.Errorf("rate limited")
	ErrBlocked      = fmt.Errorf("prompt blocked")
)

// Client Gemini generateContent 客户端，实现 agent.Model
type Client struct {
	httpClient *http.Client
	host       string
	model      string
	apiKey     string
}

var _ agent.Model = (*Client)(nil)

// NewClient 创建新的 Gemini 客户端
func NewClient(host, model, apiKey string) *Client {
	if host == "" {
		host = DefaultHost
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		host:   strings.TrimRight(host, "/"),
		model:  model,
		apiKey: apiKey,
	}
}

// Generate 发送一次对话请求
func (c *Client) Generate(ctx context.Context, req *agent.Request) (*agent.Response, error) {
	payload, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.host, url.PathEscape(c.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	// 处理不同状态码
	switch resp.StatusCode {
	case http.StatusOK:
		// 正常
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("generate failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var apiResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return parseResponse(&apiResp)
}

func buildRequest(req *agent.Request) *generateRequest {
	out := &generateRequest{}
	if req.System != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}

	for _, m := range req.Messages {
		switch m.Role {
		case agent.RoleModel:
			c := content{Role: "model"}
			if m.Text != "" {
				c.Parts = append(c.Parts, part{Text: m.Text})
			}
			for _, call := range m.Calls {
				c.Parts = append(c.Parts, part{FunctionCall: &functionCall{Name: call.Name, Args: call.Args}})
			}
			out.Contents = append(out.Contents, c)
		case agent.RoleTool:
			// 函数结果以 user 角色回传
			c := content{Role: "user"}
			for _, r := range m.Results {
				c.Parts = append(c.Parts, part{FunctionResponse: &functionResponse{
					Name:     r.Name,
					Response: map[string]any{"result": r.Output},
				}})
			}
			out.Contents = append(out.Contents, c)
		default:
			out.Contents = append(out.Contents, content{Role: "user", Parts: []part{{Text: m.Text}}})
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]functionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, functionDeclaration{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
		}
		out.Tools = []tool{{FunctionDeclarations: decls}}
	}
	return out
}

// parseResponse 取第一个候选：functionCall 转为工具调用，text 转为 Text，其余 part 为 Structured
func parseResponse(apiResp *generateResponse) (*agent.Response, error) {
	if len(apiResp.Candidates) == 0 {
		if apiResp.PromptFeedback != nil && apiResp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: %s", ErrBlocked, apiResp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("empty response")
	}

	resp := &agent.Response{}
	var outputs agent.Sequence
	for _, p := range apiResp.Candidates[0].Content.Parts {
		if raw, ok := p["functionCall"].(map[string]any); ok {
			name, _ := raw["name"].(string)
			args, _ := raw["args"].(map[string]any)
			resp.Calls = append(resp.Calls, agent.ToolCall{Name: name, Args: args})
			continue
		}
		if text, ok := p["text"].(string); ok {
			outputs = append(outputs, agent.Text(text))
			continue
		}
		outputs = append(outputs, agent.Structured(p))
	}

	switch len(outputs) {
	case 0:
		resp.Output = agent.Text("")
	case 1:
		resp.Output = outputs[0]
	default:
		resp.Output = outputs
	}
	return resp, nil
}
