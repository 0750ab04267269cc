package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Output 模型输出：Text、Sequence 或 Structured 之一
type Output interface {
	isOutput()
}

// Text 纯文本
type Text string

// Sequence 有序的多段输出
type Sequence []Output

// Structured 结构化输出
type Structured map[string]any

func (Text) isOutput()       {}
func (Sequence) isOutput()   {}
func (Structured) isOutput() {}

// DisplayText 提取可展示的文本
func DisplayText(o Output) string {
	switch v := o.(type) {
	case nil:
		return ""
	case Text:
		return strings.TrimSpace(string(v))
	case Sequence:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := DisplayText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case Structured:
		return structuredText(v)
	}
	// isOutput 未导出，不存在其他实现
	return ""
}

// structuredText 优先使用 text/content 字段，否则输出排序后的 JSON
func structuredText(m Structured) string {
	for _, k := range []string{"text", "content"} {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	if len(m) == 0 {
		return ""
	}
	data, err := json.MarshalIndent(map[string]any(m), "", "  ")
	if err != nil {
		return fmt.Sprint(map[string]any(m))
	}
	return string(data)
}
