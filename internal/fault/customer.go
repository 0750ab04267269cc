package fault

import (
	"regexp"
	"strings"
)

const minTokenLen = 3

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]+`)

// CustomerTokens 将客户名称拆成长度 >= 3 的字母数字片段
// 没有片段保留时退回整个规范化字符串；空输入返回空切片（匹配全部客户）
func CustomerTokens(query string) []string {
	norm := strings.ToUpper(strings.TrimSpace(query))
	var tokens []string
	for _, t := range nonAlnum.Split(norm, -1) {
		if len(t) >= minTokenLen {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 && norm != "" {
		tokens = []string{norm}
	}
	return tokens
}

// CustomerFilter 客户名称过滤器：名称需包含全部片段（不区分大小写）
type CustomerFilter struct {
	tokens []string
}

// ParseCustomerFilter 由查询构造过滤器
func ParseCustomerFilter(query string) CustomerFilter {
	return CustomerFilter{tokens: CustomerTokens(query)}
}

// Tokens 过滤片段
func (f CustomerFilter) Tokens() []string {
	return f.tokens
}

// Wildcard 没有片段时匹配全部客户
func (f CustomerFilter) Wildcard() bool {
	return len(f.tokens) == 0
}

// Matches 判断客户名称是否命中
func (f CustomerFilter) Matches(name string) bool {
	upper := strings.ToUpper(name)
	for _, t := range f.tokens {
		if !strings.Contains(upper, t) {
			return false
		}
	}
	return true
}
