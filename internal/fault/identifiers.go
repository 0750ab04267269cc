package fault

import (
	"regexp"
	"strings"
)

var identifierSeparators = regexp.MustCompile(`[;,\s]+`)

// SplitIdentifiers 拆分一条遥测记录里的多个设备标识，重复的只保留第一次出现
// "123;456, 789;123" -> ["123", "456", "789"]
func SplitIdentifiers(raw string) []string {
	parts := identifierSeparators.Split(strings.ToUpper(raw), -1)
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
