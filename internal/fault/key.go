// Package fault 车辆身份解析与故障持续性分类
package fault

import "strings"

// SuffixLen 底盘号后缀长度
const SuffixLen = 8

// Key 规范化后的车辆查询键
type Key struct {
	Full    string
	Suffix8 string
}

// Normalize 去空白并转大写
// Suffix8 为最后 8 个字符，不足 8 个字符时为空
func Normalize(raw string) Key {
	full := strings.ToUpper(strings.TrimSpace(raw))
	r := []rune(full)
	if len(r) < SuffixLen {
		return Key{Full: full}
	}
	return Key{Full: full, Suffix8: string(r[len(r)-SuffixLen:])}
}

// IsEmpty 是否为空键
func (k Key) IsEmpty() bool {
	return k.Full == ""
}

// ChassisSuffix 底盘号后 8 位（大写）；底盘号不足 8 位时返回整个底盘号
func ChassisSuffix(chassis string) string {
	r := []rune(strings.ToUpper(strings.TrimSpace(chassis)))
	if len(r) <= SuffixLen {
		return string(r)
	}
	return string(r[len(r)-SuffixLen:])
}

// KeyFilter 车辆键过滤器
// 空输入得到的是显式的通配过滤器，而不是"找不到车辆"
type KeyFilter struct {
	key      Key
	wildcard bool
}

// ParseKeyFilter 从原始输入构造过滤器
func ParseKeyFilter(raw string) KeyFilter {
	k := Normalize(raw)
	return KeyFilter{key: k, wildcard: k.IsEmpty()}
}

// Wildcard 是否匹配全部
func (f KeyFilter) Wildcard() bool {
	return f.wildcard
}

// Key 返回规范化键
func (f KeyFilter) Key() Key {
	return f.key
}

// Matches 车牌、设备标识、底盘后 8 位任一匹配即可
func (f KeyFilter) Matches(plate, identifier, chassisLast8 string) bool {
	if f.wildcard {
		return true
	}
	if plate != "" && plate == f.key.Full {
		return true
	}
	if identifier != "" && identifier == f.key.Full {
		return true
	}
	return f.key.Suffix8 != "" && chassisLast8 == f.key.Suffix8
}
