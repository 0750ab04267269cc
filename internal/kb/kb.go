// Package kb SPN/FMI 严重程度知识库
package kb

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed seed_severity.json
var seed []byte

// Entry 一条 SPN/FMI 处置建议
type Entry struct {
	SPN      *int64   `json:"spn,omitempty"`
	FMI      *int64   `json:"fmi,omitempty"`
	Title    string   `json:"title"`
	Severity string   `json:"severity"`
	SOP      []string `json:"sop"`
	CanRun   bool     `json:"can_run"`
}

type pair struct{ spn, fmi int64 }

// Base 只读知识库
type Base struct {
	entries map[pair]Entry
}

// Load 加载内置种子数据
func Load() (*Base, error) {
	return Parse(seed)
}

// Parse 从 JSON 数组构造知识库，重复的 SPN/FMI 以第一条为准
func Parse(data []byte) (*Base, error) {
	var list []Entry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode kb seed: %w", err)
	}
	b := &Base{entries: make(map[pair]Entry, len(list))}
	for _, e := range list {
		if e.SPN == nil || e.FMI == nil {
			continue
		}
		k := pair{*e.SPN, *e.FMI}
		if _, ok := b.entries[k]; ok {
			continue
		}
		if e.SOP == nil {
			e.SOP = []string{}
		}
		b.entries[k] = e
	}
	return b, nil
}

// Lookup 查询 SPN/FMI；未知组合返回低严重度的默认条目
func (b *Base) Lookup(spn, fmi int64) Entry {
	if b != nil {
		if e, ok := b.entries[pair{spn, fmi}]; ok {
			return e
		}
	}
	return Entry{Title: "Unknown", Severity: "Low", SOP: []string{}, CanRun: true}
}

// Len 条目数
func (b *Base) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}
