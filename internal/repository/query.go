package repository

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// queryBuilder 组装 WHERE 条件，所有外部值都以命名参数绑定
type queryBuilder struct {
	conds []string
	args  pgx.NamedArgs
	n     int
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{args: pgx.NamedArgs{}}
}

// bind 绑定一个值并返回占位符
func (b *queryBuilder) bind(v any) string {
	name := fmt.Sprintf("p%d", b.n)
	b.n++
	b.args[name] = v
	return "@" + name
}

// where 追加条件，format 中的每个 %s 依次替换为 vals 对应的占位符
func (b *queryBuilder) where(format string, vals ...any) {
	ph := make([]any, len(vals))
	for i, v := range vals {
		ph[i] = b.bind(v)
	}
	b.conds = append(b.conds, fmt.Sprintf(format, ph...))
}

// anyOf 追加一组 OR 条件，整体作为一个 AND 项
func (b *queryBuilder) anyOf(parts ...string) {
	if len(parts) == 0 {
		return
	}
	b.conds = append(b.conds, "("+strings.Join(parts, " OR ")+")")
}

func (b *queryBuilder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func (b *queryBuilder) build(name, base, tail string) Query {
	return Query{Name: name, Text: base + b.clause() + tail, Params: b.args}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern 构造 LIKE 子串模式，转义通配符
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
