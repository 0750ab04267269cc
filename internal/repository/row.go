package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 以下帮助函数把 pgx.RowToMap 产出的值转为领域类型
// NULL 映射为零值或 nil 指针

func rowString(r Row, col string) string {
	if p := rowStringPtr(r, col); p != nil {
		return *p
	}
	return ""
}

func rowStringPtr(r Row, col string) *string {
	switch v := r[col].(type) {
	case nil:
		return nil
	case string:
		return &v
	case []byte:
		s := string(v)
		return &s
	case fmt.Stringer:
		s := v.String()
		return &s
	default:
		s := fmt.Sprint(v)
		return &s
	}
}

func rowInt64(r Row, col string) int64 {
	if p := rowInt64Ptr(r, col); p != nil {
		return *p
	}
	return 0
}

func rowInt64Ptr(r Row, col string) *int64 {
	var out int64
	switch v := r[col].(type) {
	case int64:
		out = v
	case int32:
		out = int64(v)
	case int16:
		out = int64(v)
	case int:
		out = int64(v)
	case float64:
		out = int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil
		}
		out = n
	default:
		return nil
	}
	return &out
}

func rowFloat64Ptr(r Row, col string) *float64 {
	var out float64
	switch v := r[col].(type) {
	case float64:
		out = v
	case float32:
		out = float64(v)
	case int64:
		out = float64(v)
	case int32:
		out = float64(v)
	default:
		return nil
	}
	return &out
}

func rowBoolPtr(r Row, col string) *bool {
	v, ok := r[col].(bool)
	if !ok {
		return nil
	}
	return &v
}

func rowTime(r Row, col string) time.Time {
	if v, ok := r[col].(time.Time); ok {
		return v.UTC()
	}
	return time.Time{}
}
