package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/dtcinsights/internal/models"
)

// EventQuery 故障事件查询条件
type EventQuery struct {
	Since time.Time
	// Restrict 为 true 时只返回标识字段包含 Identifiers 之一的事件
	Restrict    bool
	Identifiers []string
	// DTC 非空时精确匹配（大写）
	DTC string
}

// EventRepository 故障码遥测事件仓库
type EventRepository struct {
	db Executor
}

// NewEventRepository 创建事件仓库
func NewEventRepository(db Executor) *EventRepository {
	return &EventRepository{db: db}
}

// EventsSince 时间窗口内的事件，按时间倒序
// SPN/FMI 在源表中是文本，非数字值映射为 NULL
func (r *EventRepository) EventsSince(ctx context.Context, eq EventQuery) ([]models.FaultEvent, error) {
	b := newQueryBuilder()
	b.where("t.event_datetime_utc >= %s", eq.Since.UTC())
	if eq.Restrict {
		b.where(`regexp_split_to_array(UPPER(COALESCE(t.imeis, '')), '[;,\s]+') && %s`, nonNilStrings(eq.Identifiers))
	}
	if eq.DTC != "" {
		b.where("UPPER(TRIM(t.dtc)) = %s", eq.DTC)
	}

	q := b.build("events_since", `
		SELECT
			t.event_datetime_utc,
			UPPER(TRIM(t.dtc)) AS dtc,
			CASE WHEN TRIM(t.spn) ~ '^-?[0-9]+$' THEN TRIM(t.spn)::BIGINT END AS spn,
			CASE WHEN TRIM(t.fmi) ~ '^-?[0-9]+$' THEN TRIM(t.fmi)::BIGINT END AS fmi,
			t.status,
			t.latitude,
			t.longitude,
			COALESCE(t.imeis, '') AS imeis
		FROM telemetry_dtc t`,
		" ORDER BY t.event_datetime_utc DESC")

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]models.FaultEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.FaultEvent{
			Timestamp:   rowTime(row, "event_datetime_utc"),
			DTC:         rowString(row, "dtc"),
			SPN:         rowInt64Ptr(row, "spn"),
			FMI:         rowInt64Ptr(row, "fmi"),
			Status:      rowStringPtr(row, "status"),
			Latitude:    rowFloat64Ptr(row, "latitude"),
			Longitude:   rowFloat64Ptr(row, "longitude"),
			Identifiers: rowString(row, "imeis"),
		})
	}
	return out, nil
}

// 空切片绑定为空数组而不是 NULL
func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
