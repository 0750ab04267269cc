package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/langchou/dtcinsights/internal/fault"
	"github.com/langchou/dtcinsights/internal/models"
)

// 概览默认值
const (
	DefaultOverviewDays  = 30
	DefaultOverviewLimit = 500
)

// GetOverview 按 (客户, 底盘后 8 位) 分组的近期故障事件
// 所有条件可选，limit 作用于事件数
func (s *FaultService) GetOverview(ctx context.Context, q models.OverviewQuery) ([]models.OverviewItem, error) {
	if q.Days <= 0 {
		q.Days = DefaultOverviewDays
	}
	if q.Limit <= 0 {
		q.Limit = DefaultOverviewLimit
	}
	chassis := ""
	if strings.TrimSpace(q.Chassis) != "" {
		chassis = fault.ChassisSuffix(q.Chassis)
	}
	dtc := strings.ToUpper(strings.TrimSpace(q.DTC))
	customer := fault.ParseCustomerFilter(q.Customer)

	var day string
	since := windowStart(s.now(), q.Days, 24*time.Hour)
	if q.EventDate != nil {
		start := q.EventDate.UTC().Truncate(24 * time.Hour)
		day = start.Format(time.DateOnly)
		if start.Before(since) {
			since = start
		}
	}

	sc, ok, err := s.overviewScope(ctx, customer, chassis)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.OverviewItem{}, nil
	}
	sc.dtc = dtc
	sc.match = func(r *models.FaultRecord) bool {
		if chassis != "" && r.ChassisLast8 != chassis {
			return false
		}
		if dtc != "" && r.DTC != dtc {
			return false
		}
		if day != "" && r.Timestamp.UTC().Format(time.DateOnly) != day {
			return false
		}
		return customer.Matches(r.CustomerName)
	}

	records, err := s.collect(ctx, sc, since)
	if err != nil {
		return nil, err
	}
	records, err = s.enrich(ctx, records, false)
	if err != nil {
		return nil, err
	}
	return groupOverview(limitRecords(records, q.Limit)), nil
}

// overviewScope 客户条件优先；只有完整的 8 位底盘后缀才用于下推
func (s *FaultService) overviewScope(ctx context.Context, customer fault.CustomerFilter, chassis string) (scope, bool, error) {
	if !customer.Wildcard() {
		return s.customerScope(ctx, customer)
	}
	if len([]rune(chassis)) != fault.SuffixLen {
		return scope{}, true, nil
	}

	vehicles, err := s.store.VehiclesByKey(ctx, fault.Normalize(chassis))
	if err != nil {
		return scope{}, false, retrievalErr("list chassis vehicles", err)
	}
	idents, err := s.identifiersForVehicles(ctx, vehicles)
	if err != nil {
		return scope{}, false, err
	}
	if len(idents) == 0 {
		return scope{}, false, nil
	}
	return scope{restrict: true, identifiers: uniqueStrings(idents)}, true, nil
}

// groupOverview records 已按时间倒序
func groupOverview(records []models.FaultRecord) []models.OverviewItem {
	type groupKey struct{ customer, chassis string }
	index := make(map[groupKey]int)
	items := make([]models.OverviewItem, 0)

	for _, r := range records {
		k := groupKey{r.CustomerName, r.ChassisLast8}
		i, ok := index[k]
		if !ok {
			i = len(items)
			index[k] = i
			items = append(items, models.OverviewItem{
				CustomerName: r.CustomerName,
				ChassisLast8: r.ChassisLast8,
				Plate:        r.Plate,
				MostRecent:   r.Timestamp,
			})
		}
		it := &items[i]
		it.DTCCount++
		if r.Timestamp.After(it.MostRecent) {
			it.MostRecent = r.Timestamp
		}
		it.Events = append(it.Events, models.OverviewEvent{
			DTC:            r.DTC,
			DTCDescription: r.DTCDescription,
			Timestamp:      r.Timestamp,
			Status:         r.Status,
			Latitude:       r.Latitude,
			Longitude:      r.Longitude,
			Identifier:     r.Identifier,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].MostRecent.After(items[j].MostRecent)
	})
	return items
}
