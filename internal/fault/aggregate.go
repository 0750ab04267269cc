package fault

import (
	"sort"
	"time"

	"github.com/langchou/dtcinsights/internal/models"
)

// 计数窗口
const (
	Window6h  = 6 * time.Hour
	Window24h = 24 * time.Hour
	Window7d  = 7 * 24 * time.Hour
)

type groupKey struct {
	vehicleID int64
	dtc       string
	fmi       int64
	hasFMI    bool
}

type groupAcc struct {
	group models.FaultCodeGroup
	days  map[string]struct{}
}

// Aggregate 按 (车辆, DTC, FMI) 聚合故障记录
// 结果按 last_seen 倒序，limit > 0 时截断
func Aggregate(records []models.FaultRecord, now time.Time, limit int) []models.FaultCodeGroup {
	accs := make(map[groupKey]*groupAcc)
	order := make([]groupKey, 0)

	for i := range records {
		r := &records[i]
		k := groupKey{vehicleID: r.VehicleID, dtc: r.DTC}
		if r.FMI != nil {
			k.fmi, k.hasFMI = *r.FMI, true
		}

		acc, ok := accs[k]
		if !ok {
			acc = &groupAcc{
				group: models.FaultCodeGroup{
					VehicleID:    r.VehicleID,
					CustomerName: r.CustomerName,
					Plate:        r.Plate,
					Chassis:      r.Chassis,
					ChassisLast8: r.ChassisLast8,
					DTC:          r.DTC,
					FMI:          r.FMI,
					FirstSeen:    r.Timestamp,
					LastSeen:     r.Timestamp,
				},
				days: make(map[string]struct{}),
			}
			accs[k] = acc
			order = append(order, k)
		}

		g := &acc.group
		g.EventsTotal++
		if r.Timestamp.Before(g.FirstSeen) {
			g.FirstSeen = r.Timestamp
		}
		if r.Timestamp.After(g.LastSeen) {
			g.LastSeen = r.Timestamp
		}
		// 任取一条非空值
		if g.PlanActive == nil {
			g.PlanActive = r.PlanActive
		}
		if g.PlanType == nil {
			g.PlanType = r.PlanType
		}
		if g.Description == nil {
			g.Description = r.DTCDescription
		}
		if g.FMITranslation == nil {
			g.FMITranslation = r.FMITranslation
		}

		age := now.Sub(r.Timestamp)
		if age <= Window6h {
			g.CountLast6h++
		}
		if age <= Window24h {
			g.CountLast24h++
		}
		if age <= Window7d {
			g.CountLast7d++
		}
		acc.days[r.Timestamp.UTC().Format(time.DateOnly)] = struct{}{}
	}

	groups := make([]models.FaultCodeGroup, 0, len(order))
	for _, k := range order {
		acc := accs[k]
		acc.group.DaysWithEvents = len(acc.days)
		groups = append(groups, acc.group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].LastSeen.After(groups[j].LastSeen)
	})
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}
