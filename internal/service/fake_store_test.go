package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/langchou/dtcinsights/internal/fault"
	"github.com/langchou/dtcinsights/internal/models"
	"github.com/langchou/dtcinsights/internal/repository"
)

// fakeStore 内存实现，语义与 SQL 查询一致
type fakeStore struct {
	vehicles     []models.VehicleIdentity
	devices      []models.DeviceIdentity
	installs     []models.DeviceInstallation
	events       []models.FaultEvent
	descriptions map[string]string
	fmis         map[int64]models.FMICode
	plans        map[string]models.PlanStatus

	err          error
	eventQueries []repository.EventQuery
}

func (f *fakeStore) VehiclesByKey(_ context.Context, key fault.Key) ([]models.VehicleIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	var plate, suffix []models.VehicleIdentity
	for _, v := range f.vehicles {
		switch {
		case v.Plate == key.Full:
			plate = append(plate, v)
		case key.Suffix8 != "" && v.ChassisLast8 == key.Suffix8:
			suffix = append(suffix, v)
		}
	}
	return append(plate, suffix...), nil
}

func (f *fakeStore) VehiclesByIDs(_ context.Context, ids []int64) ([]models.VehicleIdentity, error) {
	var out []models.VehicleIdentity
	for _, v := range f.vehicles {
		for _, id := range ids {
			if v.VehicleID == id {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) VehiclesByCustomer(_ context.Context, tokens []string) ([]models.VehicleIdentity, error) {
	var out []models.VehicleIdentity
	for _, v := range f.vehicles {
		ok := true
		for _, t := range tokens {
			if !strings.Contains(strings.ToUpper(v.CustomerName), t) {
				ok = false
			}
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStore) DevicesByIdentifiers(_ context.Context, identifiers []string) ([]models.DeviceIdentity, error) {
	var out []models.DeviceIdentity
	for _, d := range f.devices {
		for _, id := range identifiers {
			if d.Identifier == id {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) DevicesByIDs(_ context.Context, ids []int64) ([]models.DeviceIdentity, error) {
	var out []models.DeviceIdentity
	for _, d := range f.devices {
		for _, id := range ids {
			if d.DeviceID == id {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) InstallationsByDevices(_ context.Context, deviceIDs []int64) ([]models.DeviceInstallation, error) {
	var out []models.DeviceInstallation
	for _, in := range f.installs {
		for _, id := range deviceIDs {
			if in.DeviceID == id {
				out = append(out, in)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) InstallationsByVehicles(_ context.Context, vehicleIDs []int64) ([]models.DeviceInstallation, error) {
	var out []models.DeviceInstallation
	for _, in := range f.installs {
		for _, id := range vehicleIDs {
			if in.VehicleID == id {
				out = append(out, in)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) EventsSince(_ context.Context, q repository.EventQuery) ([]models.FaultEvent, error) {
	f.eventQueries = append(f.eventQueries, q)
	if f.err != nil {
		return nil, f.err
	}
	allowed := make(map[string]bool)
	for _, id := range q.Identifiers {
		allowed[id] = true
	}
	var out []models.FaultEvent
	for _, ev := range f.events {
		if ev.Timestamp.Before(q.Since) {
			continue
		}
		if q.DTC != "" && ev.DTC != q.DTC {
			continue
		}
		if q.Restrict {
			hit := false
			for _, id := range fault.SplitIdentifiers(ev.Identifiers) {
				hit = hit || allowed[id]
			}
			if !hit {
				continue
			}
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (f *fakeStore) DTCDescriptions(_ context.Context, dtcs []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, d := range dtcs {
		if desc, ok := f.descriptions[d]; ok {
			out[d] = desc
		}
	}
	return out, nil
}

func (f *fakeStore) FMITranslations(_ context.Context, fmis []int64) (map[int64]models.FMICode, error) {
	out := make(map[int64]models.FMICode)
	for _, v := range fmis {
		if c, ok := f.fmis[v]; ok {
			out[v] = c
		}
	}
	return out, nil
}

func (f *fakeStore) PlansBySuffix(_ context.Context, suffixes []string) (map[string]models.PlanStatus, error) {
	out := make(map[string]models.PlanStatus)
	for _, s := range suffixes {
		if p, ok := f.plans[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func int64Ptr(v int64) *int64 { return &v }

// fleetFixture 一辆车 ABC1234，设备 999 自 2024-01-01 起安装
func fleetFixture() *fakeStore {
	return &fakeStore{
		vehicles: []models.VehicleIdentity{
			{VehicleID: 1, Plate: "ABC1234", Chassis: "9BWZZZ377VT004251", ChassisLast8: "VT004251", CustomerName: "TRANS NORTE LTDA"},
			{VehicleID: 2, Plate: "XYZ9876", Chassis: "9BWZZZ377VT009999", ChassisLast8: "VT009999", CustomerName: "GRUPO FABRIL"},
		},
		devices: []models.DeviceIdentity{
			{DeviceID: 10, Identifier: "999"},
			{DeviceID: 20, Identifier: "555"},
		},
		installs: []models.DeviceInstallation{
			{InstallationID: 1, DeviceID: 10, VehicleID: 1, StartTime: day("2024-01-01")},
			{InstallationID: 2, DeviceID: 20, VehicleID: 2, StartTime: day("2024-01-01")},
		},
		events: []models.FaultEvent{
			{Timestamp: day("2024-06-01"), DTC: "P0217", FMI: int64Ptr(5), Identifiers: "999"},
			{Timestamp: day("2024-06-01").Add(2 * time.Hour), DTC: "P0300", Identifiers: "555"},
		},
		descriptions: map[string]string{
			"P0217": "Engine over temperature",
			"P0300": "Random misfire",
		},
		fmis:  map[int64]models.FMICode{},
		plans: map[string]models.PlanStatus{},
	}
}
