package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/langchou/dtcinsights/internal/fault"
	"github.com/langchou/dtcinsights/internal/models"
	"github.com/langchou/dtcinsights/internal/repository"
)

// ErrRetrieval 查询执行失败，调用方决定是否重试
var ErrRetrieval = errors.New("retrieval failed")

// Store 故障服务依赖的只读数据源，由 repository.Store 实现
type Store interface {
	VehiclesByKey(ctx context.Context, key fault.Key) ([]models.VehicleIdentity, error)
	VehiclesByIDs(ctx context.Context, ids []int64) ([]models.VehicleIdentity, error)
	VehiclesByCustomer(ctx context.Context, tokens []string) ([]models.VehicleIdentity, error)
	DevicesByIdentifiers(ctx context.Context, identifiers []string) ([]models.DeviceIdentity, error)
	DevicesByIDs(ctx context.Context, ids []int64) ([]models.DeviceIdentity, error)
	InstallationsByDevices(ctx context.Context, deviceIDs []int64) ([]models.DeviceInstallation, error)
	InstallationsByVehicles(ctx context.Context, vehicleIDs []int64) ([]models.DeviceInstallation, error)
	EventsSince(ctx context.Context, q repository.EventQuery) ([]models.FaultEvent, error)
	DTCDescriptions(ctx context.Context, dtcs []string) (map[string]string, error)
	FMITranslations(ctx context.Context, fmis []int64) (map[int64]models.FMICode, error)
	PlansBySuffix(ctx context.Context, suffixes []string) (map[string]models.PlanStatus, error)
}

var _ Store = (*repository.Store)(nil)

func retrievalErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRetrieval, op, err)
}

// windowStart 向前 n 个 unit 的起点
// 窗口超出 time.Duration 的表示范围时不设下界，非正数窗口从 now 开始
func windowStart(now time.Time, n int, unit time.Duration) time.Time {
	if n <= 0 {
		return now
	}
	if int64(n) > math.MaxInt64/int64(unit) {
		return time.Time{}
	}
	return now.Add(-time.Duration(n) * unit)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func uniqueInt64s(in []int64) []int64 {
	seen := make(map[int64]struct{}, len(in))
	out := make([]int64, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
