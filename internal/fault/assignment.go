package fault

import (
	"sort"
	"time"

	"github.com/langchou/dtcinsights/internal/models"
)

// InstallationHistory 设备安装历史
// 每条安装记录生效到同一设备的下一条安装记录开始为止
type InstallationHistory struct {
	byDevice map[int64][]models.DeviceInstallation
}

// NewInstallationHistory 构建安装历史
func NewInstallationHistory(installs []models.DeviceInstallation) *InstallationHistory {
	h := &InstallationHistory{byDevice: make(map[int64][]models.DeviceInstallation)}
	for _, in := range installs {
		h.byDevice[in.DeviceID] = append(h.byDevice[in.DeviceID], in)
	}
	for _, list := range h.byDevice {
		// 开始时间相同时按安装 ID 升序，最后一条（ID 最大）胜出
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].StartTime.Equal(list[j].StartTime) {
				return list[i].InstallationID < list[j].InstallationID
			}
			return list[i].StartTime.Before(list[j].StartTime)
		})
	}
	return h
}

// VehicleAt 返回设备在 at 时刻所在的车辆
// 取 start_time <= at 中最晚的一条安装记录
func (h *InstallationHistory) VehicleAt(deviceID int64, at time.Time) (int64, bool) {
	if h == nil {
		return 0, false
	}
	list := h.byDevice[deviceID]
	// 第一条 start_time > at 的下标
	idx := sort.Search(len(list), func(i int) bool {
		return list[i].StartTime.After(at)
	})
	if idx == 0 {
		return 0, false
	}
	return list[idx-1].VehicleID, true
}

// Devices 历史中出现的全部设备
func (h *InstallationHistory) Devices() []int64 {
	ids := make([]int64, 0, len(h.byDevice))
	for id := range h.byDevice {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
