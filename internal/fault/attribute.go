package fault

import (
	"github.com/langchou/dtcinsights/internal/models"
)

// Catalog 归属事件所需的参考数据
type Catalog struct {
	// 大写标识 -> 设备 ID（同一标识可能对应多个设备）
	Devices  map[string][]int64
	History  *InstallationHistory
	Vehicles map[int64]models.VehicleIdentity
}

// Attribute 将事件按其自身时间戳归属到车辆
// 每个标识单独处理；找不到设备、安装或车辆的标识被丢弃
func Attribute(events []models.FaultEvent, cat Catalog) []models.FaultRecord {
	var out []models.FaultRecord
	for _, ev := range events {
		for _, ident := range SplitIdentifiers(ev.Identifiers) {
			for _, deviceID := range cat.Devices[ident] {
				vehicleID, ok := cat.History.VehicleAt(deviceID, ev.Timestamp)
				if !ok {
					continue
				}
				v, ok := cat.Vehicles[vehicleID]
				if !ok {
					continue
				}
				out = append(out, models.FaultRecord{
					Timestamp:    ev.Timestamp,
					DTC:          ev.DTC,
					SPN:          ev.SPN,
					FMI:          ev.FMI,
					Status:       ev.Status,
					Latitude:     ev.Latitude,
					Longitude:    ev.Longitude,
					Identifier:   ident,
					VehicleID:    v.VehicleID,
					Plate:        v.Plate,
					Chassis:      v.Chassis,
					ChassisLast8: v.ChassisLast8,
					CustomerID:   v.CustomerID,
					CustomerName: v.CustomerName,
				})
			}
		}
	}
	return out
}
