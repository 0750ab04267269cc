package repository

import (
	"context"
	"fmt"

	"github.com/langchou/dtcinsights/internal/models"
)

// DeviceRepository 设备与安装记录仓库
type DeviceRepository struct {
	db Executor
}

// NewDeviceRepository 创建设备仓库
func NewDeviceRepository(db Executor) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// DevicesByIdentifiers 按外部标识（已大写）查找设备
func (r *DeviceRepository) DevicesByIdentifiers(ctx context.Context, identifiers []string) ([]models.DeviceIdentity, error) {
	if len(identifiers) == 0 {
		return nil, nil
	}
	b := newQueryBuilder()
	b.where("UPPER(TRIM(d.identification)) = ANY(%s)", identifiers)
	return r.listDevices(ctx, b.build("devices_by_identifiers", selectDevices, " ORDER BY d.device_id"))
}

// DevicesByIDs 按设备 ID 批量获取
func (r *DeviceRepository) DevicesByIDs(ctx context.Context, ids []int64) ([]models.DeviceIdentity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	b := newQueryBuilder()
	b.where("d.device_id = ANY(%s)", ids)
	return r.listDevices(ctx, b.build("devices_by_ids", selectDevices, " ORDER BY d.device_id"))
}

// InstallationsByDevices 指定设备的全部安装记录
func (r *DeviceRepository) InstallationsByDevices(ctx context.Context, deviceIDs []int64) ([]models.DeviceInstallation, error) {
	if len(deviceIDs) == 0 {
		return nil, nil
	}
	b := newQueryBuilder()
	b.where("i.device_id = ANY(%s)", deviceIDs)
	return r.listInstallations(ctx, b.build("installations_by_devices", selectInstallations, " ORDER BY i.device_id, i.start_date, i.installation_id"))
}

// InstallationsByVehicles 曾安装在指定车辆上的全部记录
func (r *DeviceRepository) InstallationsByVehicles(ctx context.Context, vehicleIDs []int64) ([]models.DeviceInstallation, error) {
	if len(vehicleIDs) == 0 {
		return nil, nil
	}
	b := newQueryBuilder()
	b.where("i.vehicle_id = ANY(%s)", vehicleIDs)
	return r.listInstallations(ctx, b.build("installations_by_vehicles", selectInstallations, " ORDER BY i.device_id, i.start_date, i.installation_id"))
}

const selectDevices = `
	SELECT d.device_id, UPPER(TRIM(d.identification)) AS identification
	FROM devices d`

const selectInstallations = `
	SELECT i.installation_id, i.device_id, i.vehicle_id, i.start_date
	FROM installed_vehicles i`

func (r *DeviceRepository) listDevices(ctx context.Context, q Query) ([]models.DeviceIdentity, error) {
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	out := make([]models.DeviceIdentity, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.DeviceIdentity{
			DeviceID:   rowInt64(row, "device_id"),
			Identifier: rowString(row, "identification"),
		})
	}
	return out, nil
}

func (r *DeviceRepository) listInstallations(ctx context.Context, q Query) ([]models.DeviceInstallation, error) {
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list installations: %w", err)
	}
	out := make([]models.DeviceInstallation, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.DeviceInstallation{
			InstallationID: rowInt64(row, "installation_id"),
			DeviceID:       rowInt64(row, "device_id"),
			VehicleID:      rowInt64(row, "vehicle_id"),
			StartTime:      rowTime(row, "start_date"),
		})
	}
	return out, nil
}
