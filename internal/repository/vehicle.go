package repository

import (
	"context"
	"fmt"

	"github.com/langchou/dtcinsights/internal/fault"
	"github.com/langchou/dtcinsights/internal/models"
)

const vehicleColumns = `
	v.vehicle_id,
	UPPER(TRIM(COALESCE(v.plate, ''))) AS plate,
	UPPER(TRIM(COALESCE(v.chassis, ''))) AS chassis,
	v.customer_id,
	COALESCE(v.customer_name, '') AS customer_name
`

// VehicleRepository 车辆登记数据仓库
type VehicleRepository struct {
	db Executor
}

// NewVehicleRepository 创建车辆仓库
func NewVehicleRepository(db Executor) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// VehiclesByKey 按车牌精确匹配或底盘后 8 位匹配，车牌匹配优先
func (r *VehicleRepository) VehiclesByKey(ctx context.Context, key fault.Key) ([]models.VehicleIdentity, error) {
	if key.IsEmpty() {
		return nil, nil
	}
	b := newQueryBuilder()
	plate := b.bind(key.Full)
	parts := []string{"UPPER(TRIM(v.plate)) = " + plate}
	if key.Suffix8 != "" {
		parts = append(parts, "RIGHT(UPPER(TRIM(v.chassis)), 8) = "+b.bind(key.Suffix8))
	}
	b.anyOf(parts...)

	q := b.build("vehicles_by_key",
		"SELECT"+vehicleColumns+"FROM vehicles v",
		" ORDER BY COALESCE(UPPER(TRIM(v.plate)) = "+plate+", false) DESC, v.vehicle_id")
	return r.list(ctx, q)
}

// VehiclesByIDs 按车辆 ID 批量获取
func (r *VehicleRepository) VehiclesByIDs(ctx context.Context, ids []int64) ([]models.VehicleIdentity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	b := newQueryBuilder()
	b.where("v.vehicle_id = ANY(%s)", ids)
	return r.list(ctx, b.build("vehicles_by_ids", "SELECT"+vehicleColumns+"FROM vehicles v", " ORDER BY v.vehicle_id"))
}

// VehiclesByCustomer 客户名称包含全部片段的车辆；片段为空时返回全部车辆
func (r *VehicleRepository) VehiclesByCustomer(ctx context.Context, tokens []string) ([]models.VehicleIdentity, error) {
	b := newQueryBuilder()
	for _, t := range tokens {
		b.where(`UPPER(v.customer_name) LIKE %s ESCAPE '\'`, containsPattern(t))
	}
	return r.list(ctx, b.build("vehicles_by_customer", "SELECT"+vehicleColumns+"FROM vehicles v", " ORDER BY v.vehicle_id"))
}

func (r *VehicleRepository) list(ctx context.Context, q Query) ([]models.VehicleIdentity, error) {
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	out := make([]models.VehicleIdentity, 0, len(rows))
	for _, row := range rows {
		out = append(out, scanVehicle(row))
	}
	return out, nil
}

func scanVehicle(row Row) models.VehicleIdentity {
	chassis := rowString(row, "chassis")
	return models.VehicleIdentity{
		VehicleID:    rowInt64(row, "vehicle_id"),
		Plate:        rowString(row, "plate"),
		Chassis:      chassis,
		ChassisLast8: fault.ChassisSuffix(chassis),
		CustomerID:   rowInt64Ptr(row, "customer_id"),
		CustomerName: rowString(row, "customer_name"),
	}
}
