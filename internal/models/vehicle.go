package models

import "time"

// VehicleIdentity 车辆身份（外部车队登记数据，只读）
type VehicleIdentity struct {
	VehicleID    int64  `json:"vehicle_id"`
	Plate        string `json:"plate"`
	Chassis      string `json:"chassis"`
	ChassisLast8 string `json:"chassis_last8"`
	CustomerID   *int64 `json:"customer_id"`
	CustomerName string `json:"customer_name"`
}

// DeviceIdentity 设备与外部标识（IMEI 等）的映射
type DeviceIdentity struct {
	DeviceID   int64  `json:"device_id"`
	Identifier string `json:"identifier"`
}

// DeviceInstallation 设备安装记录
// 没有结束时间：同一设备的下一次安装即视为本次结束
type DeviceInstallation struct {
	InstallationID int64     `json:"installation_id"`
	DeviceID       int64     `json:"device_id"`
	VehicleID      int64     `json:"vehicle_id"`
	StartTime      time.Time `json:"start_time"`
}

// PlanStatus 订阅计划状态，按底盘号后 8 位关联
type PlanStatus struct {
	ChassisLast8 string  `json:"chassis_last8"`
	PlanActive   *bool   `json:"plan_active"`
	PlanType     *string `json:"plan_type"`
}

// ResolvedVehicle 解析后的车辆（含计划信息）
type ResolvedVehicle struct {
	VehicleIdentity
	// 通过设备标识匹配时才有值
	Identifier *string `json:"identifier"`
	PlanActive *bool   `json:"plan_active"`
	PlanType   *string `json:"plan_type"`
}
