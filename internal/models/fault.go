package models

import "time"

// FaultEvent 原始故障码遥测事件
type FaultEvent struct {
	Timestamp time.Time `json:"timestamp"`
	DTC       string    `json:"dtc"`
	SPN       *int64    `json:"spn"`
	FMI       *int64    `json:"fmi"`
	Status    *string   `json:"status"`
	Latitude  *float64  `json:"lat"`
	Longitude *float64  `json:"lon"`
	// 可能是以分号、逗号或空白分隔的多个标识
	Identifiers string `json:"identifiers"`
}

// FMICode FMI 翻译
type FMICode struct {
	FMI           int64   `json:"fmi"`
	SAE           *string `json:"sae_j1939"`
	Transcription *string `json:"transcription"`
}

// FaultRecord 归属到车辆并补全描述后的故障事件
type FaultRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	DTC            string    `json:"dtc"`
	SPN            *int64    `json:"spn"`
	FMI            *int64    `json:"fmi"`
	Status         *string   `json:"status"`
	Latitude       *float64  `json:"lat"`
	Longitude      *float64  `json:"lon"`
	Identifier     string    `json:"identifier"`
	VehicleID      int64     `json:"vehicle_id"`
	Plate          string    `json:"plate"`
	Chassis        string    `json:"chassis"`
	ChassisLast8   string    `json:"chassis_last8"`
	CustomerID     *int64    `json:"customer_id"`
	CustomerName   string    `json:"customer_name"`
	PlanActive     *bool     `json:"plan_active"`
	PlanType       *string   `json:"plan_type"`
	DTCDescription *string   `json:"dtc_description"`
	FMISAE         *string   `json:"fmi_sae"`
	FMITranslation *string   `json:"fmi_pt"`
}

// TelemetryPoint 遥测时间序列中的一个点
type TelemetryPoint struct {
	Time         time.Time `json:"time"`
	SPN          *int64    `json:"spn"`
	FMI          *int64    `json:"fmi"`
	DTC          string    `json:"dtc"`
	Status       *string   `json:"status"`
	Latitude     *float64  `json:"lat"`
	Longitude    *float64  `json:"lon"`
	Plate        string    `json:"plate"`
	CustomerName string    `json:"customer_name"`
	Chassis      string    `json:"chassis"`
	ChassisLast8 string    `json:"chassis_last8"`
	PlanActive   *bool     `json:"plan_active"`
	PlanType     *string   `json:"plan_type"`
	Identifier   string    `json:"identifier"`
}

// TelemetrySeries 遥测结果
type TelemetrySeries struct {
	TimeSeries []TelemetryPoint `json:"time_series"`
}

// FaultCodeGroup 按 (车辆, DTC, FMI) 聚合的故障统计，不落库
type FaultCodeGroup struct {
	VehicleID      int64     `json:"vehicle_id"`
	CustomerName   string    `json:"customer_name"`
	Plate          string    `json:"plate"`
	Chassis        string    `json:"chassis"`
	ChassisLast8   string    `json:"chassis_last8"`
	PlanActive     *bool     `json:"plan_active"`
	PlanType       *string   `json:"plan_type"`
	DTC            string    `json:"dtc"`
	FMI            *int64    `json:"fmi"`
	Description    *string   `json:"dtc_description"`
	FMITranslation *string   `json:"fmi_pt"`
	EventsTotal    int       `json:"events_total"`
	FirstSeen      time.Time `json:"first_seen_utc"`
	LastSeen       time.Time `json:"last_seen_utc"`
	CountLast6h    int       `json:"ev_6h"`
	CountLast24h   int       `json:"ev_24h"`
	CountLast7d    int       `json:"ev_7d"`
	DaysWithEvents int       `json:"days_with_events"`
}

// ClassificationResult 故障持续性分类结果
type ClassificationResult struct {
	FaultCodeGroup
	GapHours          *float64 `json:"gap_hours_since_last"`
	StatusLabel       string   `json:"status_label"`
	RecommendedAction string   `json:"recommended_action"`
}
