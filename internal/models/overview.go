package models

import "time"

// OverviewQuery 概览查询条件，空值表示不过滤
type OverviewQuery struct {
	Chassis   string
	Customer  string
	DTC       string
	EventDate *time.Time
	Days      int
	Limit     int
}

// OverviewEvent 概览中的单个事件
type OverviewEvent struct {
	DTC            string    `json:"dtc"`
	DTCDescription *string   `json:"dtc_description"`
	Timestamp      time.Time `json:"timestamp"`
	Status         *string   `json:"status"`
	Latitude       *float64  `json:"lat"`
	Longitude      *float64  `json:"lon"`
	Identifier     string    `json:"imei"`
}

// OverviewItem 按 (客户, 底盘后 8 位) 分组的事件
type OverviewItem struct {
	CustomerName string          `json:"customer_name"`
	ChassisLast8 string          `json:"chassi_last8"`
	Plate        string          `json:"plate"`
	DTCCount     int             `json:"dtc_count"`
	MostRecent   time.Time       `json:"most_recent"`
	Events       []OverviewEvent `json:"events"`
}
