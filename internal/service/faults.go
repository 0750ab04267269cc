package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/dtcinsights/internal/fault"
	"github.com/langchou/dtcinsights/internal/metrics"
	"github.com/langchou/dtcinsights/internal/models"
	"github.com/langchou/dtcinsights/internal/repository"
)

// 结果行数上限
const (
	FaultLimit           = 500
	TelemetryLimit       = 1000
	VehicleSummaryLimit  = 500
	CustomerSummaryLimit = 1000
)

// FaultService 车辆身份解析、故障检索与持续性分类
// 每次调用都是独立的只读计算，可并发使用
type FaultService struct {
	logger  *zap.Logger
	store   Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewFaultService 创建故障服务
func NewFaultService(logger *zap.Logger, store Store, m *metrics.Metrics) *FaultService {
	return &FaultService{
		logger:  logger,
		store:   store,
		metrics: m,
		now:     time.Now,
	}
}

// scope 一次检索的范围：候选标识（用于下推）与逐行过滤条件
type scope struct {
	restrict    bool
	identifiers []string
	dtc         string
	match       func(r *models.FaultRecord) bool
}

// ResolveVehicle 依次按车牌/底盘后 8 位、设备标识解析车辆
// 找不到时 ok 为 false，不视为错误
func (s *FaultService) ResolveVehicle(ctx context.Context, raw string) (*models.ResolvedVehicle, bool, error) {
	key := fault.Normalize(raw)
	if key.IsEmpty() {
		return nil, false, nil
	}

	resolved, err := s.resolveByVehicle(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if resolved == nil {
		resolved, err = s.resolveByDevice(ctx, key)
		if err != nil {
			return nil, false, err
		}
	}
	if resolved == nil {
		s.logger.Debug("Vehicle not found", zap.String("key", key.Full))
		return nil, false, nil
	}

	if resolved.ChassisLast8 != "" {
		plans, err := s.store.PlansBySuffix(ctx, []string{resolved.ChassisLast8})
		if err != nil {
			return nil, false, retrievalErr("resolve plan", err)
		}
		if p, ok := plans[resolved.ChassisLast8]; ok {
			resolved.PlanActive = p.PlanActive
			resolved.PlanType = p.PlanType
		}
	}
	return resolved, true, nil
}

func (s *FaultService) resolveByVehicle(ctx context.Context, key fault.Key) (*models.ResolvedVehicle, error) {
	vehicles, err := s.store.VehiclesByKey(ctx, key)
	if err != nil {
		return nil, retrievalErr("resolve vehicle", err)
	}
	if len(vehicles) == 0 {
		return nil, nil
	}
	return &models.ResolvedVehicle{VehicleIdentity: vehicles[0]}, nil
}

// resolveByDevice 标识 -> 设备 -> 当前安装 -> 车辆
func (s *FaultService) resolveByDevice(ctx context.Context, key fault.Key) (*models.ResolvedVehicle, error) {
	devices, err := s.store.DevicesByIdentifiers(ctx, []string{key.Full})
	if err != nil {
		return nil, retrievalErr("resolve device", err)
	}
	if len(devices) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.DeviceID)
	}
	ids = uniqueInt64s(ids)

	installs, err := s.store.InstallationsByDevices(ctx, ids)
	if err != nil {
		return nil, retrievalErr("resolve installation", err)
	}
	history := fault.NewInstallationHistory(installs)
	now := s.now()
	for _, id := range history.Devices() {
		vehicleID, ok := history.VehicleAt(id, now)
		if !ok {
			continue
		}
		vehicles, err := s.store.VehiclesByIDs(ctx, []int64{vehicleID})
		if err != nil {
			return nil, retrievalErr("resolve vehicle by id", err)
		}
		if len(vehicles) == 0 {
			continue
		}
		ident := key.Full
		return &models.ResolvedVehicle{VehicleIdentity: vehicles[0], Identifier: &ident}, nil
	}
	return nil, nil
}

// GetFaults 时间窗口内车辆的故障事件（必须有 DTC 描述）
func (s *FaultService) GetFaults(ctx context.Context, raw string, hours int) ([]models.FaultRecord, error) {
	filter := fault.ParseKeyFilter(raw)
	sc, err := s.keyScope(ctx, filter)
	if err != nil {
		return nil, err
	}
	since := windowStart(s.now(), hours, time.Hour)
	records, err := s.collect(ctx, sc, since)
	if err != nil {
		return nil, err
	}
	records, err = s.enrich(ctx, records, true)
	if err != nil {
		return nil, err
	}
	return limitRecords(records, FaultLimit), nil
}

// GetTelemetry 最近若干分钟的原始时间序列，不关联 DTC 描述
func (s *FaultService) GetTelemetry(ctx context.Context, raw string, minutes int) (*models.TelemetrySeries, error) {
	filter := fault.ParseKeyFilter(raw)
	sc, err := s.keyScope(ctx, filter)
	if err != nil {
		return nil, err
	}
	since := windowStart(s.now(), minutes, time.Minute)
	records, err := s.collect(ctx, sc, since)
	if err != nil {
		return nil, err
	}
	if err := s.joinPlans(ctx, records); err != nil {
		return nil, err
	}
	records = limitRecords(records, TelemetryLimit)

	points := make([]models.TelemetryPoint, 0, len(records))
	for _, r := range records {
		points = append(points, models.TelemetryPoint{
			Time:         r.Timestamp,
			SPN:          r.SPN,
			FMI:          r.FMI,
			DTC:          r.DTC,
			Status:       r.Status,
			Latitude:     r.Latitude,
			Longitude:    r.Longitude,
			Plate:        r.Plate,
			CustomerName: r.CustomerName,
			Chassis:      r.Chassis,
			ChassisLast8: r.ChassisLast8,
			PlanActive:   r.PlanActive,
			PlanType:     r.PlanType,
			Identifier:   r.Identifier,
		})
	}
	return &models.TelemetrySeries{TimeSeries: points}, nil
}

// GetVehicleSummary 按 (车辆, DTC, FMI) 聚合并分类
func (s *FaultService) GetVehicleSummary(ctx context.Context, raw string, days int) ([]models.ClassificationResult, error) {
	filter := fault.ParseKeyFilter(raw)
	sc, err := s.keyScope(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, sc, days, VehicleSummaryLimit)
}

// GetCustomerSummary 按客户名称片段聚合并分类
// 空名称匹配全部客户
func (s *FaultService) GetCustomerSummary(ctx context.Context, name string, days int) ([]models.ClassificationResult, error) {
	filter := fault.ParseCustomerFilter(name)
	if filter.Wildcard() {
		s.logger.Warn("Customer filter matches all customers", zap.String("name", name))
	}
	sc, ok, err := s.customerScope(ctx, filter)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.ClassificationResult{}, nil
	}
	return s.summarize(ctx, sc, days, CustomerSummaryLimit)
}

func (s *FaultService) summarize(ctx context.Context, sc scope, days, limit int) ([]models.ClassificationResult, error) {
	now := s.now()
	since := windowStart(now, days, 24*time.Hour)
	records, err := s.collect(ctx, sc, since)
	if err != nil {
		return nil, err
	}
	records, err = s.enrich(ctx, records, true)
	if err != nil {
		return nil, err
	}

	results := fault.ClassifyAll(fault.Aggregate(records, now, limit), now)
	for _, r := range results {
		s.metrics.ObserveClassification(r.StatusLabel)
	}
	return results, nil
}

// keyScope 非通配键先找出候选车辆曾经安装过的设备标识，用于下推过滤
func (s *FaultService) keyScope(ctx context.Context, filter fault.KeyFilter) (scope, error) {
	sc := scope{match: func(r *models.FaultRecord) bool {
		return filter.Matches(r.Plate, r.Identifier, r.ChassisLast8)
	}}
	if filter.Wildcard() {
		return sc, nil
	}

	key := filter.Key()
	vehicles, err := s.store.VehiclesByKey(ctx, key)
	if err != nil {
		return sc, retrievalErr("list candidate vehicles", err)
	}
	idents, err := s.identifiersForVehicles(ctx, vehicles)
	if err != nil {
		return sc, err
	}
	sc.restrict = true
	sc.identifiers = uniqueStrings(append(idents, key.Full))
	return sc, nil
}

// customerScope 没有候选车辆时 ok 为 false
func (s *FaultService) customerScope(ctx context.Context, filter fault.CustomerFilter) (scope, bool, error) {
	sc := scope{match: func(r *models.FaultRecord) bool {
		return filter.Matches(r.CustomerName)
	}}
	if filter.Wildcard() {
		return sc, true, nil
	}

	vehicles, err := s.store.VehiclesByCustomer(ctx, filter.Tokens())
	if err != nil {
		return sc, false, retrievalErr("list customer vehicles", err)
	}
	if len(vehicles) == 0 {
		return sc, false, nil
	}
	idents, err := s.identifiersForVehicles(ctx, vehicles)
	if err != nil {
		return sc, false, err
	}
	if len(idents) == 0 {
		return sc, false, nil
	}
	sc.restrict = true
	sc.identifiers = uniqueStrings(idents)
	return sc, true, nil
}

func (s *FaultService) identifiersForVehicles(ctx context.Context, vehicles []models.VehicleIdentity) ([]string, error) {
	if len(vehicles) == 0 {
		return nil, nil
	}
	vehicleIDs := make([]int64, 0, len(vehicles))
	for _, v := range vehicles {
		vehicleIDs = append(vehicleIDs, v.VehicleID)
	}
	installs, err := s.store.InstallationsByVehicles(ctx, uniqueInt64s(vehicleIDs))
	if err != nil {
		return nil, retrievalErr("list candidate installations", err)
	}
	deviceIDs := make([]int64, 0, len(installs))
	for _, in := range installs {
		deviceIDs = append(deviceIDs, in.DeviceID)
	}
	devices, err := s.store.DevicesByIDs(ctx, uniqueInt64s(deviceIDs))
	if err != nil {
		return nil, retrievalErr("list candidate devices", err)
	}
	idents := make([]string, 0, len(devices))
	for _, d := range devices {
		idents = append(idents, d.Identifier)
	}
	return idents, nil
}

// collect 取事件、拆分标识、按事件时间归属车辆，然后按范围过滤
func (s *FaultService) collect(ctx context.Context, sc scope, since time.Time) ([]models.FaultRecord, error) {
	events, err := s.store.EventsSince(ctx, repository.EventQuery{
		Since:       since,
		Restrict:    sc.restrict,
		Identifiers: sc.identifiers,
		DTC:         sc.dtc,
	})
	if err != nil {
		return nil, retrievalErr("list events", err)
	}
	if len(events) == 0 {
		return nil, nil
	}

	var idents []string
	for _, ev := range events {
		idents = append(idents, fault.SplitIdentifiers(ev.Identifiers)...)
	}
	devices, err := s.store.DevicesByIdentifiers(ctx, uniqueStrings(idents))
	if err != nil {
		return nil, retrievalErr("list devices", err)
	}
	byIdent := make(map[string][]int64, len(devices))
	deviceIDs := make([]int64, 0, len(devices))
	for _, d := range devices {
		byIdent[d.Identifier] = append(byIdent[d.Identifier], d.DeviceID)
		deviceIDs = append(deviceIDs, d.DeviceID)
	}

	installs, err := s.store.InstallationsByDevices(ctx, uniqueInt64s(deviceIDs))
	if err != nil {
		return nil, retrievalErr("list installations", err)
	}
	vehicleIDs := make([]int64, 0, len(installs))
	for _, in := range installs {
		vehicleIDs = append(vehicleIDs, in.VehicleID)
	}
	vehicles, err := s.store.VehiclesByIDs(ctx, uniqueInt64s(vehicleIDs))
	if err != nil {
		return nil, retrievalErr("list vehicles", err)
	}
	byID := make(map[int64]models.VehicleIdentity, len(vehicles))
	for _, v := range vehicles {
		byID[v.VehicleID] = v
	}

	attributed := fault.Attribute(events, fault.Catalog{
		Devices:  byIdent,
		History:  fault.NewInstallationHistory(installs),
		Vehicles: byID,
	})

	out := attributed[:0]
	for i := range attributed {
		if sc.match == nil || sc.match(&attributed[i]) {
			out = append(out, attributed[i])
		}
	}
	s.logger.Debug("Collected fault records",
		zap.Int("events", len(events)),
		zap.Int("attributed", len(attributed)),
		zap.Int("matched", len(out)))
	return out, nil
}

// enrich 关联 DTC 描述（requireDescription 时丢弃没有描述的行）、FMI 翻译与订阅计划
func (s *FaultService) enrich(ctx context.Context, records []models.FaultRecord, requireDescription bool) ([]models.FaultRecord, error) {
	if len(records) == 0 {
		return records, nil
	}
	var dtcs []string
	var fmis []int64
	for _, r := range records {
		dtcs = append(dtcs, r.DTC)
		if r.FMI != nil {
			fmis = append(fmis, *r.FMI)
		}
	}
	descriptions, err := s.store.DTCDescriptions(ctx, uniqueStrings(dtcs))
	if err != nil {
		return nil, retrievalErr("list dtc descriptions", err)
	}
	translations, err := s.store.FMITranslations(ctx, uniqueInt64s(fmis))
	if err != nil {
		return nil, retrievalErr("list fmi translations", err)
	}

	out := records[:0]
	for _, r := range records {
		if desc, ok := descriptions[r.DTC]; ok {
			d := desc
			r.DTCDescription = &d
		} else if requireDescription {
			continue
		}
		if r.FMI != nil {
			if code, ok := translations[*r.FMI]; ok {
				r.FMISAE = code.SAE
				r.FMITranslation = code.Transcription
			}
		}
		out = append(out, r)
	}
	if err := s.joinPlans(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FaultService) joinPlans(ctx context.Context, records []models.FaultRecord) error {
	if len(records) == 0 {
		return nil
	}
	suffixes := make([]string, 0, len(records))
	for _, r := range records {
		suffixes = append(suffixes, r.ChassisLast8)
	}
	plans, err := s.store.PlansBySuffix(ctx, uniqueStrings(suffixes))
	if err != nil {
		return retrievalErr("list plans", err)
	}
	for i := range records {
		if p, ok := plans[records[i].ChassisLast8]; ok {
			records[i].PlanActive = p.PlanActive
			records[i].PlanType = p.PlanType
		}
	}
	return nil
}

// limitRecords 按时间倒序排序后截断
func limitRecords(records []models.FaultRecord, limit int) []models.FaultRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	if records == nil {
		return []models.FaultRecord{}
	}
	return records
}
