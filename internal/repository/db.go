package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/langchou/dtcinsights/internal/metrics"
)

// Row 一行查询结果，列名到值
type Row = map[string]any

// Query 一条命名的参数化查询
type Query struct {
	Name   string
	Text   string
	Params pgx.NamedArgs
}

// Executor 执行只读分析查询
type Executor interface {
	Query(ctx context.Context, q Query) ([]Row, error)
}

// Options 连接池选项
type Options struct {
	MaxConns int32
	MinConns int32
}

// DB 数据库连接池封装
type DB struct {
	Pool    *pgxpool.Pool
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string, opts Options, logger *zap.Logger, m *metrics.Metrics) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{Pool: pool, logger: logger, metrics: m}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Query 执行查询并把每一行收集为列名映射
func (db *DB) Query(ctx context.Context, q Query) ([]Row, error) {
	start := time.Now()
	out, err := db.query(ctx, q)
	elapsed := time.Since(start)
	db.metrics.ObserveQuery(q.Name, elapsed, err)

	if err != nil {
		db.logger.Error("Query failed",
			zap.String("query", q.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}
	db.logger.Debug("Query executed",
		zap.String("query", q.Name),
		zap.Int("rows", len(out)),
		zap.Duration("elapsed", elapsed))
	return out, nil
}

func (db *DB) query(ctx context.Context, q Query) ([]Row, error) {
	rows, err := db.Pool.Query(ctx, q.Text, q.Params)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Name, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", q.Name, err)
	}
	return out, nil
}

// Migrate 创建开发环境使用的表结构，生产环境表由上游维护
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateVehicles,
		migrationCreateDevices,
		migrationCreateInstalledVehicles,
		migrationCreateTelemetryDTC,
		migrationCreateDTCCodes,
		migrationCreateFMICodes,
		migrationCreatePlanStatus,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateVehicles = `
CREATE TABLE IF NOT EXISTS vehicles (
    vehicle_id BIGINT PRIMARY KEY,
    plate VARCHAR(32),
    chassis VARCHAR(32),
    customer_id BIGINT,
    customer_name VARCHAR(255)
);
CREATE INDEX IF NOT EXISTS idx_vehicles_plate ON vehicles(UPPER(TRIM(plate)));
`

const migrationCreateDevices = `
CREATE TABLE IF NOT EXISTS devices (
    device_id BIGINT PRIMARY KEY,
    identification VARCHAR(64) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_devices_identification ON devices(UPPER(TRIM(identification)));
`

const migrationCreateInstalledVehicles = `
CREATE TABLE IF NOT EXISTS installed_vehicles (
    installation_id BIGSERIAL PRIMARY KEY,
    device_id BIGINT NOT NULL,
    vehicle_id BIGINT NOT NULL,
    start_date TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_installed_vehicles_device ON installed_vehicles(device_id, start_date);
CREATE INDEX IF NOT EXISTS idx_installed_vehicles_vehicle ON installed_vehicles(vehicle_id);
`

const migrationCreateTelemetryDTC = `
CREATE TABLE IF NOT EXISTS telemetry_dtc (
    id BIGSERIAL PRIMARY KEY,
    event_datetime_utc TIMESTAMPTZ NOT NULL,
    dtc VARCHAR(32) NOT NULL,
    spn TEXT,
    fmi TEXT,
    status VARCHAR(32),
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    imeis TEXT
);
CREATE INDEX IF NOT EXISTS idx_telemetry_dtc_ts ON telemetry_dtc(event_datetime_utc DESC);
`

const migrationCreateDTCCodes = `
CREATE TABLE IF NOT EXISTS dtc_codes (
    dtc VARCHAR(32) PRIMARY KEY,
    description TEXT NOT NULL
);
`

const migrationCreateFMICodes = `
CREATE TABLE IF NOT EXISTS fmi_codes (
    fmi BIGINT PRIMARY KEY,
    sae_j1939 TEXT,
    transcription TEXT
);
`

const migrationCreatePlanStatus = `
CREATE TABLE IF NOT EXISTS plan_status (
    chassis VARCHAR(32) NOT NULL,
    status_active BOOLEAN,
    plan_type VARCHAR(64)
);
CREATE INDEX IF NOT EXISTS idx_plan_status_suffix ON plan_status(RIGHT(UPPER(chassis), 8));
`
