package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResolveVehicle 解析车辆标识
// GET /api/vehicles/:key
func (h *Handler) ResolveVehicle(c *gin.Context) {
	vehicle, ok, err := h.diag.ResolveVehicle(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.fail(c, "Failed to resolve vehicle", err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": vehicle})
}

// GetFaults 获取车辆故障事件
// GET /api/vehicles/:key/dtc?hours=24
func (h *Handler) GetFaults(c *gin.Context) {
	hours, ok := queryInt(c, "hours", h.defaults.FaultHours)
	if !ok {
		return
	}

	records, err := h.diag.GetFaults(c.Request.Context(), c.Param("key"), hours)
	if err != nil {
		h.fail(c, "Failed to get faults", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

// GetTelemetry 获取车辆原始时间序列
// GET /api/vehicles/:key/telemetry?minutes=30
func (h *Handler) GetTelemetry(c *gin.Context) {
	minutes, ok := queryInt(c, "minutes", h.defaults.TelemetryMinutes)
	if !ok {
		return
	}

	series, err := h.diag.GetTelemetry(c.Request.Context(), c.Param("key"), minutes)
	if err != nil {
		h.fail(c, "Failed to get telemetry", err)
		return
	}

	c.JSON(http.StatusOK, series)
}

// GetVehicleSummary 获取车辆故障分类汇总
// GET /api/vehicles/:key/summary?days=30
func (h *Handler) GetVehicleSummary(c *gin.Context) {
	days, ok := queryInt(c, "days", h.defaults.SummaryDays)
	if !ok {
		return
	}

	results, err := h.diag.GetVehicleSummary(c.Request.Context(), c.Param("key"), days)
	if err != nil {
		h.fail(c, "Failed to get vehicle summary", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": results})
}
