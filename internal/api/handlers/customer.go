package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/langchou/dtcinsights/internal/models"
	"github.com/langchou/dtcinsights/internal/service"
)

// GetCustomerSummary 获取客户故障分类汇总
// GET /api/customers/summary?name=...&days=30
// name 为空时匹配全部客户
func (h *Handler) GetCustomerSummary(c *gin.Context) {
	days, ok := queryInt(c, "days", h.defaults.SummaryDays)
	if !ok {
		return
	}

	results, err := h.diag.GetCustomerSummary(c.Request.Context(), c.Query("name"), days)
	if err != nil {
		h.fail(c, "Failed to get customer summary", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": results})
}

// GetOverview 按客户与底盘分组的近期故障事件
// GET /api/overview/dtc-events?chassi=&customer=&dtc=&event_date=2024-06-01&days=30&limit=500
func (h *Handler) GetOverview(c *gin.Context) {
	days, ok := queryInt(c, "days", service.DefaultOverviewDays)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", service.DefaultOverviewLimit)
	if !ok {
		return
	}

	q := models.OverviewQuery{
		Chassis:  c.Query("chassi"),
		Customer: c.Query("customer"),
		DTC:      c.Query("dtc"),
		Days:     days,
		Limit:    limit,
	}
	if q.Chassis == "" {
		q.Chassis = c.Query("chassis")
	}
	if raw := strings.TrimSpace(c.Query("event_date")); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event_date"})
			return
		}
		q.EventDate = &d
	}

	items, err := h.diag.GetOverview(c.Request.Context(), q)
	if err != nil {
		h.fail(c, "Failed to get overview", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}
