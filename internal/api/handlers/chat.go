package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/dtcinsights/internal/agent"
)

type chatRequest struct {
	Message      string `json:"message"`
	VehicleKey   string `json:"vehicle_key"`
	CustomerName string `json:"customer_name"`
	Hours        int    `json:"hours"`
	Minutes      int    `json:"minutes"`
	Days         int    `json:"days"`
}

// Chat 与诊断助手对话
// POST /api/chat
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	out, err := h.assistant.Ask(c.Request.Context(), agent.Question{
		Message:      req.Message,
		VehicleKey:   req.VehicleKey,
		CustomerName: req.CustomerName,
		Hours:        req.Hours,
		Minutes:      req.Minutes,
		Days:         req.Days,
	})
	if err != nil {
		if errors.Is(err, agent.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Assistant not configured"})
			return
		}
		h.fail(c, "Failed to answer", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": agent.DisplayText(out)})
}

// LookupSeverity 查询 SPN/FMI 严重程度
// GET /api/kb/lookup?spn=110&fmi=0
func (h *Handler) LookupSeverity(c *gin.Context) {
	spn, err := strconv.ParseInt(c.Query("spn"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid spn"})
		return
	}
	fmi, err := strconv.ParseInt(c.Query("fmi"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid fmi"})
		return
	}

	entry := h.kb.Lookup(spn, fmi)
	h.logger.Debug("Severity lookup", zap.Int64("spn", spn), zap.Int64("fmi", fmi), zap.String("severity", entry.Severity))
	c.JSON(http.StatusOK, gin.H{"data": entry})
}
