package fault

import (
	"time"

	"github.com/langchou/dtcinsights/internal/models"
)

// 持续性状态
const (
	StatusPersistent       = "persistent"
	StatusIntermittent     = "intermittent"
	StatusProbablyResolved = "probably_resolved"
)

// 建议动作
const (
	ActionPersistent       = "act immediately, active/persistent fault"
	ActionIntermittent     = "monitor, review triggering conditions"
	ActionProbablyResolved = "no recent recurrence, treat as resolved pending customer confirmation"
)

// persistentDays 有事件的天数达到该值即视为持续故障
const persistentDays = 3

// Classify 按优先级判定故障状态：persistent > intermittent > probably_resolved
func Classify(g models.FaultCodeGroup, now time.Time) models.ClassificationResult {
	res := models.ClassificationResult{FaultCodeGroup: g}

	if !g.LastSeen.IsZero() {
		gap := now.Sub(g.LastSeen).Hours()
		res.GapHours = &gap
	}

	switch {
	case g.CountLast24h > 0 || g.DaysWithEvents >= persistentDays:
		res.StatusLabel = StatusPersistent
		res.RecommendedAction = ActionPersistent
	case g.CountLast7d > 0 && g.CountLast24h == 0:
		res.StatusLabel = StatusIntermittent
		res.RecommendedAction = ActionIntermittent
	default:
		res.StatusLabel = StatusProbablyResolved
		res.RecommendedAction = ActionProbablyResolved
	}
	return res
}

// ClassifyAll 逐组分类
func ClassifyAll(groups []models.FaultCodeGroup, now time.Time) []models.ClassificationResult {
	out := make([]models.ClassificationResult, 0, len(groups))
	for _, g := range groups {
		out = append(out, Classify(g, now))
	}
	return out
}
