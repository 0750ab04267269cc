package repository

import (
	"context"
	"fmt"

	"github.com/langchou/dtcinsights/internal/models"
)

// CodeRepository DTC 描述、FMI 翻译与订阅计划参考表
type CodeRepository struct {
	db Executor
}

// NewCodeRepository 创建参考表仓库
func NewCodeRepository(db Executor) *CodeRepository {
	return &CodeRepository{db: db}
}

// DTCDescriptions 指定 DTC 的描述，键为大写 DTC
func (r *CodeRepository) DTCDescriptions(ctx context.Context, dtcs []string) (map[string]string, error) {
	out := make(map[string]string)
	if len(dtcs) == 0 {
		return out, nil
	}
	b := newQueryBuilder()
	b.where("UPPER(TRIM(c.dtc)) = ANY(%s)", dtcs)
	rows, err := r.db.Query(ctx, b.build("dtc_descriptions",
		"SELECT UPPER(TRIM(c.dtc)) AS dtc, c.description FROM dtc_codes c", ""))
	if err != nil {
		return nil, fmt.Errorf("list dtc descriptions: %w", err)
	}
	for _, row := range rows {
		if desc := rowStringPtr(row, "description"); desc != nil {
			out[rowString(row, "dtc")] = *desc
		}
	}
	return out, nil
}

// FMITranslations 指定 FMI 的翻译
func (r *CodeRepository) FMITranslations(ctx context.Context, fmis []int64) (map[int64]models.FMICode, error) {
	out := make(map[int64]models.FMICode)
	if len(fmis) == 0 {
		return out, nil
	}
	b := newQueryBuilder()
	b.where("f.fmi = ANY(%s)", fmis)
	rows, err := r.db.Query(ctx, b.build("fmi_translations",
		"SELECT f.fmi, f.sae_j1939, f.transcription FROM fmi_codes f", ""))
	if err != nil {
		return nil, fmt.Errorf("list fmi translations: %w", err)
	}
	for _, row := range rows {
		code := models.FMICode{
			FMI:           rowInt64(row, "fmi"),
			SAE:           rowStringPtr(row, "sae_j1939"),
			Transcription: rowStringPtr(row, "transcription"),
		}
		out[code.FMI] = code
	}
	return out, nil
}

// PlansBySuffix 按底盘后 8 位查找订阅计划，同一后缀取第一行
func (r *CodeRepository) PlansBySuffix(ctx context.Context, suffixes []string) (map[string]models.PlanStatus, error) {
	out := make(map[string]models.PlanStatus)
	if len(suffixes) == 0 {
		return out, nil
	}
	b := newQueryBuilder()
	b.where("RIGHT(UPPER(TRIM(p.chassis)), 8) = ANY(%s)", suffixes)
	rows, err := r.db.Query(ctx, b.build("plans_by_suffix",
		"SELECT RIGHT(UPPER(TRIM(p.chassis)), 8) AS suffix, p.status_active, p.plan_type FROM plan_status p",
		" ORDER BY suffix"))
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	for _, row := range rows {
		suffix := rowString(row, "suffix")
		if _, ok := out[suffix]; ok {
			continue
		}
		out[suffix] = models.PlanStatus{
			ChassisLast8: suffix,
			PlanActive:   rowBoolPtr(row, "status_active"),
			PlanType:     rowStringPtr(row, "plan_type"),
		}
	}
	return out, nil
}
