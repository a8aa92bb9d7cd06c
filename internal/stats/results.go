package stats

import (
	"github.com/sakura-oj/sakuraoj/internal/database/models"
	"gorm.io/gorm"
)

// ResultRow is one line of the fixed result breakdown.
type ResultRow struct {
	Label string `json:"label"`
	Code  string `json:"code"`
	Count int64  `json:"count"`
}

// BuildResultTable groups the submissions selected by query by result
// code and always emits the same 7 rows: the five headline codes, an
// Other bucket for the rest, and the total. Codes with no submissions
// report zero rather than disappearing.
func BuildResultTable(query *gorm.DB) ([]ResultRow, error) {
	var rows []struct {
		Result *string
		Count  int64
	}
	err := query.Model(&models.Submission{}).
		Select("result, COUNT(*) as count").
		Group("result").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	var total int64
	for _, r := range rows {
		total += r.Count
		if r.Result != nil {
			counts[*r.Result] += r.Count
		}
	}

	other := counts[models.ResultRTE] + counts[models.ResultIR] +
		counts[models.ResultOLE] + counts[models.ResultAB] + counts[models.ResultIE]

	return []ResultRow{
		{Label: "Accepted", Code: models.ResultAC, Count: counts[models.ResultAC]},
		{Label: "Wrong Answer", Code: models.ResultWA, Count: counts[models.ResultWA]},
		{Label: "Compile Error", Code: models.ResultCE, Count: counts[models.ResultCE]},
		{Label: "Time Limit Exceeded", Code: models.ResultTLE, Count: counts[models.ResultTLE]},
		{Label: "Memory Limit Exceeded", Code: models.ResultMLE, Count: counts[models.ResultMLE]},
		{Label: "Other", Code: "OTH", Count: other},
		{Label: "Total", Code: "TOT", Count: total},
	}, nil
}
