package submission

import "github.com/sakura-oj/sakuraoj/internal/database/models"

// Batch is one structural group of test cases. Cases the judge left
// ungrouped are wrapped as singleton batches with ID 0, so the status
// view always presents one uniform batch list.
type Batch struct {
	ID     int                     `json:"batch_id"`
	Cases  []models.TestCaseResult `json:"cases"`
	Points float64                 `json:"points"`
	Total  float64                 `json:"total"`
}

// statusSeverity orders case statuses from worst to best; the worst
// status present in a batch wins.
var statusSeverity = []string{
	models.ResultIE,
	models.ResultCE,
	models.ResultAB,
	models.ResultTLE,
	models.ResultMLE,
	models.ResultRTE,
	models.ResultWA,
	models.ResultAC,
}

// GroupTestCases folds a flat, persisted-order case sequence into
// batches. Consecutive cases sharing a batch id form one batch; batch
// scoring is all-or-nothing, so a grouped batch reports the minimum case
// points against the maximum case total.
func GroupTestCases(cases []models.TestCaseResult) []Batch {
	var batches []Batch
	var current *Batch

	flush := func() {
		if current != nil {
			batches = append(batches, *current)
			current = nil
		}
	}

	for _, c := range cases {
		if c.Batch == nil {
			flush()
			batches = append(batches, Batch{
				ID:     0,
				Cases:  []models.TestCaseResult{c},
				Points: c.Points,
				Total:  c.Total,
			})
			continue
		}

		if current == nil || current.ID != *c.Batch {
			flush()
			current = &Batch{
				ID:     *c.Batch,
				Cases:  []models.TestCaseResult{c},
				Points: c.Points,
				Total:  c.Total,
			}
			continue
		}

		current.Cases = append(current.Cases, c)
		if c.Points < current.Points {
			current.Points = c.Points
		}
		if c.Total > current.Total {
			current.Total = c.Total
		}
	}
	flush()

	return batches
}

// CombineStatuses folds case statuses into one representative status.
// With no cases there is nothing wrong to report, so the result is AC.
func CombineStatuses(statuses []string) string {
	present := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		present[s] = true
	}
	for _, s := range statusSeverity {
		if present[s] {
			return s
		}
	}
	return models.ResultAC
}

// BatchStatus is CombineStatuses over a batch's cases.
func BatchStatus(b Batch) string {
	statuses := make([]string, 0, len(b.Cases))
	for _, c := range b.Cases {
		statuses = append(statuses, c.Status)
	}
	return CombineStatuses(statuses)
}
