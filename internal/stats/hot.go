package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/sakura-oj/sakuraoj/internal/database/models"
)

// HotProblem is a public problem ranked by how many distinct users
// submitted to it recently.
type HotProblem struct {
	ID         uint    `json:"id"`
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Points     float64 `json:"points"`
	Submitters int64   `json:"submitters"`
}

// HotProblems lists the public problems with the most distinct submitters
// inside the trailing window. Results are cached briefly; trending data
// tolerates short staleness.
func (ix *Index) HotProblems(ctx context.Context, duration time.Duration, limit int) ([]HotProblem, error) {
	key := fmt.Sprintf("hot_problems:%d:%d", int64(duration.Seconds()), limit)
	var result []HotProblem
	if hit := ix.lookup(ctx, key, &result); hit {
		return result, nil
	}

	since := time.Now().Add(-duration)
	err := ix.db.WithContext(ctx).Model(&models.Problem{}).
		Select("problems.id, problems.code, problems.name, problems.points, COUNT(DISTINCT submissions.profile_id) as submitters").
		Joins("join submissions on submissions.problem_id = problems.id").
		Where("problems.is_public = ? AND submissions.date > ?", true, since).
		Group("problems.id, problems.code, problems.name, problems.points").
		Order("submitters desc").
		Limit(limit).
		Scan(&result).Error
	if err != nil {
		return nil, err
	}

	if result == nil {
		result = []HotProblem{}
	}
	ix.store(ctx, key, result, ix.hotTTL)
	return result, nil
}
