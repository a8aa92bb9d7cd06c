package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/sakura-oj/sakuraoj/internal/cache"
	"github.com/sakura-oj/sakuraoj/internal/database/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProblemSet is a set of problem ids. It marshals as a JSON object so it
// survives the cache round trip intact.
type ProblemSet map[uint]bool

// AttemptedProblem records the best score a profile reached on a problem
// it has not completed.
type AttemptedProblem struct {
	Achieved float64 `json:"achieved_points"`
	Max      float64 `json:"max_points"`
}

// Index answers completion and attempt queries over the submission
// ledger, memoized in the injected cache. A problem is completed once any
// submission is a full-score AC; it is attempted while the best score
// stays below full. The two sets are disjoint by construction.
type Index struct {
	db            *gorm.DB
	cache         cache.Cache
	completionTTL time.Duration
	hotTTL        time.Duration
}

func NewIndex(db *gorm.DB, c cache.Cache, completionTTL, hotTTL time.Duration) *Index {
	return &Index{
		db:            db,
		cache:         c,
		completionTTL: completionTTL,
		hotTTL:        hotTTL,
	}
}

// UserCompleted returns the ids of problems the profile has fully solved.
func (ix *Index) UserCompleted(ctx context.Context, profileID uint) (ProblemSet, error) {
	key := fmt.Sprintf("user_complete:%d", profileID)
	var result ProblemSet
	if hit := ix.lookup(ctx, key, &result); hit {
		return result, nil
	}

	var ids []uint
	err := ix.db.WithContext(ctx).Model(&models.Submission{}).
		Distinct("submissions.problem_id").
		Joins("join problems on problems.id = submissions.problem_id").
		Where("submissions.profile_id = ? AND submissions.result = ?", profileID, models.ResultAC).
		Where("submissions.points = problems.points").
		Pluck("submissions.problem_id", &ids).Error
	if err != nil {
		return nil, err
	}

	result = make(ProblemSet, len(ids))
	for _, id := range ids {
		result[id] = true
	}
	ix.store(ctx, key, result, ix.completionTTL)
	return result, nil
}

// UserAttempted returns, per problem the profile has submitted to without
// completing, the best score reached and the problem's maximum.
func (ix *Index) UserAttempted(ctx context.Context, profileID uint) (map[uint]AttemptedProblem, error) {
	key := fmt.Sprintf("user_attempted:%d", profileID)
	var result map[uint]AttemptedProblem
	if hit := ix.lookup(ctx, key, &result); hit {
		return result, nil
	}

	var rows []struct {
		ProblemID uint
		Max       float64
		Achieved  float64
	}
	err := ix.db.WithContext(ctx).Model(&models.Submission{}).
		Select("submissions.problem_id, problems.points as max, MAX(submissions.points) as achieved").
		Joins("join problems on problems.id = submissions.problem_id").
		Where("submissions.profile_id = ?", profileID).
		Group("submissions.problem_id, problems.points").
		Having("MAX(submissions.points) < problems.points").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result = make(map[uint]AttemptedProblem, len(rows))
	for _, r := range rows {
		result[r.ProblemID] = AttemptedProblem{Achieved: r.Achieved, Max: r.Max}
	}
	ix.store(ctx, key, result, ix.completionTTL)
	return result, nil
}

// ContestCompleted is UserCompleted scoped to one contest participation,
// judged against the contest's per-problem maximums.
func (ix *Index) ContestCompleted(ctx context.Context, participationID uint) (ProblemSet, error) {
	key := fmt.Sprintf("contest_complete:%d", participationID)
	var result ProblemSet
	if hit := ix.lookup(ctx, key, &result); hit {
		return result, nil
	}

	var ids []uint
	err := ix.db.WithContext(ctx).Model(&models.ContestSubmission{}).
		Distinct("contest_submissions.problem_id").
		Joins("join submissions on submissions.id = contest_submissions.submission_id").
		Where("contest_submissions.participation_id = ? AND submissions.result = ?", participationID, models.ResultAC).
		Where("contest_submissions.points = contest_submissions.max_points").
		Pluck("contest_submissions.problem_id", &ids).Error
	if err != nil {
		return nil, err
	}

	result = make(ProblemSet, len(ids))
	for _, id := range ids {
		result[id] = true
	}
	ix.store(ctx, key, result, ix.completionTTL)
	return result, nil
}

// ContestAttempted is UserAttempted scoped to one contest participation.
func (ix *Index) ContestAttempted(ctx context.Context, participationID uint) (map[uint]AttemptedProblem, error) {
	key := fmt.Sprintf("contest_attempted:%d", participationID)
	var result map[uint]AttemptedProblem
	if hit := ix.lookup(ctx, key, &result); hit {
		return result, nil
	}

	var rows []struct {
		ProblemID uint
		Max       float64
		Achieved  float64
	}
	err := ix.db.WithContext(ctx).Model(&models.ContestSubmission{}).
		Select("contest_submissions.problem_id, contest_submissions.max_points as max, MAX(contest_submissions.points) as achieved").
		Where("contest_submissions.participation_id = ?", participationID).
		Group("contest_submissions.problem_id, contest_submissions.max_points").
		Having("MAX(contest_submissions.points) < contest_submissions.max_points").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result = make(map[uint]AttemptedProblem, len(rows))
	for _, r := range rows {
		result[r.ProblemID] = AttemptedProblem{Achieved: r.Achieved, Max: r.Max}
	}
	ix.store(ctx, key, result, ix.completionTTL)
	return result, nil
}

// lookup treats every cache failure as a miss: the ledger is the source
// of truth and recomputation is always correct.
func (ix *Index) lookup(ctx context.Context, key string, dest interface{}) bool {
	hit, err := ix.cache.Get(ctx, key, dest)
	if err != nil {
		zap.S().Warnf("cache get for %s failed: %v", key, err)
		return false
	}
	return hit
}

// store races with concurrent populators; last writer wins and all
// writers hold value-identical results.
func (ix *Index) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if err := ix.cache.Set(ctx, key, value, ttl); err != nil {
		zap.S().Warnf("cache set for %s failed: %v", key, err)
	}
}
