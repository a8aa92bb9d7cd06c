package submission

import (
	"context"
	"errors"

	"github.com/sakura-oj/sakuraoj/internal/database"
	"github.com/sakura-oj/sakuraoj/internal/database/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Judger is the external judging collaborator. Admit only hands
// submissions to it; results come back through its own channel.
type Judger interface {
	Judge(sub *models.Submission, force bool) error
}

type AdmitRequest struct {
	ProblemID  uint   `json:"problem" binding:"required"`
	LanguageID uint   `json:"language" binding:"required"`
	Source     string `json:"source" binding:"required"`
}

// Admitter is the gate every new submission passes before it exists.
type Admitter struct {
	db    *gorm.DB
	judge Judger
	limit int
}

func NewAdmitter(db *gorm.DB, judge Judger, limit int) *Admitter {
	return &Admitter{db: db, judge: judge, limit: limit}
}

// Admit runs the admission checks in a fixed order (first failure wins),
// persists the submission and its source atomically, and hands off to the
// judge. The hand-off happens after commit and is fire-and-forget: if it
// fails the submission stays Queued for the requeue sweep to pick up.
func (a *Admitter) Admit(ctx context.Context, user *models.User, profile *models.Profile, req AdmitRequest) (*models.Submission, error) {
	problem, err := database.GetProblemByID(a.db.WithContext(ctx), req.ProblemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProblemNotFound
		}
		return nil, err
	}

	if !user.CanSpamSubmissions {
		// Live count, never cached: a stale count would let users
		// exceed the limit.
		count, err := database.CountActiveSubmissions(a.db.WithContext(ctx), profile.ID)
		if err != nil {
			return nil, err
		}
		if count >= int64(a.limit) {
			return nil, ErrRateLimited
		}
	}

	allowed, err := database.IsLanguageAllowed(a.db.WithContext(ctx), problem.ID, req.LanguageID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrLanguageNotAllowed
	}

	if !user.IsSuperuser {
		banned, err := database.IsProfileBanned(a.db.WithContext(ctx), problem.ID, profile.ID)
		if err != nil {
			return nil, err
		}
		if banned {
			return nil, ErrBanned
		}
	}

	sub := models.Submission{
		ProfileID:  profile.ID,
		ProblemID:  problem.ID,
		LanguageID: req.LanguageID,
		Status:     models.StatusQueued,
		Points:     0,
	}

	// Submission and source commit together or not at all; the judge
	// hand-off stays outside this boundary.
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sub).Error; err != nil {
			return err
		}
		source := models.SubmissionSource{
			SubmissionID: sub.ID,
			Source:       req.Source,
		}
		if err := tx.Create(&source).Error; err != nil {
			return err
		}
		sub.Source = &source
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := a.judge.Judge(&sub, true); err != nil {
		zap.S().Errorf("judge hand-off for submission %d failed, leaving it queued: %v", sub.ID, err)
	}

	return &sub, nil
}
