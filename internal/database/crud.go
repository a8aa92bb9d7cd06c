package database

import (
	"time"

	"github.com/sakura-oj/sakuraoj/internal/database/models"
	"gorm.io/gorm"
)

// User & Profile

// CreateUserWithProfile creates the User and its Profile in one
// transaction so a retry after partial failure can never leave a user
// without a profile, or with two of them.
func CreateUserWithProfile(db *gorm.DB, user *models.User) (*models.Profile, error) {
	var profile models.Profile
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		profile = models.Profile{UserID: user.ID}
		return tx.Create(&profile).Error
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func GetUserByID(db *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserByUsername(db *gorm.DB, username string) (*models.User, error) {
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserByEmail(db *gorm.DB, email string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetProfileByUserID(db *gorm.DB, userID uint) (*models.Profile, error) {
	var profile models.Profile
	if err := db.Preload("User").Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func GetProfileByID(db *gorm.DB, id uint) (*models.Profile, error) {
	var profile models.Profile
	if err := db.Preload("User").Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// Problems & Languages

func GetProblemByID(db *gorm.DB, id uint) (*models.Problem, error) {
	var problem models.Problem
	if err := db.Preload("AllowedLanguages").Where("id = ?", id).First(&problem).Error; err != nil {
		return nil, err
	}
	return &problem, nil
}

func GetProblemByCode(db *gorm.DB, code string) (*models.Problem, error) {
	var problem models.Problem
	if err := db.Preload("AllowedLanguages").Where("code = ?", code).First(&problem).Error; err != nil {
		return nil, err
	}
	return &problem, nil
}

func GetPublicProblems(db *gorm.DB) ([]models.Problem, error) {
	var problems []models.Problem
	if err := db.Preload("AllowedLanguages").Where("is_public = ?", true).Order("code asc").Find(&problems).Error; err != nil {
		return nil, err
	}
	return problems, nil
}

// IsLanguageAllowed reports whether the language appears in the problem's
// allowed set.
func IsLanguageAllowed(db *gorm.DB, problemID, languageID uint) (bool, error) {
	var count int64
	err := db.Table("problem_languages").
		Where("problem_id = ? AND language_id = ?", problemID, languageID).
		Count(&count).Error
	return count > 0, err
}

// IsProfileBanned reports whether the profile is banned from submitting to
// the problem.
func IsProfileBanned(db *gorm.DB, problemID, profileID uint) (bool, error) {
	var count int64
	err := db.Table("problem_banned_users").
		Where("problem_id = ? AND profile_id = ?", problemID, profileID).
		Count(&count).Error
	return count > 0, err
}

func GetAllLanguages(db *gorm.DB) ([]models.Language, error) {
	var languages []models.Language
	if err := db.Order("key asc").Find(&languages).Error; err != nil {
		return nil, err
	}
	return languages, nil
}

// Contests

func GetAllContests(db *gorm.DB) ([]models.Contest, error) {
	var contests []models.Contest
	if err := db.Preload("Problems").Order("key asc").Find(&contests).Error; err != nil {
		return nil, err
	}
	return contests, nil
}

func GetContestByKey(db *gorm.DB, key string) (*models.Contest, error) {
	var contest models.Contest
	if err := db.Preload("Problems").Where("key = ?", key).First(&contest).Error; err != nil {
		return nil, err
	}
	return &contest, nil
}

// Submissions

func GetSubmission(db *gorm.DB, id uint) (*models.Submission, error) {
	var sub models.Submission
	if err := db.Preload("Profile.User").Preload("Problem").Preload("Language").
		Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// CountActiveSubmissions counts the profile's in-flight submissions: not
// superseded by a rejudge and not in a terminal status. Always a live
// query; caching here would let users slip past the rate limit.
func CountActiveSubmissions(db *gorm.DB, profileID uint) (int64, error) {
	var count int64
	err := db.Model(&models.Submission{}).
		Where("profile_id = ? AND rejudged_date IS NULL", profileID).
		Where("status NOT IN ?", models.TerminalStatuses).
		Count(&count).Error
	return count, err
}

// GetTestCaseResults returns the submission's case rows in persisted order.
// Batch grouping depends on this ordering.
func GetTestCaseResults(db *gorm.DB, submissionID uint) ([]models.TestCaseResult, error) {
	var cases []models.TestCaseResult
	if err := db.Where("submission_id = ?", submissionID).Order("id asc").Find(&cases).Error; err != nil {
		return nil, err
	}
	return cases, nil
}

// SolvedProblemCodes lists distinct codes of public problems the profile
// has fully solved.
func SolvedProblemCodes(db *gorm.DB, profileID uint) ([]string, error) {
	var codes []string
	err := db.Model(&models.Submission{}).
		Distinct("problems.code").
		Joins("join problems on problems.id = submissions.problem_id").
		Where("submissions.profile_id = ? AND submissions.result = ? AND problems.is_public = ?",
			profileID, models.ResultAC, true).
		Order("problems.code asc").
		Pluck("problems.code", &codes).Error
	return codes, err
}

// Ratings & participations

func GetLatestRating(db *gorm.DB, profileID uint) (*models.Rating, error) {
	var rating models.Rating
	err := db.Joins("Contest").
		Where("ratings.profile_id = ?", profileID).
		Order("Contest.end_time desc").
		First(&rating).Error
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

// ContestHistoryEntry is one finished live participation with the rating
// earned in it, if any.
type ContestHistoryEntry struct {
	Key            string   `json:"key"`
	Score          float64  `json:"score"`
	CumulativeTime int64    `json:"cumulative_time"`
	Rating         *int     `json:"rating"`
	RawRating      *float64 `json:"raw_rating"`
	Performance    *float64 `json:"performance"`
}

func GetContestHistory(db *gorm.DB, profileID uint, now time.Time) ([]ContestHistoryEntry, error) {
	var rows []struct {
		Key         string
		Score       float64
		CumTime     int64
		Rating      *int
		Mean        *float64
		Performance *float64
	}
	err := db.Model(&models.ContestParticipation{}).
		Select("contests.key, contest_participations.score, contest_participations.cum_time, ratings.rating, ratings.mean, ratings.performance").
		Joins("join contests on contests.id = contest_participations.contest_id").
		Joins("left join ratings on ratings.contest_id = contest_participations.contest_id and ratings.profile_id = contest_participations.profile_id").
		Where("contest_participations.profile_id = ? AND contest_participations.virtual = ?", profileID, models.ParticipationLive).
		Where("contests.end_time < ?", now).
		Order("contests.end_time asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	history := make([]ContestHistoryEntry, 0, len(rows))
	for _, r := range rows {
		history = append(history, ContestHistoryEntry{
			Key:            r.Key,
			Score:          r.Score,
			CumulativeTime: r.CumTime,
			Rating:         r.Rating,
			RawRating:      r.Mean,
			Performance:    r.Performance,
		})
	}
	return history, nil
}

func GetOrganizationIDs(db *gorm.DB, profileID uint) ([]uint, error) {
	var ids []uint
	err := db.Table("profile_organizations").
		Where("profile_id = ?", profileID).
		Order("organization_id asc").
		Pluck("organization_id", &ids).Error
	return ids, err
}

// Reset tokens

func CreateResetToken(db *gorm.DB, token *models.ResetToken) error {
	return db.Create(token).Error
}

func GetResetToken(db *gorm.DB, token string) (*models.ResetToken, error) {
	var rt models.ResetToken
	if err := db.Preload("Profile.User").Where("token = ?", token).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// ConsumeResetToken marks the token used and stores the new password hash
// in the same transaction. The guarded update on is_used makes double
// consumption lose the race instead of resetting twice.
func ConsumeResetToken(db *gorm.DB, rt *models.ResetToken, passwordHash string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ResetToken{}).
			Where("id = ? AND is_used = ?", rt.ID, false).
			Update("is_used", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.User{}).
			Where("id = ?", rt.Profile.UserID).
			Update("password_hash", passwordHash).Error
	})
}
