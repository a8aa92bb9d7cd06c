package models

import (
	"time"

	"gorm.io/gorm"
)

// Submission status codes. A submission leaves the admission gate as
// StatusQueued and is driven through the rest of the state machine by the
// judge collaborator.
const (
	StatusQueued     = "QU"
	StatusProcessing = "P"
	StatusGrading    = "G"
	StatusDone       = "D"
	StatusIE         = "IE"
	StatusCE         = "CE"
	StatusAborted    = "AB"
)

// Result codes written by the judge collaborator.
const (
	ResultAC  = "AC"
	ResultWA  = "WA"
	ResultTLE = "TLE"
	ResultMLE = "MLE"
	ResultOLE = "OLE"
	ResultIR  = "IR"
	ResultRTE = "RTE"
	ResultCE  = "CE"
	ResultIE  = "IE"
	ResultAB  = "AB"
)

// TerminalStatuses are the statuses that no longer count against the
// submission rate limit.
var TerminalStatuses = []string{StatusDone, StatusIE, StatusCE, StatusAborted}

type User struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Username     string `gorm:"uniqueIndex" json:"username"`
	Email        string `gorm:"uniqueIndex" json:"email"`
	PasswordHash string `json:"-"`
	IsSuperuser  bool   `json:"-"`
	// CanSpamSubmissions bypasses the in-flight submission limit.
	CanSpamSubmissions bool `json:"-"`
}

// Profile is the canonical submitter identity: submissions, participations
// and reset tokens all hang off Profile.ID, never User.ID.
type Profile struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID uint `gorm:"uniqueIndex" json:"-"`
	User   User `json:"-"`

	Points            float64 `json:"points"`
	PerformancePoints float64 `json:"performance_points"`
	ProblemCount      int     `json:"problem_count"`
	DisplayRank       string  `json:"rank"`

	Organizations []Organization `gorm:"many2many:profile_organizations" json:"-"`
}

type Organization struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex" json:"name"`
}

type Language struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Key  string `gorm:"uniqueIndex" json:"key"`
	Name string `json:"name"`
}

type Problem struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Code        string  `gorm:"uniqueIndex" json:"code"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Points      float64 `json:"points"` // max score
	IsPublic    bool    `gorm:"index" json:"is_public"`

	AllowedLanguages []Language `gorm:"many2many:problem_languages" json:"allowed_languages"`
	BannedUsers      []Profile  `gorm:"many2many:problem_banned_users" json:"-"`
}

type Contest struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time

	Key     string    `gorm:"uniqueIndex" json:"key"`
	Name    string    `json:"name"`
	EndTime time.Time `json:"end_time"`

	Problems []Problem `gorm:"many2many:contest_problems" json:"problems"`
}

// ParticipationLive marks the single counted participation per
// (profile, contest); positive values are virtual (practice) runs.
const ParticipationLive = 0

type ContestParticipation struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time

	ProfileID uint `gorm:"uniqueIndex:idx_live_participation" json:"profile_id"`
	ContestID uint `gorm:"uniqueIndex:idx_live_participation" json:"contest_id"`
	Contest   Contest
	Virtual   int `gorm:"uniqueIndex:idx_live_participation" json:"virtual"`

	Score   float64 `json:"score"`
	CumTime int64   `json:"cumulative_time"`
}

type Submission struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	Date time.Time `gorm:"autoCreateTime" json:"date"`

	ProfileID  uint `gorm:"index" json:"user"`
	Profile    Profile
	ProblemID  uint `gorm:"index" json:"problem"`
	Problem    Problem
	LanguageID uint `json:"language"`
	Language   Language

	Time   float64 `json:"time"`
	Memory float64 `json:"memory"`
	Points float64 `json:"points"`
	// CasePoints/CaseTotal are maintained by the judge collaborator as it
	// reports cases.
	CasePoints float64 `json:"case_points"`
	CaseTotal  float64 `json:"case_total"`

	Status string  `gorm:"index;default:QU" json:"status"`
	Result *string `gorm:"index" json:"result"`
	Error  string  `json:"error"`

	// RejudgedDate non-nil means the submission is superseded by a rejudge
	// and no longer counts against the rate limit.
	RejudgedDate *time.Time `json:"rejudged_date"`

	Source    *SubmissionSource `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	TestCases []TestCaseResult  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// SubmissionSource keeps the large payload out of the hot submission row.
// Created in the same transaction as its Submission, never without it.
type SubmissionSource struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	SubmissionID uint   `gorm:"uniqueIndex" json:"submission_id"`
	Source       string `json:"source"`
}

// ContestSubmission links a submission into a contest participation with
// contest-scoped scoring.
type ContestSubmission struct {
	ID              uint `gorm:"primaryKey" json:"id"`
	SubmissionID    uint `gorm:"uniqueIndex" json:"submission_id"`
	Submission      Submission
	ParticipationID uint `gorm:"index" json:"participation_id"`
	ProblemID       uint `json:"problem_id"`

	Points    float64 `json:"points"`
	MaxPoints float64 `json:"max_points"`
}

// TestCaseResult rows are append-only, written by the judge collaborator
// and read back in insertion order for batch grouping.
type TestCaseResult struct {
	ID           uint `gorm:"primaryKey" json:"-"`
	SubmissionID uint `gorm:"index" json:"-"`

	Case   int     `json:"case_id"`
	Batch  *int    `json:"batch"`
	Status string  `json:"status"`
	Time   float64 `json:"time"`
	Memory float64 `json:"memory"`
	Points float64 `json:"points"`
	Total  float64 `json:"total"`

	Feedback         string `json:"feedback,omitempty"`
	ExtendedFeedback string `json:"extended_feedback,omitempty"`
	Output           string `json:"output,omitempty"`
}

// ResetToken is valid iff !IsUsed && Expiry > now, and is consumed at most
// once.
type ResetToken struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Token     string    `gorm:"uniqueIndex" json:"token"`
	ProfileID uint      `gorm:"index" json:"-"`
	Profile   Profile   `json:"-"`
	Expiry    time.Time `json:"expiry"`
	CreatedAt time.Time `json:"created_at"`
	IsUsed    bool      `json:"is_used"`
}

type Rating struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	ProfileID uint `gorm:"index" json:"-"`
	ContestID uint `json:"-"`
	Contest   Contest

	Rating      int     `json:"rating"`
	Mean        float64 `json:"raw_rating"`
	Performance float64 `json:"performance"`
}
