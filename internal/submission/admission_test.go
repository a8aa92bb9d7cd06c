package submission

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sakura-oj/sakuraoj/internal/database"
	"github.com/sakura-oj/sakuraoj/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeJudger struct {
	calls  []uint
	forced []bool
	err    error
}

func (f *fakeJudger) Judge(sub *models.Submission, force bool) error {
	f.calls = append(f.calls, sub.ID)
	f.forced = append(f.forced, force)
	return f.err
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type fixture struct {
	user    *models.User
	profile *models.Profile
	problem *models.Problem
	lang    *models.Language
	other   *models.Language
}

func seedFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	lang := models.Language{Key: "go", Name: "Go"}
	other := models.Language{Key: "bf", Name: "Brainfuck"}
	if err := db.Create(&lang).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&other).Error; err != nil {
		t.Fatal(err)
	}

	problem := models.Problem{
		Code:             "aplusb",
		Name:             "A Plus B",
		Points:           100,
		IsPublic:         true,
		AllowedLanguages: []models.Language{lang},
	}
	if err := db.Create(&problem).Error; err != nil {
		t.Fatal(err)
	}

	user := models.User{Username: "alice", Email: "alice@example.com"}
	profile, err := database.CreateUserWithProfile(db, &user)
	if err != nil {
		t.Fatal(err)
	}

	return fixture{user: &user, profile: profile, problem: &problem, lang: &lang, other: &other}
}

func TestAdmit_Success(t *testing.T) {
	db := newTestDB(t)
	fx := seedFixture(t, db)
	judger := &fakeJudger{}
	admitter := NewAdmitter(db, judger, 3)

	sub, err := admitter.Admit(context.Background(), fx.user, fx.profile, AdmitRequest{
		ProblemID:  fx.problem.ID,
		LanguageID: fx.lang.ID,
		Source:     "package main",
	})
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	if sub.Status != models.StatusQueued {
		t.Errorf("status = %s, want QU", sub.Status)
	}
	if sub.Points != 0 {
		t.Errorf("points = %v, want 0", sub.Points)
	}

	var source models.SubmissionSource
	if err := db.Where("submission_id = ?", sub.ID).First(&source).Error; err != nil {
		t.Fatalf("source row missing: %v", err)
	}
	if source.Source != "package main" {
		t.Errorf("source text = %q", source.Source)
	}

	if len(judger.calls) != 1 || judger.calls[0] != sub.ID {
		t.Errorf("judge hand-off calls = %v", judger.calls)
	}
	if !judger.forced[0] {
		t.Error("judge hand-off should set the force flag")
	}
}

func TestAdmit_ProblemNotFound(t *testing.T) {
	db := newTestDB(t)
	fx := seedFixture(t, db)
	admitter := NewAdmitter(db, &fakeJudger{}, 3)

	_, err := admitter.Admit(context.Background(), fx.user, fx.profile, AdmitRequest{
		ProblemID:  9999,
		LanguageID: fx.lang.ID,
		Source:     "x",
	})
	if err != ErrProblemNotFound {
		t.Fatalf("err = %v, want ErrProblemNotFound", err)
	}
}

func TestAdmit_RateLimit(t *testing.T) {
	db := newTestDB(t)
	fx := seedFixture(t, db)
	admitter := NewAdmitter(db, &fakeJudger{}, 3)

	req := AdmitRequest{ProblemID: fx.problem.ID, LanguageID: fx.lang.ID, Source: "x"}
	var last *models.Submission
	for i := 0; i < 3; i++ {
		sub, err := admitter.Admit(context.Background(), fx.user, fx.profile, req)
		if err != nil {
			t.Fatalf("submission %d rejected: %v", i+1, err)
		}
		last = sub
	}

	if _, err := admitter.Admit(context.Background(), fx.user, fx.profile, req); err != ErrRateLimited {
		t.Fatalf("4th submission err = %v, want ErrRateLimited", err)
	}

	// One in-flight submission reaching a terminal status frees a slot.
	if err := db.Model(&models.Submission{}).Where("id = ?", last.ID).
		Update("status", models.StatusDone).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := admitter.Admit(context.Background(), fx.user, fx.profile, req); err != nil {
		t.Fatalf("submission after terminal transition rejected: %v", err)
	}
}

func TestAdmit_RejudgedSubmissionsDoNotCount(t *testing.T) {
	db := newTestDB(t)
	fx := seedFixture(t, db)
	admitter := NewAdmitter(db, &fakeJudger{}, 1)

	req := AdmitRequest{ProblemID: fx.problem.ID, LanguageID: fx.lang.ID, Source: "x"}
	sub, err := admitter.Admit(context.Background(), fx.user, fx.profile, req)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := admitter.Admit(context.Background(), fx.user, fx.profile, req); err != ErrRateLimited {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}

	now := time.Now()
	if err := db.Model(&models.Submission{}).Where("id = ?", sub.ID).
		Update("rejudged_date", &now).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := admitter.Admit(context.Background(), fx.user, fx.profile, req); err != nil {
		t.Fatalf("rejudged submission still counted: %v", err)
	}
}

func TestAdmit_SpamBypassSkipsRateLimit(t *testing.T) {
	db := newTestDB(t)
	fx := seedFixture(t, db)
	fx.user.CanSpamSubmissions = true
	admitter := NewAdmitter(db, &fakeJudger{}, 1)

	req := AdmitRequest{ProblemID: fx.problem.ID, LanguageID: fx.lang.ID, Source: "x"}
	for i := 0; i < 3; i++ {
		if _, err := admitter.Admit(context.Background(), fx.user, fx.profile, req); err != nil {
			t.Fatalf("bypass submission %d rejected: %v", i+1, err)
		}
	}
}

func TestAdmit_LanguageNotAllowed(t *testing.T) {
	db := newTestDB(t)
	fx := seedFixture(t, db)
	admitter := NewAdmitter(db, &fakeJudger{}, 3)

	_, err := admitter.Admit(context.Background(), fx.user, fx.profile, AdmitRequest{
		ProblemID:  fx.problem.ID,
		LanguageID: fx.other.ID,
		Source:     "x",
	})
	if err != ErrLanguageNotAllowed {
		t.Fatalf("err = %v, want ErrLanguageNotAllowed", err)
	}
}

func TestAdmit_BannedUser(t *testing.T) {
	db := newTestDB(t)
	fx := seedFixture(t, db)
	if err := db.Model(fx.problem).Association("BannedUsers").Append(fx.profile); err != nil {
		t.Fatal(err)
	}
	admitter := NewAdmitter(db, &fakeJudger{}, 3)

	req := AdmitRequest{ProblemID: fx.problem.ID, LanguageID: fx.lang.ID, Source: "x"}
	if _, err := admitter.Admit(context.Background(), fx.user, fx.profile, req); err != ErrBanned {
		t.Fatalf("err = %v, want ErrBanned", err)
	}

	// Superusers submit past the ban.
	fx.user.IsSuperuser = true
	if _, err := admitter.Admit(context.Background(), fx.user, fx.profile, req); err != nil {
		t.Fatalf("superuser rejected: %v", err)
	}
}

func TestAdmit_JudgeHandoffFailureLeavesSubmission(t *testing.T) {
	db := newTestDB(t)
	fx := seedFixture(t, db)
	judger := &fakeJudger{err: fmt.Errorf("queue full")}
	admitter := NewAdmitter(db, judger, 3)

	sub, err := admitter.Admit(context.Background(), fx.user, fx.profile, AdmitRequest{
		ProblemID:  fx.problem.ID,
		LanguageID: fx.lang.ID,
		Source:     "x",
	})
	if err != nil {
		t.Fatalf("hand-off failure must not fail admission: %v", err)
	}

	var stored models.Submission
	if err := db.First(&stored, sub.ID).Error; err != nil {
		t.Fatalf("submission not persisted: %v", err)
	}
	if stored.Status != models.StatusQueued {
		t.Errorf("status = %s, want QU so the requeue sweep can recover it", stored.Status)
	}
}
