package judge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sakura-oj/sakuraoj/internal/config"
	"github.com/sakura-oj/sakuraoj/internal/database/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Payload is what the judge daemon receives for one submission.
type Payload struct {
	SubmissionID uint   `json:"submission_id"`
	Problem      string `json:"problem"`
	Language     string `json:"language"`
	Source       string `json:"source"`
	// Force bypasses any throttling on the judge side.
	Force bool `json:"force"`
}

type queued struct {
	submissionID uint
	force        bool
}

// Bridge delivers admitted submissions to the external judge daemon over
// HTTP. Judge is fire-and-forget: it only enqueues, and a failed delivery
// leaves the submission Queued for the next requeue sweep.
type Bridge struct {
	cfg    config.Judge
	db     *gorm.DB
	queue  chan queued
	client *http.Client
}

func NewBridge(cfg config.Judge, db *gorm.DB) *Bridge {
	return &Bridge{
		cfg:   cfg,
		db:    db,
		queue: make(chan queued, cfg.QueueSize),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (b *Bridge) Judge(sub *models.Submission, force bool) error {
	select {
	case b.queue <- queued{submissionID: sub.ID, force: force}:
		return nil
	default:
		return fmt.Errorf("judge queue is full")
	}
}

// Run drains the queue. Meant to be started once as a goroutine from main.
func (b *Bridge) Run() {
	for q := range b.queue {
		if err := b.deliver(q); err != nil {
			zap.S().Errorf("failed to deliver submission %d to judge: %v", q.submissionID, err)
		}
	}
}

func (b *Bridge) deliver(q queued) error {
	var sub models.Submission
	if err := b.db.Preload("Problem").Preload("Language").Preload("Source").
		Where("id = ?", q.submissionID).First(&sub).Error; err != nil {
		return err
	}
	if sub.Source == nil {
		return fmt.Errorf("submission %d has no source", sub.ID)
	}

	payload := Payload{
		SubmissionID: sub.ID,
		Problem:      sub.Problem.Code,
		Language:     sub.Language.Key,
		Source:       sub.Source.Source,
		Force:        q.force,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, b.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.cfg.Token)

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("judge daemon returned status %d", resp.StatusCode)
	}

	zap.S().Infof("submission %d delivered to judge", sub.ID)
	return nil
}

// RequeuePending re-enqueues submissions still Queued from the last run,
// oldest first. Also the recovery path for hand-offs that failed after
// commit.
func RequeuePending(db *gorm.DB, b *Bridge) error {
	var pending []models.Submission
	if err := db.Where("status = ?", models.StatusQueued).Order("date asc").Find(&pending).Error; err != nil {
		return err
	}

	if len(pending) == 0 {
		zap.S().Info("no pending submissions to requeue")
		return nil
	}

	zap.S().Infof("requeueing %d pending submissions", len(pending))
	for i := range pending {
		if err := b.Judge(&pending[i], true); err != nil {
			zap.S().Warnf("could not requeue submission %d: %v", pending[i].ID, err)
		}
	}
	return nil
}
