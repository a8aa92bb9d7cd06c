package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/sakura-oj/sakuraoj/internal/database"
	"github.com/sakura-oj/sakuraoj/internal/database/models"
	"github.com/sakura-oj/sakuraoj/internal/pubsub"
	"github.com/sakura-oj/sakuraoj/internal/stats"
	"github.com/sakura-oj/sakuraoj/internal/submission"
	"github.com/sakura-oj/sakuraoj/internal/util"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (h *Handler) submit(c *gin.Context) {
	user, profile, ok := h.currentProfile(c)
	if !ok {
		return
	}

	var req submission.AdmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	sub, err := h.admitter.Admit(c.Request.Context(), user, profile, req)
	if err != nil {
		switch {
		case errors.Is(err, submission.ErrProblemNotFound):
			util.Error(c, http.StatusNotFound, err)
		case errors.Is(err, submission.ErrRateLimited):
			util.Error(c, http.StatusTooManyRequests, err)
		case errors.Is(err, submission.ErrLanguageNotAllowed):
			util.Error(c, http.StatusForbidden, err)
		case errors.Is(err, submission.ErrBanned):
			// 400 rather than 403, matching what clients already expect.
			util.Error(c, http.StatusBadRequest, err)
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}

	util.Created(c, gin.H{
		"id":       sub.ID,
		"problem":  sub.ProblemID,
		"language": sub.LanguageID,
		"status":   sub.Status,
		"date":     sub.Date,
	}, "Submission received")
}

func (h *Handler) submissionStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "invalid submission id")
		return
	}

	sub, err := database.GetSubmission(h.db, uint(id))
	if err != nil {
		util.Error(c, http.StatusNotFound, "submission not found")
		return
	}

	cases, err := database.GetTestCaseResults(h.db, sub.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	batches := submission.GroupTestCases(cases)
	caseTree := make([]gin.H, 0, len(batches))
	for _, b := range batches {
		batchCases := make([]gin.H, 0, len(b.Cases))
		for _, tc := range b.Cases {
			batchCases = append(batchCases, gin.H{
				"type":    "case",
				"case_id": tc.Case,
				"status":  tc.Status,
				"time":    tc.Time,
				"memory":  tc.Memory,
				"points":  tc.Points,
				"total":   tc.Total,
			})
		}
		caseTree = append(caseTree, gin.H{
			"type":     "batch",
			"batch_id": b.ID,
			"status":   submission.BatchStatus(b),
			"cases":    batchCases,
			"points":   b.Points,
			"total":    b.Total,
		})
	}

	util.Success(c, gin.H{
		"id":          sub.ID,
		"problem":     sub.Problem.Code,
		"user":        sub.Profile.User.Username,
		"date":        sub.Date.Format(time.RFC3339),
		"time":        sub.Time,
		"memory":      sub.Memory,
		"points":      sub.Points,
		"language":    sub.Language.Key,
		"status":      sub.Status,
		"result":      sub.Result,
		"case_points": sub.CasePoints,
		"case_total":  sub.CaseTotal,
		"cases":       caseTree,
		"error":       sub.Error,
	}, "ok")
}

// resultTable returns the fixed 7-row result breakdown, optionally
// filtered by problem code and/or username.
func (h *Handler) resultTable(c *gin.Context) {
	query := h.db.Session(&gorm.Session{})

	if code := c.Query("problem"); code != "" {
		problem, err := database.GetProblemByCode(h.db, code)
		if err != nil {
			util.Error(c, http.StatusNotFound, "problem not found")
			return
		}
		query = query.Where("problem_id = ?", problem.ID)
	}
	if username := c.Query("user"); username != "" {
		user, err := database.GetUserByUsername(h.db, username)
		if err != nil {
			util.Error(c, http.StatusNotFound, "user not found")
			return
		}
		profile, err := database.GetProfileByUserID(h.db, user.ID)
		if err != nil {
			util.Error(c, http.StatusNotFound, "profile not found")
			return
		}
		query = query.Where("profile_id = ?", profile.ID)
	}

	table, err := stats.BuildResultTable(query)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, table, "ok")
}

// judgeEvent is the judge daemon's callback payload. One request carries
// one progress event for one submission.
type judgeEvent struct {
	SubmissionID uint   `json:"submission_id" binding:"required"`
	Event        string `json:"event" binding:"required"`

	// test-case events
	Case *models.TestCaseResult `json:"case"`

	// terminal events
	Result     string  `json:"result"`
	Points     float64 `json:"points"`
	Time       float64 `json:"time"`
	Memory     float64 `json:"memory"`
	CasePoints float64 `json:"case_points"`
	CaseTotal  float64 `json:"case_total"`
	Error      string  `json:"error"`
}

func (h *Handler) judgeCallback(c *gin.Context) {
	var ev judgeEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	sub, err := database.GetSubmission(h.db, ev.SubmissionID)
	if err != nil {
		util.Error(c, http.StatusNotFound, "submission not found")
		return
	}

	topic := strconv.FormatUint(uint64(sub.ID), 10)

	switch ev.Event {
	case "grading-begin":
		err = h.db.Model(&models.Submission{}).Where("id = ?", sub.ID).
			Update("status", models.StatusGrading).Error
		if err == nil {
			h.broker.Publish(topic, pubsub.Event{Stream: "grading-begin", Data: nil})
		}

	case "test-case":
		if ev.Case == nil {
			util.Error(c, http.StatusBadRequest, "test-case event without case payload")
			return
		}
		ev.Case.ID = 0
		ev.Case.SubmissionID = sub.ID
		err = h.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(ev.Case).Error; err != nil {
				return err
			}
			return tx.Model(&models.Submission{}).Where("id = ?", sub.ID).
				Updates(map[string]interface{}{
					"case_points": gorm.Expr("case_points + ?", ev.Case.Points),
					"case_total":  gorm.Expr("case_total + ?", ev.Case.Total),
				}).Error
		})
		if err == nil {
			h.broker.Publish(topic, pubsub.Event{Stream: "test-case", Data: ev.Case})
		}

	case "grading-end", "compile-error", "internal-error", "aborted":
		status := models.StatusDone
		result := ev.Result
		switch ev.Event {
		case "compile-error":
			status, result = models.StatusCE, models.ResultCE
		case "internal-error":
			status, result = models.StatusIE, models.ResultIE
		case "aborted":
			status, result = models.StatusAborted, models.ResultAB
		}
		err = h.db.Model(&models.Submission{}).Where("id = ?", sub.ID).
			Updates(map[string]interface{}{
				"status":      status,
				"result":      result,
				"points":      ev.Points,
				"time":        ev.Time,
				"memory":      ev.Memory,
				"case_points": ev.CasePoints,
				"case_total":  ev.CaseTotal,
				"error":       ev.Error,
			}).Error
		if err == nil {
			h.broker.Publish(topic, pubsub.Event{Stream: ev.Event, Data: gin.H{
				"status": status,
				"result": result,
				"points": ev.Points,
			}})
			h.broker.CloseTopic(topic)
		}

	default:
		util.Error(c, http.StatusBadRequest, "unknown judge event: "+ev.Event)
		return
	}

	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, nil, "ok")
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// terminalStream maps a finished submission's status to the stream name a
// live watcher would have seen as its final event.
func terminalStream(status string) string {
	switch status {
	case models.StatusCE:
		return "compile-error"
	case models.StatusIE:
		return "internal-error"
	case models.StatusAborted:
		return "aborted"
	default:
		return "grading-end"
	}
}

func writeEvent(conn *websocket.Conn, ev pubsub.Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// watchSubmission streams judge progress events for a submission over a
// websocket. For a finished submission the stored results are replayed
// and the stream ends; for one still in flight, events are forwarded
// until the topic closes or the client hangs up.
func (h *Handler) watchSubmission(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "invalid submission id")
		return
	}
	sub, err := database.GetSubmission(h.db, uint(id))
	if err != nil {
		util.Error(c, http.StatusNotFound, "submission not found")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.S().Errorf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if slices.Contains(models.TerminalStatuses, sub.Status) {
		// The topic is gone once judging finishes; replay from storage
		// instead of subscribing to a stream that will never deliver.
		cases, err := database.GetTestCaseResults(h.db, sub.ID)
		if err != nil {
			zap.S().Errorf("failed to load cases for submission %d: %v", sub.ID, err)
			return
		}
		for i := range cases {
			if err := writeEvent(conn, pubsub.Event{Stream: "test-case", Data: &cases[i]}); err != nil {
				return
			}
		}
		writeEvent(conn, pubsub.Event{Stream: terminalStream(sub.Status), Data: gin.H{
			"status": sub.Status,
			"result": sub.Result,
			"points": sub.Points,
		}})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return
	}

	topic := c.Param("id")
	events, unsubscribe := h.broker.Subscribe(topic)
	defer unsubscribe()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range events {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()

	// Read pump: a client disconnect errors out here and ends the
	// handler instead of leaking it.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	unsubscribe()
	<-writerDone
}
