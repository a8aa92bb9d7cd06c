package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sakura-oj/sakuraoj/internal/database/models"
	"github.com/sakura-oj/sakuraoj/internal/pubsub"
)

func dialWatch(t *testing.T, server *httptest.Server, token string, submissionID uint) *websocket.Conn {
	t.Helper()

	url := strings.Replace(server.URL, "http://", "ws://", 1) +
		fmt.Sprintf("/ws/submissions/%d/", submissionID)
	header := http.Header{"Authorization": {"Bearer " + token}}

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) pubsub.Event {
	t.Helper()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev pubsub.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("bad event payload: %s", msg)
	}
	return ev
}

// A watcher connecting after judging finished gets the stored results and
// a normal close, not a stream that never delivers.
func TestWatchSubmission_FinishedSubmissionReplaysAndCloses(t *testing.T) {
	s := newTestServer(t)
	_, profile, token := s.registerUser(t, "alice", "alice@example.com")
	problem, lang := s.seedProblem(t, "aplusb", 100)

	result := models.ResultAC
	sub := models.Submission{
		ProfileID:  profile.ID,
		ProblemID:  problem.ID,
		LanguageID: lang.ID,
		Status:     models.StatusDone,
		Result:     &result,
		Points:     100,
	}
	if err := s.db.Create(&sub).Error; err != nil {
		t.Fatal(err)
	}
	tc := models.TestCaseResult{SubmissionID: sub.ID, Case: 1, Status: "AC", Points: 100, Total: 100}
	if err := s.db.Create(&tc).Error; err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(s.router)
	defer server.Close()

	conn := dialWatch(t, server, token, sub.ID)
	defer conn.Close()

	if ev := readEvent(t, conn); ev.Stream != "test-case" {
		t.Errorf("first event stream = %s, want test-case", ev.Stream)
	}
	if ev := readEvent(t, conn); ev.Stream != "grading-end" {
		t.Errorf("final event stream = %s, want grading-end", ev.Stream)
	}

	// The stream must end, not hang.
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected a normal close, got %v", err)
	}
}

func TestWatchSubmission_LiveSubmissionStreamsUntilTerminal(t *testing.T) {
	s := newTestServer(t)
	_, profile, token := s.registerUser(t, "alice", "alice@example.com")
	problem, lang := s.seedProblem(t, "aplusb", 100)

	sub := models.Submission{
		ProfileID:  profile.ID,
		ProblemID:  problem.ID,
		LanguageID: lang.ID,
		Status:     models.StatusQueued,
	}
	if err := s.db.Create(&sub).Error; err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(s.router)
	defer server.Close()

	judgeToken := s.cfg.Judge.Token
	w, _ := s.do(t, http.MethodPost, "/webhook/judge/", judgeToken, map[string]interface{}{
		"submission_id": sub.ID, "event": "grading-begin",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("grading-begin returned %d", w.Code)
	}

	conn := dialWatch(t, server, token, sub.ID)
	defer conn.Close()

	// Replayed from the topic cache; receiving it also means the watcher
	// is subscribed before the next event is published.
	if ev := readEvent(t, conn); ev.Stream != "grading-begin" {
		t.Errorf("replayed event stream = %s, want grading-begin", ev.Stream)
	}

	w, _ = s.do(t, http.MethodPost, "/webhook/judge/", judgeToken, map[string]interface{}{
		"submission_id": sub.ID, "event": "grading-end",
		"result": "AC", "points": 100.0, "case_points": 100.0, "case_total": 100.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("grading-end returned %d", w.Code)
	}

	if ev := readEvent(t, conn); ev.Stream != "grading-end" {
		t.Errorf("live event stream = %s, want grading-end", ev.Stream)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected a normal close after the terminal event, got %v", err)
	}
}
