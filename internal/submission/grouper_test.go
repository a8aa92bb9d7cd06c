package submission

import (
	"testing"

	"github.com/sakura-oj/sakuraoj/internal/database/models"
)

func batchID(id int) *int {
	return &id
}

func TestGroupTestCases_ConsecutiveBatches(t *testing.T) {
	cases := []models.TestCaseResult{
		{Case: 1, Batch: batchID(1), Status: models.ResultAC, Points: 10, Total: 10},
		{Case: 2, Batch: batchID(1), Status: models.ResultWA, Points: 0, Total: 10},
		{Case: 3, Batch: batchID(2), Status: models.ResultAC, Points: 20, Total: 20},
	}

	batches := GroupTestCases(cases)
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}

	if batches[0].ID != 1 || len(batches[0].Cases) != 2 {
		t.Errorf("batch 1 wrong: id=%d cases=%d", batches[0].ID, len(batches[0].Cases))
	}
	if got := BatchStatus(batches[0]); got != models.ResultWA {
		t.Errorf("batch 1 combined status = %s, want WA", got)
	}
	if batches[0].Points != 0 {
		t.Errorf("batch 1 points = %v, want 0 (all-or-nothing)", batches[0].Points)
	}

	if batches[1].ID != 2 || len(batches[1].Cases) != 1 {
		t.Errorf("batch 2 wrong: id=%d cases=%d", batches[1].ID, len(batches[1].Cases))
	}
	if got := BatchStatus(batches[1]); got != models.ResultAC {
		t.Errorf("batch 2 combined status = %s, want AC", got)
	}
}

func TestGroupTestCases_UngroupedBecomeSingletons(t *testing.T) {
	cases := []models.TestCaseResult{
		{Case: 1, Status: models.ResultAC, Points: 5, Total: 5},
		{Case: 2, Status: models.ResultTLE, Points: 0, Total: 5},
	}

	batches := GroupTestCases(cases)
	if len(batches) != 2 {
		t.Fatalf("expected 2 singleton batches, got %d", len(batches))
	}
	for i, b := range batches {
		if b.ID != 0 {
			t.Errorf("singleton batch %d has id %d, want 0", i, b.ID)
		}
		if len(b.Cases) != 1 {
			t.Errorf("singleton batch %d has %d cases, want 1", i, len(b.Cases))
		}
	}
	if batches[0].Points != 5 || batches[0].Total != 5 {
		t.Errorf("singleton keeps its own score: got %v/%v", batches[0].Points, batches[0].Total)
	}
}

func TestGroupTestCases_NonConsecutiveSameIDSplit(t *testing.T) {
	cases := []models.TestCaseResult{
		{Case: 1, Batch: batchID(1), Status: models.ResultAC},
		{Case: 2, Status: models.ResultAC},
		{Case: 3, Batch: batchID(1), Status: models.ResultAC},
	}

	batches := GroupTestCases(cases)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches (grouping is by consecutive runs), got %d", len(batches))
	}
}

func TestGroupTestCases_Empty(t *testing.T) {
	if batches := GroupTestCases(nil); len(batches) != 0 {
		t.Fatalf("expected no batches for empty input, got %d", len(batches))
	}
}

func TestCombineStatuses_SeverityOrder(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"all accepted", []string{"AC", "AC"}, "AC"},
		{"wa beats ac", []string{"AC", "WA", "AC"}, "WA"},
		{"tle beats wa", []string{"WA", "TLE"}, "TLE"},
		{"mle below tle", []string{"MLE", "WA", "TLE"}, "TLE"},
		{"rte below mle", []string{"RTE", "MLE"}, "MLE"},
		{"ie beats everything", []string{"AC", "WA", "TLE", "IE"}, "IE"},
		{"ce above ab", []string{"AB", "CE"}, "CE"},
		{"empty is accepted", nil, "AC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CombineStatuses(tt.statuses); got != tt.want {
				t.Errorf("CombineStatuses(%v) = %s, want %s", tt.statuses, got, tt.want)
			}
		})
	}
}
