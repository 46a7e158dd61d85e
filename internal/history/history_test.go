package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	hist, err := NewHistory(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })
	return hist
}

func TestHistory_RecordDelivery(t *testing.T) {
	hist := openTestHistory(t)

	duration := 5.5
	commit := "abc123def456"
	id, err := hist.RecordDelivery(context.Background(), &DeliveryRecord{
		DeliveryID:      "d-1",
		Event:           "push",
		Ref:             "refs/heads/main",
		Branch:          "main",
		Outcome:         OutcomeSuccess,
		StatusCode:      200,
		DurationSeconds: &duration,
		CommitHash:      &commit,
	})
	if err != nil {
		t.Fatalf("Failed to record delivery: %v", err)
	}

	if id == 0 {
		t.Error("Expected non-zero delivery ID")
	}
}

func TestHistory_GetLatestDelivery(t *testing.T) {
	hist := openTestHistory(t)
	ctx := context.Background()

	received := time.Date(2024, 5, 1, 12, 0, 0, 123, time.UTC)
	errMsg := "git fetch failed (exit code 128): fatal: couldn't find remote ref"

	if _, err := hist.RecordDelivery(ctx, &DeliveryRecord{
		DeliveryID: "first",
		Event:      "push",
		Outcome:    OutcomeSuccess,
		StatusCode: 200,
	}); err != nil {
		t.Fatalf("Failed to record first delivery: %v", err)
	}

	if _, err := hist.RecordDelivery(ctx, &DeliveryRecord{
		DeliveryID:   "second",
		Event:        "push",
		Ref:          "refs/heads/main",
		Branch:       "main",
		Outcome:      OutcomeFailed,
		StatusCode:   500,
		ReceivedAt:   received,
		ErrorMessage: &errMsg,
	}); err != nil {
		t.Fatalf("Failed to record second delivery: %v", err)
	}

	latest, err := hist.GetLatestDelivery(ctx)
	if err != nil {
		t.Fatalf("Failed to get latest delivery: %v", err)
	}
	if latest == nil {
		t.Fatal("Expected latest delivery to be non-nil")
	}

	if latest.DeliveryID != "second" {
		t.Errorf("Expected latest delivery 'second', got %q", latest.DeliveryID)
	}
	if latest.Outcome != OutcomeFailed || latest.StatusCode != 500 {
		t.Errorf("Unexpected outcome %q / %d", latest.Outcome, latest.StatusCode)
	}
	if !latest.ReceivedAt.Equal(received) {
		t.Errorf("Expected received_at %v, got %v", received, latest.ReceivedAt)
	}
	if latest.ErrorMessage == nil || *latest.ErrorMessage != errMsg {
		t.Errorf("Expected error message %q, got %v", errMsg, latest.ErrorMessage)
	}
	if latest.DurationSeconds != nil {
		t.Errorf("Expected nil duration, got %v", *latest.DurationSeconds)
	}
}

func TestHistory_GetLatestDelivery_NoRecords(t *testing.T) {
	hist := openTestHistory(t)

	latest, err := hist.GetLatestDelivery(context.Background())
	if err != nil {
		t.Fatalf("Expected no error on empty history, got: %v", err)
	}
	if latest != nil {
		t.Errorf("Expected nil on empty history, got: %v", latest)
	}
}

func TestHistory_GetRecentDeliveries(t *testing.T) {
	hist := openTestHistory(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		duration := float64(i)
		if _, err := hist.RecordDelivery(ctx, &DeliveryRecord{
			DeliveryID:      "d",
			Event:           "push",
			Outcome:         OutcomeSuccess,
			StatusCode:      200,
			DurationSeconds: &duration,
		}); err != nil {
			t.Fatalf("Failed to record delivery %d: %v", i, err)
		}
	}

	recent, err := hist.GetRecentDeliveries(ctx, 3)
	if err != nil {
		t.Fatalf("Failed to get recent deliveries: %v", err)
	}

	if len(recent) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(recent))
	}

	// Most recent first
	if recent[0].DurationSeconds == nil || *recent[0].DurationSeconds != 4.0 {
		t.Errorf("Expected first record duration 4.0, got %v", recent[0].DurationSeconds)
	}
}

func TestHistory_GetRecentDeliveries_Empty(t *testing.T) {
	hist := openTestHistory(t)

	recent, err := hist.GetRecentDeliveries(context.Background(), 10)
	if err != nil {
		t.Fatalf("Failed to get recent deliveries: %v", err)
	}
	if recent == nil || len(recent) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", recent)
	}
}

func TestHistory_Summarize(t *testing.T) {
	hist := openTestHistory(t)
	ctx := context.Background()

	outcomes := []string{OutcomeSuccess, OutcomeIgnored, OutcomeSuccess, OutcomeRejected}
	for _, outcome := range outcomes {
		if _, err := hist.RecordDelivery(ctx, &DeliveryRecord{
			DeliveryID: outcome,
			Event:      "push",
			Outcome:    outcome,
			StatusCode: 200,
		}); err != nil {
			t.Fatalf("Failed to record delivery: %v", err)
		}
	}

	summary, err := hist.Summarize(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to summarize: %v", err)
	}

	if len(summary.Recent) != 2 {
		t.Errorf("Expected 2 recent deliveries, got %d", len(summary.Recent))
	}
	if summary.Latest == nil || summary.Latest.Outcome != OutcomeRejected {
		t.Errorf("Expected latest outcome %q, got %+v", OutcomeRejected, summary.Latest)
	}
	if summary.Outcomes[OutcomeSuccess] != 2 {
		t.Errorf("Expected 2 successes, got %d", summary.Outcomes[OutcomeSuccess])
	}
	if summary.Outcomes[OutcomeIgnored] != 1 {
		t.Errorf("Expected 1 ignored, got %d", summary.Outcomes[OutcomeIgnored])
	}
}

func TestHistory_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	hist, err := NewHistory(dbPath)
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}
	if _, err := hist.RecordDelivery(context.Background(), &DeliveryRecord{
		DeliveryID: "kept",
		Event:      "push",
		Outcome:    OutcomeSuccess,
		StatusCode: 200,
	}); err != nil {
		t.Fatalf("Failed to record delivery: %v", err)
	}
	hist.Close()

	reopened, err := NewHistory(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen history: %v", err)
	}
	defer reopened.Close()

	latest, err := reopened.GetLatestDelivery(context.Background())
	if err != nil {
		t.Fatalf("Failed to get latest delivery: %v", err)
	}
	if latest == nil || latest.DeliveryID != "kept" {
		t.Errorf("Expected delivery 'kept' after reopen, got %+v", latest)
	}
}
