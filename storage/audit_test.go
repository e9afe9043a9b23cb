package storage

import (
	"testing"
	"time"
)

func newTestAudit(t *testing.T) *AuditStore {
	t.Helper()
	store, err := NewAuditStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewAuditStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordTurn(t *testing.T) {
	store := newTestAudit(t)
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	id, err := store.RecordTurn(Turn{
		SessionID:  "s1",
		Step:       0,
		Speaker:    "Kai",
		Receiver:   "Claude",
		Prompt:     "hello",
		Response:   "hi there",
		Frames:     2,
		Reason:     "timestamp found",
		Path:       "timestamp",
		Stale:      true,
		StartedAt:  start,
		FinishedAt: start.Add(5 * time.Second),
	})
	if err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}
	if id <= 0 {
		t.Errorf("expected positive id, got %d", id)
	}

	turns, err := store.TurnsBySpeaker("kai", 0)
	if err != nil {
		t.Fatalf("TurnsBySpeaker: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	got := turns[0]
	if got.Receiver != "Claude" || got.Response != "hi there" || got.Frames != 2 || !got.Stale || got.Fallback {
		t.Errorf("got %+v", got)
	}
	if !got.StartedAt.Equal(start) {
		t.Errorf("started_at: got %v", got.StartedAt)
	}
}

func TestTurnsBySpeakerLimit(t *testing.T) {
	store := newTestAudit(t)
	for i := 0; i < 3; i++ {
		if _, err := store.RecordTurn(Turn{Step: i, Speaker: "Grok", Reason: "ok", StartedAt: time.Now(), FinishedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	turns, err := store.TurnsBySpeaker("Grok", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 || turns[0].Step != 0 || turns[1].Step != 1 {
		t.Errorf("got %+v", turns)
	}
}

func TestReasonCounts(t *testing.T) {
	store := newTestAudit(t)
	for _, reason := range []string{"timestamp found", "stale", "timestamp found", "empty after ocr"} {
		if _, err := store.RecordTurn(Turn{Speaker: "Kai", Reason: reason, StartedAt: time.Now(), FinishedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := store.ReasonCounts()
	if err != nil {
		t.Fatalf("ReasonCounts: %v", err)
	}
	if len(counts) != 3 {
		t.Fatalf("expected 3 reasons, got %+v", counts)
	}
	if counts[0].Reason != "timestamp found" || counts[0].Count != 2 {
		t.Errorf("most frequent first: got %+v", counts[0])
	}
	if counts[1].Reason != "empty after ocr" {
		t.Errorf("ties sorted by reason: got %+v", counts[1:])
	}
}

func TestAuditReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewAuditStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.RecordTurn(Turn{Speaker: "Kai", Reason: "ok", StartedAt: time.Now(), FinishedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	store, err = NewAuditStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	turns, _ := store.TurnsBySpeaker("Kai", 0)
	if len(turns) != 1 {
		t.Errorf("expected the turn to survive reopen, got %d", len(turns))
	}
}
