package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"council/model"
)

func TestSplitFrames(t *testing.T) {
	frames := SplitFrames("first frame\nline two\n---\nsecond\n  ---  \nthird")

	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d: %q", len(frames), frames)
	}
	if frames[0] != "first frame\nline two" || frames[2] != "third" {
		t.Errorf("got %q", frames)
	}
}

func TestReplayFromDirectory(t *testing.T) {
	dir := t.TempDir()
	kaiDir := filepath.Join(dir, "kai")
	if err := os.MkdirAll(kaiDir, 0700); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{"01.txt": "one", "02.txt": "two", "notes.md": "skip"} {
		if err := os.WriteFile(filepath.Join(kaiDir, name), []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "grok.txt"), []byte("g1\n---\ng2"), 0600); err != nil {
		t.Fatal(err)
	}

	participants := []model.Participant{{Name: "Kai"}, {Name: "Grok"}, {Name: "Claude"}}
	r, err := NewReplay(dir, participants)
	if err != nil {
		t.Fatalf("NewReplay: %v", err)
	}

	ctx := context.Background()
	var got []string
	for i := 0; i < 3; i++ {
		c, _ := r.Capture(ctx, participants[0])
		got = append(got, c.Text)
	}
	if got[0] != "one" || got[1] != "two" || got[2] != "two" {
		t.Errorf("kai frames: got %q", got)
	}

	c, _ := r.Capture(ctx, participants[1])
	if c.Text != "g1" {
		t.Errorf("grok first frame: got %q", c.Text)
	}

	c, err = r.Capture(ctx, participants[2])
	if err != nil || c.Text != "" {
		t.Errorf("participant without frames should capture nothing, got %q, %v", c.Text, err)
	}
}

func TestReplayRecordsDeliveries(t *testing.T) {
	r := NewReplayFrames(nil)
	p := model.Participant{Name: "Claude", Desktop: 1}

	state, err := r.Focus(context.Background(), model.FocusState{}, p)
	if err != nil || state.Desktop != 1 || state.Participant != "Claude" {
		t.Errorf("focus: got %+v, %v", state, err)
	}
	if err := r.Deliver(context.Background(), p, "hello"); err != nil {
		t.Fatal(err)
	}
	if len(r.Delivered) != 1 || r.Delivered[0].Text != "hello" {
		t.Errorf("deliveries: got %+v", r.Delivered)
	}
}
