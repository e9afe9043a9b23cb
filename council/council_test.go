package council

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"council/config"
	"council/driver/testutil"
	"council/model"
	"council/storage"
)

func testConfig() *config.UserConfig {
	cfg := config.DefaultUserConfig()
	cfg.Session.Rounds = 1
	cfg.Session.StampPrompts = false
	cfg.Session.TurnPause = config.Duration{}
	cfg.Session.RoundPause = config.Duration{}
	cfg.Capture.FrameDelay = config.Duration{}
	cfg.Capture.StaleWait = config.Duration{}
	for i := range cfg.Participants {
		cfg.Participants[i].ResponseWait = config.Duration{}
		cfg.Participants[i].TypingDelay = config.Duration{}
	}
	return cfg
}

func replies() map[string][]string {
	return map[string][]string{
		"Kai":        {"[10:00:01] Kai opens with a thought about rivers"},
		"Claude":     {"[10:00:05] Claude answers about mountains and lakes"},
		"Grok":       {"[10:00:09] Grok replies with a joke about forests"},
		"Perplexity": {"[10:00:13] Perplexity cites three sources on deserts"},
	}
}

func run(t *testing.T, cfg *config.UserConfig, mock *testutil.MockDriver, opts Options) (*Council, []Event, error) {
	t.Helper()
	events := make(chan Event, 512)
	opts.Driver = mock
	opts.Events = events
	c, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.Run(context.Background())

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	return c, got, err
}

func turns(events []Event) []*TurnResult {
	var out []*TurnResult
	for _, ev := range events {
		if ev.Kind == EventTurn {
			out = append(out, ev.Turn)
		}
	}
	return out
}

func TestRunRelaysReplies(t *testing.T) {
	cfg := testConfig()
	mock := testutil.NewMockDriver(replies())

	c, events, err := run(t, cfg, mock, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		"Kai: " + cfg.Session.OpeningPrompt,
		"Claude: Kai opens with a thought about rivers",
		"Grok: Claude answers about mountains and lakes",
		"Perplexity: Grok replies with a joke about forests",
	}
	if strings.Join(mock.Delivered, "\n") != strings.Join(want, "\n") {
		t.Errorf("deliveries:\n got %q\nwant %q", mock.Delivered, want)
	}

	got := turns(events)
	if len(got) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(got))
	}
	for _, turn := range got {
		if turn.Stale || turn.Fallback || turn.Reason() != "captured" {
			t.Errorf("%s: unexpected turn %+v", turn.Speaker, turn)
		}
	}
	if got[3].Receiver != "Kai" {
		t.Errorf("last receiver: got %q", got[3].Receiver)
	}
	if events[len(events)-1].Kind != EventFinished {
		t.Error("expected a finished event last")
	}

	if state := c.FocusState(); state.Desktop != 2 || state.Participant != "Perplexity" {
		t.Errorf("focus state: got %+v", state)
	}
}

func TestRunCapturesFramesWithScroll(t *testing.T) {
	cfg := testConfig()
	cfg.Flow = []config.FlowStep{{Speaker: "Kai", Receiver: "Claude"}}
	mock := testutil.NewMockDriver(replies())

	if _, _, err := run(t, cfg, mock, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"focus Kai", "deliver Kai", "capture Kai", "scroll Kai", "capture Kai", "scroll Kai", "capture Kai"}
	if strings.Join(mock.Calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls:\n got %v\nwant %v", mock.Calls, want)
	}
}

func TestRunStaleReplyForwardsFiller(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Rounds = 2
	cfg.Capture.Retries = 1
	cfg.Flow = []config.FlowStep{{Speaker: "Kai", Receiver: "Claude"}}
	mock := testutil.NewMockDriver(replies())

	_, events, err := run(t, cfg, mock, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := turns(events)
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	if got[0].Stale {
		t.Error("first reply cannot be stale")
	}
	second := got[1]
	if !second.Stale || second.Attempts != 2 {
		t.Errorf("expected stale after a retry, got stale=%v attempts=%d", second.Stale, second.Attempts)
	}
	if second.Forwarded != "Please continue the discussion that Kai was having." {
		t.Errorf("forwarded: got %q", second.Forwarded)
	}
	if second.Reason() != "stale" {
		t.Errorf("reason: got %q", second.Reason())
	}
}

func TestRunUnreadableReplyUsesFallback(t *testing.T) {
	cfg := testConfig()
	frames := replies()
	frames["Claude"] = []string{"Copy Retry"}
	mock := testutil.NewMockDriver(frames)

	_, events, err := run(t, cfg, mock, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	claude := turns(events)[1]
	if !claude.Fallback || claude.Result.OK() {
		t.Fatalf("expected fallback turn, got %+v", claude)
	}
	if claude.Result.Text != "[No readable text]" {
		t.Errorf("result: got %q", claude.Result.Text)
	}
	wantPrompt := cfg.Session.FallbackPrompts[1]
	if mock.Delivered[2] != "Grok: "+wantPrompt {
		t.Errorf("Grok should get the fallback prompt, got %q", mock.Delivered[2])
	}
}

func TestRunDeliveryFailureSkipsSpeaker(t *testing.T) {
	cfg := testConfig()
	mock := testutil.NewMockDriver(replies())
	deliver := mock.DeliverFunc
	mock.DeliverFunc = func(ctx context.Context, p model.Participant, text string) error {
		if p.Name == "Grok" {
			return errors.New("clipboard busy")
		}
		return deliver(ctx, p, text)
	}

	_, events, err := run(t, cfg, mock, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var failures int
	for _, ev := range events {
		if ev.Kind == EventError {
			failures++
			if ev.Speaker != "Grok" || !strings.Contains(ev.Err.Error(), "clipboard busy") {
				t.Errorf("unexpected error event %+v", ev)
			}
		}
	}
	if failures != 1 {
		t.Errorf("expected 1 error event, got %d", failures)
	}
	if len(turns(events)) != 3 {
		t.Errorf("expected 3 completed turns, got %d", len(turns(events)))
	}
	last := mock.Delivered[len(mock.Delivered)-1]
	if last != "Perplexity: "+cfg.Session.FallbackPrompts[2] {
		t.Errorf("Perplexity should get a fallback prompt, got %q", last)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Rounds = 0
	mock := testutil.NewMockDriver(replies())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deliver := mock.DeliverFunc
	mock.DeliverFunc = func(ctx context.Context, p model.Participant, text string) error {
		if len(mock.Delivered) == 6 {
			cancel()
		}
		return deliver(ctx, p, text)
	}

	c, err := New(cfg, Options{Driver: mock})
	if err != nil {
		t.Fatal(err)
	}
	err = c.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(mock.Delivered) != 7 {
		t.Errorf("expected the run to stop after the 7th delivery, got %d", len(mock.Delivered))
	}
}

func TestTurnStampsPrompt(t *testing.T) {
	cfg := testConfig()
	cfg.Session.StampPrompts = true
	mock := testutil.NewMockDriver(replies())
	clock := time.Date(2025, 6, 1, 14, 44, 23, 0, time.Local)

	c, err := New(cfg, Options{Driver: mock, Now: func() time.Time { return clock }})
	if err != nil {
		t.Fatal(err)
	}
	turn, err := c.Turn(context.Background(), 1, config.FlowStep{Speaker: "claude", Receiver: "Grok"}, "hello there")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}

	if turn.Prompt != "[14:44:23] hello there" {
		t.Errorf("prompt: got %q", turn.Prompt)
	}
	if mock.Delivered[0] != "Claude: [14:44:23] hello there" {
		t.Errorf("delivered: got %q", mock.Delivered[0])
	}
	if turn.Forwarded != "Claude answers about mountains and lakes" {
		t.Errorf("forwarded: got %q", turn.Forwarded)
	}
}

func TestTurnForwardsOnlyReplyUnderStampedPrompt(t *testing.T) {
	cfg := testConfig()
	cfg.Session.StampPrompts = true
	const reply = "Rivers carve valleys over long periods of time."
	mock := testutil.NewMockDriver(map[string][]string{
		"Claude": {"[14:44:23] hello there, what do you think about rivers\n" + reply},
	})
	clock := time.Date(2025, 6, 1, 14, 44, 23, 0, time.Local)

	c, err := New(cfg, Options{Driver: mock, Now: func() time.Time { return clock }})
	if err != nil {
		t.Fatal(err)
	}
	turn, err := c.Turn(context.Background(), 1, config.FlowStep{Speaker: "Claude", Receiver: "Grok"}, "hello there, what do you think about rivers")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}

	if turn.Forwarded != reply {
		t.Errorf("forwarded: got %q, want %q", turn.Forwarded, reply)
	}
	if turn.Fallback || turn.Stale {
		t.Errorf("expected a captured reply, got %+v", turn)
	}
}

func TestTurnUnknownSpeaker(t *testing.T) {
	c, err := New(testConfig(), Options{Driver: testutil.NewMockDriver(nil)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Turn(context.Background(), 1, config.FlowStep{Speaker: "Nobody"}, "hi"); err == nil {
		t.Error("expected error for unknown speaker")
	}
}

func TestRunPersistsTurns(t *testing.T) {
	dir := t.TempDir()
	sessions, err := storage.NewSessionStorage(dir)
	if err != nil {
		t.Fatal(err)
	}
	reflections, err := storage.NewReflections(dir)
	if err != nil {
		t.Fatal(err)
	}
	audit, err := storage.NewAuditStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer audit.Close()

	cfg := testConfig()
	frames := replies()
	frames["Grok"] = nil
	mock := testutil.NewMockDriver(frames)

	c, _, err := run(t, cfg, mock, Options{Sessions: sessions, Reflections: reflections, Audit: audit})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	session, err := sessions.Load(c.Session().ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(session.Records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(session.Records))
	}
	if session.Records[0].Speaker != "Kai" || session.Records[0].Message != "Kai opens with a thought about rivers" {
		t.Errorf("first record: %+v", session.Records[0])
	}
	if id, _ := sessions.LoadCurrentSessionID(); id != session.ID {
		t.Errorf("current session id: got %q", id)
	}

	counts, err := audit.ReasonCounts()
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 2 || counts[0].Reason != "captured" || counts[0].Count != 3 || counts[1].Reason != "empty after ocr" {
		t.Errorf("reason counts: %+v", counts)
	}

	grok, _ := audit.TurnsBySpeaker("Grok", 0)
	if len(grok) != 1 || !grok[0].Fallback || grok[0].SessionID != session.ID {
		t.Errorf("grok turn: %+v", grok)
	}
}

func TestNewRequiresDriver(t *testing.T) {
	if _, err := New(testConfig(), Options{}); err == nil {
		t.Error("expected error without a driver")
	}
}
