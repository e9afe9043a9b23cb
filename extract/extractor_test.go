package extract

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		frames     []string
		wantText   string
		wantReason Reason
		wantPath   Path
		wantFrames int
	}{
		{
			name: "latest timestamp wins",
			frames: []string{
				"[14:01:03] Hello there.",
				"noise noise [14:01:03] Hello there. [14:02:10] How are you?",
			},
			wantText:   "How are you?",
			wantReason: ReasonCaptured,
			wantPath:   PathTimestamp,
			wantFrames: 2,
		},
		{
			name: "frame order does not matter",
			frames: []string{
				"noise noise [14:01:03] Hello there. [14:02:10] How are you?",
				"[14:01:03] Hello there.",
			},
			wantText:   "How are you?",
			wantReason: ReasonCaptured,
			wantPath:   PathTimestamp,
			wantFrames: 2,
		},
		{
			name: "speaker tagged markers",
			frames: []string{
				"[Kai–14:44:23] First thought here.\n[Claude – 14:45:01] A later reply from Claude.",
			},
			wantText:   "A later reply from Claude.",
			wantReason: ReasonCaptured,
			wantPath:   PathTimestamp,
			wantFrames: 1,
		},
		{
			name: "longest copy of the latest timestamp",
			frames: []string{
				"[10:00:00] How are",
				"[10:00:00] How are you doing today?",
			},
			wantText:   "How are you doing today?",
			wantReason: ReasonCaptured,
			wantPath:   PathTimestamp,
			wantFrames: 2,
		},
		{
			name:       "marker with only punctuation after it",
			frames:     []string{"[10:00:00] Good content here. [10:00:05] ---"},
			wantText:   "Good content here.",
			wantReason: ReasonCaptured,
			wantPath:   PathTimestamp,
			wantFrames: 1,
		},
		{
			name: "multiline segment is flattened",
			frames: []string{
				"[09:15:00] old\n[09:16:30] The reply spans\n  several   lines\nof text.",
			},
			wantText:   "The reply spans several lines of text.",
			wantReason: ReasonCaptured,
			wantPath:   PathTimestamp,
			wantFrames: 1,
		},
		{
			name: "out of range clock is not a marker",
			frames: []string{
				"[99:00:00] text that is long enough",
			},
			wantText:   "text that is long enough",
			wantReason: ReasonCaptured,
			wantPath:   PathLongestBlock,
			wantFrames: 1,
		},
		{
			name: "ui chrome only",
			frames: []string{
				"Send message Regenerate Copy",
				"Send message Regenerate",
			},
			wantText:   SentinelFiltered,
			wantReason: ReasonFiltered,
		},
		{
			name: "garbage removed around content",
			frames: []string{
				"Hello world, this is the answer. Copy Regenerate",
			},
			wantText:   "Hello world, this is the answer.",
			wantReason: ReasonCaptured,
			wantPath:   PathLongestBlock,
			wantFrames: 1,
		},
		{
			name:       "short frames",
			frames:     []string{"hi", "   ", "ok"},
			wantText:   SentinelEmpty,
			wantReason: ReasonEmptyOCR,
		},
		{
			name:       "no frames",
			frames:     nil,
			wantText:   SentinelEmpty,
			wantReason: ReasonEmptyOCR,
		},
		{
			name: "longest block across frames",
			frames: []string{
				"Alpha line of genuine content",
				"Alpha line of genuine content that repeats and continues further",
				"zzq fragment misread",
			},
			wantText:   "Alpha line of genuine content that repeats and continues further",
			wantReason: ReasonCaptured,
			wantPath:   PathLongestBlock,
			wantFrames: 3,
		},
	}

	e := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.frames)

			if got.Text != tt.wantText {
				t.Errorf("text: got %q, want %q", got.Text, tt.wantText)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("reason: got %q, want %q", got.Reason, tt.wantReason)
			}
			if got.Path != tt.wantPath {
				t.Errorf("path: got %q, want %q", got.Path, tt.wantPath)
			}
			if got.Frames != tt.wantFrames {
				t.Errorf("frames: got %d, want %d", got.Frames, tt.wantFrames)
			}
			if got.Text == "" {
				t.Error("text must never be empty")
			}
		})
	}
}

func TestExtractNearDuplicateLines(t *testing.T) {
	frames := []string{
		"The quick brown fox jumps over the lazy dog.\n" +
			"The quick brown fox jumps over the lazy dog\n" +
			"Something else entirely here",
	}

	got := Default().Extract(frames)

	if n := strings.Count(got.Text, "quick brown fox"); n != 1 {
		t.Errorf("expected one copy of the duplicated line, got %d in %q", n, got.Text)
	}
	if !strings.Contains(got.Text, "Something else entirely here") {
		t.Errorf("distinct line lost: %q", got.Text)
	}
}

func TestExtractTruncates(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&b, "word%d ", i)
	}

	got := Default().Extract([]string{b.String()})

	if !got.Truncated {
		t.Fatal("expected truncation")
	}
	if n := utf8.RuneCountInString(got.Text); n > 800 {
		t.Errorf("output length %d exceeds cap", n)
	}
	if !strings.HasSuffix(got.Text, Ellipsis) {
		t.Errorf("truncated output should end with %q: %q", Ellipsis, got.Text)
	}
}

func TestExtractCustomCap(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxChars = 20
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := e.Extract([]string{"abcdefghij klmnopqrst uvwxyz"})

	if got.Text != "abcdefghij klmnop..." {
		t.Errorf("got %q", got.Text)
	}
	if utf8.RuneCountInString(got.Text) != 20 {
		t.Errorf("length: got %d, want 20", utf8.RuneCountInString(got.Text))
	}
}

func TestExtractIdempotent(t *testing.T) {
	frames := []string{
		"[08:00:01] first\nSend message",
		"[08:00:01] first [08:00:05] second reply with body",
		"plain line without markers",
	}
	e := Default()

	first := e.Extract(frames)
	second := e.Extract(frames)

	if first != second {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func TestClean(t *testing.T) {
	raw := "OG PWS By\nThe answer is forty two.\nThe answer is forty two\n[12:00:00]"

	got := Default().Clean(raw)

	if got != "The answer is forty two." {
		t.Errorf("got %q", got)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero line similarity", func(o *Options) { o.LineSimilarity = 0 }},
		{"block similarity above one", func(o *Options) { o.BlockSimilarity = 1.5 }},
		{"negative minimum", func(o *Options) { o.MinFrameChars = -1 }},
		{"cap too small for ellipsis", func(o *Options) { o.MaxChars = 3 }},
		{"invalid pattern", func(o *Options) { o.GarbagePatterns = []string{"("} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			if _, err := New(opts); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"same text", "same text", 1},
		{"Same   Text", "same text", 1},
		{"", "", 1},
		{"", "abc", 0},
		{"abc", "abd", 1 - 1.0/3},
	}

	for _, tt := range tests {
		got := Similarity(tt.a, tt.b)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestExtractReplyDropsEchoedPrompt(t *testing.T) {
	const reply = "Rivers carve valleys over long periods of time."
	tests := []struct {
		name       string
		frames     []string
		prompt     string
		wantText   string
		wantReason Reason
	}{
		{
			name:       "stamped prompt echoed above reply",
			frames:     []string{"[14:44:23] hello there, what do you think about rivers\n" + reply},
			prompt:     "[14:44:23] hello there, what do you think about rivers",
			wantText:   reply,
			wantReason: ReasonCaptured,
		},
		{
			name:       "echo misread by ocr",
			frames:     []string{"[14:44:23] helo there, what do you think abuot rivers\n" + reply},
			prompt:     "[14:44:23] hello there, what do you think about rivers",
			wantText:   reply,
			wantReason: ReasonCaptured,
		},
		{
			name:       "reply under its own marker",
			frames:     []string{"[14:44:23] hello there, what do you think about rivers\n[14:44:30] " + reply},
			prompt:     "[14:44:23] hello there, what do you think about rivers",
			wantText:   reply,
			wantReason: ReasonCaptured,
		},
		{
			name:       "prompt not echoed",
			frames:     []string{"[09:00:00] " + reply},
			prompt:     "[08:59:58] tell me about mountains instead",
			wantText:   reply,
			wantReason: ReasonCaptured,
		},
		{
			name:       "only the echo rendered so far",
			frames:     []string{"[14:44:23] hello there, what do you think about rivers"},
			prompt:     "[14:44:23] hello there, what do you think about rivers",
			wantText:   SentinelFiltered,
			wantReason: ReasonFiltered,
		},
		{
			name:       "no prompt",
			frames:     []string{"[14:44:23] hello there\n" + reply},
			wantText:   "hello there " + reply,
			wantReason: ReasonCaptured,
		},
	}

	e := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.ExtractReply(tt.frames, tt.prompt)
			if got.Text != tt.wantText {
				t.Errorf("text = %q, want %q", got.Text, tt.wantText)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestLatest(t *testing.T) {
	if _, ok := Latest(nil); ok {
		t.Error("expected no segment for empty input")
	}

	segments := Segments([]string{"[23:59:59] late", "[00:00:01] early [12:30:00] noon"})
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}

	latest, ok := Latest(segments)
	if !ok || latest.Content != "late" {
		t.Errorf("got %+v", latest)
	}
	if segments[0].Timestamp != "23:59:59" {
		t.Error("Latest must not reorder its input")
	}
}
