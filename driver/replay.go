package driver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"council/model"
)

// FrameSeparator splits several frames kept in one text file
const FrameSeparator = "---"

// Delivery is one prompt handed to a participant
type Delivery struct {
	Participant string
	Text        string
	At          time.Time
}

// Replay plays back pre-recognized frames instead of touching the screen.
// Frames for a participant come from <dir>/<name>/*.txt in name order, or
// from <dir>/<name>.txt split on "---" lines. Once the frames run out the
// last one repeats, like a transcript that stopped changing.
type Replay struct {
	frames    map[string][]string
	next      map[string]int
	Delivered []Delivery
}

// NewReplay loads frames for every participant from dir
func NewReplay(dir string, participants []model.Participant) (*Replay, error) {
	r := &Replay{
		frames: make(map[string][]string),
		next:   make(map[string]int),
	}
	for _, p := range participants {
		frames, err := loadFrames(dir, p.Name)
		if err != nil {
			return nil, err
		}
		r.frames[key(p.Name)] = frames
	}
	return r, nil
}

// NewReplayFrames builds a replay from in-memory frames keyed by participant
func NewReplayFrames(frames map[string][]string) *Replay {
	r := &Replay{
		frames: make(map[string][]string),
		next:   make(map[string]int),
	}
	for name, f := range frames {
		r.frames[key(name)] = f
	}
	return r
}

func (r *Replay) Focus(_ context.Context, state model.FocusState, p model.Participant) (model.FocusState, error) {
	return state.On(p.Desktop, p.Name), nil
}

func (r *Replay) Deliver(_ context.Context, p model.Participant, text string) error {
	r.Delivered = append(r.Delivered, Delivery{Participant: p.Name, Text: text, At: time.Now()})
	return nil
}

func (r *Replay) Scroll(context.Context, model.Participant) error {
	return nil
}

func (r *Replay) Capture(_ context.Context, p model.Participant) (model.Capture, error) {
	k := key(p.Name)
	frames := r.frames[k]
	capture := model.Capture{
		Participant: p.Name,
		Region:      p.CaptureRegion,
		TakenAt:     time.Now(),
	}
	if len(frames) == 0 {
		return capture, nil
	}
	i := r.next[k]
	if i >= len(frames) {
		i = len(frames) - 1
	}
	r.next[k] = i + 1
	capture.Text = frames[i]
	return capture, nil
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func loadFrames(dir, name string) ([]string, error) {
	sub := filepath.Join(dir, key(name))
	if info, err := os.Stat(sub); err == nil && info.IsDir() {
		entries, err := os.ReadDir(sub)
		if err != nil {
			return nil, fmt.Errorf("failed to read replay directory: %w", err)
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		frames := make([]string, 0, len(names))
		for _, n := range names {
			data, err := os.ReadFile(filepath.Join(sub, n))
			if err != nil {
				return nil, fmt.Errorf("failed to read replay frame: %w", err)
			}
			frames = append(frames, string(data))
		}
		return frames, nil
	}

	f, err := os.Open(filepath.Join(dir, key(name)+".txt"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()
	return SplitFramesFrom(f)
}

// SplitFrames splits text into frames on lines holding only "---"
func SplitFrames(text string) []string {
	frames, _ := SplitFramesFrom(strings.NewReader(text))
	return frames
}

// SplitFramesFrom is SplitFrames over a reader
func SplitFramesFrom(r io.Reader) ([]string, error) {
	var frames []string
	var current []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == FrameSeparator {
			frames = append(frames, strings.Join(current, "\n"))
			current = nil
			continue
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}
	if len(current) > 0 {
		frames = append(frames, strings.Join(current, "\n"))
	}
	return frames, nil
}
