package testutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"council/model"
)

// MockDriver implements driver.Driver for testing
type MockDriver struct {
	// Configurable behaviour
	FocusFunc   func(ctx context.Context, state model.FocusState, p model.Participant) (model.FocusState, error)
	DeliverFunc func(ctx context.Context, p model.Participant, text string) error
	ScrollFunc  func(ctx context.Context, p model.Participant) error
	CaptureFunc func(ctx context.Context, p model.Participant) (model.Capture, error)

	// State
	Frames    map[string][]string
	Delivered []string
	Calls     []string
	captured  map[string]int
}

// NewMockDriver creates a mock whose captures walk through frames per
// participant and then repeat the last one
func NewMockDriver(frames map[string][]string) *MockDriver {
	m := &MockDriver{
		Frames:   frames,
		captured: make(map[string]int),
	}
	m.FocusFunc = m.defaultFocus
	m.DeliverFunc = m.defaultDeliver
	m.ScrollFunc = m.defaultScroll
	m.CaptureFunc = m.defaultCapture
	return m
}

func (m *MockDriver) defaultFocus(_ context.Context, state model.FocusState, p model.Participant) (model.FocusState, error) {
	return state.On(p.Desktop, p.Name), nil
}

func (m *MockDriver) defaultDeliver(_ context.Context, p model.Participant, text string) error {
	m.Delivered = append(m.Delivered, p.Name+": "+text)
	return nil
}

func (m *MockDriver) defaultScroll(context.Context, model.Participant) error {
	return nil
}

func (m *MockDriver) defaultCapture(_ context.Context, p model.Participant) (model.Capture, error) {
	frames := m.Frames[p.Name]
	c := model.Capture{Participant: p.Name, Region: p.CaptureRegion, TakenAt: time.Now()}
	if len(frames) == 0 {
		return c, nil
	}
	i := m.captured[p.Name]
	if i >= len(frames) {
		i = len(frames) - 1
	}
	m.captured[p.Name] = i + 1
	c.Text = frames[i]
	return c, nil
}

func (m *MockDriver) Focus(ctx context.Context, state model.FocusState, p model.Participant) (model.FocusState, error) {
	m.Calls = append(m.Calls, "focus "+p.Name)
	return m.FocusFunc(ctx, state, p)
}

func (m *MockDriver) Deliver(ctx context.Context, p model.Participant, text string) error {
	m.Calls = append(m.Calls, "deliver "+p.Name)
	return m.DeliverFunc(ctx, p, text)
}

func (m *MockDriver) Scroll(ctx context.Context, p model.Participant) error {
	m.Calls = append(m.Calls, "scroll "+p.Name)
	return m.ScrollFunc(ctx, p)
}

func (m *MockDriver) Capture(ctx context.Context, p model.Participant) (model.Capture, error) {
	m.Calls = append(m.Calls, "capture "+p.Name)
	return m.CaptureFunc(ctx, p)
}

// MemoryClipboard is an in-process clipboard
type MemoryClipboard struct {
	Text     string
	WriteErr error
	// Mangle makes reads return something other than what was written
	Mangle bool
}

func (c *MemoryClipboard) WriteAll(text string) error {
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.Text = text
	return nil
}

func (c *MemoryClipboard) ReadAll() (string, error) {
	if c.Mangle {
		return c.Text + " (changed)", nil
	}
	return c.Text, nil
}

// RecordingRunner records command lines instead of executing them
type RecordingRunner struct {
	Commands []string
	// Output is returned for commands containing the key
	Output map[string]string
	// FailOn makes commands containing it fail
	FailOn string
}

func (r *RecordingRunner) Run(_ context.Context, command string) ([]byte, error) {
	r.Commands = append(r.Commands, command)
	if r.FailOn != "" && strings.Contains(command, r.FailOn) {
		return nil, fmt.Errorf("command failed: %s", command)
	}
	for k, out := range r.Output {
		if strings.Contains(command, k) {
			return []byte(out), nil
		}
	}
	return nil, nil
}
