package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"council/config"
	"council/council"
)

// EventMsg wraps one event from the running council
type EventMsg struct {
	Event council.Event
}

// RunClosedMsg is sent once the council closed its event channel
type RunClosedMsg struct{}

type entry struct {
	at       time.Time
	speaker  string
	receiver string
	text     string
	note     string
	warn     bool
}

// Monitor is the bubbletea model showing a running relay: the transcript so
// far, what the current speaker is doing and a status line.
type Monitor struct {
	events <-chan council.Event
	cancel context.CancelFunc

	viewport viewport.Model
	spinner  spinner.Model
	ready    bool
	width    int
	height   int

	entries  []entry
	speakers map[string]int

	round    int
	step     int
	speaker  string
	phase    council.Phase
	turns    int
	skipped  int
	finished bool
	stopping bool
	lastErr  string
}

func NewMonitor(events <-chan council.Event, cancel context.CancelFunc) Monitor {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return Monitor{
		events:   events,
		cancel:   cancel,
		viewport: viewport.New(0, 0),
		spinner:  s,
		speakers: make(map[string]int),
	}
}

func (m Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// waitForEvent reads the next council event
func waitForEvent(events <-chan council.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return RunClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Reserve space for title (1 line), separator (1 line) and status bar (2 lines)
		m.viewport.Width = m.width
		m.viewport.Height = max(m.height-4, 1)
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.finished {
				return m, tea.Quit
			}
			config.Debugf("[UI] Stop requested")
			m.stopping = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		case "g", "home":
			m.viewport.GotoTop()
			return m, nil
		case "G", "end":
			m.viewport.GotoBottom()
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EventMsg:
		m.apply(msg.Event)
		return m, waitForEvent(m.events)

	case RunClosedMsg:
		m.finished = true
		if m.stopping {
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

func (m *Monitor) apply(ev council.Event) {
	if ev.Round > 0 {
		m.round = ev.Round
	}
	m.step = ev.Step
	if ev.Speaker != "" {
		m.speaker = ev.Speaker
	}

	switch ev.Kind {
	case council.EventPhase:
		m.phase = ev.Phase
		return
	case council.EventTurn:
		m.turns++
		m.phase = ""
		turn := ev.Turn
		e := entry{at: turn.FinishedAt, speaker: turn.Speaker, receiver: turn.Receiver, text: turn.Result.Text}
		switch {
		case turn.Stale:
			e.note = "unchanged, sent filler"
			e.warn = true
		case turn.Fallback:
			e.note = "unreadable, sent fallback prompt"
			e.warn = true
		default:
			e.note = fmt.Sprintf("%d frames, %s", turn.Result.Frames, turn.Result.Path)
		}
		m.entries = append(m.entries, e)
	case council.EventError:
		m.skipped++
		m.phase = ""
		if ev.Err != nil {
			m.lastErr = ev.Err.Error()
		}
		m.entries = append(m.entries, entry{at: ev.At, speaker: ev.Speaker, note: "skipped: " + m.lastErr, warn: true})
	case council.EventFinished:
		m.phase = ""
	}
	m.refresh()
}

func (m *Monitor) speakerStyle(name string) lipgloss.Style {
	i, ok := m.speakers[name]
	if !ok {
		i = len(m.speakers)
		m.speakers[name] = i
	}
	return SpeakerStyle(i)
}

func (m *Monitor) refresh() {
	if !m.ready {
		return
	}
	if len(m.entries) == 0 {
		m.viewport.SetContent(DimStyle.Render("Waiting for the first reply..."))
		return
	}

	width := max(m.width-2, 10)
	var content strings.Builder
	for _, e := range m.entries {
		timestamp := DimStyle.Render(e.at.Format("[15:04:05]"))
		header := timestamp + " " + m.speakerStyle(e.speaker).Render(e.speaker)
		if e.receiver != "" {
			header += DimStyle.Render(" → ") + m.speakerStyle(e.receiver).Render(e.receiver)
		}
		note := DimStyle.Render("(" + e.note + ")")
		if e.warn {
			note = WarningStyle.Render("(" + e.note + ")")
		}
		content.WriteString(header + " " + note + "\n")
		if e.text != "" {
			content.WriteString(lipgloss.NewStyle().Width(width).PaddingLeft(2).Render(e.text))
			content.WriteString("\n")
		}
		content.WriteString("\n")
	}
	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}

func (m Monitor) status() string {
	switch {
	case m.finished:
		return fmt.Sprintf("Finished: %d turns, %d skipped", m.turns, m.skipped)
	case m.stopping:
		return "Stopping after the current action..."
	case m.phase != "":
		return fmt.Sprintf("Round %d, step %d: %s %s", m.round, m.step+1, m.speaker, m.phase)
	default:
		return fmt.Sprintf("Round %d, step %d", m.round, m.step+1)
	}
}

func (m Monitor) View() string {
	if !m.ready {
		return "Starting council..."
	}

	title := TitleStyle.Render("council")
	separator := DimStyle.Render(strings.Repeat("─", m.width))

	text := m.status()
	style := StatusStyle
	if m.lastErr != "" && !m.finished {
		text += "  last error: " + m.lastErr
		style = ErrorStyle
	}
	status := style.Render(Fit(text, m.width-2))
	if !m.finished && !m.stopping {
		status = m.spinner.View() + " " + status
	}

	footer := FormatFooter("q", "Stop", "↑/↓", "Scroll", "g/G", "Top/Bottom")
	if m.finished {
		footer = FormatFooter("q", "Quit", "↑/↓", "Scroll")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		separator,
		m.viewport.View(),
		status,
		footer,
	)
}
