package council

import (
	"time"

	"council/extract"
)

// Phase is what the relay is doing right now
type Phase string

const (
	PhaseFocus   Phase = "focusing"
	PhaseDeliver Phase = "delivering"
	PhaseWait    Phase = "waiting for reply"
	PhaseCapture Phase = "capturing"
	PhaseRetry   Phase = "re-capturing stale reply"
)

type EventKind int

const (
	EventPhase EventKind = iota
	EventTurn
	EventError
	EventFinished
)

// Event is a progress notification for the monitor or the console printer
type Event struct {
	Kind     EventKind
	Round    int
	Step     int
	Speaker  string
	Receiver string
	Phase    Phase
	Turn     *TurnResult
	Err      error
	At       time.Time
}

// TurnResult is the outcome of one speaker turn
type TurnResult struct {
	Round    int
	Step     int
	Speaker  string
	Receiver string

	// Prompt is the text delivered to the speaker, stamp included
	Prompt string
	Result extract.Result

	// Forwarded becomes the next speaker's prompt
	Forwarded string
	Stale     bool
	Fallback  bool
	Attempts  int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Reason is the stop reason kept in notes and the audit table
func (t *TurnResult) Reason() string {
	if t.Stale {
		return "stale"
	}
	return string(t.Result.Reason)
}
