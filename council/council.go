// Package council runs the relay: each speaker in the flow gets the current
// prompt, its reply is read back off the screen and becomes the next prompt.
package council

import (
	"context"
	"errors"
	"fmt"
	"time"

	"council/config"
	"council/driver"
	"council/extract"
	"council/model"
	"council/storage"
)

// Options wires the collaborators of a Council. Only Driver is required.
type Options struct {
	Driver     driver.Driver
	Recognizer driver.Recognizer

	Sessions    *storage.SessionStorage
	Reflections *storage.Reflections
	Audit       *storage.AuditStore

	// Events receives progress notifications. Run closes it when it returns.
	Events chan<- Event

	// Now is the clock used for prompt stamps and turn times
	Now func() time.Time
}

type Council struct {
	cfg        *config.UserConfig
	driver     driver.Driver
	recognizer driver.Recognizer
	extractor  *extract.Extractor
	history    *extract.History

	sessions    *storage.SessionStorage
	reflections *storage.Reflections
	audit       *storage.AuditStore
	events      chan<- Event
	now         func() time.Time

	state   model.FocusState
	session *storage.Session
	step    int
}

func New(cfg *config.UserConfig, opts Options) (*Council, error) {
	if opts.Driver == nil {
		return nil, fmt.Errorf("a driver is required")
	}
	if len(cfg.Participants) == 0 {
		return nil, fmt.Errorf("at least one participant is required")
	}

	extractor, err := extract.New(cfg.ExtractorOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	c := &Council{
		cfg:         cfg,
		driver:      opts.Driver,
		recognizer:  opts.Recognizer,
		extractor:   extractor,
		history:     extract.NewHistory(),
		sessions:    opts.Sessions,
		reflections: opts.Reflections,
		audit:       opts.Audit,
		events:      opts.Events,
		now:         opts.Now,
	}
	if c.recognizer == nil {
		c.recognizer = driver.TextRecognizer{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Session returns the session log of the current run, nil before Run
func (c *Council) Session() *storage.Session {
	return c.session
}

// FocusState returns the last known focus
func (c *Council) FocusState() model.FocusState {
	return c.state
}

// Run relays the opening prompt around the flow for the configured number of
// rounds, or until ctx is cancelled when rounds is 0. Cancellation returns
// ctx.Err().
func (c *Council) Run(ctx context.Context) error {
	if c.events != nil {
		defer close(c.events)
	}

	if err := c.startSession(); err != nil {
		return err
	}

	steps := c.cfg.Steps()
	prompt := c.cfg.Session.OpeningPrompt
	rounds := c.cfg.Session.Rounds

	for round := 1; rounds == 0 || round <= rounds; round++ {
		config.Debugf("[Council] Starting round %d", round)

		for _, step := range steps {
			if err := ctx.Err(); err != nil {
				return err
			}

			turn, err := c.Turn(ctx, round, step, prompt)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Skip the speaker; the next one gets a fresh question
				config.Debugf("[Council] Skipping %s: %v", step.Speaker, err)
				c.emit(ctx, Event{Kind: EventError, Round: round, Step: c.step, Speaker: step.Speaker, Receiver: step.Receiver, Err: err})
				prompt = c.cfg.FallbackPrompt(c.step)
				c.step++
				continue
			}

			prompt = turn.Forwarded
			c.step++

			if err := driver.Wait(ctx, c.cfg.Session.TurnPause.Duration); err != nil {
				return err
			}
		}

		if rounds != 0 && round == rounds {
			break
		}
		if err := driver.Wait(ctx, c.cfg.Session.RoundPause.Duration); err != nil {
			return err
		}
	}

	c.emit(ctx, Event{Kind: EventFinished, Step: c.step})
	return nil
}

func (c *Council) startSession() error {
	if c.sessions == nil {
		return nil
	}
	names := make([]string, 0, len(c.cfg.Participants))
	for _, p := range c.cfg.Participants {
		names = append(names, p.Name)
	}
	session, err := c.sessions.Create(storage.GenerateSessionName(c.cfg.Session.OpeningPrompt), names)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	c.session = session
	if err := c.sessions.SaveCurrentSessionID(session.ID); err != nil {
		config.Debugf("[Council] Failed to save current session id: %v", err)
	}
	return nil
}

// Turn delivers prompt to the step's speaker and reads the reply back. The
// returned error means the speaker was skipped.
func (c *Council) Turn(ctx context.Context, round int, step config.FlowStep, prompt string) (*TurnResult, error) {
	p, ok := c.cfg.Lookup(step.Speaker)
	if !ok {
		return nil, fmt.Errorf("unknown speaker %q", step.Speaker)
	}

	turn := &TurnResult{
		Round:     round,
		Step:      c.step,
		Speaker:   p.Name,
		Receiver:  step.Receiver,
		Prompt:    prompt,
		StartedAt: c.now(),
	}
	if c.cfg.Session.StampPrompts {
		turn.Prompt = fmt.Sprintf("[%s] %s", turn.StartedAt.Format("15:04:05"), prompt)
	}

	c.phase(ctx, turn, PhaseFocus)
	state, err := c.driver.Focus(ctx, c.state, p)
	c.state = state
	if err != nil {
		return nil, fmt.Errorf("failed to focus %s: %w", p.Name, err)
	}

	c.phase(ctx, turn, PhaseDeliver)
	if err := c.driver.Deliver(ctx, p, turn.Prompt); err != nil {
		return nil, fmt.Errorf("failed to deliver prompt to %s: %w", p.Name, err)
	}

	c.phase(ctx, turn, PhaseWait)
	if err := driver.Wait(ctx, p.ResponseWait); err != nil {
		return nil, err
	}

	c.phase(ctx, turn, PhaseCapture)
	result, err := c.CaptureReply(ctx, p, turn.Prompt)
	if err != nil {
		return nil, err
	}
	turn.Attempts = 1
	stale := c.history.Observe(p.Name, result)

	for stale && turn.Attempts <= c.cfg.Capture.Retries {
		config.Debugf("[Council] %s reply unchanged, retrying capture", p.Name)
		c.phase(ctx, turn, PhaseRetry)
		if err := driver.Wait(ctx, c.cfg.Capture.StaleWait.Duration); err != nil {
			return nil, err
		}
		result, err = c.CaptureReply(ctx, p, turn.Prompt)
		if err != nil {
			return nil, err
		}
		turn.Attempts++
		stale = c.history.Observe(p.Name, result)
	}

	turn.Result = result
	turn.Stale = stale
	switch {
	case !result.OK():
		turn.Forwarded = c.cfg.FallbackPrompt(c.step)
		turn.Fallback = true
	case stale:
		turn.Forwarded = c.cfg.Filler(p.Name)
	default:
		turn.Forwarded = result.Text
	}
	turn.FinishedAt = c.now()

	config.Debugf("[Council] %s -> %s: %d frames, %s", p.Name, step.Receiver, result.Frames, turn.Reason())
	c.persist(turn)
	c.emit(ctx, Event{Kind: EventTurn, Round: round, Step: turn.Step, Speaker: turn.Speaker, Receiver: turn.Receiver, Turn: turn})
	return turn, nil
}

// CaptureReply takes the configured number of frames of p's read region,
// scrolling between them, and extracts the reply. delivered is the text just
// pasted; its echo at the head of the transcript is not part of the reply.
func (c *Council) CaptureReply(ctx context.Context, p model.Participant, delivered string) (extract.Result, error) {
	n := c.cfg.Capture.Frames
	if n < 1 {
		n = 1
	}

	frames := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := c.driver.Scroll(ctx, p); err != nil {
				return extract.Result{}, fmt.Errorf("failed to scroll %s: %w", p.Name, err)
			}
			if err := driver.Wait(ctx, c.cfg.Capture.FrameDelay.Duration); err != nil {
				return extract.Result{}, err
			}
		}

		capture, err := c.driver.Capture(ctx, p)
		if err != nil {
			return extract.Result{}, fmt.Errorf("failed to capture %s: %w", p.Name, err)
		}
		text, err := c.recognizer.Recognize(ctx, capture)
		if derr := driver.Discard(capture); derr != nil {
			config.Debugf("[Council] Failed to remove capture %s: %v", capture.Path, derr)
		}
		if err != nil && !errors.Is(err, driver.ErrNoCapture) {
			return extract.Result{}, err
		}
		frames = append(frames, text)
	}

	return c.extractor.ExtractReply(frames, delivered), nil
}

// persist writes the turn to the session log, the reflection notes and the
// audit table. Failures are logged; a missing note never stops the relay.
func (c *Council) persist(turn *TurnResult) {
	if c.sessions != nil && c.session != nil {
		record := model.Record{Speaker: turn.Speaker, Message: turn.Result.Text, Timestamp: turn.FinishedAt}
		session, err := c.sessions.Append(c.session.ID, record)
		if err != nil {
			config.Debugf("[Council] Failed to append record: %v", err)
		} else {
			c.session = session
		}
	}

	if c.reflections != nil {
		err := c.reflections.Save(storage.Reflection{
			Speaker: turn.Speaker,
			Reply:   turn.Result.Text,
			Prompt:  turn.Prompt,
			Frames:  turn.Result.Frames,
			Reason:  turn.Reason(),
			At:      turn.FinishedAt,
		})
		if err != nil {
			config.Debugf("[Council] Failed to save reflection: %v", err)
		}
	}

	if c.audit != nil {
		sessionID := ""
		if c.session != nil {
			sessionID = c.session.ID
		}
		_, err := c.audit.RecordTurn(storage.Turn{
			SessionID:  sessionID,
			Step:       turn.Step,
			Speaker:    turn.Speaker,
			Receiver:   turn.Receiver,
			Prompt:     turn.Prompt,
			Response:   turn.Result.Text,
			Frames:     turn.Result.Frames,
			Reason:     turn.Reason(),
			Path:       string(turn.Result.Path),
			Stale:      turn.Stale,
			Fallback:   turn.Fallback,
			StartedAt:  turn.StartedAt,
			FinishedAt: turn.FinishedAt,
		})
		if err != nil {
			config.Debugf("[Council] Failed to record turn: %v", err)
		}
	}
}

func (c *Council) phase(ctx context.Context, turn *TurnResult, phase Phase) {
	c.emit(ctx, Event{Kind: EventPhase, Round: turn.Round, Step: turn.Step, Speaker: turn.Speaker, Receiver: turn.Receiver, Phase: phase})
}

func (c *Council) emit(ctx context.Context, ev Event) {
	if c.events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = c.now()
	}
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}
