package config

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"council/extract"
	"council/model"
)

const (
	DriverCommand = "command"
	DriverReplay  = "replay"
)

// Profile converts the TOML entry into the runtime participant profile
func (p ParticipantConfig) Profile() model.Participant {
	return model.Participant{
		Name:       p.Name,
		Aliases:    append([]string(nil), p.Aliases...),
		Desktop:    p.Desktop,
		Input:      model.Point{X: p.Input.X, Y: p.Input.Y},
		SendButton: model.Point{X: p.SendButton.X, Y: p.SendButton.Y},
		SafeClick:  model.Point{X: p.SafeClick.X, Y: p.SafeClick.Y},
		CaptureRegion: model.Region{
			X:      p.CaptureRegion.X,
			Y:      p.CaptureRegion.Y,
			Width:  p.CaptureRegion.Width,
			Height: p.CaptureRegion.Height,
		},
		TypingDelay:  p.TypingDelay.Duration,
		ResponseWait: p.ResponseWait.Duration,
		ScrollStep:   p.ScrollStep,
	}
}

// Profiles returns every configured participant in declaration order
func (u *UserConfig) Profiles() []model.Participant {
	profiles := make([]model.Participant, 0, len(u.Participants))
	for _, p := range u.Participants {
		profiles = append(profiles, p.Profile())
	}
	return profiles
}

// Lookup finds a participant by exact name or alias, ignoring case
func (u *UserConfig) Lookup(name string) (model.Participant, bool) {
	for _, p := range u.Participants {
		profile := p.Profile()
		if profile.Matches(name) {
			return profile, true
		}
	}
	return model.Participant{}, false
}

// Resolve finds a participant by exact name first, then by fuzzy match over
// names and aliases ("perp" finds Perplexity).
func (u *UserConfig) Resolve(query string) (model.Participant, error) {
	if p, ok := u.Lookup(query); ok {
		return p, nil
	}

	var targets []string
	var owners []int
	for i, p := range u.Participants {
		targets = append(targets, p.Name)
		owners = append(owners, i)
		for _, alias := range p.Aliases {
			targets = append(targets, alias)
			owners = append(owners, i)
		}
	}

	matches := fuzzy.Find(strings.TrimSpace(query), targets)
	if len(matches) == 0 {
		return model.Participant{}, fmt.Errorf("no participant matches %q", query)
	}
	return u.Participants[owners[matches[0].Index]].Profile(), nil
}

// Steps returns the configured flow, or a ring over the participants in
// declaration order when no flow is configured.
func (u *UserConfig) Steps() []FlowStep {
	if len(u.Flow) > 0 {
		return u.Flow
	}
	steps := make([]FlowStep, 0, len(u.Participants))
	for i, p := range u.Participants {
		next := u.Participants[(i+1)%len(u.Participants)]
		steps = append(steps, FlowStep{Speaker: p.Name, Receiver: next.Name})
	}
	return steps
}

// ExtractorOptions builds extractor options from the [extractor] table
func (u *UserConfig) ExtractorOptions() extract.Options {
	opts := extract.DefaultOptions()
	e := u.Extractor
	opts.LineSimilarity = e.LineSimilarity
	opts.BlockSimilarity = e.BlockSimilarity
	opts.MinRawChars = e.MinRawChars
	opts.MinFrameChars = e.MinFrameChars
	opts.MaxChars = e.MaxChars
	opts.SqueezeRepeats = e.SqueezeRepeats
	if e.ReplaceGarbage {
		opts.GarbagePatterns = nil
	}
	opts.GarbagePatterns = append(opts.GarbagePatterns, e.ExtraGarbage...)
	return opts
}

// FallbackPrompt returns the rotating prompt used when a reply could not be
// read
func (u *UserConfig) FallbackPrompt(step int) string {
	prompts := u.Session.FallbackPrompts
	if len(prompts) == 0 {
		return u.Session.OpeningPrompt
	}
	if step < 0 {
		step = -step
	}
	return prompts[step%len(prompts)]
}

// Filler returns the connecting message forwarded instead of a stale reply
func (u *UserConfig) Filler(speaker string) string {
	filler := u.Session.ConnectingFiller
	if filler == "" {
		filler = "Please continue the discussion that {speaker} was having."
	}
	return strings.ReplaceAll(filler, "{speaker}", speaker)
}

// Validate checks the config for mistakes that would only surface mid-run
func (u *UserConfig) Validate() error {
	if len(u.Participants) == 0 {
		return fmt.Errorf("at least one participant is required")
	}

	seen := make(map[string]string)
	for _, p := range u.Participants {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("participant name is required")
		}
		for _, name := range append([]string{p.Name}, p.Aliases...) {
			key := strings.ToLower(strings.TrimSpace(name))
			if owner, dup := seen[key]; dup {
				return fmt.Errorf("name %q is used by both %s and %s", name, owner, p.Name)
			}
			seen[key] = p.Name
		}
		if p.Profile().CaptureRegion.Empty() {
			return fmt.Errorf("participant %s: capture region must have a positive size", p.Name)
		}
		if p.ResponseWait.Duration < 0 || p.TypingDelay.Duration < 0 {
			return fmt.Errorf("participant %s: waits must not be negative", p.Name)
		}
	}

	for i, step := range u.Flow {
		if _, ok := u.Lookup(step.Speaker); !ok {
			return fmt.Errorf("flow step %d: unknown speaker %q", i+1, step.Speaker)
		}
		if _, ok := u.Lookup(step.Receiver); !ok {
			return fmt.Errorf("flow step %d: unknown receiver %q", i+1, step.Receiver)
		}
	}

	if u.Capture.Frames < 1 {
		return fmt.Errorf("capture frames must be at least 1")
	}
	if u.Capture.Retries < 0 {
		return fmt.Errorf("capture retries must not be negative")
	}
	if u.Session.Rounds < 0 {
		return fmt.Errorf("rounds must not be negative")
	}

	switch u.Driver.Kind {
	case DriverCommand:
		if u.Driver.Capture == "" || u.Driver.OCR == "" {
			return fmt.Errorf("driver capture and ocr commands are required")
		}
		if u.Capture.Frames > 1 && u.Driver.Scroll == "" {
			return fmt.Errorf("driver scroll command is required to take %d frames", u.Capture.Frames)
		}
	case DriverReplay:
		if u.Driver.ReplayDir == "" {
			return fmt.Errorf("driver replay_dir is required for the replay driver")
		}
	default:
		return fmt.Errorf("unknown driver kind %q", u.Driver.Kind)
	}

	if _, err := extract.New(u.ExtractorOptions()); err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	return nil
}
