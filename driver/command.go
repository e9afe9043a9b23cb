package driver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"council/config"
	"council/model"
)

// Runner executes one shell command line
type Runner interface {
	Run(ctx context.Context, command string) ([]byte, error)
}

// ShellRunner runs commands through a shell with -c
type ShellRunner struct {
	Shell string
}

func (r ShellRunner) Run(ctx context.Context, command string) ([]byte, error) {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

// Command drives the screen with the shell command templates from the
// [driver] config table and delivers text through the clipboard.
type Command struct {
	Templates  config.DriverConfig
	Runner     Runner
	Clipboard  Clipboard
	CaptureDir string
}

// NewCommand creates a command driver using the system shell and clipboard
func NewCommand(templates config.DriverConfig, captureDir string) *Command {
	return &Command{
		Templates:  templates,
		Runner:     ShellRunner{Shell: templates.Shell},
		Clipboard:  SystemClipboard{},
		CaptureDir: captureDir,
	}
}

func (c *Command) Focus(ctx context.Context, state model.FocusState, p model.Participant) (model.FocusState, error) {
	plan := PlanSwitch(state, p.Desktop)
	tmpl := c.Templates.DesktopRight
	if plan.Direction == Left {
		tmpl = c.Templates.DesktopLeft
	}

	for i := 0; i < plan.Steps; i++ {
		vars := map[string]string{"desktop": strconv.Itoa(p.Desktop)}
		if err := c.run(ctx, tmpl, vars); err != nil {
			return plan.Apply(state, i), fmt.Errorf("failed to switch desktop: %w", err)
		}
		if err := Wait(ctx, c.Templates.DesktopSettle.Duration); err != nil {
			return plan.Apply(state, i+1), err
		}
	}
	state = plan.Apply(state, plan.Steps)

	if err := c.click(ctx, p.SafeClick); err != nil {
		return state, fmt.Errorf("failed to focus %s: %w", p.Name, err)
	}
	config.Debugf("[Driver] Focused %s on desktop %d", p.Name, p.Desktop)
	return state.On(p.Desktop, p.Name), nil
}

func (c *Command) Deliver(ctx context.Context, p model.Participant, text string) error {
	if c.Clipboard == nil {
		return fmt.Errorf("no clipboard configured")
	}
	if err := CopyVerified(c.Clipboard, text, c.Templates.VerifyPaste); err != nil {
		return err
	}
	if err := c.click(ctx, p.Input); err != nil {
		return fmt.Errorf("failed to click input: %w", err)
	}
	if err := Wait(ctx, p.TypingDelay); err != nil {
		return err
	}
	if err := c.run(ctx, c.Templates.Paste, nil); err != nil {
		return fmt.Errorf("failed to paste: %w", err)
	}
	if err := Wait(ctx, p.TypingDelay); err != nil {
		return err
	}
	if c.Templates.Submit != "" {
		if err := c.run(ctx, c.Templates.Submit, nil); err != nil {
			return fmt.Errorf("failed to submit: %w", err)
		}
		return nil
	}
	// No submit key configured: press the send button instead
	if err := c.click(ctx, p.SendButton); err != nil {
		return fmt.Errorf("failed to click send: %w", err)
	}
	return nil
}

func (c *Command) Scroll(ctx context.Context, p model.Participant) error {
	if c.Templates.Scroll == "" || p.ScrollStep == 0 {
		return nil
	}
	center := p.CaptureRegion.Center()
	vars := map[string]string{
		"x":      strconv.Itoa(center.X),
		"y":      strconv.Itoa(center.Y),
		"amount": strconv.Itoa(p.ScrollStep),
	}
	if err := c.run(ctx, c.Templates.Scroll, vars); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

func (c *Command) Capture(ctx context.Context, p model.Participant) (model.Capture, error) {
	if err := os.MkdirAll(c.CaptureDir, 0700); err != nil {
		return model.Capture{}, fmt.Errorf("failed to create capture directory: %w", err)
	}

	taken := time.Now()
	name := fmt.Sprintf("%s-%d.png", strings.ToLower(p.Name), taken.UnixNano())
	path := filepath.Join(c.CaptureDir, name)
	r := p.CaptureRegion
	vars := map[string]string{
		"x":    strconv.Itoa(r.X),
		"y":    strconv.Itoa(r.Y),
		"w":    strconv.Itoa(r.Width),
		"h":    strconv.Itoa(r.Height),
		"path": path,
	}
	if err := c.run(ctx, c.Templates.Capture, vars); err != nil {
		return model.Capture{}, fmt.Errorf("failed to capture %s: %w", p.Name, err)
	}

	return model.Capture{
		Participant: p.Name,
		Region:      r,
		TakenAt:     taken,
		Path:        path,
	}, nil
}

func (c *Command) click(ctx context.Context, at model.Point) error {
	if c.Templates.Click == "" {
		return nil
	}
	return c.run(ctx, c.Templates.Click, map[string]string{
		"x": strconv.Itoa(at.X),
		"y": strconv.Itoa(at.Y),
	})
}

func (c *Command) run(ctx context.Context, tmpl string, vars map[string]string) error {
	if tmpl == "" {
		return fmt.Errorf("no command configured")
	}
	line := Expand(tmpl, vars)
	config.Debugf("[Driver] run: %s", line)
	_, err := c.Runner.Run(ctx, line)
	return err
}

// Expand fills {name} placeholders. {path} is shell-quoted.
func Expand(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		if k == "path" {
			v = shellQuote(v)
		}
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
