package driver

import (
	"context"
	"fmt"

	"council/config"
	"council/model"
)

// CommandRecognizer runs an OCR command such as "tesseract {path} stdout" on
// the capture file
type CommandRecognizer struct {
	Template string
	Runner   Runner
}

// NewCommandRecognizer creates a recognizer running template through shell
func NewCommandRecognizer(template, shell string) *CommandRecognizer {
	return &CommandRecognizer{Template: template, Runner: ShellRunner{Shell: shell}}
}

func (r *CommandRecognizer) Recognize(ctx context.Context, c model.Capture) (string, error) {
	if c.Recognized() {
		return c.Text, nil
	}
	if c.Path == "" {
		return "", ErrNoCapture
	}
	line := Expand(r.Template, map[string]string{"path": c.Path})
	out, err := r.Runner.Run(ctx, line)
	if err != nil {
		return "", fmt.Errorf("ocr failed for %s: %w", c.Participant, err)
	}
	config.Debugf("[OCR] %s: %d chars", c.Participant, len(out))
	return string(out), nil
}
