// Package driver moves focus between chat interfaces, delivers prompts to
// them and captures their transcripts. Everything here is environment glue;
// the interfaces are what the council loop depends on.
package driver

import (
	"context"
	"errors"
	"os"
	"time"

	"council/model"
)

// ErrNoCapture is returned by recognizers handed a capture with neither text
// nor an image file
var ErrNoCapture = errors.New("capture has no image or text")

// Driver is the input and capture side of the automation
type Driver interface {
	// Focus brings participant p to the front, starting from state, and
	// returns the new state. On error the returned state reflects the
	// desktop switches that did happen.
	Focus(ctx context.Context, state model.FocusState, p model.Participant) (model.FocusState, error)

	// Deliver types or pastes text into p's input and submits it
	Deliver(ctx context.Context, p model.Participant, text string) error

	// Scroll nudges p's transcript so the next capture sees shifted text
	Scroll(ctx context.Context, p model.Participant) error

	// Capture grabs p's read region
	Capture(ctx context.Context, p model.Participant) (model.Capture, error)
}

// Recognizer turns a capture into raw OCR text
type Recognizer interface {
	Recognize(ctx context.Context, c model.Capture) (string, error)
}

// TextRecognizer returns the text already attached to a capture. An empty
// capture yields empty text, not an error.
type TextRecognizer struct{}

func (TextRecognizer) Recognize(_ context.Context, c model.Capture) (string, error) {
	return c.Text, nil
}

// Wait sleeps for d or until ctx is done
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Discard removes the capture's image file, if any
func Discard(c model.Capture) error {
	if c.Path == "" {
		return nil
	}
	err := os.Remove(c.Path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
