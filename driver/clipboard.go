package driver

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// Clipboard is the system clipboard seen as a string buffer
type Clipboard interface {
	WriteAll(text string) error
	ReadAll() (string, error)
}

// SystemClipboard uses the platform clipboard
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

func (SystemClipboard) ReadAll() (string, error) {
	return clipboard.ReadAll()
}

// CopyVerified writes text to the clipboard and, when verify is set, reads it
// back. A mismatch means another process owns the clipboard and pasting would
// send the wrong prompt.
func CopyVerified(cb Clipboard, text string, verify bool) error {
	if err := cb.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	if !verify {
		return nil
	}
	got, err := cb.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read clipboard back: %w", err)
	}
	if got != text {
		return fmt.Errorf("clipboard verification failed: wrote %d bytes, read %d", len(text), len(got))
	}
	return nil
}
