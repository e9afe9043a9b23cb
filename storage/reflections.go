package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Reflection is the note kept for one reply
type Reflection struct {
	Speaker string
	Reply   string
	Prompt  string
	Frames  int
	Reason  string
	At      time.Time
}

// Reflections appends per-day, per-speaker notes under
// <data_dir>/reflections plus a one-line-per-reply meta log.
type Reflections struct {
	dir string
}

func NewReflections(dataDir string) (*Reflections, error) {
	dir := filepath.Join(dataDir, "reflections")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create reflections directory: %w", err)
	}
	return &Reflections{dir: dir}, nil
}

// Path returns the notes file for speaker on the day of at
func (r *Reflections) Path(speaker string, at time.Time) string {
	name := fmt.Sprintf("reflections_%s_%s.txt", at.Format("2006-01-02"), SanitizeFilename(speaker))
	return filepath.Join(r.dir, name)
}

// MetaPath returns the meta log file
func (r *Reflections) MetaPath() string {
	return filepath.Join(r.dir, "meta.log")
}

func (r *Reflections) Save(ref Reflection) error {
	if ref.At.IsZero() {
		ref.At = time.Now()
	}
	stamp := ref.At.Format("2006-01-02_15-04-05")

	note := fmt.Sprintf("\n[%s] %s REPLY:\n%s\nSource prompt: %s\nFrames captured: %d | Stop reason: %s\n\n",
		stamp, ref.Speaker, ref.Reply, ref.Prompt, ref.Frames, ref.Reason)
	if err := appendFile(r.Path(ref.Speaker, ref.At), note); err != nil {
		return fmt.Errorf("failed to save reflection: %w", err)
	}

	meta := fmt.Sprintf("[%s] %s replied. Prompt: %s\n", stamp, ref.Speaker, ref.Prompt)
	if err := appendFile(r.MetaPath(), meta); err != nil {
		return fmt.Errorf("failed to write meta log: %w", err)
	}
	return nil
}

func appendFile(path, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
