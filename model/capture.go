package model

import "time"

// Capture is a screenshot of one participant's read region. Captures are
// discarded once recognized.
type Capture struct {
	Participant string
	Region      Region
	TakenAt     time.Time

	// Path is the image file on disk, when the driver wrote one
	Path string

	// Text is set by drivers that already hold recognized text (replays)
	Text string
}

// Recognized reports whether the capture already carries OCR text
func (c Capture) Recognized() bool {
	return c.Text != ""
}
