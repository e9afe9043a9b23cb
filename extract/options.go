package extract

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

const (
	// SentinelEmpty is returned when no frame carried enough raw OCR text
	SentinelEmpty = "[No readable text]"

	// SentinelFiltered is returned when frames had text but none of it
	// survived garbage filtering
	SentinelFiltered = "[No readable text after filtering]"

	// Ellipsis terminates truncated output
	Ellipsis = "..."
)

// Reason is the short diagnostic code attached to every Result
type Reason string

const (
	ReasonCaptured Reason = "captured"
	ReasonEmptyOCR Reason = "empty after ocr"
	ReasonFiltered Reason = "no readable text after filtering"
)

// Path records which strategy produced the text
type Path string

const (
	PathNone         Path = ""
	PathTimestamp    Path = "timestamp"
	PathLongestBlock Path = "longest-block"
)

// DefaultGarbagePatterns are recurring OCR misreads and chat UI chrome seen
// on captures of the supported interfaces.
var DefaultGarbagePatterns = []string{
	// button labels
	`\bSend message\b`,
	`\bRegenerate( response)?\b`,
	`\bCopy( code)?\b`,
	`\bRetry\b`,
	// disclaimers
	`ChatGPT can make mistakes\.?( Check important info\.?)?`,
	`Claude can make mistakes\.?( Please double-check responses\.?)?`,
	// relay acknowledgements echoed back by participants
	`Received and logged\.?`,
	`Your words will form`,
	`Message steady across nodes`,
	`Monitoring fidelity`,
	// misreads of the scroll bar and avatar icons
	`\btm arrect\b`,
	`\bMmilgrnet\b`,
	`\bSBnvthing\b`,
	`\bVFpwer\b`,
	`\bKRek\b`,
	`\bMOwWw\b`,
	`\bOG PWS By\b`,
	// replacement characters and empty glyph boxes
	`[\x{FFFD}\x{25A1}\x{25AF}\x{2610}]+`,
}

// Options tunes the extractor. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	// GarbagePatterns are regular expressions removed case-insensitively
	// from every frame before analysis
	GarbagePatterns []string

	// LineSimilarity is the ratio at or above which two lines are duplicates
	LineSimilarity float64

	// BlockSimilarity is the ratio at or above which two whole frames are
	// duplicates
	BlockSimilarity float64

	// MinRawChars is the trimmed raw length a frame needs to count at all
	MinRawChars int

	// MinFrameChars is the trimmed length a frame needs after filtering
	MinFrameChars int

	// MaxChars caps the output, ellipsis included
	MaxChars int

	// SqueezeRepeats collapses consecutive repeated words
	SqueezeRepeats bool
}

// DefaultOptions returns the tuning used against live captures
func DefaultOptions() Options {
	patterns := make([]string, len(DefaultGarbagePatterns))
	copy(patterns, DefaultGarbagePatterns)
	return Options{
		GarbagePatterns: patterns,
		LineSimilarity:  0.9,
		BlockSimilarity: 0.8,
		MinRawChars:     15,
		MinFrameChars:   10,
		MaxChars:        800,
		SqueezeRepeats:  true,
	}
}

// Validate checks the option ranges
func (o Options) Validate() error {
	if o.LineSimilarity <= 0 || o.LineSimilarity > 1 {
		return fmt.Errorf("line similarity must be in (0, 1], got %v", o.LineSimilarity)
	}
	if o.BlockSimilarity <= 0 || o.BlockSimilarity > 1 {
		return fmt.Errorf("block similarity must be in (0, 1], got %v", o.BlockSimilarity)
	}
	if o.MinRawChars < 0 || o.MinFrameChars < 0 {
		return fmt.Errorf("minimum lengths must not be negative")
	}
	if o.MaxChars <= utf8.RuneCountInString(Ellipsis) {
		return fmt.Errorf("max chars must exceed %d, got %d", utf8.RuneCountInString(Ellipsis), o.MaxChars)
	}
	return nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid garbage pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
