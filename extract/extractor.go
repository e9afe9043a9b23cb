package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// Extractor turns repeated OCR passes over one chat region into the latest
// reply. It holds no state between calls.
type Extractor struct {
	opts    Options
	garbage []*regexp.Regexp
}

// Result is the outcome of one extraction. Text is never empty: failures
// carry one of the sentinels.
type Result struct {
	Text      string
	Frames    int
	Reason    Reason
	Path      Path
	Truncated bool
}

// OK reports whether Text is real content rather than a sentinel
func (r Result) OK() bool {
	return r.Reason == ReasonCaptured
}

// New validates opts and compiles the garbage patterns
func New(opts Options) (*Extractor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	garbage, err := compilePatterns(opts.GarbagePatterns)
	if err != nil {
		return nil, err
	}
	return &Extractor{opts: opts, garbage: garbage}, nil
}

// Default returns an extractor built from DefaultOptions
func Default() *Extractor {
	e, err := New(DefaultOptions())
	if err != nil {
		// DefaultOptions is static; failing here is a programming error
		panic(err)
	}
	return e
}

// Options returns the options the extractor was built with
func (e *Extractor) Options() Options {
	return e.opts
}

// Filter removes garbage patterns from a single frame. Line structure is kept.
func (e *Extractor) Filter(raw string) string {
	for _, re := range e.garbage {
		raw = re.ReplaceAllString(raw, "")
	}
	return raw
}

// Extract picks the latest reply out of frames
func (e *Extractor) Extract(frames []string) Result {
	return e.ExtractReply(frames, "")
}

// ExtractReply is Extract for a transcript that echoes the prompt just sent.
// When the chosen text opens with prompt (markers ignored, OCR noise
// tolerated), the echo is dropped so only the reply remains.
func (e *Extractor) ExtractReply(frames []string, prompt string) Result {
	var usable []string
	rawFrames := 0
	for _, raw := range frames {
		if runeLen(raw) < e.opts.MinRawChars || runeLen(raw) == 0 {
			continue
		}
		rawFrames++
		filtered := e.Filter(raw)
		if runeLen(filtered) < e.opts.MinFrameChars || runeLen(filtered) == 0 {
			continue
		}
		usable = append(usable, filtered)
	}

	if rawFrames == 0 {
		return Result{Text: SentinelEmpty, Reason: ReasonEmptyOCR}
	}
	if len(usable) == 0 {
		return Result{Text: SentinelFiltered, Reason: ReasonFiltered}
	}

	var text string
	path := PathTimestamp
	if seg, ok := Latest(Segments(usable)); ok {
		text = seg.Content
	} else {
		text = e.longestBlock(usable)
		path = PathLongestBlock
	}
	text = e.trimEcho(text, prompt)

	text, truncated := e.finish(text)
	if text == "" {
		return Result{Text: SentinelFiltered, Frames: len(usable), Reason: ReasonFiltered}
	}
	return Result{
		Text:      text,
		Frames:    len(usable),
		Reason:    ReasonCaptured,
		Path:      path,
		Truncated: truncated,
	}
}

// trimEcho removes a leading copy of prompt from text. Word windows a couple
// of words either side of the prompt length are tried so a dropped or split
// word in the OCR does not defeat the match.
func (e *Extractor) trimEcho(text, prompt string) string {
	echo := strings.Fields(StripMarkers(e.Filter(prompt)))
	if len(echo) == 0 {
		return text
	}
	words := strings.Fields(StripMarkers(text))
	want := strings.Join(echo, " ")

	best, cut := 0.0, 0
	for n := max(1, len(echo)-2); n <= min(len(words), len(echo)+2); n++ {
		if sim := Similarity(strings.Join(words[:n], " "), want); sim > best {
			best, cut = sim, n
		}
	}
	if best < e.opts.BlockSimilarity {
		return text
	}
	return strings.Join(words[cut:], " ")
}

// Clean runs the fallback cleanup on a single frame: garbage removal, line
// de-duplication and the final whitespace and length pass.
func (e *Extractor) Clean(raw string) string {
	text, _ := e.finish(e.dedupLines(e.Filter(raw)))
	return text
}

// longestBlock de-duplicates frames against each other and returns the
// longest survivor. Fragmentary misreads are shorter than content that
// reproduces across passes.
func (e *Extractor) longestBlock(frames []string) string {
	var blocks []string
	for _, frame := range frames {
		block := e.dedupLines(frame)
		if block == "" {
			continue
		}
		merged := false
		for i, existing := range blocks {
			if Similarity(block, existing) >= e.opts.BlockSimilarity {
				if runeLen(block) > runeLen(existing) {
					blocks[i] = block
				}
				merged = true
				break
			}
		}
		if !merged {
			blocks = append(blocks, block)
		}
	}

	longest := ""
	for _, block := range blocks {
		if runeLen(block) > runeLen(longest) {
			longest = block
		}
	}
	return longest
}

// dedupLines drops symbol-only lines and near-duplicate lines, then joins the
// rest with single spaces.
func (e *Extractor) dedupLines(frame string) string {
	var kept []string
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !hasAlnum(line) {
			continue
		}
		duplicate := false
		for _, seen := range kept {
			if Similarity(line, seen) >= e.opts.LineSimilarity {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, " ")
}

func (e *Extractor) finish(text string) (string, bool) {
	text = strings.Join(strings.Fields(StripMarkers(text)), " ")
	if e.opts.SqueezeRepeats {
		text = squeezeRepeats(text)
	}
	return truncate(text, e.opts.MaxChars)
}

func squeezeRepeats(text string) string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for i, w := range words {
		if i > 0 && strings.EqualFold(w, words[i-1]) {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// truncate caps text at limit runes, ellipsis included
func truncate(text string, limit int) (string, bool) {
	runes := []rune(text)
	if len(runes) <= limit {
		return text, false
	}
	cut := limit - len([]rune(Ellipsis))
	head := strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace)
	return head + Ellipsis, true
}
