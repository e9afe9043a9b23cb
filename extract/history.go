package extract

import "strings"

type observation struct {
	text       string
	normalized string
}

// History remembers the last captured reply per participant so a relay can
// tell a new reply from a transcript that has not changed yet.
type History struct {
	last map[string]observation
}

// NewHistory creates an empty history
func NewHistory() *History {
	return &History{last: make(map[string]observation)}
}

// Observe records r for participant and reports whether it repeats the
// previous captured reply. Sentinel results are neither stale nor recorded.
func (h *History) Observe(participant string, r Result) bool {
	if !r.OK() {
		return false
	}
	key := strings.ToLower(strings.TrimSpace(participant))
	current := observation{text: r.Text, normalized: normalize(r.Text)}
	prev, seen := h.last[key]
	h.last[key] = current
	return seen && prev.normalized == current.normalized
}

