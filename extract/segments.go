package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// markerPattern matches [HH:MM:SS] and speaker-tagged variants such as
// [Kai–14:44:23].
var markerPattern = regexp.MustCompile(`\[(?:[^\[\]\d]{1,32}[–—-]\s*)?(\d{2}):(\d{2}):(\d{2})\]`)

// Segment is the content between one timestamp marker and the next
type Segment struct {
	Timestamp string // HH:MM:SS
	Content   string
	Frame     int
}

// Segments collects timestamped segments from every frame in order. Markers
// with out-of-range clock values are not treated as boundaries.
func Segments(frames []string) []Segment {
	var segments []Segment
	for i, frame := range frames {
		segments = append(segments, frameSegments(i, frame)...)
	}
	return segments
}

func frameSegments(index int, frame string) []Segment {
	var markers [][]int
	for _, loc := range markerPattern.FindAllStringSubmatchIndex(frame, -1) {
		if validClock(frame[loc[2]:loc[3]], frame[loc[4]:loc[5]], frame[loc[6]:loc[7]]) {
			markers = append(markers, loc)
		}
	}

	var segments []Segment
	for i, loc := range markers {
		end := len(frame)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		content := strings.TrimSpace(frame[loc[1]:end])
		if !hasAlnum(content) {
			continue
		}
		segments = append(segments, Segment{
			Timestamp: frame[loc[2]:loc[3]] + ":" + frame[loc[4]:loc[5]] + ":" + frame[loc[6]:loc[7]],
			Content:   content,
			Frame:     index,
		})
	}
	return segments
}

func validClock(hh, mm, ss string) bool {
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	s, _ := strconv.Atoi(ss)
	return h < 24 && m < 60 && s < 60
}

// SortSegments orders segments by timestamp ascending. Comparison is on the
// HH:MM:SS string, which assumes a single-day session.
func SortSegments(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Timestamp < segments[j].Timestamp
	})
}

// Latest returns the segment with the largest timestamp. When several
// segments share it, the longest content wins since it is the most completely
// rendered copy.
func Latest(segments []Segment) (Segment, bool) {
	if len(segments) == 0 {
		return Segment{}, false
	}
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	SortSegments(sorted)

	best := sorted[len(sorted)-1]
	for i := len(sorted) - 2; i >= 0 && sorted[i].Timestamp == best.Timestamp; i-- {
		if utf8.RuneCountInString(sorted[i].Content) > utf8.RuneCountInString(best.Content) {
			best = sorted[i]
		}
	}
	return best, true
}

// StripMarkers removes every timestamp marker from s
func StripMarkers(s string) string {
	return markerPattern.ReplaceAllString(s, " ")
}
