package model

import (
	"strings"
	"time"
)

// Point is a screen coordinate in pixels
type Point struct {
	X int `toml:"x"`
	Y int `toml:"y"`
}

// Region is a rectangular screen area, origin at the top-left corner
type Region struct {
	X      int `toml:"x"`
	Y      int `toml:"y"`
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Empty reports whether the region has no area
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Center returns the middle of the region
func (r Region) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Participant is the capability profile of one chat interface: where to type,
// what to read and how long to wait.
type Participant struct {
	Name          string
	Aliases       []string
	Desktop       int
	Input         Point
	SendButton    Point
	SafeClick     Point
	CaptureRegion Region
	TypingDelay   time.Duration
	ResponseWait  time.Duration
	ScrollStep    int
}

// Matches reports whether name refers to this participant (case-insensitive,
// aliases included)
func (p Participant) Matches(name string) bool {
	name = strings.TrimSpace(name)
	if strings.EqualFold(p.Name, name) {
		return true
	}
	for _, alias := range p.Aliases {
		if strings.EqualFold(alias, name) {
			return true
		}
	}
	return false
}
