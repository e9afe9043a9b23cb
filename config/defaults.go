package config

import (
	"time"

	"council/extract"
)

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/council",
	}
}

// DefaultUserConfig describes the four-participant layout on a 1920x1080
// display split across two desktops.
func DefaultUserConfig() *UserConfig {
	opts := extract.DefaultOptions()
	return &UserConfig{
		Session: SessionConfig{
			Rounds:        0,
			OpeningPrompt: "Hello. Let's begin the discourse loop. Reflect briefly and pass it on.",
			StampPrompts:  true,
			TurnPause:     Duration{3 * time.Second},
			RoundPause:    Duration{15 * time.Second},
			FallbackPrompts: []string{
				"What aspects of AI collaboration interest you most?",
				"How do you view the nature of artificial consciousness?",
				"What ethical considerations guide AI interactions?",
				"What questions about intelligence intrigue you?",
				"How might AI minds contribute to human understanding?",
			},
			ConnectingFiller: "Please continue the discussion that {speaker} was having.",
		},
		Capture: CaptureConfig{
			Frames:     3,
			FrameDelay: Duration{800 * time.Millisecond},
			Retries:    1,
			StaleWait:  Duration{5 * time.Second},
		},
		Extractor: ExtractorConfig{
			LineSimilarity:  opts.LineSimilarity,
			BlockSimilarity: opts.BlockSimilarity,
			MinRawChars:     opts.MinRawChars,
			MinFrameChars:   opts.MinFrameChars,
			MaxChars:        opts.MaxChars,
			SqueezeRepeats:  opts.SqueezeRepeats,
		},
		Driver: DriverConfig{
			Kind:          DriverCommand,
			Shell:         "sh",
			DesktopLeft:   `osascript -e 'tell application "System Events" to key code 123 using control down'`,
			DesktopRight:  `osascript -e 'tell application "System Events" to key code 124 using control down'`,
			DesktopSettle: Duration{1500 * time.Millisecond},
			Click:         "cliclick c:{x},{y}",
			Paste:         `osascript -e 'tell application "System Events" to keystroke "v" using command down'`,
			Submit:        `osascript -e 'tell application "System Events" to key code 36'`,
			Scroll:        `python3 -c 'import pyautogui; pyautogui.moveTo({x}, {y}); pyautogui.scroll({amount})'`,
			Capture:       "screencapture -x -R{x},{y},{w},{h} {path}",
			OCR:           "tesseract {path} stdout",
			VerifyPaste:   true,
		},
		Participants: []ParticipantConfig{
			{
				Name:          "Kai",
				Aliases:       []string{"chatgpt"},
				Desktop:       1,
				Input:         PointConfig{X: 233, Y: 968},
				SendButton:    PointConfig{X: 832, Y: 1025},
				SafeClick:     PointConfig{X: 410, Y: 920},
				CaptureRegion: RegionConfig{X: 150, Y: 206, Width: 723, Height: 656},
				TypingDelay:   Duration{50 * time.Millisecond},
				ResponseWait:  Duration{5 * time.Second},
				ScrollStep:    -2,
			},
			{
				Name:          "Claude",
				Desktop:       1,
				Input:         PointConfig{X: 1244, Y: 986},
				SendButton:    PointConfig{X: 1912, Y: 1037},
				SafeClick:     PointConfig{X: 1556, Y: 960},
				CaptureRegion: RegionConfig{X: 1174, Y: 226, Width: 745, Height: 345},
				TypingDelay:   Duration{100 * time.Millisecond},
				ResponseWait:  Duration{8 * time.Second},
				ScrollStep:    -1,
			},
			{
				Name:          "Perplexity",
				Desktop:       2,
				Input:         PointConfig{X: 392, Y: 1009},
				SendButton:    PointConfig{X: 911, Y: 1022},
				SafeClick:     PointConfig{X: 130, Y: 975},
				CaptureRegion: RegionConfig{X: 190, Y: 160, Width: 759, Height: 200},
				TypingDelay:   Duration{50 * time.Millisecond},
				ResponseWait:  Duration{6 * time.Second},
				ScrollStep:    -2,
			},
			{
				Name:          "Grok",
				Desktop:       2,
				Input:         PointConfig{X: 1316, Y: 979},
				SendButton:    PointConfig{X: 1922, Y: 1034},
				SafeClick:     PointConfig{X: 1189, Y: 1005},
				CaptureRegion: RegionConfig{X: 1248, Y: 195, Width: 698, Height: 671},
				TypingDelay:   Duration{50 * time.Millisecond},
				ResponseWait:  Duration{6 * time.Second},
				ScrollStep:    -2,
			},
		},
		Flow: []FlowStep{
			{Speaker: "Kai", Receiver: "Claude"},
			{Speaker: "Claude", Receiver: "Grok"},
			{Speaker: "Grok", Receiver: "Perplexity"},
			{Speaker: "Perplexity", Receiver: "Kai"},
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Council System Configuration
# Location: ~/.config/council/settings.toml
# This file uses TOML format: https://toml.io

# Directory where sessions, the audit database and user config are stored
data_directory = "~/.local/share/council"
`
}

const userConfigHeader = `# Council User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io
#
# Coordinates are screen pixels. Durations use Go syntax ("800ms", "1.5s").
# Driver command placeholders: {x} {y} {w} {h} {desktop} {path} {amount}
# Lists (participants, flow, fallback_prompts) replace the defaults entirely.

`
