package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

// Duration is a time.Duration written as "1.5s" in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Seconds builds a Duration from fractional seconds
func Seconds(s float64) Duration {
	return Duration{time.Duration(s * float64(time.Second))}
}

type SessionConfig struct {
	// Rounds is the number of full passes over the flow; 0 runs until interrupted
	Rounds           int      `toml:"rounds"`
	OpeningPrompt    string   `toml:"opening_prompt"`
	StampPrompts     bool     `toml:"stamp_prompts"`
	TurnPause        Duration `toml:"turn_pause"`
	RoundPause       Duration `toml:"round_pause"`
	FallbackPrompts  []string `toml:"fallback_prompts"`
	ConnectingFiller string   `toml:"connecting_filler"`
}

type CaptureConfig struct {
	Frames     int      `toml:"frames"`
	FrameDelay Duration `toml:"frame_delay"`
	Retries    int      `toml:"retries"`
	StaleWait  Duration `toml:"stale_wait"`
}

type ExtractorConfig struct {
	LineSimilarity  float64  `toml:"line_similarity"`
	BlockSimilarity float64  `toml:"block_similarity"`
	MinRawChars     int      `toml:"min_raw_chars"`
	MinFrameChars   int      `toml:"min_frame_chars"`
	MaxChars        int      `toml:"max_chars"`
	SqueezeRepeats  bool     `toml:"squeeze_repeats"`
	ExtraGarbage    []string `toml:"extra_garbage"`
	ReplaceGarbage  bool     `toml:"replace_default_garbage"`
}

// DriverConfig holds the shell command templates used to drive the screen.
// Placeholders: {x} {y} {w} {h} {desktop} {path} {amount}
type DriverConfig struct {
	Kind          string   `toml:"kind"`
	ReplayDir     string   `toml:"replay_dir"`
	Shell         string   `toml:"shell"`
	DesktopLeft   string   `toml:"desktop_left"`
	DesktopRight  string   `toml:"desktop_right"`
	DesktopSettle Duration `toml:"desktop_settle"`
	Click         string   `toml:"click"`
	Paste         string   `toml:"paste"`
	Submit        string   `toml:"submit"`
	Scroll        string   `toml:"scroll"`
	Capture       string   `toml:"capture"`
	OCR           string   `toml:"ocr"`
	VerifyPaste   bool     `toml:"verify_clipboard"`
}

type ParticipantConfig struct {
	Name          string       `toml:"name"`
	Aliases       []string     `toml:"aliases,omitempty"`
	Desktop       int          `toml:"desktop"`
	Input         PointConfig  `toml:"input"`
	SendButton    PointConfig  `toml:"send_button"`
	SafeClick     PointConfig  `toml:"safe_click"`
	CaptureRegion RegionConfig `toml:"capture_region"`
	TypingDelay   Duration     `toml:"typing_delay"`
	ResponseWait  Duration     `toml:"response_wait"`
	ScrollStep    int          `toml:"scroll_step"`
}

type PointConfig struct {
	X int `toml:"x"`
	Y int `toml:"y"`
}

type RegionConfig struct {
	X      int `toml:"x"`
	Y      int `toml:"y"`
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

type FlowStep struct {
	Speaker  string `toml:"speaker"`
	Receiver string `toml:"receiver"`
}

type UserConfig struct {
	Session      SessionConfig       `toml:"session"`
	Capture      CaptureConfig       `toml:"capture"`
	Extractor    ExtractorConfig     `toml:"extractor"`
	Driver       DriverConfig        `toml:"driver"`
	Participants []ParticipantConfig `toml:"participants"`
	Flow         []FlowStep          `toml:"flow"`
}

type Config struct {
	DataDirectory string
	UserConfig
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func CheckDebug() bool {
	debug := os.Getenv("COUNCIL_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600 - the log quotes captured conversation text
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (COUNCIL_DEBUG=%s) ===", os.Getenv("COUNCIL_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

// Debugf writes to the debug log when it is enabled
func Debugf(format string, args ...any) {
	if DebugLog != nil {
		DebugLog.Printf(format, args...)
	}
}

// Load resolves the data directory and reads the user config from it.
// COUNCIL_DATA_DIR overrides the system settings file and COUNCIL_CONFIG
// points at a user config outside the data directory.
func Load() (*Config, error) {
	cfg := &Config{DataDirectory: DefaultSystemConfig().DataDirectory}

	if dataDir := os.Getenv("COUNCIL_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
	} else {
		systemCfg, err := LoadSystemConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load system config: %w", err)
		}
		cfg.DataDirectory = systemCfg.DataDirectory
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	var userCfg *UserConfig
	var err error
	if path := os.Getenv("COUNCIL_CONFIG"); path != "" {
		userCfg, err = LoadUserConfigFromPath(ExpandPath(path))
		if err == nil && userCfg == nil {
			err = fmt.Errorf("config file %s does not exist", path)
		}
	} else {
		userCfg, err = LoadUserConfig(dataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	if err := userCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid user config: %w", err)
	}
	cfg.UserConfig = *userCfg

	return cfg, nil
}
