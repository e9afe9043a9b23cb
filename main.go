package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"council/config"
	"council/council"
	"council/driver"
	"council/extract"
	"council/storage"
	"council/ui"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

const usage = `council %s - relay a conversation between chat interfaces on screen

Usage:
  council run [--rounds N] [--replay DIR] [--monitor]
  council extract [FILE...]        extract a reply from OCR frames (stdin if no files)
  council sessions                 list recorded sessions
  council export ID [FILE]         export a session log as JSON
  council search [--speaker NAME] QUERY
  council stats [--speaker NAME] [--limit N]
  council version

Environment:
  COUNCIL_DATA_DIR   data directory (overrides %s)
  COUNCIL_CONFIG     user config file outside the data directory
  COUNCIL_DEBUG      set to 1 to write debug.log in the data directory
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, Version, config.GetSettingsFilePath())
		os.Exit(2)
	}

	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "version", "--version", "-v":
		fmt.Printf("council %s (%s)\n", Version, License)
		return
	case "help", "--help", "-h":
		fmt.Printf(usage, Version, config.GetSettingsFilePath())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize debug logging after config is loaded
	config.InitDebugLog(cfg.DataDir())

	switch command {
	case "run":
		err = runCouncil(cfg, args)
	case "extract":
		err = runExtract(cfg, args, os.Stdin, os.Stdout)
	case "sessions":
		err = listSessions(cfg, os.Stdout)
	case "export":
		err = exportSession(cfg, args)
	case "search":
		err = searchSessions(cfg, args, os.Stdout)
	case "stats":
		err = showStats(cfg, args, os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", command)
		fmt.Fprintf(os.Stderr, usage, Version, config.GetSettingsFilePath())
		os.Exit(2)
	}

	if err != nil {
		fmt.Printf("Failed to %s: %v\n", command, err)
		os.Exit(1)
	}
}

func runCouncil(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	rounds := fs.Int("rounds", -1, "number of rounds, 0 runs until interrupted (default from config)")
	replay := fs.String("replay", "", "replay pre-recognized frames from `DIR` instead of driving the screen")
	monitor := fs.Bool("monitor", false, "show the terminal monitor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *rounds >= 0 {
		cfg.Session.Rounds = *rounds
	}
	if *replay != "" {
		cfg.Driver.Kind = config.DriverReplay
		cfg.Driver.ReplayDir = *replay
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dataDir := cfg.DataDir()
	sessions, err := storage.NewSessionStorage(dataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize session storage: %w", err)
	}

	// Only one council may drive the screen at a time
	locked, runningPID, err := sessions.CheckInstanceLock()
	if err != nil {
		return fmt.Errorf("failed to check instance lock: %w", err)
	}
	if locked {
		return fmt.Errorf("another council is already running (PID %d)", runningPID)
	}
	if err := sessions.LockInstance(); err != nil {
		return fmt.Errorf("failed to lock instance: %w", err)
	}
	defer func() {
		if err := sessions.UnlockInstance(); err != nil {
			config.Debugf("Warning: failed to unlock instance: %v", err)
		}
	}()

	// Clean up captures left by a crashed run
	if err := config.CleanupCaptureDir(); err != nil {
		config.Debugf("Warning: failed to cleanup old capture directory: %v", err)
	}
	if err := config.CreateCaptureDir(); err != nil {
		return fmt.Errorf("failed to create capture directory: %w", err)
	}
	defer func() {
		if err := config.CleanupCaptureDir(); err != nil {
			config.Debugf("Warning: failed to cleanup capture directory on exit: %v", err)
		}
	}()

	reflections, err := storage.NewReflections(dataDir)
	if err != nil {
		return err
	}
	audit, err := storage.NewAuditStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open audit database: %w", err)
	}
	defer audit.Close()

	drv, recognizer, err := newDriver(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan council.Event, 64)
	c, err := council.New(&cfg.UserConfig, council.Options{
		Driver:      drv,
		Recognizer:  recognizer,
		Sessions:    sessions,
		Reflections: reflections,
		Audit:       audit,
		Events:      events,
	})
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	if *monitor {
		p := tea.NewProgram(ui.NewMonitor(events, cancel), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			cancel()
			<-errc
			return fmt.Errorf("failed to run monitor: %w", err)
		}
		cancel()
	} else {
		printEvents(log.New(os.Stderr, "", 0), events)
	}

	err = <-errc
	if session := c.Session(); session != nil {
		fmt.Printf("Session %s saved (%s)\n", session.ID, session.Name)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newDriver(cfg *config.Config) (driver.Driver, driver.Recognizer, error) {
	switch cfg.Driver.Kind {
	case config.DriverReplay:
		replay, err := driver.NewReplay(config.ExpandPath(cfg.Driver.ReplayDir), cfg.Profiles())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load replay frames: %w", err)
		}
		return replay, driver.TextRecognizer{}, nil
	default:
		return driver.NewCommand(cfg.Driver, config.GetCaptureDir()),
			driver.NewCommandRecognizer(cfg.Driver.OCR, cfg.Driver.Shell), nil
	}
}

// printEvents logs turn summaries until the run closes the channel
func printEvents(logger *log.Logger, events <-chan council.Event) {
	for ev := range events {
		switch ev.Kind {
		case council.EventTurn:
			turn := ev.Turn
			logger.Printf("[%s] %s -> %s (%d frames, %s)", turn.FinishedAt.Format("15:04:05"),
				turn.Speaker, turn.Receiver, turn.Result.Frames, turn.Reason())
			logger.Printf("  %s", turn.Result.Text)
			if turn.Forwarded != turn.Result.Text {
				logger.Printf("  forwarded instead: %s", turn.Forwarded)
			}
		case council.EventError:
			logger.Printf("[%s] skipped %s: %v", ev.At.Format("15:04:05"), ev.Speaker, ev.Err)
		case council.EventFinished:
			logger.Printf("Finished after %d steps", ev.Step)
		}
	}
}

func runExtract(cfg *config.Config, args []string, stdin io.Reader, stdout io.Writer) error {
	extractor, err := extract.New(cfg.ExtractorOptions())
	if err != nil {
		return err
	}

	var frames []string
	if len(args) == 0 {
		frames, err = driver.SplitFramesFrom(stdin)
		if err != nil {
			return err
		}
	}
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open frame file: %w", err)
		}
		fileFrames, err := driver.SplitFramesFrom(f)
		f.Close()
		if err != nil {
			return err
		}
		frames = append(frames, fileFrames...)
	}

	result := extractor.Extract(frames)
	fmt.Fprintln(stdout, result.Text)
	fmt.Fprintf(stdout, "frames: %d/%d | reason: %s", result.Frames, len(frames), result.Reason)
	if result.Path != extract.PathNone {
		fmt.Fprintf(stdout, " | via: %s", result.Path)
	}
	if result.Truncated {
		fmt.Fprint(stdout, " | truncated")
	}
	fmt.Fprintln(stdout)
	return nil
}

func listSessions(cfg *config.Config, w io.Writer) error {
	sessions, err := storage.NewSessionStorage(cfg.DataDir())
	if err != nil {
		return err
	}
	list, err := sessions.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No sessions yet.")
		return nil
	}
	current, _ := sessions.LoadCurrentSessionID()
	for _, s := range list {
		marker := " "
		if s.ID == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s  %s  %3d records  %s\n", marker, s.ID, s.UpdatedAt.Format("2006-01-02 15:04"),
			s.RecordCount, s.Name)
	}
	return nil
}

func exportSession(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: council export ID [FILE]")
	}
	sessions, err := storage.NewSessionStorage(cfg.DataDir())
	if err != nil {
		return err
	}
	session, err := sessions.Load(args[0])
	if err != nil {
		return err
	}

	var path string
	if len(args) > 1 {
		path = config.ExpandPath(args[1])
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		path = storage.GenerateExportPath(cwd, session.Name)
	}
	if err := sessions.ExportToJSON(session.ID, path); err != nil {
		return err
	}
	fmt.Printf("Exported %d records to %s\n", len(session.Records), filepath.Clean(path))
	return nil
}

func searchSessions(cfg *config.Config, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	speaker := fs.String("speaker", "", "only show records from speakers matching `NAME`")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if query == "" {
		return fmt.Errorf("usage: council search [--speaker NAME] QUERY")
	}

	sessions, err := storage.NewSessionStorage(cfg.DataDir())
	if err != nil {
		return err
	}
	matches, err := storage.NewSearchIndex(sessions).SearchAllSessions(query, *speaker)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matches.")
		return nil
	}
	for _, m := range matches {
		fmt.Fprintf(w, "%s  %s #%d  %s: %s\n", m.Timestamp.Format("2006-01-02 15:04:05"), m.SessionName,
			m.RecordIndex+1, m.Speaker, m.Preview)
	}
	return nil
}

func showStats(cfg *config.Config, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	speaker := fs.String("speaker", "", "list the turns of the participant matching `NAME`")
	limit := fs.Int("limit", 20, "maximum number of turns to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	audit, err := storage.NewAuditStore(cfg.DataDir())
	if err != nil {
		return fmt.Errorf("failed to open audit database: %w", err)
	}
	defer audit.Close()

	if *speaker != "" {
		p, err := cfg.Resolve(*speaker)
		if err != nil {
			return err
		}
		turns, err := audit.TurnsBySpeaker(p.Name, *limit)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d turns\n", p.Name, len(turns))
		for _, t := range turns {
			fmt.Fprintf(w, "  %s  %-32s %d frames  %s\n", t.FinishedAt.Format("2006-01-02 15:04:05"), t.Reason,
				t.Frames, ui.Fit(t.Response, 60))
		}
		return nil
	}

	counts, err := audit.ReasonCounts()
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Fprintln(w, "No turns recorded yet.")
		return nil
	}
	for _, rc := range counts {
		fmt.Fprintf(w, "%6d  %s\n", rc.Count, rc.Reason)
	}
	return nil
}
