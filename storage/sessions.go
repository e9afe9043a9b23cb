package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"council/model"
)

// Session is one council run: the ordered log of everything said
type Session struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Participants []string       `json:"participants,omitempty"`
	Records      []model.Record `json:"records"`
}

// SessionMetadata is a lightweight version of Session for listing
type SessionMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Participants []string  `json:"participants,omitempty"`
	RecordCount  int       `json:"record_count"`
}

// SessionStorage handles session persistence
type SessionStorage struct {
	sessionsDir string
}

// NewSessionStorage creates a new session storage
func NewSessionStorage(dataDir string) (*SessionStorage, error) {
	sessionsDir := filepath.Join(dataDir, "sessions")

	// 0700 - user-only access
	if err := os.MkdirAll(sessionsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &SessionStorage{
		sessionsDir: sessionsDir,
	}, nil
}

// Create starts a new, empty session and writes it to disk
func (s *SessionStorage) Create(name string, participants []string) (*Session, error) {
	session := &Session{
		ID:           uuid.New().String(),
		Name:         name,
		Participants: participants,
		Records:      []model.Record{},
	}
	if session.Name == "" {
		session.Name = GenerateSessionName("")
	}
	if err := s.Save(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Save saves a session to disk
func (s *SessionStorage) Save(session *Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	session.UpdatedAt = time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// 0600 - transcripts may hold anything the participants said
	if err := os.WriteFile(s.path(session.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Append adds a record to the session log and rewrites the file
func (s *SessionStorage) Append(id string, record model.Record) (*Session, error) {
	session, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	session.Records = append(session.Records, record)
	if err := s.Save(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Load loads a session from disk
func (s *SessionStorage) Load(id string) (*Session, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// List returns metadata for all sessions, sorted by update time (newest first)
func (s *SessionStorage) List() ([]SessionMetadata, error) {
	entries, err := os.ReadDir(s.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []SessionMetadata

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.sessionsDir, entry.Name()))
		if err != nil {
			continue // Skip corrupted files
		}

		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			continue // Skip corrupted files
		}

		sessions = append(sessions, SessionMetadata{
			ID:           session.ID,
			Name:         session.Name,
			CreatedAt:    session.CreatedAt,
			UpdatedAt:    session.UpdatedAt,
			Participants: session.Participants,
			RecordCount:  len(session.Records),
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	return sessions, nil
}

// Delete deletes a session from disk
func (s *SessionStorage) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// SaveCurrentSessionID saves the ID of the current session
func (s *SessionStorage) SaveCurrentSessionID(id string) error {
	return os.WriteFile(filepath.Join(s.dataDir(), "current_session.id"), []byte(id), 0600)
}

// LoadCurrentSessionID loads the ID of the last active session
func (s *SessionStorage) LoadCurrentSessionID() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir(), "current_session.id"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *SessionStorage) path(id string) string {
	return filepath.Join(s.sessionsDir, id+".json")
}

func (s *SessionStorage) dataDir() string {
	return filepath.Dir(s.sessionsDir)
}

// SanitizeFilename removes or replaces characters that are invalid in filenames
func SanitizeFilename(name string) string {
	name = strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-", "\"", "-",
		"<", "-", ">", "-", "|", "-", " ", "-", "\n", "-", "\r", "-",
	).Replace(name)

	name = strings.Trim(name, "-.")

	if len(name) > 50 {
		name = name[:50]
	}

	if name == "" {
		name = "session"
	}

	return name
}

// GenerateExportPath generates a default export path for a session
func GenerateExportPath(dir, sessionName string) string {
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("council-%s-%s.json", SanitizeFilename(sessionName), timestamp)
	return filepath.Join(dir, filename)
}

// ExportToJSON writes the session's speaker/message log to exportPath
func (s *SessionStorage) ExportToJSON(id string, exportPath string) error {
	session, err := s.Load(id)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	data, err := json.MarshalIndent(session.Records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(exportPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// GenerateSessionName generates a session name from the opening prompt
func GenerateSessionName(opening string) string {
	name := strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(opening))
	if name == "" {
		return fmt.Sprintf("Council %s", time.Now().Format("Jan 2, 3:04 PM"))
	}

	if runes := []rune(name); len(runes) > 30 {
		name = strings.TrimSpace(string(runes[:30])) + "..."
	}
	return name
}

// RecordMatch is a search hit within one session
type RecordMatch struct {
	RecordIndex int
	Speaker     string
	Message     string
	Preview     string
	Timestamp   time.Time
}

// SearchRecords returns the records whose message contains query
// (case-insensitive)
func SearchRecords(records []model.Record, query string) []RecordMatch {
	if query == "" {
		return []RecordMatch{}
	}

	queryLower := strings.ToLower(query)
	var matches []RecordMatch

	for i, rec := range records {
		if !strings.Contains(strings.ToLower(rec.Message), queryLower) {
			continue
		}
		matches = append(matches, RecordMatch{
			RecordIndex: i,
			Speaker:     rec.Speaker,
			Message:     rec.Message,
			Preview:     preview(rec.Message),
			Timestamp:   rec.Timestamp,
		})
	}

	return matches
}

func preview(s string) string {
	if runes := []rune(s); len(runes) > 100 {
		return string(runes[:100]) + "..."
	}
	return s
}

// LockInstance creates a global lock so only one council drives the screen
// Lock file: <data_dir>/council.lock
// Content: PID of the running instance
func (s *SessionStorage) LockInstance() error {
	lockPath := filepath.Join(s.dataDir(), "council.lock")
	return os.WriteFile(lockPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0600)
}

// UnlockInstance removes the global instance lock
func (s *SessionStorage) UnlockInstance() error {
	err := os.Remove(filepath.Join(s.dataDir(), "council.lock"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// CheckInstanceLock checks if another council is currently running
// Returns (isLocked bool, runningPID int, err error)
func (s *SessionStorage) CheckInstanceLock() (bool, int, error) {
	lockPath := filepath.Join(s.dataDir(), "council.lock")

	data, err := os.ReadFile(lockPath)
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to read lock file: %w", err)
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		// Invalid lock file, clean it up
		_ = os.Remove(lockPath)
		return false, 0, nil
	}

	// Our own lock never blocks us
	if pid == os.Getpid() {
		return false, pid, nil
	}

	// os.FindProcess always succeeds on Unix; this only catches Windows
	if _, err := os.FindProcess(pid); err != nil {
		_ = os.Remove(lockPath)
		return false, 0, nil
	}

	return true, pid, nil
}
