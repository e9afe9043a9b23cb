package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// GetConfigDir returns the platform-specific configuration directory
// Linux/Mac: ~/.config/council
// Windows: C:\Users\username\.config\council
func GetConfigDir() string {
	return filepath.Join(GetHomeDir(), ".config", "council")
}

// GetDefaultDataDir returns the platform-specific default data directory
// Linux/Mac: ~/.local/share/council
// Windows: C:\Users\username\AppData\Local\council
func GetDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(localAppData(), "council")
	}
	return filepath.Join(GetHomeDir(), ".local", "share", "council")
}

// GetCacheDir returns the platform-specific cache directory
// Screen captures live here and are removed on exit
// Linux/Mac: ~/.cache/council
// Windows: C:\Users\username\AppData\Local\council\cache
func GetCacheDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(localAppData(), "council", "cache")
	}
	return filepath.Join(GetHomeDir(), ".cache", "council")
}

func localAppData() string {
	dir := os.Getenv("LOCALAPPDATA")
	if dir == "" {
		dir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local")
	}
	return dir
}

// GetSettingsFilePath returns the path to settings.toml
func GetSettingsFilePath() string {
	return filepath.Join(GetConfigDir(), "settings.toml")
}

// GetUserConfigPath returns the path to the user config inside dataDir
func GetUserConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.toml")
}

// GetHomeDir returns the user's home directory across platforms
// Windows: %USERPROFILE% (C:\Users\username)
// Linux/Mac: $HOME (/home/username)
func GetHomeDir() string {
	if runtime.GOOS == "windows" {
		home := os.Getenv("USERPROFILE")
		if home == "" {
			// Fallback: HOMEDRIVE + HOMEPATH
			home = os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
		}
		if home == "" {
			home = "C:\\"
		}
		return home
	}
	home := os.Getenv("HOME")
	if home == "" {
		home = "/"
	}
	return home
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		path = filepath.Join(GetHomeDir(), path[2:])
	}

	path = os.ExpandEnv(path)

	return filepath.Clean(path)
}

// EnsureDir creates a directory if it doesn't exist (0700 - user-only access)
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GetCaptureDir returns the directory screen captures are written to
func GetCaptureDir() string {
	return filepath.Join(GetCacheDir(), "captures")
}

// EnsureDataDirPermissions ensures data directory has 0700 permissions
func EnsureDataDirPermissions(dataDir string) error {
	info, err := os.Stat(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dataDir, 0700)
		}
		return err
	}

	if info.Mode().Perm() != 0700 {
		return os.Chmod(dataDir, 0700)
	}
	return nil
}

// CleanupCaptureDir removes leftover captures. Captures may show private
// conversations, so they never outlive a run.
func CleanupCaptureDir() error {
	dir := GetCaptureDir()
	if _, err := os.Stat(dir); err == nil {
		return os.RemoveAll(dir)
	}
	return nil
}

// CreateCaptureDir creates the capture directory with 0700 permissions
func CreateCaptureDir() error {
	return os.MkdirAll(GetCaptureDir(), 0700)
}
