package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

func LoadSystemConfig() (*SystemConfig, error) {
	cfg := DefaultSystemConfig()
	settingsPath := GetSettingsFilePath()

	if !FileExists(settingsPath) {
		if err := CreateDefaultSystemConfig(); err != nil {
			return nil, fmt.Errorf("failed to create system config: %w", err)
		}
		return cfg, nil
	}

	_, err := toml.DecodeFile(settingsPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse system config: %w", err)
	}

	return cfg, nil
}

func LoadUserConfig(dataDir string) (*UserConfig, error) {
	userConfigPath := GetUserConfigPath(dataDir)

	if !FileExists(userConfigPath) {
		if err := CreateDefaultUserConfig(dataDir); err != nil {
			return nil, fmt.Errorf("failed to create user config: %w", err)
		}
		return DefaultUserConfig(), nil
	}

	return decodeUserConfig(userConfigPath)
}

// LoadUserConfigFromPath loads user config from a specific file path
// Returns nil if the file doesn't exist (not an error)
func LoadUserConfigFromPath(configPath string) (*UserConfig, error) {
	if !FileExists(configPath) {
		return nil, nil
	}
	return decodeUserConfig(configPath)
}

// decodeUserConfig layers the file over the defaults. Lists replace the
// default lists instead of merging element by element.
func decodeUserConfig(path string) (*UserConfig, error) {
	defaults := DefaultUserConfig()
	cfg := DefaultUserConfig()
	cfg.Participants = nil
	cfg.Flow = nil
	cfg.Session.FallbackPrompts = nil
	cfg.Extractor.ExtraGarbage = nil

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config: %w", err)
	}

	// No participants in the file keeps the default roster and flow. Custom
	// participants without a flow run as a ring (see Steps).
	if cfg.Participants == nil {
		cfg.Participants = defaults.Participants
		if cfg.Flow == nil {
			cfg.Flow = defaults.Flow
		}
	}
	if cfg.Session.FallbackPrompts == nil {
		cfg.Session.FallbackPrompts = defaults.Session.FallbackPrompts
	}

	return cfg, nil
}

func SaveSystemConfig(cfg *SystemConfig) error {
	if err := EnsureDir(GetConfigDir()); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(GetSettingsFilePath(), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create system config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode system config: %w", err)
	}

	return nil
}

func SaveUserConfig(cfg *UserConfig, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// 0600 - screen layout and prompts are personal
	f, err := os.OpenFile(GetUserConfigPath(dataDir), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create user config file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(userConfigHeader); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode user config: %w", err)
	}

	return nil
}

func CreateDefaultSystemConfig() error {
	if err := EnsureDir(GetConfigDir()); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	settingsPath := GetSettingsFilePath()
	if FileExists(settingsPath) {
		return nil
	}

	content := GenerateSystemConfigTemplate()
	if err := os.WriteFile(settingsPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write system config: %w", err)
	}

	return nil
}

func CreateDefaultUserConfig(dataDir string) error {
	if FileExists(GetUserConfigPath(dataDir)) {
		return nil
	}
	return SaveUserConfig(DefaultUserConfig(), dataDir)
}
