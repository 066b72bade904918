// config.go: settings struct and functions to load and save vococode settings.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig contains settings for a log file.
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to log file
}

// SQLiteSettings contains settings for the SQLite database output.
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite output
	Path    string // path to SQLite database file
}

// MySQLSettings contains settings for the MySQL database output.
type MySQLSettings struct {
	Enabled  bool   // true to enable MySQL output
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// OutputSettings selects and configures the backing store.
type OutputSettings struct {
	SQLite SQLiteSettings // SQLite database settings
	MySQL  MySQLSettings  // MySQL database settings
}

// SamplingSettings controls segment selection and pool expansion.
type SamplingSettings struct {
	HighVolubilityCount int // segments taken by descending activity metric
	RandomCount         int // segments drawn at random from the remainder
	CoderCount          int // independent raters per utterance
}

// ConsensusSettings controls report aggregation.
type ConsensusSettings struct {
	ReferenceCategory string // utterance type that scopes numeric averages
}

// MainSettings contains general application settings.
type MainSettings struct {
	Name string    // name of this node, used for logging
	Log  LogConfig // main log settings
}

// Settings contains all application settings.
type Settings struct {
	Debug bool // true to enable debug output

	Main      MainSettings
	Output    OutputSettings
	Sampling  SamplingSettings
	Consensus ConsensusSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into a new Settings struct and stores it as the
// active instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets up viper with defaults, config paths and environment binding.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("VOCOCODE")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults and env apply.
	}

	return nil
}

// Setting returns the current settings instance, loading it if needed.
func Setting() *Settings {
	settingsMutex.RLock()
	instance := settingsInstance
	settingsMutex.RUnlock()

	if instance == nil {
		loaded, err := Load()
		if err != nil {
			return nil
		}
		return loaded
	}
	return instance
}

// SetTestSettings replaces the active settings instance. Intended for tests.
func SetTestSettings(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = settings
}

// SaveSettings writes the given settings to the given path as YAML.
func SaveSettings(settings *Settings, path string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to yaml: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", path, err)
	}

	return nil
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml,
// in priority order: working directory, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	configDir, err := os.UserConfigDir()
	if err != nil {
		// Home directory may be unavailable in containers, keep going.
		return paths, nil
	}
	paths = append(paths, filepath.Join(configDir, "vococode"))

	return paths, nil
}
