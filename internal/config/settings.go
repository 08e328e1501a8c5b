package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/riposte/internal/cookies"
	"github.com/wesleyorama2/riposte/internal/http"
)

// Environment variable names
const (
	EnvDataDir        = "RIPOSTE_DATA_DIR"
	EnvLogLevel       = "RIPOSTE_LOG_LEVEL"
	EnvLogFormat      = "RIPOSTE_LOG_FORMAT"
	EnvConnectTimeout = "RIPOSTE_CONNECT_TIMEOUT"
	EnvWriteTimeout   = "RIPOSTE_WRITE_TIMEOUT"
	EnvReadTimeout    = "RIPOSTE_READ_TIMEOUT"
	EnvMetricsFile    = "RIPOSTE_METRICS_FILE"
)

// SettingsFileName is the settings file looked up inside the data directory.
const SettingsFileName = "config.yaml"

// Settings holds application settings.
type Settings struct {
	// DataDir holds the settings file and the cookie jar. It is chosen
	// before the settings file is read, so it cannot be set from the file.
	DataDir     string      `yaml:"-"`
	LogLevel    string      `yaml:"logLevel"`
	LogFormat   string      `yaml:"logFormat"`
	Timeout     TimeoutFile `yaml:"timeout"`
	MetricsFile string      `yaml:"metricsFile"`
}

// LoadOptions controls where settings are read from.
type LoadOptions struct {
	// DataDir overrides every other data directory source when set.
	DataDir string

	// EnvFile is an optional dotenv file. Defaults to ".env" in the working
	// directory; a missing file is not an error.
	EnvFile string

	// Getenv reads process environment variables. Defaults to os.Getenv.
	Getenv func(string) string
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:  "warn",
		LogFormat: "text",
		Timeout: TimeoutFile{
			Connect: "10s",
			Write:   "30s",
			Read:    "30s",
		},
	}
}

// DefaultDataDir returns the per-user data directory.
func DefaultDataDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(dir, "riposte"), nil
}

// LoadSettings resolves settings from defaults, <dataDir>/config.yaml, the
// dotenv file and RIPOSTE_* environment variables, in increasing precedence.
func LoadSettings(opts LoadOptions) (*Settings, error) {
	lookup, err := envLookup(opts)
	if err != nil {
		return nil, err
	}

	s := DefaultSettings()

	s.DataDir = opts.DataDir
	if s.DataDir == "" {
		s.DataDir = lookup(EnvDataDir)
	}
	if s.DataDir == "" {
		if s.DataDir, err = DefaultDataDir(); err != nil {
			return nil, err
		}
	}

	if err := s.loadFile(filepath.Join(s.DataDir, SettingsFileName)); err != nil {
		return nil, err
	}

	overrides := []struct {
		env string
		dst *string
	}{
		{EnvLogLevel, &s.LogLevel},
		{EnvLogFormat, &s.LogFormat},
		{EnvConnectTimeout, &s.Timeout.Connect},
		{EnvWriteTimeout, &s.Timeout.Write},
		{EnvReadTimeout, &s.Timeout.Read},
		{EnvMetricsFile, &s.MetricsFile},
	}
	for _, o := range overrides {
		if v := lookup(o.env); v != "" {
			*o.dst = v
		}
	}

	if _, err := s.Timeouts(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("error parsing settings file %s: %w", path, err)
	}
	return nil
}

// envLookup returns a lookup that prefers the process environment over the
// dotenv file.
func envLookup(opts LoadOptions) (func(string) string, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}

	dotenv := map[string]string{}
	if _, err := os.Stat(envFile); err == nil {
		if dotenv, err = godotenv.Read(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	return func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}, nil
}

// Timeouts returns the parsed default budgets.
func (s *Settings) Timeouts() (http.Timeout, error) {
	return s.Timeout.parse()
}

// CookiePath returns the location of the cookie jar file.
func (s *Settings) CookiePath() string {
	return filepath.Join(s.DataDir, cookies.FileName)
}
