package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Defaults for the non-profile settings.
const (
	DefaultLogLevel        = "warn"
	DefaultTimeoutSec      = 120
	DefaultSnippetMaxBytes = 200
)

// DefaultRedactFields lists the argument names whose values never
// reach the audit log.
var DefaultRedactFields = []string{"body", "attach", "password", "secret", "token"}

// LogConfig holds operator logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// Format is console or json.
	Format string `mapstructure:"format" yaml:"format,omitempty"`

	// Output is stderr or a file path.
	Output string `mapstructure:"output" yaml:"output,omitempty"`
}

// AuditConfig holds settings for the invocation audit log.
type AuditConfig struct {
	// DBPath is the SQLite file. Empty means next to the config file.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// RedactFields are argument names whose values are replaced before
	// a record is written.
	RedactFields []string `mapstructure:"redact_fields" yaml:"redact_fields"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Profiles []Profile `mapstructure:"profiles" yaml:"profiles"`
	Log      LogConfig `mapstructure:"log" yaml:"log"`

	// TimeoutSec bounds one whole invocation, connection included.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// SnippetMaxBytes is the maximum snippet length, marker included.
	SnippetMaxBytes int `mapstructure:"snippet_max_bytes" yaml:"snippet_max_bytes"`

	Audit AuditConfig `mapstructure:"audit" yaml:"audit"`
}

// ConfigDir returns the directory holding config.yaml, the audit
// database and an optional .env file. ANYMAIL_HOME overrides it.
func ConfigDir() string {
	if dir := os.Getenv("ANYMAIL_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "anymail")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/anymail/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns the configuration used when no file is present.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Profiles:        []Profile{},
		Log:             LogConfig{Level: DefaultLogLevel},
		TimeoutSec:      DefaultTimeoutSec,
		SnippetMaxBytes: DefaultSnippetMaxBytes,
		Audit: AuditConfig{
			RedactFields: append([]string(nil), DefaultRedactFields...),
		},
	}
}

// AuditDBPath resolves the audit database location for a config loaded
// from configPath.
func (c *AppConfig) AuditDBPath(configPath string) string {
	if c.Audit.DBPath != "" {
		return c.Audit.DBPath
	}
	return filepath.Join(filepath.Dir(configPath), "anymail.db")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file next to it is loaded first, and ANYMAIL_* environment
// variables override file values. If the file does not exist, it
// returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ANYMAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("timeout_sec", DefaultTimeoutSec)
	v.SetDefault("snippet_max_bytes", DefaultSnippetMaxBytes)
	v.SetDefault("audit.db_path", "")
	v.SetDefault("audit.redact_fields", DefaultRedactFields)

	cfg := DefaultAppConfig()

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for i := range cfg.Profiles {
		cfg.Profiles[i].ApplyDefaults()
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = DefaultTimeoutSec
	}
	if cfg.SnippetMaxBytes <= 0 {
		cfg.SnippetMaxBytes = DefaultSnippetMaxBytes
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("profiles", cfg.Profiles)
	v.Set("log", cfg.Log)
	v.Set("timeout_sec", cfg.TimeoutSec)
	v.Set("snippet_max_bytes", cfg.SnippetMaxBytes)
	v.Set("audit", cfg.Audit)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
