// Package config loads docpilot settings from layered sources: built-in
// defaults, the global config file, the project config file and DOCPILOT_*
// environment variables. Later layers win.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fakeyudi/docpilot/internal/logging"
)

const (
	// ProjectFile is the per-project config file looked up in the working directory.
	ProjectFile = ".docpilotconfig"
	// EnvPrefix prefixes every environment override, e.g. DOCPILOT_MAX_BACKUPS.
	EnvPrefix = "DOCPILOT"
)

// Config holds all configurable docpilot settings.
type Config struct {
	DataDir           string   `mapstructure:"data_dir" json:"data_dir,omitempty"`
	AutoSaveInterval  int      `mapstructure:"auto_save_interval" json:"auto_save_interval,omitempty"` // seconds
	MaxBackups        int      `mapstructure:"max_backups" json:"max_backups,omitempty"`
	CleanupMaxAgeDays int      `mapstructure:"cleanup_max_age_days" json:"cleanup_max_age_days,omitempty"`
	LogLevel          string   `mapstructure:"log_level" json:"log_level,omitempty"`
	IgnorePatterns    []string `mapstructure:"ignore_patterns" json:"ignore_patterns,omitempty"`
	OutputDir         string   `mapstructure:"output_dir" json:"output_dir,omitempty"`
	DefaultFormat     string   `mapstructure:"default_format" json:"default_format,omitempty"` // "markdown" | "json"
}

// Keys lists every config key, in the order they are documented.
var Keys = []string{
	"data_dir",
	"auto_save_interval",
	"max_backups",
	"cleanup_max_age_days",
	"log_level",
	"ignore_patterns",
	"output_dir",
	"default_format",
}

// Defaults returns the built-in configuration. DataDir is left empty and
// resolved by the caller so tests never touch the real home directory.
func Defaults() Config {
	return Config{
		AutoSaveInterval:  30,
		MaxBackups:        5,
		CleanupMaxAgeDays: 30,
		LogLevel:          "INFO",
		IgnorePatterns:    []string{},
		OutputDir:         ".",
		DefaultFormat:     "markdown",
	}
}

// Dir returns the docpilot config directory: $XDG_CONFIG_HOME/docpilot or
// ~/.config/docpilot.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docpilot"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docpilot"), nil
}

// GlobalFile returns the path of the global config file.
func GlobalFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadGlobal reads the global config file. It returns nil (no error) if the
// file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalFile()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadProject reads .docpilotconfig in the current working directory. It
// returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return LoadFile(ProjectFile)
}

// LoadFile reads a JSON config file at path. It returns nil (no error) if the
// file is absent and a *ParseError if it cannot be parsed.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// LoadEnv reads DOCPILOT_<KEY> overrides. Unset variables leave their fields
// zero. List values are comma separated.
func LoadEnv() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range Keys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid %s_* environment override: %w", EnvPrefix, err)
	}
	return &cfg, nil
}

// Load returns the fully merged configuration: defaults, global file,
// project file, then environment.
func Load() (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Defaults(), err
	}
	project, err := LoadProject()
	if err != nil {
		return Defaults(), err
	}
	env, err := LoadEnv()
	if err != nil {
		return Defaults(), err
	}
	cfg := Merge(global, project, env)
	return cfg, cfg.Validate()
}

// Merge applies layers over the defaults in order, so later layers take
// precedence. Nil layers and zero-valued fields are skipped.
func Merge(layers ...*Config) Config {
	result := Defaults()
	for _, l := range layers {
		if l == nil {
			continue
		}
		if l.DataDir != "" {
			result.DataDir = l.DataDir
		}
		if l.AutoSaveInterval != 0 {
			result.AutoSaveInterval = l.AutoSaveInterval
		}
		if l.MaxBackups != 0 {
			result.MaxBackups = l.MaxBackups
		}
		if l.CleanupMaxAgeDays != 0 {
			result.CleanupMaxAgeDays = l.CleanupMaxAgeDays
		}
		if l.LogLevel != "" {
			result.LogLevel = l.LogLevel
		}
		if len(l.IgnorePatterns) > 0 {
			result.IgnorePatterns = l.IgnorePatterns
		}
		if l.OutputDir != "" {
			result.OutputDir = l.OutputDir
		}
		if l.DefaultFormat != "" {
			result.DefaultFormat = l.DefaultFormat
		}
	}
	return result
}

// AutoSave returns the auto-save interval as a duration.
func (c Config) AutoSave() time.Duration {
	return time.Duration(c.AutoSaveInterval) * time.Second
}

var validFormats = []string{"markdown", "json"}

// Validate reports every setting that is out of range.
func (c Config) Validate() error {
	var errs []error
	if c.AutoSaveInterval <= 0 {
		errs = append(errs, fmt.Errorf("auto_save_interval must be positive, got %d", c.AutoSaveInterval))
	}
	if c.MaxBackups <= 0 {
		errs = append(errs, fmt.Errorf("max_backups must be positive, got %d", c.MaxBackups))
	}
	if c.CleanupMaxAgeDays <= 0 {
		errs = append(errs, fmt.Errorf("cleanup_max_age_days must be positive, got %d", c.CleanupMaxAgeDays))
	}
	if levels := logging.ValidLevels(); !slices.Contains(levels, strings.ToUpper(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("log_level must be one of %s, got %q", strings.Join(levels, ", "), c.LogLevel))
	}
	if !slices.Contains(validFormats, c.DefaultFormat) {
		errs = append(errs, fmt.Errorf("default_format must be markdown or json, got %q", c.DefaultFormat))
	}
	for _, p := range c.IgnorePatterns {
		if _, err := filepath.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("ignore pattern %q: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
