// Package config loads the optional .timetrace.toml file that supplies
// defaults for the command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/penwyp/go-clang-timetrace/internal/core/model"
)

// FileName is the config file looked up in the work directory.
const FileName = ".timetrace.toml"

const (
	DefaultJobs      = 1
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultLimit     = 20
	DefaultOutput    = "table"
	// DefaultThreshold is the compare threshold in microseconds.
	DefaultThreshold = 100000
)

// Config mirrors the TOML layout.
type Config struct {
	Database       string        `toml:"database"`
	Pattern        string        `toml:"pattern"`
	Jobs           int           `toml:"jobs"`
	FollowSymlinks bool          `toml:"follow_symlinks"`
	LogLevel       string        `toml:"log_level"`
	LogFormat      string        `toml:"log_format"`
	LogFile        string        `toml:"log_file"`
	Report         ReportConfig  `toml:"report"`
	Compare        CompareConfig `toml:"compare"`

	// Source is the file the values came from, empty when defaults only.
	Source string `toml:"-"`
}

type ReportConfig struct {
	Limit  int    `toml:"limit"`
	Output string `toml:"output"`
}

type CompareConfig struct {
	Threshold int64 `toml:"threshold"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Pattern:   model.DefaultTracePattern,
		Jobs:      DefaultJobs,
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Report: ReportConfig{
			Limit:  DefaultLimit,
			Output: DefaultOutput,
		},
		Compare: CompareConfig{
			Threshold: DefaultThreshold,
		},
	}
}

// DatabasePath resolves the database location relative to workDir.
func (c *Config) DatabasePath(workDir string) string {
	if c.Database == "" {
		return filepath.Join(workDir, model.DefaultDatabaseName)
	}
	if filepath.IsAbs(c.Database) || strings.HasPrefix(c.Database, "~/") {
		return ExpandPath(c.Database)
	}
	return filepath.Join(workDir, c.Database)
}

// Load reads explicit if set, otherwise <workDir>/.timetrace.toml when it
// exists. A missing implicit file is not an error; a missing explicit one is.
func Load(workDir, explicit string) (*Config, error) {
	path := explicit
	if path == "" {
		candidate := filepath.Join(workDir, FileName)
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Default(), nil
			}
			return nil, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		path = candidate
	}
	path = ExpandPath(path)

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Source = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no command could use.
func (c *Config) Validate() error {
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if _, err := filepath.Match(c.Pattern, ""); err != nil || c.Pattern == "" {
		return fmt.Errorf("invalid pattern %q", c.Pattern)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	switch strings.ToLower(c.Report.Output) {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("report.output must be table, json or csv, got %q", c.Report.Output)
	}
	if c.Report.Limit < 0 {
		return fmt.Errorf("report.limit must not be negative")
	}
	if c.Compare.Threshold < 0 {
		return fmt.Errorf("compare.threshold must not be negative")
	}
	return nil
}

// ExpandPath resolves a leading ~/ and makes the path absolute.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
