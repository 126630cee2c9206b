// Package config resolves settings for the ETL jobs.
//
// Precedence, lowest first: built-in defaults, the global config file,
// a .env file, the process environment, command-line flags (applied by the
// caller).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Config holds the resolved job settings.
type Config struct {
	DBPath      string `yaml:"db_path,omitempty" json:"db_path"`
	QueryWords  string `yaml:"query_words,omitempty" json:"query_words"`
	CommitEvery int    `yaml:"commit_every,omitempty" json:"commit_every"`
	Workers     int    `yaml:"workers,omitempty" json:"workers"`
	Citations   bool   `yaml:"citations,omitempty" json:"citations"`
}

const (
	// DefaultDBPath is the SQLite file used when none is configured.
	DefaultDBPath = "info.db"
	// DefaultCommitEvery is how many files go into one transaction.
	DefaultCommitEvery = 20
	// DotEnvFile is read from the working directory.
	DotEnvFile = ".env"
)

// Environment variables that override the config file.
const (
	EnvDBPath      = "LAB_DB_PATH"
	EnvQueryWords  = "LAB_QUERY_WORDS"
	EnvCommitEvery = "LAB_COMMIT_EVERY"
	EnvWorkers     = "LAB_WORKERS"
)

// ErrQueryWordsNotConfigured is returned when a job needs the subject term
// table and no query-words file is set.
var ErrQueryWordsNotConfigured = errors.New("query_words not configured")

// ErrInvalidValue marks a setting that does not parse or is out of range.
var ErrInvalidValue = errors.New("invalid config value")

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		DBPath:      DefaultDBPath,
		CommitEvery: DefaultCommitEvery,
		Workers:     runtime.NumCPU(),
	}
}

// merge overlays the non-zero fields of o onto c.
func (c *Config) merge(o Config) {
	if o.DBPath != "" {
		c.DBPath = ExpandPath(o.DBPath)
	}
	if o.QueryWords != "" {
		c.QueryWords = ExpandPath(o.QueryWords)
	}
	if o.CommitEvery != 0 {
		c.CommitEvery = o.CommitEvery
	}
	if o.Workers != 0 {
		c.Workers = o.Workers
	}
	if o.Citations {
		c.Citations = true
	}
}

// applyEnv overlays settings found through lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDBPath); ok && v != "" {
		c.DBPath = ExpandPath(v)
	}
	if v, ok := lookup(EnvQueryWords); ok && v != "" {
		c.QueryWords = ExpandPath(v)
	}
	if v, ok := lookup(EnvCommitEvery); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidValue, EnvCommitEvery, v)
		}
		c.CommitEvery = n
	}
	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidValue, EnvWorkers, v)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks numeric settings.
func (c Config) Validate() error {
	if c.CommitEvery < 0 {
		return fmt.Errorf("%w: commit_every must not be negative, got %d", ErrInvalidValue, c.CommitEvery)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidValue, c.Workers)
	}
	return nil
}

// RequireQueryWords returns the query-words path after checking it exists.
func (c Config) RequireQueryWords() (string, error) {
	if c.QueryWords == "" {
		return "", ErrQueryWordsNotConfigured
	}
	if _, err := os.Stat(c.QueryWords); err != nil {
		return "", fmt.Errorf("query_words: %w", err)
	}
	return c.QueryWords, nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
