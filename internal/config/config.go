package config

import (
	"path/filepath"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Store  StoreConfig  `mapstructure:"store" validate:"required"`
	Log    LogConfig    `mapstructure:"log" validate:"required"`
	Scan   ScanConfig   `mapstructure:"scan" validate:"required"`
	Review ReviewConfig `mapstructure:"review" validate:"required"`
}

// StoreConfig selects where and how cards are persisted.
type StoreConfig struct {
	Dir     string `mapstructure:"dir" validate:"required"`
	Backend string `mapstructure:"backend" validate:"required,oneof=json sqlite"`
}

// LogConfig contains all logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	// File is the log file path. Empty means scry.log in the store
	// directory; "stderr" disables the file.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// ScanConfig controls card discovery.
type ScanConfig struct {
	Extensions    []string      `mapstructure:"extensions" validate:"required,min=1,dive,required"`
	Full          bool          `mapstructure:"full"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce" validate:"gte=0"`
}

// ReviewConfig contains the review session settings.
type ReviewConfig struct {
	MaxCardsPerSession    int      `mapstructure:"max_cards_per_session" validate:"gt=0"`
	MaxDurationMinutes    int      `mapstructure:"max_duration_minutes" validate:"gt=0"`
	LeechFailureThreshold int      `mapstructure:"leech_failure_threshold" validate:"gt=0"`
	LeechMethod           string   `mapstructure:"leech_method" validate:"required,oneof=skip warn"`
	Algorithm             string   `mapstructure:"algorithm" validate:"required,oneof=sm2 sm5 simple8"`
	Tags                  []string `mapstructure:"tags"`
	IncludeOrphans        bool     `mapstructure:"include_orphans"`
	ReverseProbability    float64  `mapstructure:"reverse_probability" validate:"gte=0,lte=1"`
	Cram                  bool     `mapstructure:"cram"`
	CramHours             int      `mapstructure:"cram_hours" validate:"gte=0"`
}

// LogFilePath returns the resolved log file, or "" when logging to stderr.
func (c *Config) LogFilePath() string {
	switch c.Log.File {
	case "stderr":
		return ""
	case "":
		return filepath.Join(c.Store.Dir, "scry.log")
	default:
		return c.Log.File
	}
}

// MaxDuration is the session time limit.
func (r ReviewConfig) MaxDuration() time.Duration {
	return time.Duration(r.MaxDurationMinutes) * time.Minute
}

// AlgorithmName returns the configured algorithm. Validation guarantees it is
// one of the supported names.
func (r ReviewConfig) AlgorithmName() domain.Algorithm {
	return domain.Algorithm(r.Algorithm)
}

// Leech returns the configured leech policy.
func (r ReviewConfig) Leech() domain.LeechMethod {
	return domain.LeechMethod(r.LeechMethod)
}
