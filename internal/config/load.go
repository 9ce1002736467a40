package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable the loader reads,
// e.g. SCRY_REVIEW_ALGORITHM for review.algorithm.
const EnvPrefix = "SCRY"

// Options controls where Load looks for settings.
type Options struct {
	// ConfigFile is an explicit config file. When empty, scry.yaml is looked
	// up in the XDG config directory and the working directory; a missing
	// file is not an error.
	ConfigFile string

	// Flags maps config keys to command-line flags. A flag only overrides
	// the other sources when it was set explicitly.
	Flags map[string]*pflag.Flag
}

// Load configuration from flags, environment variables and an optional
// YAML file, in that order of precedence, on top of defaults.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(opts Options) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("scry")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "scry"))
		}
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %q: %w", flag.Name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.dir", defaultStoreDir())
	v.SetDefault("store.backend", "json")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("scan.extensions", []string{".md", ".org", ".txt"})
	v.SetDefault("scan.full", false)
	v.SetDefault("scan.watch_debounce", 500*time.Millisecond)

	v.SetDefault("review.max_cards_per_session", 30)
	v.SetDefault("review.max_duration_minutes", 20)
	v.SetDefault("review.leech_failure_threshold", 15)
	v.SetDefault("review.leech_method", "skip")
	v.SetDefault("review.algorithm", "sm5")
	v.SetDefault("review.tags", []string{})
	v.SetDefault("review.include_orphans", false)
	v.SetDefault("review.reverse_probability", 0.0)
	v.SetDefault("review.cram", false)
	v.SetDefault("review.cram_hours", 12)
}

// defaultStoreDir is $XDG_DATA_HOME/scry, falling back to
// ~/.local/share/scry and finally ./.scry.
func defaultStoreDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "scry")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "scry")
	}
	return ".scry"
}

// normalize lower-cases enumerations and extensions so the validator sees
// canonical values.
func (c *Config) normalize() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Review.Algorithm = strings.ToLower(strings.TrimSpace(c.Review.Algorithm))
	c.Review.LeechMethod = strings.ToLower(strings.TrimSpace(c.Review.LeechMethod))

	for i, ext := range c.Scan.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Scan.Extensions[i] = ext
	}
}
