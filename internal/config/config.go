// Package config loads flashdeck settings.
//
// Settings are layered, later layers winning: built-in defaults, the YAML
// config file, FLASHDECK_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/flashdeck/internal/record"
	"github.com/conorfennell/flashdeck/internal/tally"
)

// EnvPrefix is the prefix of environment variables read as settings.
// FLASHDECK_MAX_TALLY sets max-tally.
const EnvPrefix = "FLASHDECK_"

// Config holds all flashdeck settings.
type Config struct {
	Deck       string `koanf:"deck" validate:"required"`
	MaxTally   int    `koanf:"max-tally" validate:"gt=0"`
	DateFormat string `koanf:"date-format" validate:"required,datelayout"`
	DryRun     bool   `koanf:"dry-run"`
	Shuffle    bool   `koanf:"shuffle"`
	// Journal is the SQLite journal file. Empty disables the journal.
	Journal   string `koanf:"journal"`
	RepoCache string `koanf:"repo-cache" validate:"required"`
	LogLevel  string `koanf:"log-level" validate:"oneof=debug info warn error"`
}

// Dir returns the directory holding the default deck, journal, repository
// cache and config file.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".flashdeck"
	}
	return filepath.Join(home, ".flashdeck")
}

// DefaultPath returns the config file read when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	dir := Dir()
	return map[string]any{
		"deck":        filepath.Join(dir, "cards.txt"),
		"max-tally":   tally.DefaultMaxTally,
		"date-format": record.DefaultDateLayout,
		"dry-run":     false,
		"shuffle":     true,
		"journal":     filepath.Join(dir, "journal.db"),
		"repo-cache":  filepath.Join(dir, "repos"),
		"log-level":   "warn",
	}
}

// RegisterFlags adds the global setting flags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Defaults()
	flags.String("config", "", "config file (default "+DefaultPath()+")")
	flags.String("deck", d["deck"].(string), "deck file")
	flags.Int("max-tally", d["max-tally"].(int), "correct recalls before a card is retired")
	flags.String("date-format", d["date-format"].(string), "Go time layout of the date column")
	flags.Bool("dry-run", false, "run sessions without recording results")
	flags.Bool("shuffle", true, "shuffle cards at the start of a session")
	flags.String("journal", d["journal"].(string), "SQLite journal of sessions and imports, empty to disable")
	flags.String("repo-cache", d["repo-cache"].(string), "directory for cloned import repositories")
	flags.String("log-level", d["log-level"].(string), "log level: debug, info, warn or error")
}

// Load builds the configuration from defaults, the config file, the
// environment and the changed flags. flags may be nil. The config file is
// the --config flag, else FLASHDECK_CONFIG, else the default path; only the
// default path may be missing.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	path, explicit := configPath(flags)
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Deck = expandHome(cfg.Deck)
	cfg.Journal = expandHome(cfg.Journal)
	cfg.RepoCache = expandHome(cfg.RepoCache)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configPath(flags *pflag.FlagSet) (string, bool) {
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed && f.Value.String() != "" {
			return expandHome(f.Value.String()), true
		}
	}
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return expandHome(p), true
	}
	return DefaultPath(), false
}

// envKey maps FLASHDECK_MAX_TALLY to max-tally.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", "-")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("koanf")
	})
	// A date layout is usable when a date formatted with it parses back to
	// the same calendar day.
	_ = v.RegisterValidation("datelayout", func(fl validator.FieldLevel) bool {
		layout := fl.Field().String()
		want := time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC)
		got, err := time.Parse(layout, want.Format(layout))
		if err != nil {
			return false
		}
		return got.Year() == want.Year() && got.Month() == want.Month() && got.Day() == want.Day()
	})
	return v
}

// Validate checks the settings.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s, got %q", fe.Field(), fe.Param(), fe.Value())
	case "datelayout":
		return fmt.Sprintf("%s %q is not a Go date layout that keeps year, month and day", fe.Field(), fe.Value())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn
	}
	return level
}

// TallyParams returns the retirement threshold.
func (c *Config) TallyParams() *tally.Params {
	return &tally.Params{MaxTally: c.MaxTally}
}

// Codec returns the record codec for the configured date layout.
func (c *Config) Codec() record.Codec {
	return record.New(c.DateFormat)
}
