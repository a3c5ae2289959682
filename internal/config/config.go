// Package config collects the moderator's settings. Values come from CLI
// flags with environment fallbacks; Default holds the baseline.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/whisper/moderator/internal/action"
	"github.com/whisper/moderator/internal/moderation"
	"github.com/whisper/moderator/internal/verdict"
)

// Config is the full daemon configuration.
type Config struct {
	LogLevel  string
	LogFormat string // "json" or "text"

	NATSURL   string
	RedisAddr string
	// PostgresDSN enables the Postgres feedback sink when set.
	PostgresDSN string

	WordlistURL     string
	WordlistDir     string
	WordlistRefresh time.Duration
	// Categories are category names, or "name=VERDICT" for custom ones.
	Categories []string
	Spam       bool

	ModelPath        string
	TransformerPath  string
	ModelVersionPath string
	ModelURL         string
	TransformerURL   string
	ModelVersionURL  string
	ModelRefresh     time.Duration
	LoadAttempts     int

	Threshold     float64
	Mode          action.Mode
	ReviewTimeout time.Duration

	Learn       bool
	FeedbackURL string
	FeedbackDir string

	APIListen     string
	MetricsListen string
}

// Default returns sensible defaults.
func Default() Config {
	names := make([]string, len(moderation.DefaultCategories))
	for i, def := range moderation.DefaultCategories {
		names[i] = def.Category
	}
	return Config{
		LogLevel:         "info",
		LogFormat:        "json",
		NATSURL:          "nats://localhost:4222",
		RedisAddr:        "localhost:6379",
		WordlistDir:      "data/wordlists",
		WordlistRefresh:  time.Hour,
		Categories:       names,
		ModelPath:        "data/model/model.json",
		TransformerPath:  "data/model/transformer.json",
		ModelVersionPath: "data/model/version.txt",
		ModelRefresh:     6 * time.Hour,
		LoadAttempts:     3,
		Threshold:        80,
		Mode:             action.Full,
		ReviewTimeout:    10 * time.Minute,
		FeedbackDir:      "data/feedback",
		APIListen:        ":8080",
		MetricsListen:    ":9090",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if err := moderation.ValidateThreshold(c.Threshold); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if _, err := action.ParseMode(string(c.Mode)); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if c.LoadAttempts < 1 {
		errs = append(errs, errors.New("config: load attempts must be at least 1"))
	}
	if _, err := c.Definitions(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Definitions resolves Categories into filter definitions in order.
func (c Config) Definitions() ([]moderation.Definition, error) {
	return ParseCategories(c.Categories)
}

// ParseCategories resolves built-in names and "name=VERDICT" entries.
func ParseCategories(entries []string) ([]moderation.Definition, error) {
	defs := make([]moderation.Definition, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		var def moderation.Definition
		if name, v, ok := strings.Cut(entry, "="); ok {
			onMatch, err := verdict.Parse(v)
			if err != nil {
				return nil, fmt.Errorf("config: category %q: %w", name, err)
			}
			def = moderation.Definition{Category: strings.TrimSpace(name), OnMatch: onMatch}
			if builtin, ok := moderation.LookupCategory(def.Category); ok {
				def.Seed = builtin.Seed
			}
		} else {
			builtin, ok := moderation.LookupCategory(entry)
			if !ok {
				return nil, fmt.Errorf("config: unknown category %q (use name=VERDICT for custom categories)", entry)
			}
			def = builtin
		}
		if def.Category == "" {
			return nil, fmt.Errorf("config: empty category name in %q", entry)
		}
		if seen[def.Category] {
			return nil, fmt.Errorf("config: duplicate category %q", def.Category)
		}
		seen[def.Category] = true
		defs = append(defs, def)
	}
	return defs, nil
}
