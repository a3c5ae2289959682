package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	cli "github.com/urfave/cli/v2"

	"github.com/whisper/moderator/internal/action"
	"github.com/whisper/moderator/internal/config"
)

// globalFlags are shared by every command: logging, word lists and the
// classifier.
func globalFlags() []cli.Flag {
	def := config.Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   def.LogLevel,
			EnvVars: []string{"MODERATOR_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format: json or text",
			Value:   def.LogFormat,
			EnvVars: []string{"MODERATOR_LOG_FORMAT"},
		},
		&cli.StringFlag{
			Name:    "wordlist-url",
			Usage:   "base URL of the word-list server; empty uses the local cache only",
			EnvVars: []string{"MODERATOR_WORDLIST_URL"},
		},
		&cli.StringFlag{
			Name:    "wordlist-dir",
			Usage:   "directory for cached word lists",
			Value:   def.WordlistDir,
			EnvVars: []string{"MODERATOR_WORDLIST_DIR"},
		},
		&cli.StringSliceFlag{
			Name:    "category",
			Usage:   "filter category in evaluation order; built-in name or name=VERDICT",
			Value:   cli.NewStringSlice(def.Categories...),
			EnvVars: []string{"MODERATOR_CATEGORIES"},
		},
		&cli.BoolFlag{
			Name:    "spam",
			Usage:   "append the spam pattern filter after the word-list categories",
			EnvVars: []string{"MODERATOR_SPAM"},
		},
		&cli.StringFlag{
			Name:    "model-path",
			Value:   def.ModelPath,
			EnvVars: []string{"MODERATOR_MODEL_PATH"},
		},
		&cli.StringFlag{
			Name:    "transformer-path",
			Value:   def.TransformerPath,
			EnvVars: []string{"MODERATOR_TRANSFORMER_PATH"},
		},
		&cli.StringFlag{
			Name:    "model-version-path",
			Value:   def.ModelVersionPath,
			EnvVars: []string{"MODERATOR_MODEL_VERSION_PATH"},
		},
		&cli.StringFlag{
			Name:    "model-url",
			Usage:   "remote URL of the classifier model; empty disables updates",
			EnvVars: []string{"MODERATOR_MODEL_URL"},
		},
		&cli.StringFlag{
			Name:    "transformer-url",
			EnvVars: []string{"MODERATOR_TRANSFORMER_URL"},
		},
		&cli.StringFlag{
			Name:    "model-version-url",
			EnvVars: []string{"MODERATOR_MODEL_VERSION_URL"},
		},
		&cli.IntFlag{
			Name:    "load-attempts",
			Usage:   "classifier load attempts before giving up",
			Value:   def.LoadAttempts,
			EnvVars: []string{"MODERATOR_LOAD_ATTEMPTS"},
		},
		&cli.Float64Flag{
			Name:    "threshold",
			Usage:   "classifier certainty needed, in percent (51-100)",
			Value:   def.Threshold,
			EnvVars: []string{"MODERATOR_THRESHOLD"},
		},
		&cli.BoolFlag{
			Name:    "learn",
			Usage:   "record outcomes as training feedback",
			EnvVars: []string{"MODERATOR_LEARN"},
		},
		&cli.StringFlag{
			Name:    "feedback-url",
			Usage:   "endpoint receiving training feedback posts",
			EnvVars: []string{"MODERATOR_FEEDBACK_URL"},
		},
		&cli.StringFlag{
			Name:    "feedback-dir",
			Usage:   "directory for <label>_future.txt feedback files; empty disables",
			Value:   def.FeedbackDir,
			EnvVars: []string{"MODERATOR_FEEDBACK_DIR"},
		},
		&cli.StringFlag{
			Name:    "postgres-dsn",
			Usage:   "Postgres DSN for the feedback table; empty disables",
			EnvVars: []string{"MODERATOR_POSTGRES_DSN", "DATABASE_URL"},
		},
	}
}

// loadConfig collects flags into a validated config. Flags only defined on
// the run command keep their defaults for other commands.
func loadConfig(cctx *cli.Context) (config.Config, error) {
	cfg := config.Default()

	cfg.LogLevel = cctx.String("log-level")
	cfg.LogFormat = cctx.String("log-format")
	cfg.WordlistURL = cctx.String("wordlist-url")
	cfg.WordlistDir = cctx.String("wordlist-dir")
	cfg.Categories = cctx.StringSlice("category")
	cfg.Spam = cctx.Bool("spam")
	cfg.ModelPath = cctx.String("model-path")
	cfg.TransformerPath = cctx.String("transformer-path")
	cfg.ModelVersionPath = cctx.String("model-version-path")
	cfg.ModelURL = cctx.String("model-url")
	cfg.TransformerURL = cctx.String("transformer-url")
	cfg.ModelVersionURL = cctx.String("model-version-url")
	cfg.LoadAttempts = cctx.Int("load-attempts")
	cfg.Threshold = cctx.Float64("threshold")
	cfg.Learn = cctx.Bool("learn")
	cfg.FeedbackURL = cctx.String("feedback-url")
	cfg.FeedbackDir = cctx.String("feedback-dir")
	cfg.PostgresDSN = cctx.String("postgres-dsn")

	if cctx.IsSet("nats-url") {
		cfg.NATSURL = cctx.String("nats-url")
	}
	if cctx.IsSet("redis-addr") {
		cfg.RedisAddr = cctx.String("redis-addr")
	}
	if cctx.IsSet("mode") {
		mode, err := action.ParseMode(cctx.String("mode"))
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}
	if cctx.IsSet("review-timeout") {
		cfg.ReviewTimeout = cctx.Duration("review-timeout")
	}
	if cctx.IsSet("wordlist-refresh") {
		cfg.WordlistRefresh = cctx.Duration("wordlist-refresh")
	}
	if cctx.IsSet("model-refresh") {
		cfg.ModelRefresh = cctx.Duration("model-refresh")
	}
	if cctx.IsSet("api-listen") {
		cfg.APIListen = cctx.String("api-listen")
	}
	if cctx.IsSet("metrics-listen") {
		cfg.MetricsListen = cctx.String("metrics-listen")
	}

	return cfg, cfg.Validate()
}

func configLogger(cfg config.Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "", "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
