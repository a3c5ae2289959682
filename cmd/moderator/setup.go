package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/moderator/internal/classifier"
	"github.com/whisper/moderator/internal/config"
	"github.com/whisper/moderator/internal/feedback"
	"github.com/whisper/moderator/internal/httputil"
	"github.com/whisper/moderator/internal/moderation"
	"github.com/whisper/moderator/internal/verdict"
	"github.com/whisper/moderator/internal/wordlist"
)

// filterSet evaluates the registry's word-list filters followed by any
// extra pattern filters.
type filterSet struct {
	registry *wordlist.Registry
	extra    []moderation.Filter
}

func (s filterSet) Active() []moderation.Filter {
	return append(s.registry.Active(), s.extra...)
}

// buildFilters creates the registry. rdb may be nil, in which case lists are
// cached on disk only.
func buildFilters(ctx context.Context, cfg config.Config, client *http.Client, rdb *redis.Client, logger *slog.Logger) (*wordlist.Registry, filterSet, error) {
	defs, err := cfg.Definitions()
	if err != nil {
		return nil, filterSet{}, err
	}

	store := wordlist.Tiered{}
	if rdb != nil {
		store = append(store, wordlist.NewRedisStore(rdb, wordlist.DefaultRedisTTL))
	}
	store = append(store, wordlist.NewFileStore(cfg.WordlistDir))

	var source wordlist.Source
	if cfg.WordlistURL != "" {
		source = wordlist.NewHTTPSource(cfg.WordlistURL, client)
	} else {
		logger.Warn("no word-list URL configured, using cached lists only")
	}

	registry, err := wordlist.NewRegistry(ctx, defs, source, store, logger)
	if err != nil {
		return nil, filterSet{}, err
	}

	set := filterSet{registry: registry}
	if cfg.Spam {
		set.extra = append(set.extra, moderation.NewSpamFilter(verdict.Hide, logger))
	}
	return registry, set, nil
}

func artifactPaths(cfg config.Config) classifier.Paths {
	return classifier.Paths{
		Model:       cfg.ModelPath,
		Transformer: cfg.TransformerPath,
		Version:     cfg.ModelVersionPath,
	}
}

// buildUpdater returns nil when no remote artifacts are configured.
func buildUpdater(cfg config.Config, client *http.Client, logger *slog.Logger) *classifier.Updater {
	if cfg.ModelURL == "" || cfg.TransformerURL == "" || cfg.ModelVersionURL == "" {
		return nil
	}
	remote := classifier.Remote{
		ModelURL:       cfg.ModelURL,
		TransformerURL: cfg.TransformerURL,
		VersionURL:     cfg.ModelVersionURL,
	}
	return classifier.NewUpdater(artifactPaths(cfg), remote, client, logger)
}

// buildClassifier pulls fresh artifacts when an updater is given, then loads
// them. Failing to load is fatal.
func buildClassifier(ctx context.Context, cfg config.Config, updater *classifier.Updater, logger *slog.Logger) (*classifier.Adapter, error) {
	if updater != nil {
		if _, err := updater.Update(ctx); err != nil {
			logger.Warn("classifier update failed, using local artifacts", "err", err)
		}
	}

	paths := artifactPaths(cfg)
	load := func(context.Context) (*classifier.Pipeline, error) {
		return classifier.LoadPipeline(paths)
	}
	acfg := classifier.DefaultAdapterConfig()
	acfg.Attempts = cfg.LoadAttempts

	adapter, err := classifier.NewAdapter(ctx, load, acfg, logger)
	if err != nil {
		return nil, fmt.Errorf("loading classifier: %w", err)
	}
	return adapter, nil
}

// feedbackClientConfig keeps feedback posts cheap: a failed post is logged
// and dropped rather than retried.
func feedbackClientConfig() httputil.ClientConfig {
	cfg := httputil.DefaultClientConfig()
	cfg.RetryMax = 0
	cfg.Timeout = 5 * time.Second
	return cfg
}

// buildRecorder assembles every configured feedback sink behind an async
// buffer, so delivery never delays a moderation pass. The returned close func
// drains the buffer and releases the Postgres pool, if any.
func buildRecorder(ctx context.Context, cfg config.Config, logger *slog.Logger) (feedback.Recorder, func(), error) {
	var recs []feedback.Recorder
	var pg *feedback.PostgresRecorder

	if cfg.FeedbackURL != "" {
		client := httputil.RobustClient(feedbackClientConfig(), logger)
		recs = append(recs, feedback.NewHTTPRecorder(cfg.FeedbackURL, client))
	}
	if cfg.FeedbackDir != "" {
		recs = append(recs, feedback.NewFileRecorder(cfg.FeedbackDir))
	}
	if cfg.PostgresDSN != "" {
		var err error
		pg, err = feedback.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, func() {}, err
		}
		recs = append(recs, pg)
	}

	multi := feedback.NewMulti(logger, recs...)
	if cfg.Learn && multi.Len() == 0 {
		logger.Warn("learning enabled but no feedback sink configured")
	}
	async := feedback.NewAsync(multi, feedback.DefaultAsyncBuffer, feedback.DefaultAsyncTimeout, logger)

	closer := func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := async.Close(drainCtx); err != nil {
			logger.Warn("feedback buffer not drained", "err", err)
		}
		if pg != nil {
			if err := pg.Close(); err != nil {
				logger.Warn("closing feedback database", "err", err)
			}
		}
	}
	return async, closer, nil
}
