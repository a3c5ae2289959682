package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v2"

	"github.com/whisper/moderator/internal/api"
	"github.com/whisper/moderator/internal/ban"
	"github.com/whisper/moderator/internal/classifier"
	"github.com/whisper/moderator/internal/config"
	"github.com/whisper/moderator/internal/engine"
	"github.com/whisper/moderator/internal/httputil"
	"github.com/whisper/moderator/internal/messaging"
	"github.com/whisper/moderator/internal/metrics"
	"github.com/whisper/moderator/internal/ratelimit"
	"github.com/whisper/moderator/internal/review"
	"github.com/whisper/moderator/internal/service"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "nats-url",
			Value:   config.Default().NATSURL,
			EnvVars: []string{"NATS_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "Redis for bans, de-duplication, rate limits and shared word lists",
			Value:   config.Default().RedisAddr,
			EnvVars: []string{"REDIS_ADDR"},
		},
		&cli.StringFlag{
			Name:    "mode",
			Usage:   "action mode: FULL or MAX_HIDE",
			Value:   string(config.Default().Mode),
			EnvVars: []string{"MODERATOR_MODE"},
		},
		&cli.DurationFlag{
			Name:    "review-timeout",
			Usage:   "how long an interactive comment waits for a reviewer",
			Value:   config.Default().ReviewTimeout,
			EnvVars: []string{"MODERATOR_REVIEW_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "wordlist-refresh",
			Value:   config.Default().WordlistRefresh,
			EnvVars: []string{"MODERATOR_WORDLIST_REFRESH"},
		},
		&cli.DurationFlag{
			Name:    "model-refresh",
			Value:   config.Default().ModelRefresh,
			EnvVars: []string{"MODERATOR_MODEL_REFRESH"},
		},
		&cli.StringFlag{
			Name:    "api-listen",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   config.Default().APIListen,
			EnvVars: []string{"MODERATOR_API_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   config.Default().MetricsListen,
			EnvVars: []string{"MODERATOR_METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		logger, err := configLogger(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runDaemon(ctx, cfg, logger)
	},
}

// connectRedis returns nil when Redis is unreachable; features backed by it
// degrade instead of failing startup.
func connectRedis(ctx context.Context, addr string, logger *slog.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, running without bans, rate limits or shared cache", "addr", addr, "err", err)
		rdb.Close()
		return nil
	}
	return rdb
}

func runDaemon(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	client := httputil.RobustClient(httputil.DefaultClientConfig(), logger)

	rdb := connectRedis(ctx, cfg.RedisAddr, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	registry, filters, err := buildFilters(ctx, cfg, client, rdb, logger)
	if err != nil {
		return err
	}

	updater := buildUpdater(cfg, client, logger)
	adapter, err := buildClassifier(ctx, cfg, updater, logger)
	if err != nil {
		return err
	}

	recorder, closeRecorder, err := buildRecorder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRecorder()

	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	bus, err := messaging.NewNATSClient(natsConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer bus.Close()

	queue := review.NewQueue(review.PublishNotifier{Pub: bus}, logger)

	eng, err := engine.New(engine.Options{
		Filters:       filters,
		Classifier:    adapter,
		Gate:          queue,
		Recorder:      recorder,
		Learn:         cfg.Learn,
		Threshold:     cfg.Threshold,
		ReviewTimeout: cfg.ReviewTimeout,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	memDedup := service.NewMemoryDedup(service.DefaultProcessedTTL)
	svcConfig := service.Config{
		Engine:    eng,
		Bus:       bus,
		Decisions: queue,
		Dedup:     memDedup,
		Mode:      cfg.Mode,
		Logger:    logger,
	}
	var limiter *ratelimit.Limiter
	if rdb != nil {
		svcConfig.Bans = ban.NewStore(rdb)
		svcConfig.Dedup = service.FallbackDedup{
			Primary:   service.NewRedisDedup(rdb, service.DefaultProcessedTTL),
			Secondary: memDedup,
		}
		limiter = ratelimit.NewLimiter(rdb, logger)
	}

	svc := service.New(svcConfig)
	if err := svc.Start(); err != nil {
		return err
	}
	defer svc.Stop()

	go registry.Run(ctx, cfg.WordlistRefresh)
	if updater != nil {
		go runModelUpdates(ctx, updater, adapter, cfg.ModelRefresh, logger)
	}
	go sweepDedup(ctx, memDedup, time.Hour, logger)

	metricsServer := &http.Server{Addr: cfg.MetricsListen, Handler: metricsMux()}
	go func() {
		logger.Info("starting metrics endpoint", "listen", cfg.MetricsListen)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	apiServer := api.NewServer(api.Config{
		Checker:   svc,
		Reviews:   queue,
		Wordlists: registry,
		Limiter:   limiter,
		Logger:    logger,
	})
	apiErr := make(chan error, 1)
	go func() {
		apiErr <- apiServer.Start(cfg.APIListen)
	}()

	logger.Info("moderator running",
		"nats_url", cfg.NATSURL,
		"categories", len(registry.Filters()),
		"threshold", cfg.Threshold,
		"mode", string(cfg.Mode),
		"learn", cfg.Learn,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-apiErr:
		if err != nil {
			logger.Error("API server failed", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API shutdown", "err", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", "err", err)
	}
	return err
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// runModelUpdates polls for new classifier artifacts and hot-swaps the
// pipeline when they change.
func runModelUpdates(ctx context.Context, updater *classifier.Updater, adapter *classifier.Adapter, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updated, err := updater.Update(ctx)
			if err != nil {
				logger.Warn("classifier update failed", "err", err)
				continue
			}
			if !updated {
				continue
			}
			if err := adapter.Reload(ctx); err != nil {
				logger.Error("classifier reload failed, keeping previous model", "err", err)
				continue
			}
			logger.Info("classifier reloaded", "version", updater.LocalVersion())
		}
	}
}

func sweepDedup(ctx context.Context, d *service.MemoryDedup, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.Sweep(); n > 0 {
				logger.Debug("swept processed comment ids", "count", n)
			}
		}
	}
}
