package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v2"

	"github.com/whisper/moderator/internal/config"
	"github.com/whisper/moderator/internal/loadgen"
	"github.com/whisper/moderator/internal/messaging"
	"github.com/whisper/moderator/internal/moderation"
	"github.com/whisper/moderator/internal/verdict"
)

// benchComments is the default corpus when no file is given.
var benchComments = []string{
	"great video, thanks for sharing",
	"what a damn mess this is",
	"visit http://spam.example.com for free stuff",
	"I love this community",
	"call me at 555-123-4567",
	"have a good morning everyone",
}

var benchCmd = &cli.Command{
	Name:      "bench",
	Usage:     "send comments to a running moderator over NATS and report result latency",
	ArgsUsage: "[comments-file]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "nats-url",
			Value:   config.Default().NATSURL,
			EnvVars: []string{"NATS_URL"},
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "number of comments to send",
			Value: 1000,
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "maximum comments awaiting a result at once",
			Value: 50,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "how long to wait for each result",
			Value: 5 * time.Second,
		},
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		if !cctx.IsSet("log-format") {
			cfg.LogFormat = "text"
		}
		logger, err := configLogger(cfg)
		if err != nil {
			return err
		}

		corpus := benchComments
		if path := cctx.Args().First(); path != "" {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			corpus = nil
			err = eachLine(cctx.Context, f, func(s string) error {
				if s != "" {
					corpus = append(corpus, s)
				}
				return nil
			})
			f.Close()
			if err != nil {
				return err
			}
			if len(corpus) == 0 {
				return fmt.Errorf("%s has no comments", path)
			}
		}

		natsConfig := messaging.DefaultNATSConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.Name = "moderator-bench"
		bus, err := messaging.NewNATSClient(natsConfig, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer bus.Close()

		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b := bench{
			bus:         bus,
			corpus:      corpus,
			count:       cctx.Int("count"),
			concurrency: cctx.Int("concurrency"),
			timeout:     cctx.Duration("timeout"),
			logger:      logger,
		}
		collector := b.run(ctx)
		collector.Report(cctx.App.Writer)
		return nil
	},
}

// benchBus is the NATS surface the bench uses.
type benchBus interface {
	PublishModerationRequest(data []byte) error
	SubscribeModerationResult(commentID string, handler func(data []byte)) error
	UnsubscribeModerationResult(commentID string) error
}

type bench struct {
	bus         benchBus
	corpus      []string
	count       int
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

func (b bench) run(ctx context.Context) *loadgen.Collector {
	if b.concurrency <= 0 {
		b.concurrency = 1
	}
	collector := loadgen.NewCollector()
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for i := 0; i < b.count; i++ {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return collector
		}
		wg.Add(1)
		go func(text string) {
			defer func() {
				<-sem
				wg.Done()
			}()
			b.one(ctx, text, collector)
		}(b.corpus[i%len(b.corpus)])
	}
	wg.Wait()
	return collector
}

func (b bench) one(ctx context.Context, text string, collector *loadgen.Collector) {
	id := uuid.NewString()
	results := make(chan moderation.ModerationResult, 1)

	err := b.bus.SubscribeModerationResult(id, func(data []byte) {
		var res moderation.ModerationResult
		if err := json.Unmarshal(data, &res); err != nil {
			return
		}
		select {
		case results <- res:
		default:
		}
	})
	if err != nil {
		b.logger.Warn("subscribe failed", "err", err)
		collector.AddError()
		return
	}
	defer b.bus.UnsubscribeModerationResult(id)

	data, err := json.Marshal(moderation.ModerationRequest{
		CommentID: id,
		AuthorID:  "bench",
		Platform:  "bench",
		Text:      text,
		Ts:        time.Now().Unix(),
	})
	if err != nil {
		collector.AddError()
		return
	}

	start := time.Now()
	if err := b.bus.PublishModerationRequest(data); err != nil {
		b.logger.Warn("publish failed", "err", err)
		collector.AddError()
		return
	}
	collector.AddSent()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case res := <-results:
		v, err := verdict.FromCode(res.Verdict)
		if err != nil {
			collector.AddError()
			return
		}
		collector.AddResult(v, time.Since(start))
	case <-timer.C:
		collector.AddTimeout()
	case <-ctx.Done():
	}
}
