// Package classifier wraps the pre-trained offensive-text model. A Pipeline
// pairs the feature transformer with the linear model; the Adapter owns the
// live pipeline, loads it with bounded retries and swaps in reloads without
// blocking concurrent Classify calls.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/whisper/moderator/internal/metrics"
)

// ErrNotLoaded is returned when no pipeline could be loaded.
var ErrNotLoaded = errors.New("classifier: model not loaded")

// Classes.
const (
	Benign    = 0
	Offensive = 1
)

// Classification is the argmax class and its probability as a percentage.
type Classification struct {
	Class      int     `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Pipeline is an immutable transformer + model pair.
type Pipeline struct {
	model       *LinearModel
	transformer *Transformer
}

// NewPipeline validates that model and transformer agree on feature width.
func NewPipeline(model *LinearModel, transformer *Transformer) (*Pipeline, error) {
	if model == nil || transformer == nil {
		return nil, ErrNotLoaded
	}
	if dim := transformer.Dim(); dim != model.Width() {
		return nil, fmt.Errorf("classifier: transformer emits %d features, model expects %d", dim, model.Width())
	}
	return &Pipeline{model: model, transformer: transformer}, nil
}

// Classify transforms text and returns the most probable class.
func (p *Pipeline) Classify(text string) Classification {
	proba := p.model.PredictProba(p.transformer.Transform(text))
	best := 0
	for i := range proba {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return Classification{
		Class:      p.model.Classes[best],
		Confidence: proba[best] * 100,
	}
}

// LoaderFunc produces a fresh pipeline.
type LoaderFunc func(ctx context.Context) (*Pipeline, error)

// AdapterConfig controls loading.
type AdapterConfig struct {
	// Attempts is the total number of load attempts before giving up.
	Attempts int
	// Backoff is the base Fibonacci backoff between attempts.
	Backoff time.Duration
}

// DefaultAdapterConfig returns sensible defaults.
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Attempts: 3,
		Backoff:  500 * time.Millisecond,
	}
}

// Adapter serves classifications from the current pipeline.
type Adapter struct {
	pipeline atomic.Pointer[Pipeline]
	load     LoaderFunc
	cfg      AdapterConfig
	logger   *slog.Logger
}

// NewAdapter loads the initial pipeline, retrying up to cfg.Attempts times.
// Exhausting the attempts is fatal: the returned error wraps ErrNotLoaded.
func NewAdapter(ctx context.Context, load LoaderFunc, cfg AdapterConfig, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultAdapterConfig().Backoff
	}
	a := &Adapter{
		load:   load,
		cfg:    cfg,
		logger: logger.With("component", "classifier"),
	}
	p, err := a.loadWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	a.pipeline.Store(p)
	a.logger.Info("model loaded")
	return a, nil
}

// FromPipeline wraps an already loaded pipeline. Reload is unavailable.
func FromPipeline(p *Pipeline) *Adapter {
	a := &Adapter{logger: slog.Default().With("component", "classifier")}
	a.pipeline.Store(p)
	return a
}

// Classify returns the classification of text with the current pipeline.
func (a *Adapter) Classify(text string) Classification {
	start := time.Now()
	c := a.pipeline.Load().Classify(text)
	metrics.ClassifierLatency.Observe(time.Since(start).Seconds())
	return c
}

// Reload loads a new pipeline and swaps it in. On failure the current
// pipeline stays in service and the error is returned.
func (a *Adapter) Reload(ctx context.Context) error {
	if a.load == nil {
		return fmt.Errorf("%w: no loader configured", ErrNotLoaded)
	}
	p, err := a.loadWithRetry(ctx)
	if err != nil {
		return err
	}
	a.pipeline.Store(p)
	a.logger.Info("model reloaded")
	return nil
}

func (a *Adapter) loadWithRetry(ctx context.Context) (*Pipeline, error) {
	var (
		p       *Pipeline
		attempt int
	)
	b := retry.WithMaxRetries(uint64(a.cfg.Attempts-1), retry.NewFibonacci(a.cfg.Backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		loaded, err := a.load(ctx)
		if err != nil {
			a.logger.Warn("failed to load model", "attempt", attempt, "max_attempts", a.cfg.Attempts, "err", err)
			return retry.RetryableError(err)
		}
		p = loaded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrNotLoaded, attempt, err)
	}
	return p, nil
}
