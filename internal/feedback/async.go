package feedback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/whisper/moderator/internal/metrics"
)

const (
	// DefaultAsyncBuffer is the number of records Async holds before
	// dropping new ones.
	DefaultAsyncBuffer = 1024
	// DefaultAsyncTimeout bounds one delivery to the wrapped recorder.
	DefaultAsyncTimeout = 30 * time.Second
)

var (
	// ErrBufferFull is returned by Async.Record when the sink is backed up.
	ErrBufferFull = errors.New("feedback: buffer full, record dropped")
	// ErrClosed is returned by Async.Record after Close.
	ErrClosed = errors.New("feedback: recorder closed")
)

// Async hands records to a background worker so a slow or failing sink never
// delays a moderation pass. Delivery uses its own context; the caller's
// context is ignored once the record is queued.
type Async struct {
	next    Recorder
	records chan Record
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the delivery worker. Non-positive buffer or timeout use
// the defaults.
func NewAsync(next Recorder, buffer int, timeout time.Duration, logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	if timeout <= 0 {
		timeout = DefaultAsyncTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		next:    next,
		records: make(chan Record, buffer),
		timeout: timeout,
		logger:  logger.With("component", "feedback"),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Name implements Named.
func (a *Async) Name() string { return "async" }

// Record queues rec without blocking.
func (a *Async) Record(_ context.Context, rec Record) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.records <- rec:
		return nil
	default:
		metrics.FeedbackTotal.WithLabelValues(a.Name(), "dropped").Inc()
		return ErrBufferFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for rec := range a.records {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Record(ctx, rec); err != nil {
			a.logger.Warn("feedback delivery failed", "label", rec.Label, "err", err)
		}
		cancel()
	}
}

// Close stops accepting records and waits for queued ones to be delivered,
// or for ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.records)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
