// Package feedback records moderation outcomes as labelled training data.
// Every sink is best effort: failures are logged and counted but never
// change the outcome of a moderation pass.
package feedback

import (
	"context"
	"errors"
	"log/slog"

	"github.com/whisper/moderator/internal/metrics"
	"github.com/whisper/moderator/internal/verdict"
)

// Record is one labelled example.
type Record struct {
	Label   int             `json:"label"`
	Verdict verdict.Verdict `json:"action_type"`
	Comment string          `json:"comment"`
}

// Recorder persists a Record.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Named is implemented by recorders that report a sink name for metrics.
type Named interface {
	Name() string
}

// Multi fans a record out to every recorder. It never returns an error;
// each failure is logged and counted per sink.
type Multi struct {
	recorders []Recorder
	logger    *slog.Logger
}

// NewMulti combines recorders. Nil entries are skipped.
func NewMulti(logger *slog.Logger, recorders ...Recorder) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Multi{logger: logger.With("component", "feedback")}
	for _, r := range recorders {
		if r != nil {
			m.recorders = append(m.recorders, r)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.recorders) }

// Record implements Recorder.
func (m *Multi) Record(ctx context.Context, rec Record) error {
	for _, r := range m.recorders {
		name := sinkName(r)
		if err := r.Record(ctx, rec); err != nil {
			metrics.FeedbackTotal.WithLabelValues(name, "error").Inc()
			m.logger.Warn("feedback not recorded", "sink", name, "label", rec.Label,
				"verdict", rec.Verdict.String(), "err", err)
			continue
		}
		metrics.FeedbackTotal.WithLabelValues(name, "ok").Inc()
	}
	return nil
}

func sinkName(r Recorder) string {
	if n, ok := r.(Named); ok {
		return n.Name()
	}
	return "unknown"
}

// ErrEmptyComment is returned by sinks that refuse to store empty text.
var ErrEmptyComment = errors.New("feedback: empty comment")
