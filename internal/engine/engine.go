// Package engine runs one moderation pass per comment: lexical filters,
// the classifier, the priority merge, the optional human review and the
// feedback record. Moderate never fails for a well-formed comment.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/whisper/moderator/internal/classifier"
	"github.com/whisper/moderator/internal/feedback"
	"github.com/whisper/moderator/internal/metrics"
	"github.com/whisper/moderator/internal/moderation"
	"github.com/whisper/moderator/internal/review"
	"github.com/whisper/moderator/internal/verdict"
)

// Classifier is the classifier adapter as seen by the engine.
type Classifier interface {
	Classify(text string) classifier.Classification
}

// FilterSet supplies the filters for a pass, in order.
type FilterSet interface {
	Active() []moderation.Filter
}

// StaticFilters is a fixed FilterSet.
type StaticFilters []moderation.Filter

func (s StaticFilters) Active() []moderation.Filter { return s }

// Request is one comment to moderate.
type Request struct {
	Text        string
	Interactive bool
	Owner       *moderation.OwnerConfig
	CommentID   string
	AuthorID    string
	Platform    string
}

// Contribution is one entry of the outcome trace.
type Contribution struct {
	Source  string          `json:"source"`
	Verdict verdict.Verdict `json:"verdict"`
	Detail  string          `json:"detail,omitempty"`
}

// Sources used in the trace.
const (
	SourceFilter     = "filter"
	SourceClassifier = "classifier"
	SourceReview     = "review"
)

// Outcome is the result of a pass.
type Outcome struct {
	Verdict verdict.Verdict `json:"verdict"`
	Label   int             `json:"label"`
	Text    string          `json:"text"`

	// Classification is nil when the classifier did not run.
	Classification *classifier.Classification `json:"classification,omitempty"`
	Threshold      float64                    `json:"threshold"`
	// Floor is the merged filter verdict.
	Floor    verdict.Verdict `json:"floor"`
	Category string          `json:"category,omitempty"`
	Term     string          `json:"term,omitempty"`

	Reviewed bool             `json:"reviewed"`
	Decision *review.Decision `json:"decision,omitempty"`
	ReviewID string           `json:"review_id,omitempty"`

	Trace []Contribution `json:"trace"`
}

// Options configures an Engine.
type Options struct {
	Filters    FilterSet
	Classifier Classifier
	// Gate is consulted for interactive requests. Nil disables review.
	Gate review.Gate
	// Recorder receives feedback when Learn is set.
	Recorder feedback.Recorder
	Learn    bool
	// Threshold is the default certainty in percent; owner configs may
	// override it. Zero means DefaultThreshold.
	Threshold float64
	// ReviewTimeout bounds the wait for a reviewer. Zero waits as long as
	// the request context allows.
	ReviewTimeout time.Duration
	Logger        *slog.Logger
}

// Engine is safe for concurrent use.
type Engine struct {
	filters       FilterSet
	classifier    Classifier
	gate          review.Gate
	recorder      feedback.Recorder
	learn         bool
	threshold     float64
	reviewTimeout time.Duration
	logger        *slog.Logger
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	if opts.Filters == nil {
		return nil, errors.New("engine: no filter set")
	}
	if opts.Classifier == nil {
		return nil, errors.New("engine: no classifier")
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		filters:       opts.Filters,
		classifier:    opts.Classifier,
		gate:          opts.Gate,
		recorder:      opts.Recorder,
		learn:         opts.Learn,
		threshold:     opts.Threshold,
		reviewTimeout: opts.ReviewTimeout,
		logger:        opts.Logger.With("component", "engine"),
	}, nil
}

// Threshold returns the certainty threshold under owner, falling back to
// the engine default.
func (e *Engine) Threshold(owner *moderation.OwnerConfig) float64 {
	if owner != nil && owner.Threshold != nil {
		return *owner.Threshold
	}
	return e.threshold
}

// Moderate runs one pass.
func (e *Engine) Moderate(ctx context.Context, req Request) Outcome {
	start := time.Now()
	defer func() {
		metrics.ModerationLatency.Observe(time.Since(start).Seconds())
	}()

	out := Outcome{
		Text:      req.Text,
		Threshold: e.Threshold(req.Owner),
	}

	var filterVerdicts []verdict.Verdict
	for _, f := range e.filters.Active() {
		if !req.Owner.Enabled(f.Category()) {
			continue
		}
		v := e.applyFilter(f, req.Text)
		filterVerdicts = append(filterVerdicts, v)
		if v == verdict.Accept {
			continue
		}
		metrics.FilterHitsTotal.WithLabelValues(f.Category()).Inc()
		c := Contribution{Source: SourceFilter, Verdict: v, Detail: f.Category()}
		out.Trace = append(out.Trace, c)
		if verdict.Merge(out.Floor, v) != out.Floor {
			out.Floor = v
			out.Category = f.Category()
			out.Term = matchedTerm(f, req.Text)
		}
	}

	if req.Text != "" {
		out.Classification = e.classify(req.Text)
	}
	out.Verdict = Resolve(filterVerdicts, out.Classification, out.Threshold)
	if out.Classification != nil {
		if v, ok := ClassifierVerdict(*out.Classification, out.Threshold); ok {
			out.Trace = append(out.Trace, Contribution{
				Source:  SourceClassifier,
				Verdict: v,
				Detail:  fmt.Sprintf("class %d at %.2f%%", out.Classification.Class, out.Classification.Confidence),
			})
		} else {
			metrics.ClassifierSkipped.Inc()
		}
	}

	if req.Interactive && e.gate != nil && req.Text != "" {
		e.review(ctx, req, &out)
	}

	out.Label = out.Verdict.Label()
	metrics.VerdictsTotal.WithLabelValues(out.Verdict.String()).Inc()
	e.logger.Debug("comment moderated", "comment_id", req.CommentID, "verdict", out.Verdict.String(),
		"category", out.Category, "reviewed", out.Reviewed)

	if e.learn && e.recorder != nil && req.Text != "" {
		rec := feedback.Record{Label: out.Label, Verdict: out.Verdict, Comment: req.Text}
		if err := e.recorder.Record(ctx, rec); err != nil {
			e.logger.Warn("feedback not recorded", "comment_id", req.CommentID, "err", err)
		}
	}
	return out
}

// review consults the gate and replaces the classifier's contribution with
// the reviewer decision. On error or timeout the non-interactive verdict
// stands.
func (e *Engine) review(ctx context.Context, req Request, out *Outcome) {
	if e.reviewTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.reviewTimeout)
		defer cancel()
	}

	item := review.Item{
		ID:        req.CommentID,
		CommentID: req.CommentID,
		Text:      req.Text,
		Floor:     out.Floor,
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if c := out.Classification; c != nil {
		item.Class = c.Class
		item.Confidence = c.Confidence
		_, item.Classified = ClassifierVerdict(*c, out.Threshold)
	}

	d, err := e.gate.Review(ctx, item)
	if err != nil {
		e.logger.Warn("review unavailable, keeping automatic verdict", "comment_id", req.CommentID,
			"verdict", out.Verdict.String(), "err", err)
		return
	}

	out.Reviewed = true
	out.Decision = &d
	out.ReviewID = item.ID
	out.Verdict = verdict.Merge(out.Floor, d.Verdict())
	out.Trace = append(out.Trace, Contribution{Source: SourceReview, Verdict: d.Verdict(), Detail: d.String()})
}

func (e *Engine) applyFilter(f moderation.Filter, text string) (v verdict.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("filter").Inc()
			e.logger.Error("filter panicked", "category", f.Category(), "panic", r, "comment", excerpt(text))
			v = verdict.HumanReview
		}
	}()
	return f.Apply(text)
}

func (e *Engine) classify(text string) (c *classifier.Classification) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("classifier").Inc()
			e.logger.Error("classifier panicked", "panic", r, "comment", excerpt(text))
			c = nil
		}
	}()
	res := e.classifier.Classify(text)
	return &res
}

// matcher is implemented by filters that can name the term they matched.
type matcher interface {
	Match(text string) (string, bool)
}

func matchedTerm(f moderation.Filter, text string) (term string) {
	defer func() {
		if recover() != nil {
			term = ""
		}
	}()
	if m, ok := f.(matcher); ok {
		term, _ = m.Match(text)
	}
	return term
}

const excerptLen = 80

func excerpt(text string) string {
	if utf8.RuneCountInString(text) <= excerptLen {
		return text
	}
	r := []rune(text)
	return string(r[:excerptLen]) + "..."
}
