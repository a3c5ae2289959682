// Package metrics provides Prometheus instrumentation for the moderation
// service. It exposes counters for verdicts, filter hits and feedback
// delivery, and histograms for classifier and end-to-end latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// VerdictsTotal counts final verdicts, labeled by verdict name.
	VerdictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderator_verdicts_total",
		Help: "Final moderation verdicts",
	}, []string{"verdict"})

	// FilterHitsTotal counts lexical filter matches by category.
	FilterHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderator_filter_hits_total",
		Help: "Comments matched by a lexical filter",
	}, []string{"category"})

	// ModerationLatency records end-to-end Moderate latency in seconds.
	ModerationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "moderator_moderation_latency_seconds",
		Help:    "Moderation latency in seconds",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// ClassifierLatency records classifier inference latency in seconds.
	ClassifierLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "moderator_classifier_latency_seconds",
		Help:    "Classifier inference latency in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
	})

	// ClassifierSkipped counts classifications below the certainty threshold.
	ClassifierSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "moderator_classifier_uncertain_total",
		Help: "Classifications below the certainty threshold",
	})

	// ReviewsTotal counts human review outcomes: "approved", "flagged",
	// "timeout" or "error".
	ReviewsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderator_reviews_total",
		Help: "Human review outcomes",
	}, []string{"outcome"})

	// PendingReviews tracks comments waiting for a reviewer.
	PendingReviews = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "moderator_pending_reviews",
		Help: "Comments waiting for a human decision",
	})

	// FeedbackTotal counts feedback deliveries by sink and result.
	FeedbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderator_feedback_total",
		Help: "Feedback records delivered, by sink and result",
	}, []string{"sink", "result"})

	// WordlistRefreshes counts word-list version checks by category and result:
	// "updated", "current" or "error".
	WordlistRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderator_wordlist_refreshes_total",
		Help: "Word-list refresh attempts",
	}, []string{"category", "result"})

	// PanicsRecovered counts panics recovered at the engine boundary.
	PanicsRecovered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderator_panics_recovered_total",
		Help: "Panics recovered from filters or the classifier",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(
		VerdictsTotal,
		FilterHitsTotal,
		ModerationLatency,
		ClassifierLatency,
		ClassifierSkipped,
		ReviewsTotal,
		PendingReviews,
		FeedbackTotal,
		WordlistRefreshes,
		PanicsRecovered,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
