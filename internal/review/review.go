// Package review implements the human review gate. A comment that needs a
// reviewer becomes a pending Item; the moderation pass waits on it until a
// decision is submitted or its context expires.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whisper/moderator/internal/metrics"
	"github.com/whisper/moderator/internal/verdict"
)

var (
	// ErrInvalidDecision is returned for reviewer input other than 0 or 1.
	ErrInvalidDecision = errors.New("review: decision must be 0 (approve) or 1 (flag)")
	// ErrNotPending is returned when no review with the given id is waiting.
	ErrNotPending = errors.New("review: no pending review with that id")
	// ErrAlreadyPending is returned by Review for an id that is still waiting.
	ErrAlreadyPending = errors.New("review: a review with that id is already pending")
)

// Decision is a reviewer's binary answer.
type Decision int

const (
	Approve Decision = 0
	Flag    Decision = 1
)

// ParseDecision accepts exactly "0" or "1", ignoring surrounding space.
func ParseDecision(input string) (Decision, error) {
	switch strings.TrimSpace(input) {
	case "0":
		return Approve, nil
	case "1":
		return Flag, nil
	}
	return 0, fmt.Errorf("%w: got %q", ErrInvalidDecision, input)
}

// Verdict is the verdict the decision contributes in place of the classifier.
func (d Decision) Verdict() verdict.Verdict {
	if d == Flag {
		return verdict.Hide
	}
	return verdict.Accept
}

func (d Decision) outcome() string {
	if d == Flag {
		return "flagged"
	}
	return "approved"
}

func (d Decision) String() string {
	if d == Flag {
		return "flag"
	}
	return "approve"
}

// Item is what a reviewer sees.
type Item struct {
	ID         string          `json:"id"`
	CommentID  string          `json:"comment_id,omitempty"`
	Text       string          `json:"text"`
	Class      int             `json:"class"`
	Confidence float64         `json:"confidence"`
	Classified bool            `json:"classified"`
	Floor      verdict.Verdict `json:"floor"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Gate obtains a reviewer decision for an item. Implementations block until
// a decision arrives or ctx is done.
type Gate interface {
	Review(ctx context.Context, item Item) (Decision, error)
}

// Notifier announces newly pending items to reviewers.
type Notifier interface {
	NotifyReview(item Item) error
}

type entry struct {
	item Item
	done chan Decision
}

// Queue is a Gate backed by an in-memory pending set. Decisions come in
// through Submit, from the HTTP API or the NATS decision subject.
type Queue struct {
	mu       sync.Mutex
	pending  map[string]*entry
	notifier Notifier
	logger   *slog.Logger
}

var _ Gate = (*Queue)(nil)

// NewQueue creates an empty queue. notifier may be nil.
func NewQueue(notifier Notifier, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		pending:  make(map[string]*entry),
		notifier: notifier,
		logger:   logger.With("component", "review"),
	}
}

// Review registers item as pending and waits for its decision. Ids must be
// unique among pending items.
func (q *Queue) Review(ctx context.Context, item Item) (Decision, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	e := &entry{item: item, done: make(chan Decision, 1)}

	q.mu.Lock()
	if _, dup := q.pending[item.ID]; dup {
		q.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrAlreadyPending, item.ID)
	}
	q.pending[item.ID] = e
	q.mu.Unlock()
	metrics.PendingReviews.Inc()

	q.logger.Info("comment awaiting review", "review_id", item.ID, "comment_id", item.CommentID,
		"class", item.Class, "confidence", item.Confidence)
	if q.notifier != nil {
		if err := q.notifier.NotifyReview(item); err != nil {
			q.logger.Warn("review notification failed", "review_id", item.ID, "err", err)
		}
	}

	select {
	case d := <-e.done:
		metrics.ReviewsTotal.WithLabelValues(d.outcome()).Inc()
		return d, nil
	case <-ctx.Done():
		if q.remove(item.ID, e) {
			metrics.PendingReviews.Dec()
		} else {
			// Submit won the race; its decision is already buffered.
			d := <-e.done
			metrics.ReviewsTotal.WithLabelValues(d.outcome()).Inc()
			return d, nil
		}
		metrics.ReviewsTotal.WithLabelValues("timeout").Inc()
		return 0, ctx.Err()
	}
}

// Submit resolves the pending review id with the reviewer's raw input.
// Invalid input leaves the review pending.
func (q *Queue) Submit(id, input string) error {
	d, err := ParseDecision(input)
	if err != nil {
		q.mu.Lock()
		_, ok := q.pending[id]
		q.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotPending, id)
		}
		return err
	}

	q.mu.Lock()
	e, ok := q.pending[id]
	if ok {
		delete(q.pending, id)
	}
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotPending, id)
	}

	metrics.PendingReviews.Dec()
	e.done <- d
	q.logger.Info("review decided", "review_id", id, "decision", d.String())
	return nil
}

// Pending lists waiting items, oldest first.
func (q *Queue) Pending() []Item {
	q.mu.Lock()
	items := make([]Item, 0, len(q.pending))
	for _, e := range q.pending {
		items = append(items, e.item)
	}
	q.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

// Get returns a pending item by id.
func (q *Queue) Get(id string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.pending[id]
	if !ok {
		return Item{}, false
	}
	return e.item, true
}

// remove drops id only while it still maps to e.
func (q *Queue) remove(id string, e *entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending[id] != e {
		return false
	}
	delete(q.pending, id)
	return true
}

// DecisionMessage is the payload on the review decision subject.
type DecisionMessage struct {
	ID       string `json:"id"`
	Decision string `json:"decision"`
}

// HandleDecision decodes a DecisionMessage and submits it.
func (q *Queue) HandleDecision(data []byte) error {
	var msg DecisionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("review: decode decision: %w", err)
	}
	return q.Submit(msg.ID, msg.Decision)
}

// Publisher is the subset of the NATS client used to announce reviews.
type Publisher interface {
	PublishReview(data []byte) error
}

// PublishNotifier sends pending items as JSON through a Publisher.
type PublishNotifier struct {
	Pub Publisher
}

// NotifyReview implements Notifier.
func (n PublishNotifier) NotifyReview(item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("review: encode item: %w", err)
	}
	return n.Pub.PublishReview(data)
}
