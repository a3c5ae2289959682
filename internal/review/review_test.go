package review

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/moderator/internal/verdict"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		input   string
		want    Decision
		wantErr bool
	}{
		{"0", Approve, false},
		{"1", Flag, false},
		{" 1\n", Flag, false},
		{"", 0, true},
		{"2", 0, true},
		{"yes", 0, true},
		{"01", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDecision(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDecision)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestDecisionVerdict(t *testing.T) {
	assert.Equal(t, verdict.Accept, Approve.Verdict())
	assert.Equal(t, verdict.Hide, Flag.Verdict())
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (p *recordingPublisher) PublishReview(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, data)
	return p.err
}

func waitPending(t *testing.T, q *Queue, n int) []Item {
	t.Helper()
	require.Eventually(t, func() bool { return len(q.Pending()) == n }, time.Second, 5*time.Millisecond)
	return q.Pending()
}

func TestQueueSubmit(t *testing.T) {
	pub := &recordingPublisher{}
	q := NewQueue(PublishNotifier{Pub: pub}, nil)

	result := make(chan Decision, 1)
	go func() {
		d, err := q.Review(context.Background(), Item{Text: "hmm", Class: 1, Confidence: 85})
		assert.NoError(t, err)
		result <- d
	}()

	items := waitPending(t, q, 1)
	id := items[0].ID
	assert.NotEmpty(t, id)
	assert.Equal(t, "hmm", items[0].Text)

	got, ok := q.Get(id)
	require.True(t, ok)
	assert.Equal(t, 85.0, got.Confidence)

	// invalid input keeps the review pending
	assert.ErrorIs(t, q.Submit(id, "maybe"), ErrInvalidDecision)
	assert.Len(t, q.Pending(), 1)

	require.NoError(t, q.Submit(id, "1"))
	assert.Equal(t, Flag, <-result)
	assert.Empty(t, q.Pending())

	assert.ErrorIs(t, q.Submit(id, "0"), ErrNotPending)

	pub.mu.Lock()
	require.Len(t, pub.msgs, 1)
	var announced Item
	require.NoError(t, json.Unmarshal(pub.msgs[0], &announced))
	pub.mu.Unlock()
	assert.Equal(t, id, announced.ID)
}

func TestQueueSubmitUnknown(t *testing.T) {
	q := NewQueue(nil, nil)
	assert.ErrorIs(t, q.Submit("nope", "1"), ErrNotPending)
	assert.ErrorIs(t, q.Submit("nope", "x"), ErrNotPending)
}

func TestQueueTimeout(t *testing.T) {
	q := NewQueue(nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Review(ctx, Item{ID: "r1", Text: "hmm"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, q.Pending())
	assert.ErrorIs(t, q.Submit("r1", "0"), ErrNotPending)
}

func TestQueueDuplicateID(t *testing.T) {
	q := NewQueue(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan error, 1)
	go func() {
		_, err := q.Review(ctx, Item{ID: "c1", Text: "first"})
		first <- err
	}()
	waitPending(t, q, 1)

	_, err := q.Review(context.Background(), Item{ID: "c1", Text: "second"})
	assert.ErrorIs(t, err, ErrAlreadyPending)

	item, ok := q.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "first", item.Text)

	// The original review still honours its context.
	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("review did not return after cancel")
	}
	assert.Empty(t, q.Pending())
}

func TestQueueRemoveChecksEntry(t *testing.T) {
	q := NewQueue(nil, nil)
	stale := &entry{}
	current := &entry{}
	q.pending["c1"] = current

	assert.False(t, q.remove("c1", stale))
	assert.True(t, q.remove("c1", current))
	assert.False(t, q.remove("c1", current))
}

func TestQueueNotifierFailureStillWaits(t *testing.T) {
	q := NewQueue(PublishNotifier{Pub: &recordingPublisher{err: errors.New("nats down")}}, nil)

	result := make(chan Decision, 1)
	go func() {
		d, _ := q.Review(context.Background(), Item{ID: "r2", Text: "hmm"})
		result <- d
	}()

	waitPending(t, q, 1)
	require.NoError(t, q.Submit("r2", "0"))
	assert.Equal(t, Approve, <-result)
}

func TestQueueHandleDecision(t *testing.T) {
	q := NewQueue(nil, nil)
	result := make(chan Decision, 1)
	go func() {
		d, _ := q.Review(context.Background(), Item{ID: "r3", Text: "hmm"})
		result <- d
	}()
	waitPending(t, q, 1)

	assert.Error(t, q.HandleDecision([]byte("{")))
	assert.ErrorIs(t, q.HandleDecision([]byte(`{"id":"r3","decision":"2"}`)), ErrInvalidDecision)
	require.NoError(t, q.HandleDecision([]byte(`{"id":"r3","decision":"1"}`)))
	assert.Equal(t, Flag, <-result)
}

func TestQueuePendingOrder(t *testing.T) {
	q := NewQueue(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now()
	go q.Review(ctx, Item{ID: "late", CreatedAt: now.Add(time.Second)})
	go q.Review(ctx, Item{ID: "early", CreatedAt: now})

	items := waitPending(t, q, 2)
	assert.Equal(t, "early", items[0].ID)
	assert.Equal(t, "late", items[1].ID)
}

func TestConsoleReprompts(t *testing.T) {
	var out strings.Builder
	c := NewConsole(strings.NewReader("maybe\n\n1\n"), &out)

	d, err := c.Review(context.Background(), Item{Text: "You are awful", Class: 1, Confidence: 85, Classified: true})
	require.NoError(t, err)
	assert.Equal(t, Flag, d)

	printed := out.String()
	assert.Contains(t, printed, "You are awful")
	assert.Contains(t, printed, "class 1 with 85.00% confidence")
	assert.Equal(t, 2, strings.Count(printed, "Invalid input."))
}

func TestConsoleSequentialReviews(t *testing.T) {
	c := NewConsole(strings.NewReader("0\n1\n"), io.Discard)

	d, err := c.Review(context.Background(), Item{Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, Approve, d)

	d, err = c.Review(context.Background(), Item{Text: "b"})
	require.NoError(t, err)
	assert.Equal(t, Flag, d)
}

func TestConsoleEOF(t *testing.T) {
	c := NewConsole(strings.NewReader("x\n"), io.Discard)
	_, err := c.Review(context.Background(), Item{Text: "a"})
	assert.Error(t, err)
}

func TestConsoleCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	c := NewConsole(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Review(ctx, Item{Text: "a"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
