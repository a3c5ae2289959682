package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/moderator/internal/action"
	"github.com/whisper/moderator/internal/ban"
	"github.com/whisper/moderator/internal/classifier"
	"github.com/whisper/moderator/internal/engine"
	"github.com/whisper/moderator/internal/moderation"
	"github.com/whisper/moderator/internal/review"
	"github.com/whisper/moderator/internal/verdict"
)

type fixedClassifier classifier.Classification

func (f fixedClassifier) Classify(string) classifier.Classification {
	return classifier.Classification(f)
}

type fakeBus struct {
	mu        sync.Mutex
	check     func([]byte)
	decision  func([]byte)
	published map[string][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: make(map[string][]byte)}
}

func (b *fakeBus) SubscribeModerationCheck(h func([]byte)) error {
	b.check = h
	return nil
}

func (b *fakeBus) SubscribeReviewDecision(h func([]byte)) error {
	b.decision = h
	return nil
}

func (b *fakeBus) PublishModerationResult(id string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[id] = data
	return nil
}

func (b *fakeBus) result(t *testing.T, id string) moderation.ModerationResult {
	t.Helper()
	var res moderation.ModerationResult
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		_, ok := b.published[id]
		return ok
	}, time.Second, 5*time.Millisecond)
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NoError(t, json.Unmarshal(b.published[id], &res))
	return res
}

type fakeBans struct {
	mu      sync.Mutex
	applied map[string][]verdict.Verdict
	err     error
}

func (f *fakeBans) Status(context.Context, string) (ban.Status, error) { return ban.Status{}, nil }

func (f *fakeBans) Apply(_ context.Context, author string, v verdict.Verdict, _ string) (ban.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return ban.Outcome{}, f.err
	}
	if f.applied == nil {
		f.applied = make(map[string][]verdict.Verdict)
	}
	f.applied[author] = append(f.applied[author], v)
	if v == verdict.Ban {
		return ban.Outcome{Strikes: 1, Banned: true, Duration: ban.Ban15Min}, nil
	}
	return ban.Outcome{}, nil
}

func newTestEngine(t *testing.T, c classifier.Classification, gate review.Gate) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Options{
		Filters: engine.StaticFilters{
			moderation.NewLexicalFilter(moderation.Definition{Category: "swearing", OnMatch: verdict.Hide, Seed: []string{"damn"}}, nil),
			moderation.NewLexicalFilter(moderation.Definition{Category: "racism", OnMatch: verdict.Ban, Seed: []string{"slur"}}, nil),
			moderation.NewLexicalFilter(moderation.Definition{Category: "spamlinks", OnMatch: verdict.Remove, Seed: []string{"buy now"}}, nil),
			moderation.NewLexicalFilter(moderation.Definition{Category: "suicide", OnMatch: verdict.HumanReview, Seed: []string{"hopeless"}}, nil),
		},
		Classifier: fixedClassifier(c),
		Gate:       gate,
	})
	require.NoError(t, err)
	return e
}

func TestCheckActions(t *testing.T) {
	svc := New(Config{Engine: newTestEngine(t, classifier.Classification{Class: 0, Confidence: 99}, nil)})
	ctx := context.Background()

	tests := []struct {
		text    string
		maxHide bool
		verdict verdict.Verdict
		action  action.Action
	}{
		{"hello", false, verdict.Accept, action.Approve},
		{"damn", false, verdict.Hide, action.Hide},
		{"buy now", false, verdict.Remove, action.Remove},
		{"buy now", true, verdict.Remove, action.HideAndQueue},
		{"slur", false, verdict.Ban, action.Remove},
		{"slur", true, verdict.Ban, action.HideAndQueue},
		{"hopeless", false, verdict.HumanReview, action.Queue},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			req := moderation.ModerationRequest{Text: tt.text}
			if tt.maxHide {
				req.Owner = &moderation.OwnerConfig{MaxHide: true}
			}
			res, out, err := svc.Check(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, tt.verdict, out.Verdict)
			assert.Equal(t, tt.verdict.Code(), res.Verdict)
			assert.Equal(t, string(tt.action), res.Action)
		})
	}
}

func TestCheckDeploymentMaxHide(t *testing.T) {
	svc := New(Config{
		Engine: newTestEngine(t, classifier.Classification{}, nil),
		Mode:   action.MaxHide,
	})
	res, _, err := svc.Check(context.Background(), moderation.ModerationRequest{Text: "slur"})
	require.NoError(t, err)
	assert.Equal(t, string(action.HideAndQueue), res.Action)
	assert.Equal(t, "racism", res.Reason)
	assert.Equal(t, "slur", res.Term)
}

func TestCheckRejectsInvalid(t *testing.T) {
	svc := New(Config{Engine: newTestEngine(t, classifier.Classification{}, nil)})
	_, _, err := svc.Check(context.Background(), moderation.ModerationRequest{Text: "bad \xff"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCheckDeduplicates(t *testing.T) {
	svc := New(Config{
		Engine: newTestEngine(t, classifier.Classification{}, nil),
		Dedup:  NewMemoryDedup(time.Hour),
	})
	ctx := context.Background()
	req := moderation.ModerationRequest{CommentID: "c1", Text: "damn"}

	_, _, err := svc.Check(ctx, req)
	require.NoError(t, err)
	_, _, err = svc.Check(ctx, req)
	assert.ErrorIs(t, err, ErrDuplicate)

	// ids are scoped by platform
	_, _, err = svc.Check(ctx, moderation.ModerationRequest{CommentID: "c1", Platform: "youtube", Text: "damn"})
	assert.NoError(t, err)
	_, _, err = svc.Check(ctx, moderation.ModerationRequest{CommentID: "c1", Platform: "instagram", Text: "damn"})
	assert.NoError(t, err)
	_, _, err = svc.Check(ctx, moderation.ModerationRequest{CommentID: "c1", Platform: "youtube", Text: "damn"})
	assert.ErrorIs(t, err, ErrDuplicate)

	// comments without an id are never deduplicated
	for i := 0; i < 2; i++ {
		_, _, err = svc.Check(ctx, moderation.ModerationRequest{Text: "damn"})
		assert.NoError(t, err)
	}
}

func TestCheckEscalatesAuthors(t *testing.T) {
	bans := &fakeBans{}
	svc := New(Config{
		Engine: newTestEngine(t, classifier.Classification{}, nil),
		Bans:   bans,
	})
	ctx := context.Background()

	res, _, err := svc.Check(ctx, moderation.ModerationRequest{Text: "slur", AuthorID: "u1", Platform: "instagram"})
	require.NoError(t, err)
	assert.True(t, res.AuthorBanned)
	assert.Equal(t, int(ban.Ban15Min.Seconds()), res.BanSeconds)

	res, _, err = svc.Check(ctx, moderation.ModerationRequest{Text: "hello", AuthorID: "u1", Platform: "instagram"})
	require.NoError(t, err)
	assert.False(t, res.AuthorBanned)

	_, _, err = svc.Check(ctx, moderation.ModerationRequest{Text: "slur"})
	require.NoError(t, err)

	assert.Equal(t, []verdict.Verdict{verdict.Ban, verdict.Accept}, bans.applied["instagram:u1"])
	assert.Len(t, bans.applied, 1)

	hist := svc.History().Get("instagram:u1")
	require.Len(t, hist, 2)
	assert.Equal(t, "BAN", hist[0].Verdict)
	assert.Equal(t, "ACCEPT", hist[1].Verdict)
}

func TestCheckBanStoreDownFailsOpen(t *testing.T) {
	svc := New(Config{
		Engine: newTestEngine(t, classifier.Classification{}, nil),
		Bans:   &fakeBans{err: errors.New("redis down")},
	})
	res, _, err := svc.Check(context.Background(), moderation.ModerationRequest{Text: "slur", AuthorID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, verdict.Ban.Code(), res.Verdict)
	assert.False(t, res.AuthorBanned)
}

func TestServiceOverBus(t *testing.T) {
	bus := newFakeBus()
	queue := review.NewQueue(nil, nil)
	svc := New(Config{
		Engine:    newTestEngine(t, classifier.Classification{Class: 1, Confidence: 90}, queue),
		Bus:       bus,
		Decisions: queue,
		Dedup:     NewMemoryDedup(0),
	})
	require.NoError(t, svc.Start())
	defer svc.Stop()

	send := func(req moderation.ModerationRequest) {
		data, err := json.Marshal(req)
		require.NoError(t, err)
		bus.check(data)
	}

	send(moderation.ModerationRequest{CommentID: "auto", Text: "You are awful"})
	res := bus.result(t, "auto")
	assert.Equal(t, verdict.Hide.Code(), res.Verdict)
	assert.Equal(t, 1, res.Label)

	// interactive pass waits for a reviewer decision delivered on the bus
	send(moderation.ModerationRequest{CommentID: "asked", Text: "You are awful", Interactive: true})
	require.Eventually(t, func() bool {
		_, ok := queue.Get("asked")
		return ok
	}, time.Second, 5*time.Millisecond)

	bus.decision([]byte(`{"id":"asked","decision":"nope"}`))
	_, stillPending := queue.Get("asked")
	assert.True(t, stillPending)

	bus.decision([]byte(`{"id":"asked","decision":"0"}`))
	res = bus.result(t, "asked")
	assert.Equal(t, verdict.Accept.Code(), res.Verdict)
	assert.Equal(t, string(action.Approve), res.Action)

	// garbage is dropped
	bus.check([]byte("{"))
}

func TestStartRequiresBus(t *testing.T) {
	svc := New(Config{Engine: newTestEngine(t, classifier.Classification{}, nil)})
	assert.Error(t, svc.Start())
}
