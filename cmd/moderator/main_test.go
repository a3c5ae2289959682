package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/moderator/internal/action"
	"github.com/whisper/moderator/internal/config"
	"github.com/whisper/moderator/internal/engine"
	"github.com/whisper/moderator/internal/feedback"
	"github.com/whisper/moderator/internal/moderation"
	"github.com/whisper/moderator/internal/verdict"
	"github.com/whisper/moderator/internal/wordlist"
)

func TestFilterSetAppendsExtras(t *testing.T) {
	ctx := context.Background()
	defs := []moderation.Definition{
		{Category: "racism", OnMatch: verdict.Ban},
		{Category: "swearing", OnMatch: verdict.Hide},
	}
	registry, err := wordlist.NewRegistry(ctx, defs, nil, wordlist.NewFileStore(t.TempDir()), nil)
	require.NoError(t, err)

	set := filterSet{registry: registry, extra: []moderation.Filter{moderation.NewSpamFilter(verdict.Hide, nil)}}
	active := set.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "racism", active[0].Category())
	assert.Equal(t, moderation.SpamCategory, active[2].Category())

	// Active must not grow the registry's own slice.
	assert.Len(t, set.Active(), 3)
}

func TestBuildFiltersSpam(t *testing.T) {
	cfg := config.Default()
	cfg.WordlistDir = t.TempDir()
	cfg.Categories = []string{"swearing"}
	cfg.Spam = true

	registry, set, err := buildFilters(context.Background(), cfg, nil, nil, testLogger())
	require.NoError(t, err)
	assert.Len(t, registry.Filters(), 1)
	assert.Len(t, set.Active(), 2)
}

func TestPrinter(t *testing.T) {
	out := engine.Outcome{Verdict: verdict.Ban, Label: 1, Text: "some\nbad  text"}

	tests := []struct {
		name string
		mode action.Mode
		want string
	}{
		{"full", action.Full, "3\tBAN\tremove\tsome bad text\n"},
		{"max hide", action.MaxHide, "3\tBAN\thide_and_queue\tsome bad text\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, printer{out: &buf, mode: tt.mode}.print(out))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := printer{out: &buf, mode: action.Full, json: true}
	require.NoError(t, p.print(engine.Outcome{Verdict: verdict.HumanReview, Label: 1, Text: "hmm"}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.EqualValues(t, 4, got["code"])
	assert.Equal(t, "queue", got["action"])
	assert.Equal(t, "hmm", got["text"])
}

func TestEachLine(t *testing.T) {
	var seen []string
	err := eachLine(context.Background(), strings.NewReader("one\n\nthree\n"), func(s string) error {
		seen = append(seen, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "", "three"}, seen)
}

func TestConfigLogger(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"
	_, err := configLogger(cfg)
	require.NoError(t, err)

	cfg.LogLevel = "loud"
	_, err = configLogger(cfg)
	assert.Error(t, err)

	cfg.LogLevel = "info"
	cfg.LogFormat = "xml"
	_, err = configLogger(cfg)
	assert.Error(t, err)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFeedbackClientDoesNotRetry(t *testing.T) {
	cfg := feedbackClientConfig()
	assert.Zero(t, cfg.RetryMax)
	assert.LessOrEqual(t, cfg.Timeout, 5*time.Second)
}

func TestBuildRecorderIsAsync(t *testing.T) {
	cfg := config.Default()
	cfg.FeedbackDir = t.TempDir()
	cfg.Learn = true

	rec, closeRecorder, err := buildRecorder(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &feedback.Async{}, rec)
	closeRecorder()
}
