package wordlist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/moderator/internal/moderation"
	"github.com/whisper/moderator/internal/verdict"
)

// fakeServer serves versioned word lists and counts list downloads.
type fakeServer struct {
	mu        sync.Mutex
	versions  map[string]string
	words     map[string][]string
	downloads atomic.Int32
	down      atomic.Bool
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{
		versions: make(map[string]string),
		words:    make(map[string][]string),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fs.down.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		fs.mu.Lock()
		defer fs.mu.Unlock()

		path := strings.TrimPrefix(r.URL.Path, "/")
		if category, ok := strings.CutSuffix(path, "/version"); ok {
			v, found := fs.versions[category]
			if !found {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(v + "\n"))
			return
		}
		words, found := fs.words[path]
		if !found {
			http.NotFound(w, r)
			return
		}
		fs.downloads.Add(1)
		_ = json.NewEncoder(w).Encode(map[string][]string{"words": words})
	}))
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeServer) publish(category, version string, words ...string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.versions[category] = version
	fs.words[category] = words
}

var testDefs = []moderation.Definition{
	{Category: "tappouhkaus", OnMatch: verdict.Ban},
	{Category: "swearing", OnMatch: verdict.Hide},
}

func TestNewRegistry_DownloadsAndPersists(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeServer(t)
	fs.publish("tappouhkaus", "3", "kill")
	fs.publish("swearing", "1", "perkele")
	store := NewFileStore(t.TempDir())

	reg, err := NewRegistry(ctx, testDefs, NewHTTPSource(srv.URL, srv.Client()), store, nil)
	require.NoError(t, err)

	require.Len(t, reg.Filters(), 2)
	assert.Equal(t, "tappouhkaus", reg.Filters()[0].Category())
	assert.Equal(t, verdict.Ban, reg.Filters()[0].Apply("I will kill you"))
	assert.Equal(t, map[string]string{"tappouhkaus": "3", "swearing": "1"}, reg.Versions())

	cached, err := store.Load(ctx, "tappouhkaus")
	require.NoError(t, err)
	assert.Equal(t, moderation.WordList{Version: "3", Words: []string{"kill"}}, cached)
	assert.EqualValues(t, 2, fs.downloads.Load())
}

func TestNewRegistry_CachedVersionSkipsDownload(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeServer(t)
	fs.publish("tappouhkaus", "3", "kill")
	fs.publish("swearing", "1", "perkele")
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Save(ctx, "tappouhkaus", moderation.WordList{Version: "3", Words: []string{"kill"}}))
	require.NoError(t, store.Save(ctx, "swearing", moderation.WordList{Version: "1", Words: []string{"perkele"}}))

	_, err := NewRegistry(ctx, testDefs, NewHTTPSource(srv.URL, srv.Client()), store, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, fs.downloads.Load())
}

func TestNewRegistry_SourceDownFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeServer(t)
	fs.down.Store(true)
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Save(ctx, "tappouhkaus", moderation.WordList{Version: "2", Words: []string{"kill"}}))

	reg, err := NewRegistry(ctx, testDefs, NewHTTPSource(srv.URL, srv.Client()), store, nil)
	require.NoError(t, err)

	f, ok := reg.Lookup("tappouhkaus")
	require.True(t, ok)
	assert.Equal(t, "2", f.Words().Version)
	assert.Equal(t, verdict.Ban, f.Apply("kill"))

	// No cache and no source: empty list, always ACCEPT.
	sw, ok := reg.Lookup("swearing")
	require.True(t, ok)
	assert.Empty(t, sw.Words().Words)
	assert.Equal(t, verdict.Accept, sw.Apply("perkele"))
}

func TestRegistry_RefreshSwapsNewerList(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeServer(t)
	fs.publish("tappouhkaus", "1", "kill")
	fs.publish("swearing", "1", "perkele")

	reg, err := NewRegistry(ctx, testDefs, NewHTTPSource(srv.URL, srv.Client()), nil, nil)
	require.NoError(t, err)
	f, _ := reg.Lookup("tappouhkaus")
	assert.Equal(t, verdict.Accept, f.Apply("tapan sut"))

	assert.Equal(t, 0, reg.Refresh(ctx))

	fs.publish("tappouhkaus", "1b", "kill", "tapan sut")
	assert.Equal(t, 1, reg.Refresh(ctx))
	assert.Equal(t, verdict.Ban, f.Apply("tapan sut"))
	assert.Equal(t, "1b", f.Words().Version)
}

func TestRegistry_VersionMismatchIsBytewise(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeServer(t)
	fs.publish("tappouhkaus", "2", "kill")
	fs.publish("swearing", "1", "perkele")
	store := NewFileStore(t.TempDir())
	// An older-looking remote version still triggers a download.
	require.NoError(t, store.Save(ctx, "tappouhkaus", moderation.WordList{Version: "10", Words: []string{"murder"}}))

	reg, err := NewRegistry(ctx, testDefs, NewHTTPSource(srv.URL, srv.Client()), store, nil)
	require.NoError(t, err)
	f, _ := reg.Lookup("tappouhkaus")
	assert.Equal(t, "2", f.Words().Version)
	assert.Equal(t, verdict.Accept, f.Apply("murder"))
}

func TestNewRegistry_RejectsDuplicateCategory(t *testing.T) {
	defs := []moderation.Definition{
		{Category: "racism", OnMatch: verdict.Ban},
		{Category: "racism", OnMatch: verdict.Hide},
	}
	_, err := NewRegistry(context.Background(), defs, nil, nil, nil)
	assert.Error(t, err)

	_, err = NewRegistry(context.Background(), []moderation.Definition{{OnMatch: verdict.Ban}}, nil, nil, nil)
	assert.Error(t, err)
}

func TestFileStore_MissingVersionDefaultsToZero(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	_, err := store.Load(ctx, "boy")
	assert.ErrorIs(t, err, ErrNotCached)

	require.NoError(t, writeJSON(store.wordsPath("boy"), wordsBody{Words: []string{"boy"}}))
	list, err := store.Load(ctx, "boy")
	require.NoError(t, err)
	assert.Equal(t, "0", list.Version)
	assert.Equal(t, []string{"boy"}, list.Words)
}
