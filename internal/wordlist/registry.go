// Package wordlist owns the ordered set of lexical filters and keeps their
// word lists current. Lists come from a remote versioned source and are cached
// in a local Store for cold starts; every update is a whole-list swap, so
// concurrent filter calls never see a half-written list.
package wordlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/whisper/moderator/internal/metrics"
	"github.com/whisper/moderator/internal/moderation"
)

// Registry holds lexical filters in evaluation order.
type Registry struct {
	filters []*moderation.LexicalFilter
	index   map[string]*moderation.LexicalFilter
	source  Source
	store   Store
	logger  *slog.Logger

	// refreshMu serializes refreshes from the ticker and the API.
	refreshMu sync.Mutex
}

// NewRegistry builds one filter per definition, loads cached lists from
// store and checks each category against source. Source and store may be
// nil. Fetch failures are logged and never returned; the only error is a
// duplicate or empty category name.
func NewRegistry(ctx context.Context, defs []moderation.Definition, source Source, store Store, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		filters: make([]*moderation.LexicalFilter, 0, len(defs)),
		index:   make(map[string]*moderation.LexicalFilter, len(defs)),
		source:  source,
		store:   store,
		logger:  logger.With("component", "wordlist"),
	}

	for _, def := range defs {
		if def.Category == "" {
			return nil, errors.New("wordlist: empty category name")
		}
		if _, dup := r.index[def.Category]; dup {
			return nil, fmt.Errorf("wordlist: duplicate category %q", def.Category)
		}
		f := moderation.NewLexicalFilter(def, logger)
		r.loadCached(ctx, f)
		r.filters = append(r.filters, f)
		r.index[def.Category] = f
	}

	r.Refresh(ctx)
	return r, nil
}

// Filters returns the filters in registry order. The slice is shared; do not
// modify it.
func (r *Registry) Filters() []*moderation.LexicalFilter {
	return r.filters
}

// Active returns the filters in registry order as engine filters.
func (r *Registry) Active() []moderation.Filter {
	out := make([]moderation.Filter, len(r.filters))
	for i, f := range r.filters {
		out[i] = f
	}
	return out
}

// Lookup returns the filter for category.
func (r *Registry) Lookup(category string) (*moderation.LexicalFilter, bool) {
	f, ok := r.index[category]
	return f, ok
}

// Versions reports the word-list version in use per category.
func (r *Registry) Versions() map[string]string {
	out := make(map[string]string, len(r.filters))
	for _, f := range r.filters {
		out[f.Category()] = f.Words().Version
	}
	return out
}

// Refresh checks every category against the source and swaps in newer lists.
// It returns the number of categories updated.
func (r *Registry) Refresh(ctx context.Context) int {
	if r.source == nil {
		return 0
	}
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	updated := 0
	for _, f := range r.filters {
		if ctx.Err() != nil {
			break
		}
		ok, err := r.refreshOne(ctx, f)
		if err != nil {
			metrics.WordlistRefreshes.WithLabelValues(f.Category(), "error").Inc()
			r.logger.Error("failed to update word list", "category", f.Category(), "err", err)
			continue
		}
		if ok {
			updated++
			metrics.WordlistRefreshes.WithLabelValues(f.Category(), "updated").Inc()
		} else {
			metrics.WordlistRefreshes.WithLabelValues(f.Category(), "current").Inc()
		}
	}
	return updated
}

// Run refreshes on every tick until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh loop stopped")
			return
		case <-ticker.C:
			if n := r.Refresh(ctx); n > 0 {
				r.logger.Info("word lists updated", "count", n)
			}
		}
	}
}

func (r *Registry) loadCached(ctx context.Context, f *moderation.LexicalFilter) {
	if r.store == nil {
		return
	}
	list, err := r.store.Load(ctx, f.Category())
	if errors.Is(err, ErrNotCached) {
		r.logger.Info("no cached word list, keeping built-in list", "category", f.Category())
		return
	}
	if err != nil {
		r.logger.Error("failed to load cached word list", "category", f.Category(), "err", err)
		return
	}
	f.Swap(list)
	r.logger.Info("loaded cached word list", "category", f.Category(), "version", list.Version, "words", len(list.Words))
}

// refreshOne compares versions byte-wise and downloads on any mismatch.
func (r *Registry) refreshOne(ctx context.Context, f *moderation.LexicalFilter) (bool, error) {
	category := f.Category()
	local := f.Words().Version

	remote, err := r.source.Version(ctx, category)
	if err != nil {
		return false, err
	}
	if remote == local {
		r.logger.Debug("word list is up to date", "category", category, "version", local)
		return false, nil
	}

	words, err := r.source.Fetch(ctx, category)
	if err != nil {
		return false, err
	}
	list := moderation.WordList{Version: remote, Words: words}
	f.Swap(list)
	r.logger.Info("updated word list", "category", category, "from", local, "to", remote, "words", len(words))

	if r.store != nil {
		if err := r.store.Save(ctx, category, list); err != nil {
			r.logger.Error("failed to persist word list", "category", category, "err", err)
		}
	}
	return true, nil
}
