package service

import "sync"

// MaxHistory is the number of recent outcomes retained per author.
const MaxHistory = 10

// HistoryEntry is one moderated comment in an author's history.
type HistoryEntry struct {
	CommentID string `json:"comment_id"`
	Verdict   string `json:"verdict"`
	Action    string `json:"action"`
	Category  string `json:"category,omitempty"`
	Ts        int64  `json:"ts"`
}

// History keeps the last MaxHistory outcomes per author in memory. It is
// goroutine-safe and uses a ring buffer per author.
type History struct {
	mu      sync.RWMutex
	authors map[string]*ring
}

type ring struct {
	items []HistoryEntry
	pos   int
	count int
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{authors: make(map[string]*ring)}
}

// Add appends an entry, overwriting the oldest when the ring is full.
func (h *History) Add(author string, e HistoryEntry) {
	if author == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.authors[author]
	if !ok {
		r = &ring{items: make([]HistoryEntry, MaxHistory)}
		h.authors[author] = r
	}
	r.items[r.pos] = e
	r.pos = (r.pos + 1) % MaxHistory
	if r.count < MaxHistory {
		r.count++
	}
}

// Get returns the author's entries oldest first.
func (h *History) Get(author string) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.authors[author]
	if !ok {
		return []HistoryEntry{}
	}
	out := make([]HistoryEntry, r.count)
	start := (r.pos - r.count + MaxHistory) % MaxHistory
	for i := 0; i < r.count; i++ {
		out[i] = r.items[(start+i)%MaxHistory]
	}
	return out
}

// Forget drops an author's history.
func (h *History) Forget(author string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.authors, author)
}
