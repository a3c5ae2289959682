package wordlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/whisper/moderator/internal/moderation"
)

// ErrNotCached is returned by a Store that holds no list for a category.
var ErrNotCached = errors.New("wordlist: not cached")

// Store persists word lists so a cold start can use the last good version.
type Store interface {
	Load(ctx context.Context, category string) (moderation.WordList, error)
	Save(ctx context.Context, category string, list moderation.WordList) error
}

// FileStore keeps one pair of JSON files per category in Dir:
//
//	<category>_words.json   {"words": [...]}
//	<category>_version.json {"version": "..."}
type FileStore struct {
	Dir string
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

type versionFile struct {
	Version string `json:"version"`
}

// Load reads the cached list. A missing words file yields ErrNotCached; a
// missing version file yields version "0" so the next refresh re-downloads.
func (s *FileStore) Load(_ context.Context, category string) (moderation.WordList, error) {
	raw, err := os.ReadFile(s.wordsPath(category))
	if errors.Is(err, os.ErrNotExist) {
		return moderation.WordList{}, ErrNotCached
	}
	if err != nil {
		return moderation.WordList{}, fmt.Errorf("wordlist: read words %s: %w", category, err)
	}
	var words wordsBody
	if err := json.Unmarshal(raw, &words); err != nil {
		return moderation.WordList{}, fmt.Errorf("wordlist: decode words %s: %w", category, err)
	}

	list := moderation.WordList{Version: "0", Words: words.Words}
	raw, err = os.ReadFile(s.versionPath(category))
	if err == nil {
		var v versionFile
		if json.Unmarshal(raw, &v) == nil && v.Version != "" {
			list.Version = v.Version
		}
	}
	return list, nil
}

// Save writes both files, words first, each via a temp file and rename.
func (s *FileStore) Save(_ context.Context, category string, list moderation.WordList) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("wordlist: mkdir %s: %w", s.Dir, err)
	}
	if err := writeJSON(s.wordsPath(category), wordsBody{Words: list.Words}); err != nil {
		return err
	}
	return writeJSON(s.versionPath(category), versionFile{Version: list.Version})
}

func (s *FileStore) wordsPath(category string) string {
	return filepath.Join(s.Dir, category+"_words.json")
}

func (s *FileStore) versionPath(category string) string {
	return filepath.Join(s.Dir, category+"_version.json")
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wordlist: marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("wordlist: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("wordlist: rename %s: %w", path, err)
	}
	return nil
}
