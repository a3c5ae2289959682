package wordlist

import (
	"context"
	"errors"

	"github.com/whisper/moderator/internal/moderation"
)

// Tiered reads from the first store that has a list and writes to all of
// them. Typical use is Redis shared by replicas in front of local files.
type Tiered []Store

var _ Store = Tiered(nil)

// Load returns the first cached list. If no store has one, the result is
// ErrNotCached unless some store failed with another error.
func (t Tiered) Load(ctx context.Context, category string) (moderation.WordList, error) {
	var errs []error
	for _, s := range t {
		list, err := s.Load(ctx, category)
		if err == nil {
			return list, nil
		}
		if !errors.Is(err, ErrNotCached) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return moderation.WordList{}, errors.Join(errs...)
	}
	return moderation.WordList{}, ErrNotCached
}

// Save writes to every store and joins their errors.
func (t Tiered) Save(ctx context.Context, category string, list moderation.WordList) error {
	var errs []error
	for _, s := range t {
		if err := s.Save(ctx, category, list); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
