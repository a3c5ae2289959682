package feedback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileRecorder appends comments to <dir>/<label>_future.txt, one per line.
type FileRecorder struct {
	Dir string
	mu  sync.Mutex
}

// NewFileRecorder creates a recorder writing under dir.
func NewFileRecorder(dir string) *FileRecorder {
	return &FileRecorder{Dir: dir}
}

func (r *FileRecorder) Name() string { return "file" }

// Path returns the file a label is written to.
func (r *FileRecorder) Path(label int) string {
	return filepath.Join(r.Dir, fmt.Sprintf("%d_future.txt", label))
}

// Record implements Recorder. Newlines inside the comment are flattened.
func (r *FileRecorder) Record(_ context.Context, rec Record) error {
	text := strings.Join(strings.Fields(rec.Comment), " ")
	if text == "" {
		return ErrEmptyComment
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return fmt.Errorf("feedback: mkdir: %w", err)
	}
	f, err := os.OpenFile(r.Path(rec.Label), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open: %w", err)
	}
	if _, err := f.WriteString(text + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("feedback: write: %w", err)
	}
	return f.Close()
}
