package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Paths locates the two classifier artifacts and their version file on disk.
type Paths struct {
	Model       string
	Transformer string
	Version     string
}

// Remote locates the artifacts on the update server.
type Remote struct {
	ModelURL       string
	TransformerURL string
	VersionURL     string
}

// Updater refreshes local artifacts from a remote URL set when the remote
// version differs from the local one.
type Updater struct {
	Local  Paths
	Remote Remote
	Client *http.Client
	logger *slog.Logger
}

// NewUpdater creates an updater. A nil client uses http.DefaultClient.
func NewUpdater(local Paths, remote Remote, client *http.Client, logger *slog.Logger) *Updater {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		Local:  local,
		Remote: remote,
		Client: client,
		logger: logger.With("component", "classifier-updater"),
	}
}

// LocalVersion returns the version on disk, or "" when none is recorded.
func (u *Updater) LocalVersion() string {
	raw, err := os.ReadFile(u.Local.Version)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// Update downloads both artifacts when the remote version differs byte-wise
// from the local one. It reports whether anything was replaced. The version
// file is written last, so an interrupted update is retried next time.
func (u *Updater) Update(ctx context.Context) (bool, error) {
	if u.Remote.VersionURL == "" {
		return false, nil
	}
	body, err := u.get(ctx, u.Remote.VersionURL)
	if err != nil {
		return false, err
	}
	remote := strings.TrimSpace(string(body))
	local := u.LocalVersion()
	if remote == "" {
		return false, errors.New("classifier: remote version is empty")
	}
	if remote == local {
		u.logger.Info("local model is up to date", "version", local)
		return false, nil
	}

	u.logger.Info("new model version available, updating", "from", local, "to", remote)
	modelData, err := u.get(ctx, u.Remote.ModelURL)
	if err != nil {
		return false, err
	}
	transformerData, err := u.get(ctx, u.Remote.TransformerURL)
	if err != nil {
		return false, err
	}
	// Both artifacts must load as a pair before either replaces the files
	// on disk.
	if _, err := decodePipeline(modelData, transformerData); err != nil {
		return false, fmt.Errorf("classifier: rejecting version %q: %w", remote, err)
	}

	if err := writeFileAtomic(u.Local.Model, modelData); err != nil {
		return false, err
	}
	if err := writeFileAtomic(u.Local.Transformer, transformerData); err != nil {
		return false, err
	}
	if err := writeFileAtomic(u.Local.Version, []byte(remote+"\n")); err != nil {
		return false, err
	}
	u.logger.Info("model updated", "version", remote,
		"model_bytes", len(modelData), "transformer_bytes", len(transformerData))
	return true, nil
}

func (u *Updater) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("classifier: build request: %w", err)
	}
	resp, err := u.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier: get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier: get %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func writeFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("classifier: mkdir %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("classifier: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("classifier: rename %s: %w", path, err)
	}
	return nil
}

// LoadPipeline reads and decodes both artifacts from disk.
func LoadPipeline(paths Paths) (*Pipeline, error) {
	modelData, err := os.ReadFile(paths.Model)
	if err != nil {
		return nil, fmt.Errorf("classifier: read model: %w", err)
	}
	transformerData, err := os.ReadFile(paths.Transformer)
	if err != nil {
		return nil, fmt.Errorf("classifier: read transformer: %w", err)
	}
	return decodePipeline(modelData, transformerData)
}

func decodePipeline(modelData, transformerData []byte) (*Pipeline, error) {
	model, err := DecodeModel(modelData)
	if err != nil {
		return nil, err
	}
	transformer, err := DecodeTransformer(transformerData)
	if err != nil {
		return nil, err
	}
	return NewPipeline(model, transformer)
}
