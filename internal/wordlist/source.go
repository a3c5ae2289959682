package wordlist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Source serves the latest word list for a category.
type Source interface {
	Version(ctx context.Context, category string) (string, error)
	Fetch(ctx context.Context, category string) ([]string, error)
}

// HTTPSource reads word lists from an update server:
//
//	GET {base}/{category}/version -> plaintext version
//	GET {base}/{category}         -> {"words": [...]}
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSource creates a source rooted at baseURL.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  client,
	}
}

type wordsBody struct {
	Words []string `json:"words"`
}

// Version returns the remote version string with surrounding whitespace
// trimmed.
func (s *HTTPSource) Version(ctx context.Context, category string) (string, error) {
	body, err := s.get(ctx, s.BaseURL+"/"+url.PathEscape(category)+"/version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// Fetch downloads the category's word list.
func (s *HTTPSource) Fetch(ctx context.Context, category string) ([]string, error) {
	body, err := s.get(ctx, s.BaseURL+"/"+url.PathEscape(category))
	if err != nil {
		return nil, err
	}
	var out wordsBody
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("wordlist: decode %s: %w", category, err)
	}
	return out.Words, nil
}

func (s *HTTPSource) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("wordlist: build request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wordlist: get %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wordlist: get %s: status %d", u, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("wordlist: read %s: %w", u, err)
	}
	return body, nil
}
