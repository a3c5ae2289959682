package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPRecorder posts records as JSON to a feedback endpoint.
type HTTPRecorder struct {
	URL    string
	Client *http.Client
}

// NewHTTPRecorder creates a recorder. A nil client uses http.DefaultClient.
func NewHTTPRecorder(url string, client *http.Client) *HTTPRecorder {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRecorder{URL: url, Client: client}
}

func (r *HTTPRecorder) Name() string { return "http" }

type httpBody struct {
	Label      int    `json:"label"`
	ActionType int    `json:"action_type"`
	Comment    string `json:"comment"`
}

// Record posts {"label", "action_type", "comment"}. Any non-2xx status is an
// error.
func (r *HTTPRecorder) Record(ctx context.Context, rec Record) error {
	body, err := json.Marshal(httpBody{
		Label:      rec.Label,
		ActionType: rec.Verdict.Code(),
		Comment:    rec.Comment,
	})
	if err != nil {
		return fmt.Errorf("feedback: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("feedback: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("feedback: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("feedback: post: status %d", resp.StatusCode)
	}
	return nil
}
