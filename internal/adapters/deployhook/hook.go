// Package deployhook triggers a hosting platform deploy through its hook URL.
package deployhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Hook implements ports.DeployHook with one bodiless POST. The answer is
// returned for logging and never interpreted.
type Hook struct {
	url    string
	client *http.Client
}

func New(url string, timeout time.Duration) *Hook {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Hook{url: url, client: &http.Client{Timeout: timeout}}
}

func (h *Hook) Trigger(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("invalid deploy hook url: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("deploy hook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
