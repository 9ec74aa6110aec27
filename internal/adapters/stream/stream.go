// Package stream notifies the streaming subsystem about camera changes.
package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient implements ports.StreamServer against the media server's
// admin API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Restart asks the media server to rebuild the camera's stream with its
// current settings.
func (c *HTTPClient) Restart(ctx context.Context, externalID string) error {
	endpoint := c.baseURL + "/streams/" + url.PathEscape(externalID) + "/restart"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("stream http %d", res.StatusCode)
	}
	return nil
}

// Noop stands in when no streaming subsystem is configured.
type Noop struct{}

func (Noop) Restart(ctx context.Context, externalID string) error { return nil }
