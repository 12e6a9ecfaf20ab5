package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/notify-engine/internal/model"
)

// Client is a thin HTTP client for the backend's thread and resource
// endpoints. It handles Bearer token authentication, JSON decoding, and
// automatic retry with exponential backoff on HTTP 429. The credential
// is supplied per call because the identity source owns it, not the
// client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a feed client for the backend rooted at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}
}

// FetchThreads retrieves every conversation thread visible to the
// credential holder, each with its full ordered message list.
func (c *Client) FetchThreads(
	ctx context.Context,
	credential string,
) ([]model.Thread, error) {
	var payload []apiThread
	if err := c.get(ctx, "/api/threads/", credential, &payload); err != nil {
		return nil, fmt.Errorf("fetching threads: %w", err)
	}

	threads := make([]model.Thread, 0, len(payload))
	for _, t := range payload {
		threads = append(threads, t.toModel())
	}
	return threads, nil
}

// FetchResources retrieves every library resource visible to the
// credential holder. Entries without an id are malformed and skipped.
func (c *Client) FetchResources(
	ctx context.Context,
	credential string,
) ([]model.Resource, error) {
	var payload []apiResource
	if err := c.get(ctx, "/api/resources/", credential, &payload); err != nil {
		return nil, fmt.Errorf("fetching resources: %w", err)
	}

	resources := make([]model.Resource, 0, len(payload))
	for _, r := range payload {
		if r.ID == 0 {
			continue
		}
		resources = append(resources, r.toModel())
	}
	return resources, nil
}

// get performs an authenticated GET request, handling rate limiting
// with exponential backoff and JSON deserialization.
func (c *Client) get(
	ctx context.Context,
	path string,
	credential string,
	result interface{},
) error {
	url := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet, url, nil,
		)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+credential)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request GET %s: %w", path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on GET %s", path)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return &AuthError{
				Endpoint: path,
				Message:  "credential rejected (401)",
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf(
				"unexpected status %d on GET %s: %s",
				resp.StatusCode, path, string(respBody),
			)
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from GET %s: %w", path, err)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
