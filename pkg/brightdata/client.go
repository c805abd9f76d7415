// Package brightdata is a thin client for the Bright Data Web Unlocker and
// SERP APIs. Every call goes through POST /request with a zone credential;
// the zone determines which unblocking profile Bright Data applies.
package brightdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.brightdata.com"

// Client fetches pages through Bright Data unlocker zones.
type Client interface {
	// Unlock fetches a single URL through the given zone and returns the
	// rendered page body.
	Unlock(ctx context.Context, req UnlockRequest) (*UnlockResponse, error)

	// Search runs a web search through the given zone and returns the
	// result page body.
	Search(ctx context.Context, zone, query string) (*UnlockResponse, error)
}

// UnlockRequest is the request body for POST /request.
type UnlockRequest struct {
	Zone   string `json:"zone"`
	URL    string `json:"url"`
	Format string `json:"format,omitempty"` // "raw" (default) or "json"
}

// UnlockResponse holds the fetched page.
type UnlockResponse struct {
	Body       string
	StatusCode int
}

// StatusError is returned when the unlocker responds with a non-2xx status.
// Callers use the code to decide whether the failure is retryable.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("brightdata: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second across all zones.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Bright Data API client. The client is safe for
// concurrent use by overlapping requests.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 150 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Unlock(ctx context.Context, req UnlockRequest) (*UnlockResponse, error) {
	if req.Zone == "" {
		return nil, eris.New("brightdata: zone is required")
	}
	if req.Format == "" {
		req.Format = "raw"
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "brightdata: rate limit wait")
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "brightdata: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/request", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "brightdata: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "brightdata: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "brightdata: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	return &UnlockResponse{
		Body:       string(respBody),
		StatusCode: resp.StatusCode,
	}, nil
}

func (c *httpClient) Search(ctx context.Context, zone, query string) (*UnlockResponse, error) {
	searchURL := "https://www.google.com/search?q=" + url.QueryEscape(query)
	return c.Unlock(ctx, UnlockRequest{
		Zone:   zone,
		URL:    searchURL,
		Format: "raw",
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
