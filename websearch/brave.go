// Package websearch is a thin client for the Brave Search web API.
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const braveSearchURL = "https://api.search.brave.com/res/v1/web/search"

// ErrNotConfigured is returned by Search when no API key is set.
var ErrNotConfigured = errors.New("web search API key not configured")

type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type braveSearchResponse struct {
	Web struct {
		Results []Result `json:"results"`
	} `json:"web"`
}

type BraveClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewBraveClient(apiKey string) *BraveClient {
	return &BraveClient{
		apiKey:     apiKey,
		endpoint:   braveSearchURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithEndpoint points the client at another base URL, e.g. a test server.
func (c *BraveClient) WithEndpoint(endpoint string) *BraveClient {
	c.endpoint = endpoint
	return c
}

func (c *BraveClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

func (c *BraveClient) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if count <= 0 {
		count = 5
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed braveSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := parsed.Web.Results
	if len(results) > count {
		results = results[:count]
	}
	return results, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
