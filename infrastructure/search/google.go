// Package search implements the web-search capability over the Google Custom
// Search JSON API.
package search

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

	"go.uber.org/zap"

	"knowde-backend/application/ports"
	pkgerrors "knowde-backend/pkg/errors"
)

const capabilityName = "searchProvider"

const endpoint = "https://www.googleapis.com/customsearch/v1"

// Client is a Google Custom Search client. Calls carry a hard timeout and the
// same retryable/non-retryable error split as the other capabilities.
type Client struct {
	httpClient *http.Client
	apiKey     string
	engineID   string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient creates a search client
func NewClient(apiKey, engineID string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		engineID:   engineID,
		timeout:    timeout,
		logger:     logger,
	}
}

type searchResponse struct {
	Items []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"items"`
}

// Search implements ports.SearchProvider
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]ports.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > 10 {
		maxResults = 10
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "building search request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, pkgerrors.NewTimeoutError(capabilityName, err)
		}
		return nil, pkgerrors.NewCapabilityUnavailableError(capabilityName, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.NewCapabilityUnavailableError(capabilityName, err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, pkgerrors.NewCapabilityUnavailableError(capabilityName,
			fmt.Errorf("search endpoint returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.NewCapabilityContentError(capabilityName,
			fmt.Errorf("search endpoint returned %d", resp.StatusCode))
	}

	var parsed searchResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, pkgerrors.NewCapabilityUnavailableError(capabilityName, err)
	}

	results := make([]ports.SearchResult, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, ports.SearchResult{Title: item.Title, URL: item.Link})
		if len(results) == maxResults {
			break
		}
	}

	c.logger.Debug("search finished",
		zap.String("query", query),
		zap.Int("results", len(results)))

	return results, nil
}
