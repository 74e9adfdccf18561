// Package parser talks to the parse service that turns rendered pages into
// listings and applies the user's filters.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-openclaw-scanner/internal/ports"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a client for the parse service at baseURL. token is sent
// as a bearer token when set.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type pageRequest struct {
	HTML       string `json:"html"`
	MaxRetries int    `json:"maxRetries"`
	RetryCount int    `json:"retryCount"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ExtractAndUpsertListings sends a search results page for linkID and returns
// the listings the service stored as new.
func (c *Client) ExtractAndUpsertListings(ctx context.Context, linkID, html string, maxRetries, retryCount int) (ports.ExtractResult, error) {
	var out ports.ExtractResult
	path := "/links/" + url.PathEscape(linkID) + "/listings"
	err := c.post(ctx, path, pageRequest{HTML: html, MaxRetries: maxRetries, RetryCount: retryCount}, &out)
	return out, err
}

// ExtractDescriptionAndFilter sends a listing detail page and returns the
// listing with its description and final status.
func (c *Client) ExtractDescriptionAndFilter(ctx context.Context, listingID, html string, maxRetries, retryCount int) (ports.DescriptionResult, error) {
	var out ports.DescriptionResult
	path := "/listings/" + url.PathEscape(listingID) + "/description"
	err := c.post(ctx, path, pageRequest{HTML: html, MaxRetries: maxRetries, RetryCount: retryCount}, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal parse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(bodyBytes, &e) == nil && e.Error != nil {
			return fmt.Errorf("parse service returned status %d: %s", resp.StatusCode, e.Error.Message)
		}
		return fmt.Errorf("parse service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
