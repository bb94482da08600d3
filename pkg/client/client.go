// Package client provides a Go client for the blockindex API plus the
// editor-side machinery built on it: a debounced block browser and an
// incremental relationship pager.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/humanmade/blockindex/pkg/api"
	"github.com/humanmade/blockindex/pkg/httputil"
	"github.com/humanmade/blockindex/pkg/relations"
	"github.com/humanmade/blockindex/pkg/search"
)

// BlockListQuery holds the filters for browsing blocks
type BlockListQuery struct {
	Search     string
	CategoryID int64
	PerPage    int
}

// RelationshipsPage is one fetched page of related documents with the
// totals read from the response headers.
type RelationshipsPage struct {
	Items      []relations.DocumentSummary
	TotalItems int
	TotalPages int
}

// Client talks to the blockindex REST API
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the API at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Search resolves a search ID to its candidate blocks
func (c *Client) Search(ctx context.Context, searchID string) ([]search.BlockResult, error) {
	var results []search.BlockResult
	q := url.Values{"searchID": {searchID}}
	if _, err := c.getJSON(ctx, "/api/v1/search", q, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Blocks lists blocks matching the browse query
func (c *Client) Blocks(ctx context.Context, query BlockListQuery) ([]search.BlockResult, error) {
	q := url.Values{}
	if query.Search != "" {
		q.Set("search", query.Search)
	}
	if query.CategoryID != 0 {
		q.Set("category", strconv.FormatInt(query.CategoryID, 10))
	}
	if query.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(query.PerPage))
	}

	var results []search.BlockResult
	if _, err := c.getJSON(ctx, "/api/v1/blocks", q, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Relationships fetches one page of documents embedding the block
func (c *Client) Relationships(ctx context.Context, blockID int64, page int) (*RelationshipsPage, error) {
	q := url.Values{
		"block_id": {strconv.FormatInt(blockID, 10)},
		"page":     {strconv.Itoa(page)},
	}

	var items []relations.DocumentSummary
	header, err := c.getJSON(ctx, "/api/v1/relationships", q, &items)
	if err != nil {
		return nil, err
	}

	result := &RelationshipsPage{Items: items}
	result.TotalItems, _ = strconv.Atoi(header.Get("X-Total"))
	result.TotalPages, _ = strconv.Atoi(header.Get("X-Total-Pages"))
	return result, nil
}

// Settings fetches the editor bootstrap payload
func (c *Client) Settings(ctx context.Context) (*api.Settings, error) {
	var settings api.Settings
	if _, err := c.getJSON(ctx, "/api/v1/settings", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// getJSON performs a GET and decodes the JSON body, returning the response
// headers for callers that read pagination totals.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) (http.Header, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr httputil.APIError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Code != "" {
			return nil, &apiErr
		}
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.Header, nil
}
