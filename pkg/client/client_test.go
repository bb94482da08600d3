package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanmade/blockindex/pkg/api"
	"github.com/humanmade/blockindex/pkg/blocks"
	"github.com/humanmade/blockindex/pkg/config"
	"github.com/humanmade/blockindex/pkg/httputil"
	"github.com/humanmade/blockindex/pkg/store"
)

func newTestAPI(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv := api.NewServer(st, testLogger(), nil, config.IndexConfig{
		EmbeddableTypes: []string{blocks.TypePost, blocks.TypePage},
		EditURLTemplate: "/edit/%d",
	})

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, NewClient(ts.URL)
}

func postJSON(t *testing.T, ts *httptest.Server, path string, payload interface{}) map[string]interface{} {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func TestClient_BlocksAndSearch(t *testing.T) {
	ts, c := newTestAPI(t)
	ctx := context.Background()

	created := postJSON(t, ts, "/api/v1/blocks", map[string]interface{}{
		"title":   "Hero Banner",
		"content": "Welcome to the summer sale",
	})
	blockID := int64(created["id"].(float64))

	results, err := c.Blocks(ctx, BlockListQuery{Search: "hero"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, blockID, results[0].ID)
	assert.Equal(t, "Hero Banner", results[0].Title.Raw)

	byID, err := c.Search(ctx, fmt.Sprintf("%d", blockID))
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, blockID, byID[0].ID)
}

func TestClient_RelationshipsReadsTotalsFromHeaders(t *testing.T) {
	ts, c := newTestAPI(t)
	ctx := context.Background()

	created := postJSON(t, ts, "/api/v1/blocks", map[string]interface{}{
		"title":   "Shared Footer",
		"content": "footer text",
	})
	blockID := int64(created["id"].(float64))
	entryRef := fmt.Sprintf(`<!-- wp:core/block {"ref":%d} /-->`, blockID)

	for i := 0; i < 12; i++ {
		postJSON(t, ts, "/api/v1/documents", map[string]interface{}{
			"type":    blocks.TypePost,
			"title":   fmt.Sprintf("Post %d", i+1),
			"content": entryRef,
			"status":  string(blocks.StatusPublished),
		})
	}

	page, err := c.Relationships(ctx, blockID, 1)
	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, 12, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)

	page2, err := c.Relationships(ctx, blockID, 2)
	require.NoError(t, err)
	assert.Len(t, page2.Items, 2)
}

func TestClient_SurfacesAPIErrors(t *testing.T) {
	_, c := newTestAPI(t)

	_, err := c.Relationships(context.Background(), 999, 1)
	require.Error(t, err)

	var apiErr *httputil.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "blockindex.relationships.block_not_found", apiErr.Code)
	assert.Equal(t, http.StatusNotFound, apiErr.Data.Status)
}

func TestClient_Settings(t *testing.T) {
	_, c := newTestAPI(t)

	settings, err := c.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, settings.RelationshipsPerPage)
	assert.Contains(t, settings.EmbeddableTypes, blocks.TypePost)
}

func TestClient_PagerAgainstServer(t *testing.T) {
	ts, c := newTestAPI(t)
	ctx := context.Background()

	created := postJSON(t, ts, "/api/v1/blocks", map[string]interface{}{
		"title":   "Callout",
		"content": "callout body",
	})
	blockID := int64(created["id"].(float64))
	entryRef := fmt.Sprintf(`<!-- wp:core/block {"ref":%d} /-->`, blockID)

	for i := 0; i < 15; i++ {
		postJSON(t, ts, "/api/v1/documents", map[string]interface{}{
			"type":    blocks.TypePost,
			"title":   fmt.Sprintf("Article %d", i+1),
			"content": entryRef,
			"status":  string(blocks.StatusPublished),
		})
	}

	p := NewRelationshipPager(c, blockID)
	page1, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, page1, 10)

	page2, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, page2, 5)
	assert.False(t, p.HasNext())
	assert.Equal(t, 15, p.TotalItems())
}
