package cli

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanmade/blockindex/pkg/api"
	"github.com/humanmade/blockindex/pkg/blocks"
	"github.com/humanmade/blockindex/pkg/config"
	"github.com/humanmade/blockindex/pkg/observability"
	"github.com/humanmade/blockindex/pkg/store"
)

func newTestRegistry(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	srv := api.NewServer(st, logger, nil, config.IndexConfig{
		EmbeddableTypes: []string{blocks.TypePost, blocks.TypePage},
		EditURLTemplate: "/edit/%d",
	})

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func TestRootCommand_UnknownSubcommand(t *testing.T) {
	root := NewRootCommand()
	err := root.Execute([]string{"frobnicate"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"blocks", "search", "related", "settings"} {
		assert.Contains(t, root.Subcommands, name)
	}
}

func TestSearchCommand_RequiresID(t *testing.T) {
	err := runSearch([]string{"--registry", "http://localhost:0"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "id is required")
}

func TestRelatedCommand_RequiresBlockID(t *testing.T) {
	err := runRelated([]string{"--registry", "http://localhost:0"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "block is required")
}

func TestBlocksCommand_AgainstRegistry(t *testing.T) {
	ts := newTestRegistry(t)

	err := runBlocks([]string{"--registry", ts.URL, "--keywords", "hero"})
	assert.NoError(t, err)
}

func TestSettingsCommand_AgainstRegistry(t *testing.T) {
	ts := newTestRegistry(t)

	err := runSettings([]string{"--registry", ts.URL})
	assert.NoError(t, err)
}
