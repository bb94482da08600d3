package search

import (
	"context"
	"io"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanmade/blockindex/pkg/blocks"
	"github.com/humanmade/blockindex/pkg/observability"
	"github.com/humanmade/blockindex/pkg/store"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewService(s, logger, nil, []string{blocks.TypePost, blocks.TypePage}), s
}

func createDoc(t *testing.T, s store.Store, docType, title, content string) *blocks.Document {
	t.Helper()
	doc := &blocks.Document{
		Type:    docType,
		Title:   title,
		Slug:    blocks.Slugify(title),
		Content: content,
		Status:  blocks.StatusPublished,
	}
	require.NoError(t, s.CreateDocument(context.Background(), doc))
	return doc
}

func TestResolveCandidates(t *testing.T) {
	ctx := context.Background()

	t.Run("missing search ID", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.ResolveCandidates(ctx, "")
		assert.ErrorIs(t, err, ErrMissingSearchID)
	})

	t.Run("non-numeric search ID", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.ResolveCandidates(ctx, "hero")
		assert.ErrorIs(t, err, ErrInvalidSearchID)

		_, err = svc.ResolveCandidates(ctx, "-3")
		assert.ErrorIs(t, err, ErrInvalidSearchID)
	})

	t.Run("unknown document", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.ResolveCandidates(ctx, "99999")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("block ID yields that block", func(t *testing.T) {
		svc, s := newTestService(t)
		block := createDoc(t, s, blocks.TypeBlock, "Hero Banner", "<p>hero</p>")

		results, err := svc.ResolveCandidates(ctx, fmtID(block.ID))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, block.ID, results[0].ID)
		assert.Equal(t, "Hero Banner", results[0].Title.Raw)
		assert.Equal(t, "<p>hero</p>", results[0].Content.Raw)
	})

	t.Run("post ID yields its referenced blocks in parse order", func(t *testing.T) {
		svc, s := newTestService(t)
		b1 := createDoc(t, s, blocks.TypeBlock, "First", "one")
		b2 := createDoc(t, s, blocks.TypeBlock, "Second", "two")
		post := createDoc(t, s, blocks.TypePost, "Post",
			blocks.SerializeRef(b2.ID)+"<p>middle</p>"+blocks.SerializeRef(b1.ID))

		results, err := svc.ResolveCandidates(ctx, fmtID(post.ID))
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, b2.ID, results[0].ID)
		assert.Equal(t, b1.ID, results[1].ID)
	})

	t.Run("post without references yields empty list", func(t *testing.T) {
		svc, s := newTestService(t)
		post := createDoc(t, s, blocks.TypePost, "Plain", "<p>no blocks</p>")

		results, err := svc.ResolveCandidates(ctx, fmtID(post.ID))
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("unsupported document type yields empty list", func(t *testing.T) {
		svc, s := newTestService(t)
		att := createDoc(t, s, "attachment", "File", "binary")

		results, err := svc.ResolveCandidates(ctx, fmtID(att.ID))
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("references to deleted blocks are dropped by the bulk fetch", func(t *testing.T) {
		svc, s := newTestService(t)
		kept := createDoc(t, s, blocks.TypeBlock, "Kept", "kept")
		gone := createDoc(t, s, blocks.TypeBlock, "Gone", "gone")
		post := createDoc(t, s, blocks.TypePost, "Post",
			blocks.SerializeRef(kept.ID)+blocks.SerializeRef(gone.ID))
		require.NoError(t, s.DeleteDocument(ctx, gone.ID))

		results, err := svc.ResolveCandidates(ctx, fmtID(post.ID))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, kept.ID, results[0].ID)
	})

	t.Run("results carry category assignments", func(t *testing.T) {
		svc, s := newTestService(t)
		block := createDoc(t, s, blocks.TypeBlock, "Tagged", "tagged")

		cat := &blocks.Category{Name: "Promos", Slug: "promos"}
		require.NoError(t, s.CreateCategory(ctx, cat))
		require.NoError(t, s.SetBlockCategories(ctx, block.ID, []int64{cat.ID}))

		results, err := svc.ResolveCandidates(ctx, fmtID(block.ID))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, []int64{cat.ID}, results[0].Categories)
	})
}

func TestServiceListBlocks(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)

	createDoc(t, s, blocks.TypeBlock, "Hero Banner", "large hero")
	createDoc(t, s, blocks.TypeBlock, "Footer", "site footer")
	createDoc(t, s, blocks.TypePost, "Hero post", "not a block")

	results, err := svc.ListBlocks(ctx, store.BlockQuery{Search: "hero"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Hero Banner", results[0].Title.Raw)
}

func fmtID(id int64) string {
	return strconv.FormatInt(id, 10)
}
