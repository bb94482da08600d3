package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanmade/blockindex/pkg/blocks"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func makeBlock(t *testing.T, s *SQLiteStore, title, content string) *blocks.Document {
	t.Helper()
	doc := &blocks.Document{
		Type:    blocks.TypeBlock,
		Title:   title,
		Slug:    blocks.Slugify(title),
		Content: content,
		Status:  blocks.StatusPublished,
	}
	require.NoError(t, s.CreateDocument(context.Background(), doc))
	return doc
}

func TestSQLiteStore_DocumentCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &blocks.Document{
		Type:    blocks.TypePost,
		Title:   "Welcome",
		Slug:    "welcome",
		Content: "<p>hello</p>",
		Status:  blocks.StatusDraft,
	}
	require.NoError(t, s.CreateDocument(ctx, doc))
	assert.NotZero(t, doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Welcome", got.Title)
	assert.Equal(t, blocks.StatusDraft, got.Status)

	doc.Title = "Welcome!"
	doc.Status = blocks.StatusPublished
	require.NoError(t, s.UpdateDocument(ctx, doc))

	got, err = s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Welcome!", got.Title)
	assert.Equal(t, blocks.StatusPublished, got.Status)

	require.NoError(t, s.DeleteDocument(ctx, doc.ID))
	_, err = s.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_GetDocument_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDocument(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_UpdateDocument_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateDocument(context.Background(), &blocks.Document{ID: 42, Type: blocks.TypePost})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SlugExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := makeBlock(t, s, "Hero Banner", "")

	exists, err := s.SlugExists(ctx, "hero-banner", 0)
	require.NoError(t, err)
	assert.True(t, exists)

	// Excluding the owning document itself reports no conflict.
	exists, err = s.SlugExists(ctx, "hero-banner", doc.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = s.SlugExists(ctx, "missing", 0)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLiteStore_IndexEntryCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	block := makeBlock(t, s, "CTA", "")

	entry := &blocks.IndexEntry{BlockID: block.ID, Name: "CTA", Slug: "cta"}
	require.NoError(t, s.CreateIndexEntry(ctx, entry))
	assert.NotZero(t, entry.ID)

	got, err := s.GetIndexEntryByBlock(ctx, block.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "CTA", got.Name)

	entry.Name = "Call To Action"
	entry.Slug = "call-to-action"
	require.NoError(t, s.UpdateIndexEntry(ctx, entry))

	got, err = s.GetIndexEntryByBlock(ctx, block.ID)
	require.NoError(t, err)
	assert.Equal(t, "Call To Action", got.Name)
	assert.Equal(t, "call-to-action", got.Slug)

	require.NoError(t, s.DeleteIndexEntry(ctx, entry.ID))
	_, err = s.GetIndexEntryByBlock(ctx, block.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ReplaceDocumentEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	blockA := makeBlock(t, s, "A", "")
	blockB := makeBlock(t, s, "B", "")
	entryA := &blocks.IndexEntry{BlockID: blockA.ID, Name: "A", Slug: "a"}
	entryB := &blocks.IndexEntry{BlockID: blockB.ID, Name: "B", Slug: "b"}
	require.NoError(t, s.CreateIndexEntry(ctx, entryA))
	require.NoError(t, s.CreateIndexEntry(ctx, entryB))

	post := &blocks.Document{Type: blocks.TypePost, Title: "P", Status: blocks.StatusPublished}
	require.NoError(t, s.CreateDocument(ctx, post))

	require.NoError(t, s.ReplaceDocumentEdges(ctx, post.ID, []int64{entryA.ID, entryB.ID}))
	edges, err := s.GetDocumentEdges(ctx, post.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{entryA.ID, entryB.ID}, edges)

	// Full replacement, not merge.
	require.NoError(t, s.ReplaceDocumentEdges(ctx, post.ID, []int64{entryB.ID}))
	edges, err = s.GetDocumentEdges(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{entryB.ID}, edges)

	// Duplicate entry IDs collapse to a single edge.
	require.NoError(t, s.ReplaceDocumentEdges(ctx, post.ID, []int64{entryA.ID, entryA.ID}))
	edges, err = s.GetDocumentEdges(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{entryA.ID}, edges)

	// Empty set clears everything.
	require.NoError(t, s.ReplaceDocumentEdges(ctx, post.ID, nil))
	edges, err = s.GetDocumentEdges(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestSQLiteStore_ListRelatedDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	block := makeBlock(t, s, "Shared", "")
	entry := &blocks.IndexEntry{BlockID: block.ID, Name: "Shared", Slug: "shared"}
	require.NoError(t, s.CreateIndexEntry(ctx, entry))

	for i := 0; i < 3; i++ {
		post := &blocks.Document{Type: blocks.TypePost, Title: "Post", Status: blocks.StatusPublished}
		require.NoError(t, s.CreateDocument(ctx, post))
		require.NoError(t, s.ReplaceDocumentEdges(ctx, post.ID, []int64{entry.ID}))
	}

	docs, total, err := s.ListRelatedDocuments(ctx, entry.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, docs, 2)

	docs, total, err = s.ListRelatedDocuments(ctx, entry.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, docs, 1)

	// Unknown entry yields an empty page, not an error.
	docs, total, err = s.ListRelatedDocuments(ctx, 999, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, docs)
}

func TestSQLiteStore_ListBlocks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hero := makeBlock(t, s, "Hero Banner", "big banner")
	makeBlock(t, s, "Footer", "site footer")

	post := &blocks.Document{Type: blocks.TypePost, Title: "Not a block", Status: blocks.StatusPublished}
	require.NoError(t, s.CreateDocument(ctx, post))

	all, err := s.ListBlocks(ctx, BlockQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	found, err := s.ListBlocks(ctx, BlockQuery{Search: "banner"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, hero.ID, found[0].ID)

	cat := &blocks.Category{Name: "Marketing", Slug: "marketing"}
	require.NoError(t, s.CreateCategory(ctx, cat))
	require.NoError(t, s.SetBlockCategories(ctx, hero.ID, []int64{cat.ID}))

	inCat, err := s.ListBlocks(ctx, BlockQuery{CategoryID: cat.ID})
	require.NoError(t, err)
	require.Len(t, inCat, 1)
	assert.Equal(t, hero.ID, inCat[0].ID)
	assert.Equal(t, []int64{cat.ID}, inCat[0].Categories)
}

func TestSQLiteStore_GetBlocksByIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := makeBlock(t, s, "A", "")
	b := makeBlock(t, s, "B", "")

	post := &blocks.Document{Type: blocks.TypePost, Title: "P", Status: blocks.StatusPublished}
	require.NoError(t, s.CreateDocument(ctx, post))

	// Requested order preserved; non-block and unknown IDs dropped.
	got, err := s.GetBlocksByIDs(ctx, []int64{b.ID, post.ID, a.ID, 999})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)

	got, err = s.GetBlocksByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_Categories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cat := &blocks.Category{Name: "Layout", Slug: "layout"}
	require.NoError(t, s.CreateCategory(ctx, cat))
	assert.NotZero(t, cat.ID)

	got, err := s.GetCategory(ctx, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Layout", got.Name)

	_, err = s.GetCategory(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
