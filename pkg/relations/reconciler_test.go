package relations

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanmade/blockindex/pkg/blocks"
	"github.com/humanmade/blockindex/pkg/observability"
	"github.com/humanmade/blockindex/pkg/store"
)

func newTestReconciler(t *testing.T) (*Reconciler, *Index, store.Store) {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	idx := NewIndex(s, logger, nil, []string{blocks.TypePost})
	return NewReconciler(s, idx, logger, nil, "@every 15m"), idx, s
}

func TestReconciler_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("repairs drifted edge sets", func(t *testing.T) {
		r, idx, s := newTestReconciler(t)

		block := makeBlock(t, s, "Drifted", "drifted")
		_, err := idx.EnsureIndexEntry(ctx, block)
		require.NoError(t, err)
		entry, err := s.GetIndexEntryByBlock(ctx, block.ID)
		require.NoError(t, err)

		// A post referencing the block, but with its edges wiped out
		// behind the synchronizer's back.
		post := makePost(t, s, blocks.SerializeRef(block.ID))
		require.NoError(t, s.ReplaceDocumentEdges(ctx, post.ID, nil))

		require.NoError(t, r.Sweep(ctx))

		edges, err := s.GetDocumentEdges(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{entry.ID}, edges)
	})

	t.Run("removes stale edges", func(t *testing.T) {
		r, idx, s := newTestReconciler(t)

		block := makeBlock(t, s, "Stale", "stale")
		_, err := idx.EnsureIndexEntry(ctx, block)
		require.NoError(t, err)
		entry, err := s.GetIndexEntryByBlock(ctx, block.ID)
		require.NoError(t, err)

		post := makePost(t, s, "<p>no references</p>")
		require.NoError(t, s.ReplaceDocumentEdges(ctx, post.ID, []int64{entry.ID}))

		require.NoError(t, r.Sweep(ctx))

		edges, err := s.GetDocumentEdges(ctx, post.ID)
		require.NoError(t, err)
		assert.Empty(t, edges)
	})

	t.Run("leaves consistent documents alone", func(t *testing.T) {
		r, idx, s := newTestReconciler(t)

		block := makeBlock(t, s, "Fine", "fine")
		_, err := idx.EnsureIndexEntry(ctx, block)
		require.NoError(t, err)

		post := makePost(t, s, blocks.SerializeRef(block.ID))
		_, err = idx.SynchronizeEdges(ctx, nil, post)
		require.NoError(t, err)
		before, err := s.GetDocumentEdges(ctx, post.ID)
		require.NoError(t, err)

		require.NoError(t, r.Sweep(ctx))

		after, err := s.GetDocumentEdges(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestReconciler_StartRejectsBadSchedule(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	r.schedule = "not a schedule"
	assert.Error(t, r.Start(context.Background()))
}

func TestEdgeSetsEqual(t *testing.T) {
	assert.True(t, edgeSetsEqual(nil, nil))
	assert.True(t, edgeSetsEqual([]int64{1, 2}, []int64{2, 1}))
	assert.False(t, edgeSetsEqual([]int64{1}, []int64{2}))
	assert.False(t, edgeSetsEqual([]int64{1, 2}, []int64{1}))
}
