package client

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/humanmade/blockindex/pkg/observability"
	"github.com/humanmade/blockindex/pkg/search"
)

// DefaultDebounce is the trailing-edge delay between the last keystroke
// and the fetch it triggers.
const DefaultDebounce = time.Second

// BlockFetcher is the slice of the API client the browser needs
type BlockFetcher interface {
	Search(ctx context.Context, searchID string) ([]search.BlockResult, error)
	Blocks(ctx context.Context, query BlockListQuery) ([]search.BlockResult, error)
}

// Browser drives the block-insertion UI: it accumulates fetched blocks,
// keeps a filtered and ranked view in sync with the current keyword and
// category, and debounces the fetches the view changes trigger.
type Browser struct {
	fetcher  BlockFetcher
	logger   *observability.Logger
	debounce time.Duration
	onUpdate func([]search.BlockResult)

	mu         sync.Mutex
	known      map[int64]bool
	blocksList []search.BlockResult
	keyword    string
	categoryID int64
	view       []search.BlockResult

	timer  *time.Timer
	cancel context.CancelFunc
}

// BrowserOption configures a Browser
type BrowserOption func(*Browser)

// WithDebounce overrides the fetch debounce interval
func WithDebounce(d time.Duration) BrowserOption {
	return func(b *Browser) { b.debounce = d }
}

// WithOnUpdate registers a callback invoked with the new view after every
// refresh.
func WithOnUpdate(fn func([]search.BlockResult)) BrowserOption {
	return func(b *Browser) { b.onUpdate = fn }
}

// NewBrowser creates a Browser over the given fetcher
func NewBrowser(fetcher BlockFetcher, logger *observability.Logger, opts ...BrowserOption) *Browser {
	b := &Browser{
		fetcher:  fetcher,
		logger:   logger,
		debounce: DefaultDebounce,
		known:    make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetKeyword updates the search keyword and schedules a debounced refresh
func (b *Browser) SetKeyword(keyword string) {
	b.mu.Lock()
	b.keyword = keyword
	b.mu.Unlock()
	b.scheduleRefresh()
}

// SetCategory updates the category filter and schedules a debounced refresh
func (b *Browser) SetCategory(categoryID int64) {
	b.mu.Lock()
	b.categoryID = categoryID
	b.mu.Unlock()
	b.scheduleRefresh()
}

// View returns the current filtered and ranked block list
func (b *Browser) View() []search.BlockResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view
}

// Blocks returns every block fetched so far, in arrival order
func (b *Browser) Blocks() []search.BlockResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blocksList
}

// scheduleRefresh arms the trailing-edge debounce timer; a change while
// the timer is pending restarts the wait.
func (b *Browser) scheduleRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.debounce, b.Refresh)
}

// Refresh fetches immediately with the current keyword and category,
// cancelling any fetch still in flight. A failed or cancelled fetch
// degrades to an empty view.
func (b *Browser) Refresh() {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	keyword := b.keyword
	categoryID := b.categoryID
	b.mu.Unlock()

	view, err := b.fetch(ctx, keyword, categoryID)
	if err != nil {
		if ctx.Err() != nil {
			// A newer refresh superseded this one; its result stands.
			return
		}
		b.logger.WithError(err).Warn("block fetch failed")
		view = []search.BlockResult{}
	}

	b.mu.Lock()
	b.view = view
	onUpdate := b.onUpdate
	b.mu.Unlock()

	if onUpdate != nil {
		onUpdate(view)
	}
}

func (b *Browser) fetch(ctx context.Context, keyword string, categoryID int64) ([]search.BlockResult, error) {
	terms := search.NormalizeKeywords(keyword)

	// A numeric keyword is an exact-ID lookup. A local hit skips the
	// round trip entirely.
	if id, err := strconv.ParseInt(keyword, 10, 64); err == nil && id > 0 {
		if local := b.localBlock(id); local != nil {
			return []search.BlockResult{*local}, nil
		}

		fetched, err := b.fetcher.Search(ctx, keyword)
		if err != nil {
			return nil, err
		}
		b.absorb(fetched)
		return fetched, nil
	}

	fetched, err := b.fetcher.Blocks(ctx, BlockListQuery{
		Search:     keyword,
		CategoryID: categoryID,
	})
	if err != nil {
		return nil, err
	}
	b.absorb(fetched)

	filtered := search.Filter(fetched, categoryID, terms)
	return search.Rank(filtered, terms), nil
}

// absorb merges fetched blocks into the accumulated list, deduplicating
// by ID. The list only ever grows.
func (b *Browser) absorb(fetched []search.BlockResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, blk := range fetched {
		if b.known[blk.ID] {
			continue
		}
		b.known[blk.ID] = true
		b.blocksList = append(b.blocksList, blk)
	}
}

func (b *Browser) localBlock(id int64) *search.BlockResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.blocksList {
		if b.blocksList[i].ID == id {
			return &b.blocksList[i]
		}
	}
	return nil
}

// Close cancels any pending timer and in-flight fetch
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
	if b.cancel != nil {
		b.cancel()
	}
}
