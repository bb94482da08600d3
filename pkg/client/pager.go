package client

import (
	"context"
	"fmt"

	"github.com/humanmade/blockindex/pkg/relations"
)

// RelationshipLister is the slice of the API client the pager needs
type RelationshipLister interface {
	Relationships(ctx context.Context, blockID int64, page int) (*RelationshipsPage, error)
}

// RelationshipPager pages through the documents embedding a block,
// buffering fetched items so already-seen pages never refetch. Fetching
// is monotonic: moving forward fetches at most one page, moving backward
// fetches nothing.
type RelationshipPager struct {
	client  RelationshipLister
	blockID int64

	buffer       []relations.DocumentSummary
	page         int
	fetchedPages int
	totalItems   int
	totalPages   int
}

// NewRelationshipPager creates a pager for the given block
func NewRelationshipPager(client RelationshipLister, blockID int64) *RelationshipPager {
	return &RelationshipPager{client: client, blockID: blockID}
}

// Page returns the current 1-based page number, 0 before the first fetch
func (p *RelationshipPager) Page() int { return p.page }

// TotalItems returns the total relationship count from the last response
func (p *RelationshipPager) TotalItems() int { return p.totalItems }

// TotalPages returns the total page count from the last response
func (p *RelationshipPager) TotalPages() int { return p.totalPages }

// HasNext reports whether a further page exists
func (p *RelationshipPager) HasNext() bool {
	return p.page == 0 || p.page < p.totalPages
}

// HasPrev reports whether an earlier page exists
func (p *RelationshipPager) HasPrev() bool {
	return p.page > 1
}

// Current returns the items of the current page from the buffer
func (p *RelationshipPager) Current() []relations.DocumentSummary {
	if p.page == 0 {
		return nil
	}

	start := (p.page - 1) * relations.PerPage
	if start >= len(p.buffer) {
		return nil
	}
	end := start + relations.PerPage
	if end > len(p.buffer) {
		end = len(p.buffer)
	}
	return p.buffer[start:end]
}

// Next advances to the next page, fetching only when the buffer does not
// already hold its items.
func (p *RelationshipPager) Next(ctx context.Context) ([]relations.DocumentSummary, error) {
	if p.page != 0 && p.page >= p.totalPages {
		return nil, fmt.Errorf("no page after %d", p.page)
	}

	next := p.page + 1
	if len(p.buffer) < next*relations.PerPage && p.fetchedPages < next {
		fetched, err := p.client.Relationships(ctx, p.blockID, next)
		if err != nil {
			return nil, err
		}
		p.buffer = append(p.buffer, fetched.Items...)
		p.fetchedPages = next
		p.totalItems = fetched.TotalItems
		p.totalPages = fetched.TotalPages
	}

	p.page = next
	return p.Current(), nil
}

// Prev moves back one page. It never fetches: earlier pages are always
// buffered.
func (p *RelationshipPager) Prev() ([]relations.DocumentSummary, error) {
	if p.page <= 1 {
		return nil, fmt.Errorf("no page before %d", p.page)
	}
	p.page--
	return p.Current(), nil
}
