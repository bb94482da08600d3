package blocks

import "time"

// Status represents the lifecycle state of a document
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusPending   Status = "pending"
	StatusTrashed   Status = "trashed"
)

// Valid reports whether the status is one of the known lifecycle states
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusPending, StatusTrashed:
		return true
	}
	return false
}

// Document type constants. A reusable block is itself a document of
// type TypeBlock, so blocks can embed other blocks.
const (
	TypeBlock = "block"
	TypePost  = "post"
	TypePage  = "page"
)

// RefBlockName is the reserved block name marking an embedded
// reference to a reusable block.
const RefBlockName = "core/block"

// Document represents any content item whose body may embed reusable blocks
type Document struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Content   string    `json:"content"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsBlock reports whether the document is a reusable block
func (d *Document) IsBlock() bool {
	return d != nil && d.Type == TypeBlock
}

// Block is a reusable block together with its category assignments
type Block struct {
	Document
	Categories []int64 `json:"categories"`
}

// IndexEntry is a row in the relationship index: the materialized
// reverse-lookup key for one reusable block. Name and Slug mirror the
// block's title and slug and are kept in sync on block saves.
type IndexEntry struct {
	ID      int64  `json:"id"`
	BlockID int64  `json:"block_id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
}

// InSync reports whether the entry's display name and slug match the block's
func (e *IndexEntry) InSync(doc *Document) bool {
	return e.Name == doc.Title && e.Slug == doc.Slug
}

// Category is a block category term
type Category struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Parent int64  `json:"parent,omitempty"`
}
