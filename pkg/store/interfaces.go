package store

import (
	"context"
	"errors"

	"github.com/humanmade/blockindex/pkg/blocks"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// BlockQuery holds filters for listing reusable blocks
type BlockQuery struct {
	Search     string // substring match against title and content
	CategoryID int64  // 0 means no category filter
	Limit      int    // 0 means DefaultBlockLimit
}

// DefaultBlockLimit caps block listing results, matching the bulk-fetch
// page size used by the search endpoint.
const DefaultBlockLimit = 100

// Store defines the persistence operations for documents, the
// relationship index, and block categories.
type Store interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *blocks.Document) error
	GetDocument(ctx context.Context, id int64) (*blocks.Document, error)
	UpdateDocument(ctx context.Context, doc *blocks.Document) error
	DeleteDocument(ctx context.Context, id int64) error
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	ListDocumentsUpdatedSince(ctx context.Context, sinceUnix int64, limit int) ([]*blocks.Document, error)

	// Block operations
	ListBlocks(ctx context.Context, q BlockQuery) ([]*blocks.Block, error)
	GetBlocksByIDs(ctx context.Context, ids []int64) ([]*blocks.Block, error)

	// Index entry operations
	CreateIndexEntry(ctx context.Context, entry *blocks.IndexEntry) error
	GetIndexEntryByBlock(ctx context.Context, blockID int64) (*blocks.IndexEntry, error)
	UpdateIndexEntry(ctx context.Context, entry *blocks.IndexEntry) error
	DeleteIndexEntry(ctx context.Context, id int64) error

	// Edge operations
	ReplaceDocumentEdges(ctx context.Context, documentID int64, entryIDs []int64) error
	GetDocumentEdges(ctx context.Context, documentID int64) ([]int64, error)
	ListRelatedDocuments(ctx context.Context, entryID int64, limit, offset int) ([]*blocks.Document, int, error)

	// Category operations
	CreateCategory(ctx context.Context, cat *blocks.Category) error
	GetCategory(ctx context.Context, id int64) (*blocks.Category, error)
	ListCategories(ctx context.Context) ([]*blocks.Category, error)
	SetBlockCategories(ctx context.Context, blockID int64, categoryIDs []int64) error
	GetBlockCategories(ctx context.Context, blockID int64) ([]int64, error)

	// Ping verifies the backing store is reachable
	Ping(ctx context.Context) error

	// Close releases the underlying connections
	Close() error
}
