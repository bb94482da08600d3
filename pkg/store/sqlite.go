package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/humanmade/blockindex/pkg/blocks"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path
// and ensures the schema exists. Use ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY errors under concurrent request handling.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// NewSQLiteStoreFromDB wraps an existing database handle. The schema is
// assumed to exist already.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			slug TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type);
		CREATE INDEX IF NOT EXISTS idx_documents_slug ON documents(slug);
		CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(updated_at);

		CREATE TABLE IF NOT EXISTS index_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			block_id INTEGER NOT NULL UNIQUE REFERENCES documents(id),
			name TEXT NOT NULL DEFAULT '',
			slug TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS block_relationships (
			document_id INTEGER NOT NULL REFERENCES documents(id),
			entry_id INTEGER NOT NULL REFERENCES index_entries(id),
			UNIQUE(document_id, entry_id)
		);
		CREATE INDEX IF NOT EXISTS idx_relationships_entry ON block_relationships(entry_id);
		CREATE INDEX IF NOT EXISTS idx_relationships_document ON block_relationships(document_id);

		CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			parent INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS block_categories (
			block_id INTEGER NOT NULL REFERENCES documents(id),
			category_id INTEGER NOT NULL REFERENCES categories(id),
			UNIQUE(block_id, category_id)
		);
		CREATE INDEX IF NOT EXISTS idx_block_categories_block ON block_categories(block_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Document operations

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *blocks.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (type, title, slug, content, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, doc.Type, doc.Title, doc.Slug, doc.Content, string(doc.Status), doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	doc.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted document id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id int64) (*blocks.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, title, slug, content, status, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)
	return scanDocument(row)
}

func (s *SQLiteStore) UpdateDocument(ctx context.Context, doc *blocks.Document) error {
	doc.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE documents SET type = ?, title = ?, slug = ?, content = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, doc.Type, doc.Title, doc.Slug, doc.Content, string(doc.Status), doc.UpdatedAt, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	// Edges owned by the document go with it.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM block_relationships WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete document edges: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents WHERE slug = ? AND id != ?
	`, slug, excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) ListDocumentsUpdatedSince(ctx context.Context, sinceUnix int64, limit int) ([]*blocks.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, title, slug, content, status, created_at, updated_at
		FROM documents
		WHERE updated_at >= ?
		ORDER BY updated_at DESC
		LIMIT ?
	`, time.Unix(sinceUnix, 0).UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Block operations

func (s *SQLiteStore) ListBlocks(ctx context.Context, q BlockQuery) ([]*blocks.Block, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultBlockLimit
	}

	query := `
		SELECT DISTINCT d.id, d.type, d.title, d.slug, d.content, d.status, d.created_at, d.updated_at
		FROM documents d
	`
	args := make([]interface{}, 0, 4)
	var where []string

	if q.CategoryID != 0 {
		query += ` JOIN block_categories bc ON bc.block_id = d.id`
		where = append(where, `bc.category_id = ?`)
		args = append(args, q.CategoryID)
	}

	where = append(where, `d.type = ?`)
	args = append(args, blocks.TypeBlock)

	if q.Search != "" {
		where = append(where, `(d.title LIKE ? OR d.content LIKE ?)`)
		pattern := "%" + q.Search + "%"
		args = append(args, pattern, pattern)
	}

	query += ` WHERE ` + strings.Join(where, ` AND `) + ` ORDER BY d.updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	return s.attachCategories(ctx, docs)
}

func (s *SQLiteStore) GetBlocksByIDs(ctx context.Context, ids []int64) ([]*blocks.Block, error) {
	if len(ids) == 0 {
		return []*blocks.Block{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	args[len(ids)] = blocks.TypeBlock

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, title, slug, content, status, created_at, updated_at
		FROM documents
		WHERE id IN (`+strings.Join(placeholders, ",")+`) AND type = ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blocks: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}

	// Preserve the caller's requested order.
	byID := make(map[int64]*blocks.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}
	ordered := make([]*blocks.Document, 0, len(docs))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			ordered = append(ordered, doc)
		}
	}

	return s.attachCategories(ctx, ordered)
}

func (s *SQLiteStore) attachCategories(ctx context.Context, docs []*blocks.Document) ([]*blocks.Block, error) {
	result := make([]*blocks.Block, 0, len(docs))
	for _, doc := range docs {
		cats, err := s.GetBlockCategories(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, &blocks.Block{Document: *doc, Categories: cats})
	}
	return result, nil
}

// Index entry operations

func (s *SQLiteStore) CreateIndexEntry(ctx context.Context, entry *blocks.IndexEntry) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO index_entries (block_id, name, slug) VALUES (?, ?, ?)
	`, entry.BlockID, entry.Name, entry.Slug)
	if err != nil {
		return fmt.Errorf("failed to create index entry: %w", err)
	}

	entry.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted entry id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetIndexEntryByBlock(ctx context.Context, blockID int64) (*blocks.IndexEntry, error) {
	entry := &blocks.IndexEntry{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, block_id, name, slug FROM index_entries WHERE block_id = ?
	`, blockID).Scan(&entry.ID, &entry.BlockID, &entry.Name, &entry.Slug)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get index entry: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStore) UpdateIndexEntry(ctx context.Context, entry *blocks.IndexEntry) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE index_entries SET name = ?, slug = ? WHERE id = ?
	`, entry.Name, entry.Slug, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to update index entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteIndexEntry(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM index_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete index entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM block_relationships WHERE entry_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete entry edges: %w", err)
	}
	return nil
}

// Edge operations

func (s *SQLiteStore) ReplaceDocumentEdges(ctx context.Context, documentID int64, entryIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM block_relationships WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to clear document edges: %w", err)
	}

	for _, entryID := range entryIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO block_relationships (document_id, entry_id) VALUES (?, ?)
		`, documentID, entryID); err != nil {
			return fmt.Errorf("failed to insert edge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit edge replacement: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocumentEdges(ctx context.Context, documentID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id FROM block_relationships WHERE document_id = ? ORDER BY entry_id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document edges: %w", err)
	}
	defer rows.Close()

	return scanInt64s(rows)
}

func (s *SQLiteStore) ListRelatedDocuments(ctx context.Context, entryID int64, limit, offset int) ([]*blocks.Document, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM block_relationships WHERE entry_id = ?
	`, entryID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count related documents: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.type, d.title, d.slug, d.content, d.status, d.created_at, d.updated_at
		FROM documents d
		JOIN block_relationships r ON r.document_id = d.id
		WHERE r.entry_id = ?
		ORDER BY d.updated_at DESC, d.id DESC
		LIMIT ? OFFSET ?
	`, entryID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list related documents: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Category operations

func (s *SQLiteStore) CreateCategory(ctx context.Context, cat *blocks.Category) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, slug, parent) VALUES (?, ?, ?)
	`, cat.Name, cat.Slug, cat.Parent)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}

	cat.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted category id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCategory(ctx context.Context, id int64) (*blocks.Category, error) {
	cat := &blocks.Category{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, parent FROM categories WHERE id = ?
	`, id).Scan(&cat.ID, &cat.Name, &cat.Slug, &cat.Parent)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return cat, nil
}

func (s *SQLiteStore) ListCategories(ctx context.Context) ([]*blocks.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug, parent FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	cats := make([]*blocks.Category, 0)
	for rows.Next() {
		cat := &blocks.Category{}
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Slug, &cat.Parent); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}

func (s *SQLiteStore) SetBlockCategories(ctx context.Context, blockID int64, categoryIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM block_categories WHERE block_id = ?`, blockID); err != nil {
		return fmt.Errorf("failed to clear block categories: %w", err)
	}

	for _, catID := range categoryIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO block_categories (block_id, category_id) VALUES (?, ?)
		`, blockID, catID); err != nil {
			return fmt.Errorf("failed to insert block category: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit block categories: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetBlockCategories(ctx context.Context, blockID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id FROM block_categories WHERE block_id = ? ORDER BY category_id
	`, blockID)
	if err != nil {
		return nil, fmt.Errorf("failed to get block categories: %w", err)
	}
	defer rows.Close()

	return scanInt64s(rows)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scan helpers shared by the SQL-backed stores

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*blocks.Document, error) {
	doc := &blocks.Document{}
	var status string
	err := row.Scan(&doc.ID, &doc.Type, &doc.Title, &doc.Slug, &doc.Content, &status, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	doc.Status = blocks.Status(status)
	return doc, nil
}

func scanDocuments(rows *sql.Rows) ([]*blocks.Document, error) {
	docs := make([]*blocks.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanInt64s(rows *sql.Rows) ([]int64, error) {
	vals := make([]int64, 0)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		vals = append(vals, v)
	}
	return vals, rows.Err()
}
