package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/humanmade/blockindex/pkg/blocks"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig holds connection pool settings for PostgreSQL
type PostgresConfig struct {
	URL      string
	MaxConns int
	MinConns int
	Timeout  time.Duration
}

// NewPostgresStore connects to PostgreSQL and ensures the schema exists
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	}
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			slug TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type);
		CREATE INDEX IF NOT EXISTS idx_documents_slug ON documents(slug);
		CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(updated_at);

		CREATE TABLE IF NOT EXISTS index_entries (
			id BIGSERIAL PRIMARY KEY,
			block_id BIGINT NOT NULL UNIQUE REFERENCES documents(id),
			name TEXT NOT NULL DEFAULT '',
			slug TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS block_relationships (
			document_id BIGINT NOT NULL REFERENCES documents(id),
			entry_id BIGINT NOT NULL REFERENCES index_entries(id),
			UNIQUE(document_id, entry_id)
		);
		CREATE INDEX IF NOT EXISTS idx_relationships_entry ON block_relationships(entry_id);
		CREATE INDEX IF NOT EXISTS idx_relationships_document ON block_relationships(document_id);

		CREATE TABLE IF NOT EXISTS categories (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			parent BIGINT NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS block_categories (
			block_id BIGINT NOT NULL REFERENCES documents(id),
			category_id BIGINT NOT NULL REFERENCES categories(id),
			UNIQUE(block_id, category_id)
		);
		CREATE INDEX IF NOT EXISTS idx_block_categories_block ON block_categories(block_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *blocks.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (type, title, slug, content, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, doc.Type, doc.Title, doc.Slug, doc.Content, string(doc.Status), doc.CreatedAt, doc.UpdatedAt).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id int64) (*blocks.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, title, slug, content, status, created_at, updated_at
		FROM documents WHERE id = $1
	`, id)
	return scanDocument(row)
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, doc *blocks.Document) error {
	doc.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE documents SET type = $1, title = $2, slug = $3, content = $4, status = $5, updated_at = $6
		WHERE id = $7
	`, doc.Type, doc.Title, doc.Slug, doc.Content, string(doc.Status), doc.UpdatedAt, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return requireRows(result)
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if err := requireRows(result); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM block_relationships WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete document edges: %w", err)
	}
	return nil
}

func (s *PostgresStore) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents WHERE slug = $1 AND id != $2
	`, slug, excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return count > 0, nil
}

func (s *PostgresStore) ListDocumentsUpdatedSince(ctx context.Context, sinceUnix int64, limit int) ([]*blocks.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, title, slug, content, status, created_at, updated_at
		FROM documents
		WHERE updated_at >= $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, time.Unix(sinceUnix, 0).UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (s *PostgresStore) ListBlocks(ctx context.Context, q BlockQuery) ([]*blocks.Block, error) {
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
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.CategoryID != 0 {
		query += ` JOIN block_categories bc ON bc.block_id = d.id`
		where = append(where, `bc.category_id = `+arg(q.CategoryID))
	}

	where = append(where, `d.type = `+arg(blocks.TypeBlock))

	if q.Search != "" {
		pattern := "%" + q.Search + "%"
		where = append(where, `(d.title ILIKE `+arg(pattern)+` OR d.content ILIKE `+arg(pattern)+`)`)
	}

	query += ` WHERE ` + strings.Join(where, ` AND `) + ` ORDER BY d.updated_at DESC LIMIT ` + arg(limit)

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

func (s *PostgresStore) GetBlocksByIDs(ctx context.Context, ids []int64) ([]*blocks.Block, error) {
	if len(ids) == 0 {
		return []*blocks.Block{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	args[len(ids)] = blocks.TypeBlock

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, title, slug, content, status, created_at, updated_at
		FROM documents
		WHERE id IN (`+strings.Join(placeholders, ",")+fmt.Sprintf(`) AND type = $%d`, len(ids)+1), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blocks: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}

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

func (s *PostgresStore) attachCategories(ctx context.Context, docs []*blocks.Document) ([]*blocks.Block, error) {
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

func (s *PostgresStore) CreateIndexEntry(ctx context.Context, entry *blocks.IndexEntry) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO index_entries (block_id, name, slug) VALUES ($1, $2, $3) RETURNING id
	`, entry.BlockID, entry.Name, entry.Slug).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create index entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetIndexEntryByBlock(ctx context.Context, blockID int64) (*blocks.IndexEntry, error) {
	entry := &blocks.IndexEntry{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, block_id, name, slug FROM index_entries WHERE block_id = $1
	`, blockID).Scan(&entry.ID, &entry.BlockID, &entry.Name, &entry.Slug)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get index entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) UpdateIndexEntry(ctx context.Context, entry *blocks.IndexEntry) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE index_entries SET name = $1, slug = $2 WHERE id = $3
	`, entry.Name, entry.Slug, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to update index entry: %w", err)
	}
	return requireRows(result)
}

func (s *PostgresStore) DeleteIndexEntry(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM index_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete index entry: %w", err)
	}
	if err := requireRows(result); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM block_relationships WHERE entry_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete entry edges: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceDocumentEdges(ctx context.Context, documentID int64, entryIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM block_relationships WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to clear document edges: %w", err)
	}

	for _, entryID := range entryIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO block_relationships (document_id, entry_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, documentID, entryID); err != nil {
			return fmt.Errorf("failed to insert edge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit edge replacement: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocumentEdges(ctx context.Context, documentID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id FROM block_relationships WHERE document_id = $1 ORDER BY entry_id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document edges: %w", err)
	}
	defer rows.Close()

	return scanInt64s(rows)
}

func (s *PostgresStore) ListRelatedDocuments(ctx context.Context, entryID int64, limit, offset int) ([]*blocks.Document, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM block_relationships WHERE entry_id = $1
	`, entryID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count related documents: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.type, d.title, d.slug, d.content, d.status, d.created_at, d.updated_at
		FROM documents d
		JOIN block_relationships r ON r.document_id = d.id
		WHERE r.entry_id = $1
		ORDER BY d.updated_at DESC, d.id DESC
		LIMIT $2 OFFSET $3
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

func (s *PostgresStore) CreateCategory(ctx context.Context, cat *blocks.Category) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, slug, parent) VALUES ($1, $2, $3) RETURNING id
	`, cat.Name, cat.Slug, cat.Parent).Scan(&cat.ID)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCategory(ctx context.Context, id int64) (*blocks.Category, error) {
	cat := &blocks.Category{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, parent FROM categories WHERE id = $1
	`, id).Scan(&cat.ID, &cat.Name, &cat.Slug, &cat.Parent)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return cat, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]*blocks.Category, error) {
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

func (s *PostgresStore) SetBlockCategories(ctx context.Context, blockID int64, categoryIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM block_categories WHERE block_id = $1`, blockID); err != nil {
		return fmt.Errorf("failed to clear block categories: %w", err)
	}

	for _, catID := range categoryIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO block_categories (block_id, category_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, blockID, catID); err != nil {
			return fmt.Errorf("failed to insert block category: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit block categories: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBlockCategories(ctx context.Context, blockID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id FROM block_categories WHERE block_id = $1 ORDER BY category_id
	`, blockID)
	if err != nil {
		return nil, fmt.Errorf("failed to get block categories: %w", err)
	}
	defer rows.Close()

	return scanInt64s(rows)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func requireRows(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
