package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/humanmade/blockindex/pkg/blocks"
)

// CacheConfig holds settings for the caching layer
type CacheConfig struct {
	RedisURL      string
	RedisPassword string
	RedisDB       int
	L1Size        int
	DocumentTTL   time.Duration
	EntryTTL      time.Duration
	RelatedTTL    time.Duration
	CategoryTTL   time.Duration
}

// DefaultCacheConfig returns sensible cache defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		L1Size:      1024,
		DocumentTTL: 15 * time.Minute,
		EntryTTL:    30 * time.Minute,
		RelatedTTL:  5 * time.Minute,
		CategoryTTL: 1 * time.Hour,
	}
}

// CachedStore wraps a Store with an in-process LRU (L1) and Redis (L2)
// read-through cache on the hot read paths. Writes pass through and
// invalidate the affected keys.
type CachedStore struct {
	Store

	redis *redis.Client
	l1    *expirable.LRU[string, []byte]
	cfg   CacheConfig
}

// NewCachedStore creates the caching layer. The Redis connection is
// verified up front so a misconfigured cache fails fast at startup.
func NewCachedStore(inner Store, cfg CacheConfig) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB > 0 {
		opts.DB = cfg.RedisDB
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	l1Size := cfg.L1Size
	if l1Size <= 0 {
		l1Size = DefaultCacheConfig().L1Size
	}

	return &CachedStore{
		Store: inner,
		redis: client,
		l1:    expirable.NewLRU[string, []byte](l1Size, nil, time.Minute),
		cfg:   cfg,
	}, nil
}

// Redis exposes the L2 client, shared with the health checker
func (c *CachedStore) Redis() *redis.Client {
	return c.redis
}

// Close closes the Redis connection and the wrapped store
func (c *CachedStore) Close() error {
	if err := c.redis.Close(); err != nil {
		c.Store.Close()
		return err
	}
	return c.Store.Close()
}

// cache plumbing

func (c *CachedStore) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if data, ok := c.l1.Get(key); ok {
		return json.Unmarshal(data, dest) == nil
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false // miss or redis unavailable; fall through to the store
	}
	if json.Unmarshal(data, dest) != nil {
		c.redis.Del(ctx, key)
		return false
	}
	c.l1.Add(key, data)
	return true
}

func (c *CachedStore) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.l1.Add(key, data)
	c.redis.Set(ctx, key, data, ttl)
}

func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.l1.Remove(key)
	}
	c.redis.Del(ctx, keys...)
}

// invalidateRelated drops every cached relationship page for an entry.
// Pages are keyed by offset, so a scan is needed.
func (c *CachedStore) invalidateRelated(ctx context.Context, entryID int64) {
	pattern := fmt.Sprintf("related:%d:*", entryID)
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		c.l1.Remove(key)
		c.redis.Del(ctx, key)
	}
}

func documentKey(id int64) string { return fmt.Sprintf("document:%d", id) }

func entryKey(blockID int64) string { return fmt.Sprintf("entry:block:%d", blockID) }

func relatedKey(entryID int64, limit, offset int) string {
	return fmt.Sprintf("related:%d:%d:%d", entryID, limit, offset)
}

const categoriesKey = "categories:list"

// cached reads

func (c *CachedStore) GetDocument(ctx context.Context, id int64) (*blocks.Document, error) {
	key := documentKey(id)

	var doc blocks.Document
	if c.cacheGet(ctx, key, &doc) {
		return &doc, nil
	}

	fresh, err := c.Store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cacheSet(ctx, key, fresh, c.cfg.DocumentTTL)
	return fresh, nil
}

func (c *CachedStore) GetIndexEntryByBlock(ctx context.Context, blockID int64) (*blocks.IndexEntry, error) {
	key := entryKey(blockID)

	var entry blocks.IndexEntry
	if c.cacheGet(ctx, key, &entry) {
		return &entry, nil
	}

	fresh, err := c.Store.GetIndexEntryByBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	c.cacheSet(ctx, key, fresh, c.cfg.EntryTTL)
	return fresh, nil
}

type relatedPage struct {
	Documents []*blocks.Document `json:"documents"`
	Total     int                `json:"total"`
}

func (c *CachedStore) ListRelatedDocuments(ctx context.Context, entryID int64, limit, offset int) ([]*blocks.Document, int, error) {
	key := relatedKey(entryID, limit, offset)

	var page relatedPage
	if c.cacheGet(ctx, key, &page) {
		return page.Documents, page.Total, nil
	}

	docs, total, err := c.Store.ListRelatedDocuments(ctx, entryID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	c.cacheSet(ctx, key, relatedPage{Documents: docs, Total: total}, c.cfg.RelatedTTL)
	return docs, total, nil
}

func (c *CachedStore) ListCategories(ctx context.Context) ([]*blocks.Category, error) {
	var cats []*blocks.Category
	if c.cacheGet(ctx, categoriesKey, &cats) {
		return cats, nil
	}

	fresh, err := c.Store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	c.cacheSet(ctx, categoriesKey, fresh, c.cfg.CategoryTTL)
	return fresh, nil
}

// invalidating writes

func (c *CachedStore) UpdateDocument(ctx context.Context, doc *blocks.Document) error {
	if err := c.Store.UpdateDocument(ctx, doc); err != nil {
		return err
	}
	c.invalidate(ctx, documentKey(doc.ID))
	return nil
}

func (c *CachedStore) DeleteDocument(ctx context.Context, id int64) error {
	if err := c.Store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, documentKey(id))
	return nil
}

func (c *CachedStore) CreateIndexEntry(ctx context.Context, entry *blocks.IndexEntry) error {
	if err := c.Store.CreateIndexEntry(ctx, entry); err != nil {
		return err
	}
	c.invalidate(ctx, entryKey(entry.BlockID))
	return nil
}

func (c *CachedStore) UpdateIndexEntry(ctx context.Context, entry *blocks.IndexEntry) error {
	if err := c.Store.UpdateIndexEntry(ctx, entry); err != nil {
		return err
	}
	c.invalidate(ctx, entryKey(entry.BlockID))
	return nil
}

func (c *CachedStore) DeleteIndexEntry(ctx context.Context, id int64) error {
	if err := c.Store.DeleteIndexEntry(ctx, id); err != nil {
		return err
	}
	// The entry is gone; its block mapping and relationship pages are stale.
	c.invalidateRelated(ctx, id)
	c.invalidateEntryKeys(ctx)
	return nil
}

// invalidateEntryKeys clears every cached entry mapping. Entry deletion is
// rare (block deletion only), so the broad flush is acceptable.
func (c *CachedStore) invalidateEntryKeys(ctx context.Context) {
	iter := c.redis.Scan(ctx, 0, "entry:block:*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		c.l1.Remove(key)
		c.redis.Del(ctx, key)
	}
	c.l1.Purge()
}

func (c *CachedStore) ReplaceDocumentEdges(ctx context.Context, documentID int64, entryIDs []int64) error {
	// Capture the old edge set so its relationship pages can be dropped too.
	oldEdges, _ := c.Store.GetDocumentEdges(ctx, documentID)

	if err := c.Store.ReplaceDocumentEdges(ctx, documentID, entryIDs); err != nil {
		return err
	}

	seen := make(map[int64]bool)
	for _, entryID := range append(oldEdges, entryIDs...) {
		if !seen[entryID] {
			seen[entryID] = true
			c.invalidateRelated(ctx, entryID)
		}
	}
	return nil
}

func (c *CachedStore) CreateCategory(ctx context.Context, cat *blocks.Category) error {
	if err := c.Store.CreateCategory(ctx, cat); err != nil {
		return err
	}
	c.invalidate(ctx, categoriesKey)
	return nil
}
