package wiki

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/sells-group/wikiqa/internal/model"
)

// PageStore persists fetched page content across processes.
type PageStore interface {
	// GetCachedPage returns nil, nil when the page is absent or expired.
	GetCachedPage(ctx context.Context, title string) (*model.PageContent, error)
	SetCachedPage(ctx context.Context, page *model.PageContent, ttl time.Duration) error
}

// Cache is an in-memory LRU in front of an optional PageStore. Both tiers
// expire entries after ttl. Store failures are logged and treated as misses.
type Cache struct {
	mem   *expirable.LRU[string, *model.PageContent]
	store PageStore
	ttl   time.Duration
}

// NewCache creates a page cache. store may be nil.
func NewCache(size int, ttl time.Duration, store PageStore) *Cache {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		mem:   expirable.NewLRU[string, *model.PageContent](size, nil, ttl),
		store: store,
		ttl:   ttl,
	}
}

// Get returns a copy of the cached content for title.
func (c *Cache) Get(ctx context.Context, title string) (*model.PageContent, bool) {
	if c == nil {
		return nil, false
	}
	if p, ok := c.mem.Get(title); ok {
		return copyPage(p), true
	}
	if c.store == nil {
		return nil, false
	}
	p, err := c.store.GetCachedPage(ctx, title)
	if err != nil {
		zap.L().Warn("wiki: page cache read failed", zap.String("title", title), zap.Error(err))
		return nil, false
	}
	if p == nil {
		return nil, false
	}
	c.mem.Add(title, copyPage(p))
	return p, true
}

// Put merges page into the cached entry for its title.
func (c *Cache) Put(ctx context.Context, page *model.PageContent) {
	if c == nil || page == nil {
		return
	}
	merged := copyPage(page)
	if old, ok := c.mem.Get(page.Title); ok {
		merged.Merge(old)
	}
	c.mem.Add(page.Title, merged)

	if c.store == nil {
		return
	}
	if err := c.store.SetCachedPage(ctx, copyPage(merged), c.ttl); err != nil {
		zap.L().Warn("wiki: page cache write failed", zap.String("title", page.Title), zap.Error(err))
	}
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.mem.Len()
}

func copyPage(p *model.PageContent) *model.PageContent {
	cp := *p
	if p.Paragraphs != nil {
		cp.Paragraphs = append([]string(nil), p.Paragraphs...)
	}
	return &cp
}
