// Package wiki wraps the MediaWiki API into lazily loaded pages whose
// summary, paragraphs and infobox feed the answering pipeline.
package wiki

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wikiqa/pkg/mediawiki"
)

// Client searches the wiki and hands out Page handles.
type Client struct {
	api   mediawiki.Client
	limit int
	cache *Cache
	now   func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithSearchLimit sets how many titles a search returns.
func WithSearchLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithCache shares fetched page content between Page instances.
func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// NewClient creates a Client over api.
func NewClient(api mediawiki.Client, opts ...Option) *Client {
	c := &Client{api: api, limit: mediawiki.DefaultSearchLimit, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search returns pages for query in the wiki's relevance order. No results
// is not an error.
func (c *Client) Search(ctx context.Context, query string) ([]*Page, error) {
	titles, err := c.api.Search(ctx, query, c.limit)
	if err != nil {
		return nil, eris.Wrapf(err, "wiki: search %q", query)
	}
	zap.L().Debug("wiki: search",
		zap.String("query", query),
		zap.Int("results", len(titles)),
	)
	pages := make([]*Page, len(titles))
	for i, t := range titles {
		pages[i] = c.Page(t)
	}
	return pages, nil
}

// Page returns a handle for title. Nothing is fetched until a field is read.
func (c *Client) Page(title string) *Page {
	return &Page{title: title, client: c}
}
