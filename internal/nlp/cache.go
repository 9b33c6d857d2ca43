package nlp

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
)

// CachedAnnotator memoizes annotations by exact text. Query extraction and
// the slow path annotate the same question, so one call serves both.
type CachedAnnotator struct {
	next  Annotator
	cache *lru.Cache[string, *Doc]
}

// NewCachedAnnotator wraps next with an LRU of the given size.
func NewCachedAnnotator(next Annotator, size int) (*CachedAnnotator, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, *Doc](size)
	if err != nil {
		return nil, eris.Wrap(err, "annotator: create cache")
	}
	return &CachedAnnotator{next: next, cache: c}, nil
}

// Annotate implements Annotator.
func (c *CachedAnnotator) Annotate(ctx context.Context, text string) (*Doc, error) {
	if doc, ok := c.cache.Get(text); ok {
		return doc, nil
	}
	doc, err := c.next.Annotate(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, doc)
	return doc, nil
}

// Len returns the number of cached annotations.
func (c *CachedAnnotator) Len() int {
	return c.cache.Len()
}
