package pipeline

import (
	"context"

	"github.com/sells-group/wikiqa/internal/wiki"
)

// WikiSearcher adapts a wiki.Client to PageSearcher.
type WikiSearcher struct {
	Client *wiki.Client
}

// Search implements PageSearcher.
func (w WikiSearcher) Search(ctx context.Context, query string) ([]Page, error) {
	found, err := w.Client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	pages := make([]Page, len(found))
	for i, pg := range found {
		pages[i] = pg
	}
	return pages, nil
}
