package wiki

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wikiqa/internal/model"
)

// ErrEmptyPage is returned when neither an extract nor any paragraph is
// available to summarize a page.
var ErrEmptyPage = eris.New("wiki: page has no summary text")

// Page is a lazily fetched wiki page. Every field is fetched at most once
// per instance; the article HTML backs both Paragraphs and Infobox. Safe for
// concurrent use.
type Page struct {
	title  string
	client *Client

	mu      sync.Mutex
	content model.PageContent
	cached  bool
}

// Title returns the page title.
func (p *Page) Title() string {
	return p.title
}

// URL returns the canonical article URL.
func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.urlLocked(ctx)
}

func (p *Page) urlLocked(ctx context.Context) (string, error) {
	p.loadCachedLocked(ctx)
	if p.content.URL != "" {
		return p.content.URL, nil
	}
	u, err := p.client.api.PageURL(ctx, p.title)
	if err != nil {
		return "", eris.Wrapf(err, "wiki: url of %q", p.title)
	}
	p.content.URL = u
	p.storeLocked(ctx)
	return u, nil
}

// Summary returns the title, a newline, and the intro extract. When the
// extract cannot be fetched the first paragraph of the article stands in.
func (p *Page) Summary(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.loadCachedLocked(ctx)
	if p.content.Summary != "" {
		return p.content.Summary, nil
	}

	extract, err := p.client.api.Summary(ctx, p.title)
	if err == nil {
		p.content.Summary = p.title + "\n" + extract
		p.storeLocked(ctx)
		return p.content.Summary, nil
	}
	zap.L().Debug("wiki: extract unavailable, using first paragraph",
		zap.String("title", p.title), zap.Error(err))

	if berr := p.loadBodyLocked(ctx); berr != nil {
		return "", eris.Wrapf(berr, "wiki: summary of %q", p.title)
	}
	if len(p.content.Paragraphs) == 0 {
		return "", eris.Wrapf(ErrEmptyPage, "%q", p.title)
	}
	p.content.Summary = p.title + "\n" + p.content.Paragraphs[0]
	p.storeLocked(ctx)
	return p.content.Summary, nil
}

// Paragraphs returns the article paragraphs in document order.
func (p *Page) Paragraphs(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.loadBodyLocked(ctx); err != nil {
		return nil, err
	}
	return append([]string(nil), p.content.Paragraphs...), nil
}

// Infobox returns the infobox rendering, "" when the page has none.
func (p *Page) Infobox(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.loadBodyLocked(ctx); err != nil {
		return "", err
	}
	return p.content.Infobox, nil
}

// Content returns what has been fetched so far.
func (p *Page) Content() model.PageContent {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.content
	c.Title = p.title
	c.Paragraphs = append([]string(nil), p.content.Paragraphs...)
	return c
}

func (p *Page) loadBodyLocked(ctx context.Context) error {
	p.loadCachedLocked(ctx)
	if p.content.HasBody {
		return nil
	}
	u, err := p.urlLocked(ctx)
	if err != nil {
		return err
	}
	html, err := p.client.api.PageHTML(ctx, u)
	if err != nil {
		return eris.Wrapf(err, "wiki: fetch %q", p.title)
	}
	paras, box, err := Parse(html)
	if err != nil {
		return eris.Wrapf(err, "wiki: parse %q", p.title)
	}
	p.content.Paragraphs = paras
	p.content.Infobox = box
	p.content.HasBody = true
	p.storeLocked(ctx)
	return nil
}

// loadCachedLocked consults the shared cache once per instance.
func (p *Page) loadCachedLocked(ctx context.Context) {
	if p.cached {
		return
	}
	p.cached = true
	if c, ok := p.client.cache.Get(ctx, p.title); ok {
		p.content.Merge(c)
	}
}

func (p *Page) storeLocked(ctx context.Context) {
	if p.client.cache == nil {
		return
	}
	p.content.Title = p.title
	p.content.FetchedAt = p.client.now()
	cp := p.content
	p.client.cache.Put(ctx, &cp)
}
