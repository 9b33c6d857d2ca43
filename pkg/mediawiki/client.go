// Package mediawiki provides a client for the MediaWiki action API and the
// rendered article pages it points to.
package mediawiki

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wikiqa/internal/resilience"
)

// DefaultEndpoint is the English Wikipedia action API.
const DefaultEndpoint = "https://en.wikipedia.org/w/api.php"

// DefaultSearchLimit mirrors the API's srlimit default.
const DefaultSearchLimit = 10

var (
	// ErrPageNotFound is returned when a title does not resolve to a page.
	ErrPageNotFound = eris.New("mediawiki: page not found")
	// ErrNoExtract is returned when a page has no intro extract.
	ErrNoExtract = eris.New("mediawiki: page has no extract")
)

// Client defines the wiki operations the pipeline needs.
type Client interface {
	// Search returns page titles matching query, in relevance order.
	Search(ctx context.Context, query string, limit int) ([]string, error)
	// Summary returns the plain-text intro of a page.
	Summary(ctx context.Context, title string) (string, error)
	// PageURL returns the canonical article URL of a page.
	PageURL(ctx context.Context, title string) (string, error)
	// PageHTML fetches a rendered article.
	PageHTML(ctx context.Context, pageURL string) (string, error)
}

// Option configures the MediaWiki client.
type Option func(*httpClient)

// WithBaseURL sets the api.php endpoint.
func WithBaseURL(endpoint string) Option {
	return func(c *httpClient) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent sets the User-Agent header. Wikimedia rejects requests
// without a descriptive one.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit caps requests per second per host. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiters = newHostLimiters(rps)
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithBreaker guards all requests with a circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) {
		c.breaker = b
	}
}

type httpClient struct {
	endpoint  string
	userAgent string
	http      *http.Client
	limiters  *hostLimiters
	retry     resilience.RetryConfig
	breaker   *resilience.Breaker
}

// NewClient creates a new MediaWiki client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		endpoint:  DefaultEndpoint,
		userAgent: "wikiqa/0.1",
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiters: newHostLimiters(10),
		retry:    resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("mediawiki", "request")
	return c
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type searchResponse struct {
	Error *apiError `json:"error"`
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type pagesResponse struct {
	Error *apiError `json:"error"`
	Query struct {
		Pages []pageInfo `json:"pages"`
	} `json:"query"`
}

func (c *httpClient) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(limit)},
		"srprop":   {""},
	}
	var resp searchResponse
	if err := c.api(ctx, params, &resp); err != nil {
		return nil, eris.Wrapf(err, "mediawiki: search %q", query)
	}
	if resp.Error != nil {
		return nil, eris.Errorf("mediawiki: search %q: %s: %s", query, resp.Error.Code, resp.Error.Info)
	}
	titles := make([]string, 0, len(resp.Query.Search))
	for _, s := range resp.Query.Search {
		titles = append(titles, s.Title)
	}
	return titles, nil
}

func (c *httpClient) Summary(ctx context.Context, title string) (string, error) {
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"redirects":   {"1"},
		"titles":      {title},
	}
	page, err := c.page(ctx, params, title)
	if err != nil {
		return "", eris.Wrapf(err, "mediawiki: summary %q", title)
	}
	if page.Extract == "" {
		return "", eris.Wrapf(ErrNoExtract, "mediawiki: summary %q", title)
	}
	return page.Extract, nil
}

func (c *httpClient) PageURL(ctx context.Context, title string) (string, error) {
	params := url.Values{
		"action":    {"query"},
		"prop":      {"info"},
		"inprop":    {"url"},
		"redirects": {"1"},
		"titles":    {title},
	}
	page, err := c.page(ctx, params, title)
	if err != nil {
		return "", eris.Wrapf(err, "mediawiki: url %q", title)
	}
	if page.FullURL == "" {
		return "", eris.Errorf("mediawiki: url %q: no fullurl in response", title)
	}
	return page.FullURL, nil
}

func (c *httpClient) PageHTML(ctx context.Context, pageURL string) (string, error) {
	body, err := c.get(ctx, pageURL)
	if err != nil {
		return "", eris.Wrapf(err, "mediawiki: fetch %s", pageURL)
	}
	return string(body), nil
}

type pageInfo struct {
	Title   string `json:"title"`
	Missing bool   `json:"missing"`
	Invalid bool   `json:"invalid"`
	Extract string `json:"extract"`
	FullURL string `json:"fullurl"`
}

func (c *httpClient) page(ctx context.Context, params url.Values, title string) (pageInfo, error) {
	var resp pagesResponse
	if err := c.api(ctx, params, &resp); err != nil {
		return pageInfo{}, err
	}
	if resp.Error != nil {
		return pageInfo{}, eris.Errorf("%s: %s", resp.Error.Code, resp.Error.Info)
	}
	if len(resp.Query.Pages) == 0 {
		return pageInfo{}, ErrPageNotFound
	}
	p := resp.Query.Pages[0]
	if p.Missing || p.Invalid {
		return pageInfo{}, eris.Wrap(ErrPageNotFound, title)
	}
	return p, nil
}

// api issues a GET against the action API and decodes the JSON body.
func (c *httpClient) api(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	body, err := c.get(ctx, c.endpoint+"?"+params.Encode())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}

// get runs a rate-limited, retried, breaker-guarded GET and returns the body.
func (c *httpClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	lim := c.limiters.forURL(rawURL)
	return resilience.Call(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
			if lim != nil {
				if err := lim.Wait(ctx); err != nil {
					return nil, eris.Wrap(err, "rate limiter wait")
				}
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return nil, eris.Wrap(err, "create request")
			}
			req.Header.Set("User-Agent", c.userAgent)

			resp, err := c.http.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close() //nolint:errcheck

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, eris.Wrap(err, "read response body")
			}
			if lim != nil {
				if resp.StatusCode == http.StatusTooManyRequests {
					lim.OnRateLimit()
				} else if resp.StatusCode < 300 {
					lim.OnSuccess()
				}
			}
			return body, resilience.CheckStatus("mediawiki", resp.StatusCode, body)
		})
	})
}
