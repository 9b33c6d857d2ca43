package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wikiqa/internal/resilience"
)

// HTTPAnnotator calls an annotation service (a spaCy pipeline behind a small
// HTTP wrapper). It POSTs {"text": ...} and expects a Doc as JSON.
type HTTPAnnotator struct {
	url     string
	http    *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// HTTPOption configures an HTTPAnnotator.
type HTTPOption func(*HTTPAnnotator)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(a *HTTPAnnotator) { a.http = hc }
}

// WithRetry sets the retry policy.
func WithRetry(cfg resilience.RetryConfig) HTTPOption {
	return func(a *HTTPAnnotator) { a.retry = cfg }
}

// WithBreaker guards calls with a circuit breaker.
func WithBreaker(b *resilience.Breaker) HTTPOption {
	return func(a *HTTPAnnotator) { a.breaker = b }
}

// NewHTTPAnnotator creates an annotator for the service at url.
func NewHTTPAnnotator(url string, opts ...HTTPOption) *HTTPAnnotator {
	a := &HTTPAnnotator{
		url:   url,
		http:  &http.Client{Timeout: 15 * time.Second},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(a)
	}
	a.retry.OnRetry = resilience.RetryLogger("annotator", "annotate")
	return a
}

// Annotate implements Annotator.
func (a *HTTPAnnotator) Annotate(ctx context.Context, text string) (*Doc, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, eris.Wrap(err, "annotator: marshal request")
	}

	body, err := resilience.Call(ctx, a.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.DoVal(ctx, a.retry, func(ctx context.Context) ([]byte, error) {
			return a.post(ctx, payload)
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "annotator: request failed")
	}

	var doc Doc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, eris.Wrap(err, "annotator: unmarshal response")
	}
	if doc.Text == "" {
		doc.Text = text
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (a *HTTPAnnotator) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "annotator: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "annotator: read response body")
	}
	if err := resilience.CheckStatus("annotator", resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}
