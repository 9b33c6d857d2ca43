package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wikiqa/internal/resilience"
)

// TEIEmbedder calls a text-embeddings-inference server (POST /embed).
type TEIEmbedder struct {
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// TEIOption configures a TEIEmbedder.
type TEIOption func(*TEIEmbedder)

// WithTEIHTTPClient sets a custom HTTP client.
func WithTEIHTTPClient(hc *http.Client) TEIOption {
	return func(t *TEIEmbedder) { t.http = hc }
}

// WithTEIRetry sets the retry policy.
func WithTEIRetry(cfg resilience.RetryConfig) TEIOption {
	return func(t *TEIEmbedder) { t.retry = cfg }
}

// NewTEIEmbedder creates an embedder for the server at baseURL.
func NewTEIEmbedder(baseURL string, opts ...TEIOption) *TEIEmbedder {
	t := &TEIEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(t)
	}
	t.retry.OnRetry = resilience.RetryLogger("tei", "embed")
	return t
}

// Embed implements Embedder.
func (t *TEIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(map[string]any{"inputs": texts, "truncate": true})
	if err != nil {
		return nil, eris.Wrap(err, "tei: marshal request")
	}

	body, err := resilience.DoVal(ctx, t.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/embed", bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "tei: create request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "tei: read response body")
		}
		return data, resilience.CheckStatus("tei", resp.StatusCode, data)
	})
	if err != nil {
		return nil, eris.Wrap(err, "tei: embed")
	}

	var vecs [][]float32
	if err := json.Unmarshal(body, &vecs); err != nil {
		return nil, eris.Wrap(err, "tei: unmarshal response")
	}
	if len(vecs) != len(texts) {
		return nil, eris.Errorf("tei: got %d embeddings for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}
