package inference

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
)

// CachedEmbedder memoizes vectors by model and text. The same page summary
// is usually ranked for several query candidates of one question.
type CachedEmbedder struct {
	next    Embedder
	modelID string
	cache   *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps next with an LRU of the given size.
func NewCachedEmbedder(next Embedder, modelID string, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 4096
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, eris.Wrap(err, "inference: create embedding cache")
	}
	return &CachedEmbedder{next: next, modelID: modelID, cache: c}, nil
}

// Embed implements Embedder. Only the texts missing from the cache are sent
// to the wrapped embedder, in one call.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		keys[i] = c.key(t)
		if vec, ok := c.cache.Get(keys[i]); ok {
			out[i] = clone(vec)
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, eris.Errorf("inference: embedder returned %d vectors for %d texts", len(vecs), len(missing))
	}
	for j, i := range missingIdx {
		c.cache.Add(keys[i], clone(vecs[j]))
		out[i] = vecs[j]
	}
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, c.modelID)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return hex.EncodeToString(h.Sum(nil))
}

func clone(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
