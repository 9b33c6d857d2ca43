package mediawiki

import (
	"context"
	"net/url"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = min(a.currentRate*1.2, a.maxRate)
	a.limiter.SetLimit(a.currentRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = max(a.currentRate*0.5, a.minRate)
	a.limiter.SetLimit(a.currentRate)
	zap.L().Warn("mediawiki: reducing request rate after 429",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// hostLimiters hands out one AdaptiveLimiter per host. The API endpoint and
// the article pages usually live on the same host and share a budget.
type hostLimiters struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	byKey map[string]*AdaptiveLimiter
}

func newHostLimiters(rps float64) *hostLimiters {
	burst := max(int(rps), 1)
	return &hostLimiters{rps: rate.Limit(rps), burst: burst, byKey: make(map[string]*AdaptiveLimiter)}
}

func (h *hostLimiters) forURL(rawURL string) *AdaptiveLimiter {
	if h == nil || h.rps <= 0 {
		return nil
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	lim, ok := h.byKey[host]
	if !ok {
		lim = NewAdaptiveLimiter(h.rps, h.burst)
		h.byKey[host] = lim
	}
	return lim
}
