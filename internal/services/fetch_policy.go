package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/codyseavey/tix-calc/internal/metrics"
)

// FetchPolicy paces outbound requests to the upstream sources: a token
// bucket bounds the request rate and a uniform random delay in
// [0, maxJitter) spreads bursts out. It runs once per remote fetch and
// never on a cache hit.
type FetchPolicy struct {
	limiter   *rate.Limiter
	maxJitter time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFetchPolicy creates a policy allowing requestsPerSecond with the given
// burst. A non-positive rate disables the token bucket; a non-positive
// maxJitter disables the random delay.
func NewFetchPolicy(requestsPerSecond float64, burst int, maxJitter time.Duration) *FetchPolicy {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &FetchPolicy{
		limiter:   rate.NewLimiter(limit, burst),
		maxJitter: maxJitter,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait blocks until the next request may go out and returns how long it
// waited. It returns early with ctx's error if ctx is done first.
func (p *FetchPolicy) Wait(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	defer func() {
		metrics.FetchPolicyWait.Observe(time.Since(start).Seconds())
	}()

	if err := p.limiter.Wait(ctx); err != nil {
		return time.Since(start), err
	}

	jitter := p.jitter()
	if jitter <= 0 {
		return time.Since(start), nil
	}

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return time.Since(start), ctx.Err()
	case <-timer.C:
		return time.Since(start), nil
	}
}

func (p *FetchPolicy) jitter() time.Duration {
	if p.maxJitter <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.rng.Int63n(int64(p.maxJitter)))
}
