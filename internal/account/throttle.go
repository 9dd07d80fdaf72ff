package account

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Throttle hands out one token bucket per login key.
type Throttle struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	r       rate.Limit
	burst   int
	idle    time.Duration
}

// NewThrottle allows perMinute attempts per key with the given burst.
// A non-positive perMinute disables throttling.
func NewThrottle(perMinute float64, burst int) *Throttle {
	r := rate.Inf
	if perMinute > 0 {
		r = rate.Limit(perMinute / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		buckets: make(map[string]*bucket),
		r:       r,
		burst:   burst,
		idle:    3 * time.Minute,
	}
}

func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	// stale buckets are swept on access
	for k, b := range t.buckets {
		if now.Sub(b.seen) > t.idle {
			delete(t.buckets, k)
		}
	}
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(t.r, t.burst)}
		t.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}
