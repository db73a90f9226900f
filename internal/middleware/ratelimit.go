package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/bridge4er/examhall/internal/response"
	"github.com/gin-gonic/gin"
)

// RateLimiter throttles requests per client IP with a token bucket.
// Buckets refill lazily on access; a sweeper drops idle ones.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	burst    int
	interval time.Duration
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter allows burst requests per interval and IP. The login
// route uses this to blunt credential stuffing.
func NewRateLimiter(burst int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		burst:    burst,
		interval: interval,
	}
	go rl.sweep()
	return rl
}

// Middleware rejects over-limit requests with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: rl.burst, lastRefill: now}
		rl.buckets[ip] = b
	}

	if intervals := int(now.Sub(b.lastRefill) / rl.interval); intervals > 0 {
		b.tokens += intervals * rl.burst
		if b.tokens > rl.burst {
			b.tokens = rl.burst
		}
		b.lastRefill = now
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (rl *RateLimiter) sweep() {
	for range time.Tick(time.Minute) {
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			if time.Since(b.lastRefill) > 3*time.Minute {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}
