package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// DefaultLimiterIdle is how long a client's bucket is kept after its last request.
const DefaultLimiterIdle = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client key. Buckets idle for
// longer than the idle period are dropped.
type RateLimiter struct {
	mu        sync.Mutex
	limits    map[string]*clientLimiter
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter allowing perSecond requests per client
// with bursts of up to burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limits: make(map[string]*clientLimiter),
		every:  rate.Limit(perSecond),
		burst:  burst,
		idle:   DefaultLimiterIdle,
		now:    time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	if cl, ok := rl.limits[key]; ok {
		cl.lastSeen = now
		return cl.limiter
	}

	cl := &clientLimiter{limiter: rate.NewLimiter(rl.every, rl.burst), lastSeen: now}
	rl.limits[key] = cl
	return cl.limiter
}

// sweep drops idle buckets, at most once per idle period. Must hold rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.idle {
		return
	}
	rl.lastSweep = now
	for key, cl := range rl.limits {
		if now.Sub(cl.lastSeen) >= rl.idle {
			delete(rl.limits, key)
		}
	}
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
func (rl *RateLimiter) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !rl.Allow(c.RealIP()) {
			return c.JSON(http.StatusTooManyRequests, errorBody{Error: "too many requests"})
		}
		return next(c)
	}
}
