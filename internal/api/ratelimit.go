package api

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/FocuswithJustin/Rescribe/core/cas"
	"github.com/FocuswithJustin/Rescribe/internal/logging"
)

// DefaultConversionCost is the number of tokens a conversion request takes
// from its client's bucket when RateLimiterConfig.ConversionCost is unset.
const DefaultConversionCost = 5

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int // tokens refilled per minute
	BurstSize         int // bucket capacity
	// ConversionCost is charged for POST /convert and POST /jobs; every
	// other request costs one token. It is capped at BurstSize.
	ConversionCost int
	// OnReject is called with the client kind ("key" or "ip") of every
	// rejected request.
	OnReject func(kind string)
}

// bucket is one client's token bucket.
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastSeen time.Time
}

// RateLimiter limits requests per client. Clients that present an API key
// are tracked by a digest of the key, others by IP address, so several
// users behind one proxy do not share a budget once they authenticate.
type RateLimiter struct {
	capacity float64
	perSec   float64
	cost     float64
	limit    int
	onReject func(string)
	now      func() time.Time

	mu       sync.Mutex
	buckets  map[string]*bucket
	idleTTL  time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter starts a rate limiter. Stop ends its cleanup goroutine.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	capacity := max(cfg.BurstSize, 1)
	cost := cfg.ConversionCost
	if cost <= 0 {
		cost = DefaultConversionCost
	}
	rl := &RateLimiter{
		capacity: float64(capacity),
		perSec:   float64(cfg.RequestsPerMinute) / 60,
		cost:     float64(min(cost, capacity)),
		limit:    cfg.RequestsPerMinute,
		onReject: cfg.OnReject,
		now:      time.Now,
		buckets:  make(map[string]*bucket),
		idleTTL:  5 * time.Minute,
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// take charges n tokens to client. It returns whether the request may
// proceed, the whole tokens left and, when denied, how long until n tokens
// are available.
func (rl *RateLimiter) take(client string, n float64) (ok bool, remaining int, wait time.Duration) {
	now := rl.now()
	rl.mu.Lock()
	b, found := rl.buckets[client]
	if !found {
		b = &bucket{tokens: rl.capacity, lastSeen: now}
		rl.buckets[client] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = min(rl.capacity, b.tokens+now.Sub(b.lastSeen).Seconds()*rl.perSec)
	b.lastSeen = now
	if b.tokens >= n {
		b.tokens -= n
		return true, int(b.tokens), 0
	}
	if rl.perSec <= 0 {
		return false, int(b.tokens), time.Minute
	}
	secs := (n - b.tokens) / rl.perSec
	return false, int(b.tokens), time.Duration(secs * float64(time.Second))
}

// Allow charges one token to client.
func (rl *RateLimiter) Allow(client string) bool {
	ok, _, _ := rl.take(client, 1)
	return ok
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.removeIdle(rl.now())
		}
	}
}

// removeIdle drops buckets untouched for longer than the idle TTL. A
// dropped bucket would have refilled to capacity anyway.
func (rl *RateLimiter) removeIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for client, b := range rl.buckets {
		b.mu.Lock()
		idle := now.Sub(b.lastSeen)
		b.mu.Unlock()
		if idle > rl.idleTTL {
			delete(rl.buckets, client)
		}
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// requestCost returns the tokens r costs.
func (rl *RateLimiter) requestCost(r *http.Request) float64 {
	if r.Method == http.MethodPost && (r.URL.Path == "/convert" || r.URL.Path == "/jobs") {
		return rl.cost
	}
	return 1
}

// Middleware rejects requests over the client's budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, client := rateLimitClient(r)
		ok, remaining, wait := rl.take(client, rl.requestCost(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := int(math.Ceil(wait.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		logging.SecurityEvent("rate_limit_exceeded", "api",
			"client_kind", kind,
			"remote_addr", getClientIP(r),
			"path", r.URL.Path)
		if rl.onReject != nil {
			rl.onReject(kind)
		}
		respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
			fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
	})
}

// rateLimitClient identifies the budget a request draws from. Keys are
// hashed so they never sit in memory or logs in the clear; the middleware
// runs before auth, so an invalid key only burns its own budget.
func rateLimitClient(r *http.Request) (kind, id string) {
	if key := requestAPIKey(r); key != "" {
		return "key", "key:" + cas.Hash([]byte(key))[:16]
	}
	return "ip", "ip:" + getClientIP(r)
}

// getClientIP extracts the client IP from X-Forwarded-For (leftmost hop),
// X-Real-IP or RemoteAddr, in that order, ignoring values that are not IPs.
func getClientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); isValidIP(strings.TrimSpace(first)) {
		return strings.TrimSpace(first)
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); isValidIP(realIP) {
		return realIP
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if isValidIP(ip) {
		return ip
	}
	return "unknown"
}

func isValidIP(s string) bool {
	return net.ParseIP(s) != nil
}
