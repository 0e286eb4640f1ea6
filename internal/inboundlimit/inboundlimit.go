// Package inboundlimit rate limits inbound requests to the waybackctl
// serve HTTP front end. It is unrelated to internal/ratelimit, which
// paces outbound requests to web.archive.org.
package inboundlimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var rejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "wayback",
		Subsystem: "inbound",
		Name:      "rejected_total",
		Help:      "Total inbound requests rejected by the rate limiter.",
	},
	[]string{"scope"},
)

// Config holds inbound rate limiting configuration.
type Config struct {
	GlobalRate  rate.Limit
	GlobalBurst int

	PerIPRate  rate.Limit
	PerIPBurst int

	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults for a single-process demo front end.
func DefaultConfig() Config {
	return Config{
		GlobalRate:      50,
		GlobalBurst:     100,
		PerIPRate:       10,
		PerIPBurst:      20,
		CleanupInterval: 5 * time.Minute,
	}
}

// Limiter enforces a global and a per-client-IP rate limit.
type Limiter struct {
	config Config

	global *rate.Limiter

	mu          sync.Mutex
	perIP       map[string]*rate.Limiter
	lastCleanup time.Time
}

// New creates a Limiter with the given configuration.
func New(config Config) *Limiter {
	return &Limiter{
		config:      config,
		global:      rate.NewLimiter(config.GlobalRate, config.GlobalBurst),
		perIP:       make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

// Allow reports whether a request from clientIP should proceed.
func (l *Limiter) Allow(clientIP string) bool {
	if !l.global.Allow() {
		rejected.WithLabelValues("global").Inc()
		return false
	}

	if !l.ipLimiter(clientIP).Allow() {
		rejected.WithLabelValues("per_ip").Inc()
		return false
	}

	l.maybeCleanup()
	return true
}

func (l *Limiter) ipLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.perIP[ip]
	if !ok {
		limiter = rate.NewLimiter(l.config.PerIPRate, l.config.PerIPBurst)
		l.perIP[ip] = limiter
	}
	return limiter
}

func (l *Limiter) maybeCleanup() {
	if time.Since(l.lastCleanup) < l.config.CleanupInterval {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.perIP = make(map[string]*rate.Limiter)
	l.lastCleanup = time.Now()
}

// Middleware wraps an http.Handler, rejecting requests that exceed the
// limiter with 429 Too Many Requests.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the client's IP from a request, preferring
// X-Forwarded-For and X-Real-IP over RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			xff = xff[:i]
		}
		if xff = strings.TrimSpace(xff); xff != "" {
			return xff
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
