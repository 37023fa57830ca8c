package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

// RequireToken returns a middleware that checks a bearer token. An empty
// token disables the check.
func RequireToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Next()
	}
}

const (
	limiterClients = 4096
	limiterIdle    = 10 * time.Minute
)

// RateLimiter is a per-client-IP token bucket. Idle clients are evicted.
type RateLimiter struct {
	mu      sync.Mutex
	clients *expirable.LRU[string, *clientBucket]
	rate    float64
	burst   float64
}

type clientBucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second per
// client with bursts of twice that. A non-positive rate disables limiting.
func NewRateLimiter(rps int) *RateLimiter {
	return &RateLimiter{
		clients: expirable.NewLRU[string, *clientBucket](limiterClients, nil, limiterIdle),
		rate:    float64(rps),
		burst:   float64(rps * 2),
	}
}

// Middleware returns a Gin middleware that rate limits by client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 {
			c.Next()
			return
		}

		if !rl.allow(c.ClientIP(), time.Now()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allow(clientIP string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.clients.Get(clientIP)
	if !ok {
		bucket = &clientBucket{tokens: rl.burst, lastCheck: now}
		rl.clients.Add(clientIP, bucket)
	}

	bucket.tokens = min(rl.burst, bucket.tokens+now.Sub(bucket.lastCheck).Seconds()*rl.rate)
	bucket.lastCheck = now

	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}

// SecurityHeaders adds security-related HTTP headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Server", "streamtap")

		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Header("X-Frame-Options", "DENY")
			c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}

		c.Next()
	}
}

// RequestLogger logs incoming HTTP requests.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("api request")
	}
}
