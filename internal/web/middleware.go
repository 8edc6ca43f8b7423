package web

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"a11y/internal/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"

	visitorTTL = 3 * time.Minute
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			slog.Error("Request failed", attrs...)
		case c.Writer.Status() >= http.StatusBadRequest:
			slog.Warn("Request rejected", attrs...)
		default:
			slog.Info("Request", attrs...)
		}
	}
}

func recordMetrics(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		collector.ObserveHTTP(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// visitors keeps one token bucket per client IP. Idle entries are pruned
// on access rather than by a background goroutine.
type visitors struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	byIP      map[string]*visitor
	lastPrune time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newVisitors(rps float64, burst int) *visitors {
	return &visitors{
		limit:     rate.Limit(rps),
		burst:     burst,
		byIP:      make(map[string]*visitor),
		lastPrune: time.Now(),
	}
}

func (v *visitors) allow(ip string) bool {
	v.mu.Lock()
	now := time.Now()
	if now.Sub(v.lastPrune) > time.Minute {
		for key, vis := range v.byIP {
			if now.Sub(vis.lastSeen) > visitorTTL {
				delete(v.byIP, key)
			}
		}
		v.lastPrune = now
	}

	vis, ok := v.byIP[ip]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(v.limit, v.burst)}
		v.byIP[ip] = vis
	}
	vis.lastSeen = now
	v.mu.Unlock()

	return vis.limiter.Allow()
}

// rateLimit applies to POST routes only; static media and health checks are
// never throttled.
func rateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	v := newVisitors(rps, burst)

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if !v.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
