package httpd

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/goliatone/go-approvals/auth"
	"github.com/goliatone/go-approvals/core"
	"github.com/goliatone/go-approvals/metrics"
	"github.com/goliatone/go-approvals/ratelimit"
)

const (
	// RequestIDKey is the gin context key for the canonical request id.
	RequestIDKey = "request_id"

	// ClientRequestIDKey holds a caller-supplied id, kept for correlation
	// but never trusted as the canonical id.
	ClientRequestIDKey = "client_request_id"

	// RequestIDHeader propagates the canonical id back to the caller.
	RequestIDHeader = "X-Request-ID"

	// PrincipalKey is the gin context key for the authenticated principal.
	PrincipalKey = "auth_principal"
)

// RequestID generates a fresh server-side UUID for every request. A client
// supplied X-Request-ID is recorded separately so audit correlation still
// works without letting callers pick canonical ids.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		if clientID := c.GetHeader(RequestIDHeader); clientID != "" {
			c.Set(ClientRequestIDKey, clientID)
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger emits one access log line per request once the handler chain
// finished.
func RequestLogger(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(RequestIDKey),
		}
		if clientID := c.GetString(ClientRequestIDKey); clientID != "" {
			fields = append(fields, "client_request_id", clientID)
		}
		if logger == nil {
			return
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request completed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	}
}

// SecurityHeaders sets the standard hardening response headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// MaxBodySize limits request body size.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// RateLimit applies the token bucket limiter per client IP. ClientIP is safe
// from X-Forwarded-For spoofing because the router disables proxy trust.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := limiter.Allow(c.ClientIP()); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) && throttled.RetryAfter > 0 {
				seconds := int(math.Ceil(throttled.RetryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				c.Header("Retry-After", strconv.Itoa(seconds))
			}
			respondError(c, nil, err)
			return
		}
		c.Next()
	}
}

// Observe records request duration and count against the route pattern, not
// the raw path, so cardinality stays bounded.
func Observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

type headerNamer interface {
	Header() string
}

// APIKeyAuth authenticates every request through the verifier. Failed
// attempts share a constant-time comparison inside the verifier and a minimum
// response time here, so a probing caller learns nothing from latency.
func APIKeyAuth(verifier auth.Verifier, logger core.Logger) gin.HandlerFunc {
	header := auth.DefaultHeader
	if named, ok := verifier.(headerNamer); ok && named.Header() != "" {
		header = named.Header()
	}

	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				auth.EnforceTimingFloor(start, auth.DefaultTimingFloor)
			}
		}()

		presented := c.GetHeader(header)
		principal, err := verifier.Verify(c.Request.Context(), presented)
		if err != nil {
			metrics.AuthFailuresTotal.Inc()
			if logger != nil {
				logger.Warn("authentication failed",
					"client_ip", c.ClientIP(),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(RequestIDKey),
					"key_prefix", auth.TruncateKey(presented),
					"scheme", verifier.Scheme(),
				)
			}
			respondError(c, logger, err)
			return
		}

		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// PrincipalFrom returns the authenticated principal, when present.
func PrincipalFrom(c *gin.Context) (auth.Principal, bool) {
	value, ok := c.Get(PrincipalKey)
	if !ok {
		return auth.Principal{}, false
	}
	principal, ok := value.(auth.Principal)
	return principal, ok
}
