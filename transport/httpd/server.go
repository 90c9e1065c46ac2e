// Package httpd exposes the approval service over HTTP. The router mirrors
// core.ApprovalService one to one; no decision rules live at this layer.
package httpd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-approvals/auth"
	"github.com/goliatone/go-approvals/core"
	"github.com/goliatone/go-approvals/ratelimit"
)

// Router-level limits.
const (
	DefaultMaxBodyBytes = int64(1 << 20) // approval payloads are small
	DefaultRateLimit    = 50             // requests per second per client IP
	DefaultRateBurst    = 100            // token bucket burst size
)

// RouterDeps holds everything the router needs. Service and Verifier are
// required; limits and logging default when unset.
type RouterDeps struct {
	Service      core.ApprovalService
	Verifier     auth.Verifier
	Logger       core.Logger
	Version      string
	MaxBodyBytes int64
	RateLimit    int
	RateBurst    int
}

// NewRouter builds the Gin engine with the full middleware chain and route
// table. The rate limiter's eviction goroutine stops when ctx is cancelled.
func NewRouter(ctx context.Context, deps *RouterDeps) (http.Handler, error) {
	if deps == nil || deps.Service == nil {
		return nil, fmt.Errorf("httpd: approval service is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("httpd: credential verifier is required")
	}
	logger := glog.Ensure(deps.Logger)

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	rate := deps.RateLimit
	if rate <= 0 {
		rate = DefaultRateLimit
	}
	burst := deps.RateBurst
	if burst <= 0 {
		burst = DefaultRateBurst
	}
	limiter, err := ratelimit.NewLimiter(ctx, rate, burst)
	if err != nil {
		return nil, fmt.Errorf("httpd: build rate limiter: %w", err)
	}

	r := gin.New()
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(RequestID())
	r.Use(RequestLogger(logger))
	r.Use(gin.Recovery())
	r.Use(SecurityHeaders())
	r.Use(MaxBodySize(maxBody))
	r.Use(RateLimit(limiter))
	r.Use(Observe())

	// Probes and metrics are unauthenticated.
	health := NewHealthHandler(deps.Service, logger, deps.Version)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authorized := r.Group("/", APIKeyAuth(deps.Verifier, logger))
	approvals := NewApprovalHandler(deps.Service, logger)
	audit := NewAuditHandler(deps.Service, logger)

	authorized.POST("/approvals/:objectType/:id", approvals.Decide)
	authorized.GET("/approvals/pending", approvals.ListPending)
	authorized.GET("/approvals/:objectType/:id", approvals.GetObject)
	authorized.GET("/audit", audit.List)
	authorized.GET("/audit/:id", audit.Get)

	return r, nil
}
