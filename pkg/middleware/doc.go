// Package middleware provides HTTP middleware for authentication, rate limiting,
// and organization context.
//
// # Middleware Components
//
// AdminAuthMiddleware: shared-secret authentication for the admin trigger surface
//
//	admin := middleware.NewAdminAuthMiddleware(cfg.Server.AdminToken)
//	adminRouter.Use(admin.Handler)
//
// RateLimitMiddleware: in-memory token bucket keyed by client IP
//
//	limiter := middleware.NewRateLimitMiddleware(nil)
//	router.Use(limiter.Handler)
//
// DistributedRateLimitMiddleware: Redis-backed limiter shared across instances
//
//	limiter := middleware.NewDistributedRateLimitMiddleware(redisClient, nil)
//	router.Use(limiter.Handler)
//
// OrgContextMiddleware: extracts the {orgID} path variable into the request
// context so downstream handlers and log lines carry it.
//
// # Related Packages
//
//   - pkg/observability: request-scoped logging context
//   - pkg/httputil: response helpers
package middleware
