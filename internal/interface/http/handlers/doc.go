// Package handlers contains health checks and reusable middleware for the
// HTTP interface.
//
// # Health Checks
//
// Checks run in parallel, each under its own timeout. The database is
// critical; the cache and the remote services only degrade the status:
//
//	checker := handlers.NewCompositeHealthChecker("1.0.0")
//	checker.AddCheck("database", handlers.NewPingCheck(db))
//	checker.AddOptionalCheck("cache", handlers.NewPingCheck(cache))
//	checker.AddOptionalCheck("billing", handlers.NewBreakerCheck(billingClient))
//
//	status := checker.Check(ctx)
//
// # Middleware
//
//	h := handlers.Chain(
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.NoCacheMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	)(mux)
package handlers
