// Package handlers contains HTTP health checks and reusable middleware.
//
// # Health Checks
//
// Checks run in parallel. A failed critical check (the store) marks the
// service not ready; a failed optional check (the cache) only degrades it:
//
//	checker := handlers.NewCompositeHealthChecker("0.1.0")
//	checker.AddCheck("database", handlers.NewPingCheck(pool))
//	checker.AddOptionalCheck("cache", handlers.NewPingCheck(cache))
//
// # Authentication
//
// TokenAuth resolves "Authorization: Bearer <token>" through the identity
// provider and stores the subject in the request context:
//
//	auth := handlers.NewTokenAuth(provider, logger)
//	mux.Handle("POST /api/v1/exercises/check", auth.Required(checkHandler))
//
//	subject, ok := handlers.SubjectFromContext(r.Context())
package handlers
