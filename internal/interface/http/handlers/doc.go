// Package handlers holds the HTTP pieces shared by the API server and the
// worker's ops listener: backing-service health probes, a per-client rate
// limiter and the middleware that does not depend on the API's routes.
//
// Postgres and Firestore are registered as Critical probes; a failing Redis
// cache is Optional and only reports the service as degraded, because the
// store stack falls back to uncached reads:
//
//	health := handlers.NewHealthRegistry(version)
//	health.Register("database", handlers.PingProbe(store), handlers.Critical)
//	health.Register("redis", handlers.PingProbe(cache), handlers.Optional)
package handlers
