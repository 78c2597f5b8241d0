// Package health provides liveness and readiness probes for the replacer
// runtime.
//
// Liveness only reports that the process is running. Readiness runs every
// registered check concurrently, each bounded by the checker timeout, and
// reports "degraded" when any of them fails.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("rules", health.RulesLoaded(mgr))
//	checker.RegisterCheck("snapshot", health.SnapshotFresh(mgr, 10*time.Second))
//
//	r := chi.NewRouter()
//	health.Mount(r, checker, "1.0.0", "abc123", "2026-01-01")
package health
